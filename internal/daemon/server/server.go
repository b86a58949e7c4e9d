// Package server provides the HTTP server for the appshelf daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/internal/daemon/store"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunningConfig describes the daemon's active settings.
// It is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	Version    string    `json:"version"`
	Tenant     string    `json:"tenant"`
	Driver     string    `json:"driver"`
	StorePath  string    `json:"store_path,omitempty"`
	Socket     string    `json:"socket"`
	ConfigFile string    `json:"config_file,omitempty"`
	LogLevel   string    `json:"log_level"`
	StartedAt  time.Time `json:"started_at"`
	PID        int       `json:"pid"`
}

// StreamEvent is one SSE payload on /api/stream.
type StreamEvent struct {
	Snapshot *docstore.Snapshot `json:"snapshot,omitempty"`
	Error    *errors.AppError   `json:"error,omitempty"`
}

// AddRequest is the body of POST /api/docs.
type AddRequest struct {
	Fields docstore.Fields `json:"fields"`
}

// AddResponse is returned by POST /api/docs.
type AddResponse struct {
	ID string `json:"id"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger  *logrus.Entry
	server  *http.Server
	backend store.Backend

	mu            sync.Mutex
	runningConfig *RunningConfig
}

// New creates a new Server instance.
func New(logger *logrus.Entry, backend store.Backend) *Server {
	return &Server{
		logger:  logger,
		backend: backend,
	}
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningConfig = cfg
}

// RunningConfig returns the configuration reported by /api/config.
func (s *Server) RunningConfig() *RunningConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningConfig
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/config", s.handleGetConfig)
	mux.HandleFunc("/api/docs", s.handleDocs)
	mux.HandleFunc("/api/stream", s.handleStream)

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	srv := &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	if err := srv.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func collectionParam(r *http.Request) (docstore.Path, error) {
	return docstore.ParsePath(r.URL.Query().Get("collection"))
}

// handleDocs serves GET (snapshot), POST (add) and DELETE (delete) on a collection.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	logger := s.logger.WithField("collection", collection)

	switch r.Method {
	case http.MethodGet:
		snap, err := s.backend.Get(r.Context(), collection)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)

	case http.MethodPost:
		var req AddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		id, err := s.backend.Add(r.Context(), collection, req.Fields)
		if err != nil {
			logger.WithError(err).Warn("Add failed")
			writeError(w, err)
			return
		}
		logger.WithField("id", id).Debug("Document added")
		writeJSON(w, http.StatusCreated, AddResponse{ID: id})

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, errors.MissingField("id"))
			return
		}
		if err := s.backend.Delete(r.Context(), collection, id); err != nil {
			logger.WithError(err).WithField("id", id).Warn("Delete failed")
			writeError(w, err)
			return
		}
		logger.WithField("id", id).Debug("Document deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStream provides Server-Sent Events (SSE) for one collection.
// The first event is the current snapshot; each change pushes a full snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, err := s.backend.Subscribe(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	logger := s.logger.WithField("collection", collection)
	logger.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				logger.Debug("Subscription closed")
				return
			}
			data, err := json.Marshal(toStreamEvent(ev))
			if err != nil {
				logger.WithError(err).Error("Failed to marshal snapshot")
				continue
			}
			// SSE format: "data: {json}\n\n"
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func toStreamEvent(ev docstore.Event) StreamEvent {
	if ev.Err != nil {
		return StreamEvent{Error: asAppError(ev.Err)}
	}
	return StreamEvent{Snapshot: ev.Snapshot}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.RunningConfig()
	if cfg == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError encodes err as an AppError with a status derived from its code.
func writeError(w http.ResponseWriter, err error) {
	appErr := asAppError(err)
	status := http.StatusInternalServerError
	switch appErr.Code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeValidation:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeStoreClosed:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, appErr)
}

func asAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.ErrCodeInternal, err.Error())
}
