package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/internal/daemon/server"
	"github.com/grovetools/appshelf/pkg/docstore"
)

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// RemoteStore implements docstore.Store by calling the daemon's HTTP API over a Unix socket.
type RemoteStore struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
}

// NewRemoteStore creates a RemoteStore connected to the daemon socket.
func NewRemoteStore(socketPath string) *RemoteStore {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	streamTransport := &http.Transport{DialContext: dial}

	return &RemoteStore{
		httpClient:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
		streamClient: &http.Client{Transport: streamTransport}, // No timeout for streaming
		baseURL:      baseURL,
	}
}

// newRemoteStoreForURL targets an HTTP base URL instead of a socket.
func newRemoteStoreForURL(base string, client *http.Client) *RemoteStore {
	return &RemoteStore{httpClient: client, streamClient: client, baseURL: base}
}

func (c *RemoteStore) url(endpoint string, collection docstore.Path, id string) string {
	q := url.Values{"collection": {collection.String()}}
	if id != "" {
		q.Set("id", id)
	}
	return c.baseURL + endpoint + "?" + q.Encode()
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteStore) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetConfig returns the daemon's running configuration.
func (c *RemoteStore) GetConfig(ctx context.Context) (*server.RunningConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/config", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	var cfg server.RunningConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Add stores a document through the daemon.
func (c *RemoteStore) Add(ctx context.Context, collection docstore.Path, fields docstore.Fields) (string, error) {
	body, err := json.Marshal(server.AddRequest{Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/docs", collection, ""), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to add document via daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}
	var added server.AddResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return added.ID, nil
}

// Delete removes a document through the daemon.
func (c *RemoteStore) Delete(ctx context.Context, collection docstore.Path, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/api/docs", collection, id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete document via daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}
	return nil
}

// Subscribe opens a Server-Sent Events stream for collection.
// A stream that ends before Close is reported as a subscription error event.
func (c *RemoteStore) Subscribe(ctx context.Context, collection docstore.Path) (docstore.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.url("/api/stream", collection, ""), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.SubscriptionFailed(collection.String(), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, errors.SubscriptionFailed(collection.String(), decodeError(resp))
	}

	sub := &remoteSubscription{
		ch:     make(chan docstore.Event, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.read(streamCtx, collection, resp.Body)
	return sub, nil
}

// Close cleans up idle connections.
func (c *RemoteStore) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}

type remoteSubscription struct {
	ch     chan docstore.Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *remoteSubscription) Events() <-chan docstore.Event {
	return s.ch
}

// Close stops the stream and waits for the reader to exit.
func (s *remoteSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *remoteSubscription) read(ctx context.Context, collection docstore.Path, body io.ReadCloser) {
	defer close(s.done)
	defer close(s.ch)
	defer body.Close()

	emit := func(ev docstore.Event) bool {
		select {
		case s.ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, ":") || line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var payload server.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
			continue // Skip malformed data
		}
		ev := docstore.Event{Snapshot: payload.Snapshot}
		if payload.Error != nil {
			ev = docstore.Event{Err: payload.Error}
		}
		if !emit(ev) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	emit(docstore.Event{Err: errors.SubscriptionFailed(collection.String(), err)})
}

// decodeError turns a non-success daemon response into an error.
func decodeError(resp *http.Response) error {
	var appErr errors.AppError
	if err := json.NewDecoder(resp.Body).Decode(&appErr); err == nil && appErr.Code != "" {
		return &appErr
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

var _ docstore.Store = (*RemoteStore)(nil)
