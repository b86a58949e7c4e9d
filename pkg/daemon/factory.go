// Package daemon gives presentation processes a document store. When the
// appshelf daemon is running the store is served over its socket so every
// process shares one live view; otherwise the configured backend is opened
// in-process.
package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/internal/daemon/store"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/paths"
)

// Client is a document store plus its lifecycle.
type Client interface {
	docstore.Store

	// IsRunning returns true if the client talks to a live daemon.
	IsRunning() bool

	// Close releases the client's resources.
	Close() error
}

// LocalClient serves the configured backend in-process.
type LocalClient struct {
	store.Backend
}

// NewLocalClient opens the backend described by cfg.
func NewLocalClient(cfg config.StoreConfig) (*LocalClient, error) {
	backend, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalClient{Backend: backend}, nil
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// New returns a Client that uses the daemon if available,
// otherwise falls back to a LocalClient.
func New(cfg *config.Config) (Client, error) {
	socketPath := cfg.Daemon.Socket
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	if Reachable(socketPath) {
		return NewRemoteStore(socketPath), nil
	}
	return NewLocalClient(cfg.Store)
}

// Reachable reports whether a daemon accepts connections on socketPath.
func Reachable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

var (
	_ Client = (*LocalClient)(nil)
	_ Client = (*RemoteStore)(nil)
)
