package store

import (
	"context"
	"fmt"

	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/pkg/docstore"
)

// Backend is a document store that the daemon can serve.
type Backend interface {
	docstore.Store
	Get(ctx context.Context, collection docstore.Path) (*docstore.Snapshot, error)
	Subscribers(collection docstore.Path) int
	Close() error
}

// Open returns the backend selected by the store configuration.
func Open(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite, "":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
