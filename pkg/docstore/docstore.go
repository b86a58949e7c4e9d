// Package docstore defines the document store contract used by the catalog
// session: a multi-collection, schemaless store addressed by hierarchical
// paths, with live full-collection snapshots and create/delete operations.
package docstore

import (
	"context"
	"strings"
	"time"

	"github.com/grovetools/appshelf/errors"
)

// Fields is the schemaless payload of a document.
type Fields map[string]interface{}

// Timestamp is the store's native time representation.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// NewTimestamp converts a wall-clock time to a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the timestamp to wall-clock time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos))
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Nanos == 0
}

// Document is a single stored record.
type Document struct {
	ID         string    `json:"id"`
	Fields     Fields    `json:"fields"`
	CreateTime Timestamp `json:"create_time"`
}

// Snapshot is a complete point-in-time listing of a collection.
type Snapshot struct {
	Collection string     `json:"collection"`
	Docs       []Document `json:"docs"`
	ReadAt     Timestamp  `json:"read_at"`
}

// Event is one delivery on a subscription: either a snapshot or an error.
type Event struct {
	Snapshot *Snapshot
	Err      error
}

// Subscription is a live query over one collection.
// The first event is the current snapshot; later events follow every change.
// Close is idempotent and closes the Events channel.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Store is the document store consumed by the catalog layer.
// Add and Delete report acceptance by the store; subscribers learn about the
// change through their own snapshot stream.
type Store interface {
	Subscribe(ctx context.Context, collection Path) (Subscription, error)
	Add(ctx context.Context, collection Path, fields Fields) (string, error)
	Delete(ctx context.Context, collection Path, id string) error
}

// Path is a slash separated collection path such as "tenant/public/apps".
type Path string

// ParsePath validates a collection path.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return "", errors.InvalidPath(s, "empty path")
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			return "", errors.InvalidPath(s, "empty segment")
		}
	}
	return Path(s), nil
}

// Join builds a path from segments.
func Join(segments ...string) Path {
	return Path(strings.Join(segments, "/"))
}

// String returns the path as a string.
func (p Path) String() string {
	return string(p)
}

// CatalogPath is the shared catalog collection for a tenant.
func CatalogPath(tenant string) Path {
	return Join(tenant, "public", "apps")
}

// MessagesPath is the private message collection of one user.
func MessagesPath(tenant, userID string) Path {
	return Join(tenant, "users", userID, "messages")
}
