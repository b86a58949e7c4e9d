package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection    TEXT NOT NULL,
	id            TEXT NOT NULL,
	fields        TEXT NOT NULL,
	created_sec   INTEGER NOT NULL,
	created_nanos INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// SQLiteStore is a document store persisted in a SQLite database.
// Writes are serialized so every subscriber sees snapshots in commit order.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	hub  *hub
	now  func() time.Time
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection so ":memory:" databases are shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: path,
		hub:  newHub(),
		now:  time.Now,
	}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the current snapshot of a collection.
func (s *SQLiteStore) Get(ctx context.Context, collection docstore.Path) (*docstore.Snapshot, error) {
	return s.snapshot(ctx, collection)
}

func (s *SQLiteStore) snapshot(ctx context.Context, collection docstore.Path) (*docstore.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields, created_sec, created_nanos FROM documents WHERE collection = ? ORDER BY id`,
		collection.String())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var (
			doc  docstore.Document
			raw  string
			secs int64
			nano int32
		)
		if err := rows.Scan(&doc.ID, &raw, &secs, &nano); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		doc.CreateTime = docstore.Timestamp{Seconds: secs, Nanos: nano}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &docstore.Snapshot{
		Collection: collection.String(),
		Docs:       docs,
		ReadAt:     docstore.NewTimestamp(s.now()),
	}, nil
}

// Subscribe opens a live query over collection.
func (s *SQLiteStore) Subscribe(ctx context.Context, collection docstore.Path) (docstore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.isClosed() {
		return nil, errStoreClosed()
	}

	snap, err := s.snapshot(ctx, collection)
	if err != nil {
		return nil, errors.SubscriptionFailed(collection.String(), err)
	}
	return s.hub.add(ctx, collection, docstore.Event{Snapshot: snap})
}

// Add stores a new document and returns its generated id.
func (s *SQLiteStore) Add(ctx context.Context, collection docstore.Path, fields docstore.Fields) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.isClosed() {
		return "", errStoreClosed()
	}

	id := ulid.Make().String()
	created := docstore.NewTimestamp(s.now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_sec, created_nanos) VALUES (?, ?, ?, ?, ?)`,
		collection.String(), id, string(data), created.Seconds, created.Nanos); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	s.publish(ctx, collection)
	return id, nil
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, collection docstore.Path, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.isClosed() {
		return errStoreClosed()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection.String(), id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound(collection.String(), id)
	}

	s.publish(ctx, collection)
	return nil
}

// publish must be called with s.mu held.
func (s *SQLiteStore) publish(ctx context.Context, collection docstore.Path) {
	if s.hub.count(collection) == 0 {
		return
	}
	snap, err := s.snapshot(context.WithoutCancel(ctx), collection)
	if err != nil {
		s.hub.publish(collection, docstore.Event{Err: errors.SubscriptionFailed(collection.String(), err)})
		return
	}
	s.hub.publish(collection, docstore.Event{Snapshot: snap})
}

// Subscribers returns the number of live subscriptions on collection.
func (s *SQLiteStore) Subscribers(collection docstore.Path) int {
	return s.hub.count(collection)
}

// Close releases every subscription and closes the database.
func (s *SQLiteStore) Close() error {
	s.hub.close()
	return s.db.Close()
}

var _ docstore.Store = (*SQLiteStore)(nil)
