package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/oklog/ulid/v2"
)

func errStoreClosed() error {
	return errors.StoreClosed()
}

// MemoryStore is an in-memory document store.
// It is thread-safe and pushes a full snapshot to subscribers after every change.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[docstore.Path]map[string]docstore.Document
	hub         *hub
	now         func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[docstore.Path]map[string]docstore.Document),
		hub:         newHub(),
		now:         time.Now,
	}
}

// Get returns the current snapshot of a collection.
func (s *MemoryStore) Get(ctx context.Context, collection docstore.Path) (*docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection), nil
}

// snapshot must be called with s.mu held. Documents are ordered by id,
// which for ulids is creation order.
func (s *MemoryStore) snapshot(collection docstore.Path) *docstore.Snapshot {
	docs := make([]docstore.Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, copyDocument(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return &docstore.Snapshot{
		Collection: collection.String(),
		Docs:       docs,
		ReadAt:     docstore.NewTimestamp(s.now()),
	}
}

// Subscribe opens a live query over collection.
func (s *MemoryStore) Subscribe(ctx context.Context, collection docstore.Path) (docstore.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.add(ctx, collection, docstore.Event{Snapshot: s.snapshot(collection)})
}

// Add stores a new document and returns its generated id.
func (s *MemoryStore) Add(ctx context.Context, collection docstore.Path, fields docstore.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.isClosed() {
		return "", errStoreClosed()
	}

	doc := docstore.Document{
		ID:         ulid.Make().String(),
		Fields:     copyFields(fields),
		CreateTime: docstore.NewTimestamp(s.now()),
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]docstore.Document)
	}
	s.collections[collection][doc.ID] = doc

	s.hub.publish(collection, docstore.Event{Snapshot: s.snapshot(collection)})
	return doc.ID, nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, collection docstore.Path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.isClosed() {
		return errStoreClosed()
	}

	if _, ok := s.collections[collection][id]; !ok {
		return errors.NotFound(collection.String(), id)
	}
	delete(s.collections[collection], id)
	if len(s.collections[collection]) == 0 {
		delete(s.collections, collection)
	}

	s.hub.publish(collection, docstore.Event{Snapshot: s.snapshot(collection)})
	return nil
}

// Subscribers returns the number of live subscriptions on collection.
func (s *MemoryStore) Subscribers(collection docstore.Path) int {
	return s.hub.count(collection)
}

// Close releases every subscription.
func (s *MemoryStore) Close() error {
	s.hub.close()
	return nil
}

func copyDocument(doc docstore.Document) docstore.Document {
	doc.Fields = copyFields(doc.Fields)
	return doc
}

func copyFields(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

var _ docstore.Store = (*MemoryStore)(nil)
