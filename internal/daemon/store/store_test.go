package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// backends returns a fresh instance of every backend.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func next(t *testing.T, sub docstore.Subscription) docstore.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return docstore.Event{}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()
			path := docstore.CatalogPath("t1")

			_, err := b.Add(ctx, path, docstore.Fields{"name": "Zed"})
			require.NoError(t, err)

			sub, err := b.Subscribe(ctx, path)
			require.NoError(t, err)
			defer sub.Close()

			ev := next(t, sub)
			require.NoError(t, ev.Err)
			require.Len(t, ev.Snapshot.Docs, 1)
			assert.Equal(t, "Zed", ev.Snapshot.Docs[0].Fields["name"])
			assert.Equal(t, path.String(), ev.Snapshot.Collection)
		})
	}
}

func TestAddAndDeletePublishSnapshots(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()
			path := docstore.CatalogPath("t1")

			sub, err := b.Subscribe(ctx, path)
			require.NoError(t, err)
			defer sub.Close()
			assert.Empty(t, next(t, sub).Snapshot.Docs)

			id, err := b.Add(ctx, path, docstore.Fields{"name": "Ann", "category": "tools"})
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			ev := next(t, sub)
			require.Len(t, ev.Snapshot.Docs, 1)
			assert.Equal(t, id, ev.Snapshot.Docs[0].ID)
			assert.False(t, ev.Snapshot.Docs[0].CreateTime.IsZero())

			require.NoError(t, b.Delete(ctx, path, id))
			assert.Empty(t, next(t, sub).Snapshot.Docs)
		})
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()
			alice := docstore.MessagesPath("t1", "alice")
			bob := docstore.MessagesPath("t1", "bob")

			_, err := b.Add(ctx, alice, docstore.Fields{"message": "hi"})
			require.NoError(t, err)

			snap, err := b.Get(ctx, bob)
			require.NoError(t, err)
			assert.Empty(t, snap.Docs)

			snap, err = b.Get(ctx, alice)
			require.NoError(t, err)
			assert.Len(t, snap.Docs, 1)
		})
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			err := b.Delete(context.Background(), docstore.CatalogPath("t1"), "nope")
			assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
		})
	}
}

func TestDocumentsOrderedByCreation(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()
			path := docstore.CatalogPath("t1")

			var ids []string
			for _, n := range []string{"c", "a", "b"} {
				id, err := b.Add(ctx, path, docstore.Fields{"name": n})
				require.NoError(t, err)
				ids = append(ids, id)
			}

			snap, err := b.Get(ctx, path)
			require.NoError(t, err)
			require.Len(t, snap.Docs, 3)
			for i, doc := range snap.Docs {
				assert.Equal(t, ids[i], doc.ID)
			}
		})
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			path := docstore.CatalogPath("t1")

			sub, err := b.Subscribe(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, 1, b.Subscribers(path))

			require.NoError(t, sub.Close())
			require.NoError(t, sub.Close())
			assert.Equal(t, 0, b.Subscribers(path))

			// Drain the initial snapshot, then the channel reports closed
			for range sub.Events() {
			}
		})
	}
}

func TestSubscriptionClosedByContext(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	path := docstore.CatalogPath("t1")

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, path)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return b.Subscribers(path) == 0 }, 2*time.Second, 10*time.Millisecond)
	for range sub.Events() {
	}
}

func TestSlowSubscriberSeesLatestSnapshot(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()
	path := docstore.CatalogPath("t1")

	sub, err := b.Subscribe(ctx, path)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		_, err := b.Add(ctx, path, docstore.Fields{"i": i})
		require.NoError(t, err)
	}

	// Only the newest pending snapshot is kept
	ev := next(t, sub)
	assert.Len(t, ev.Snapshot.Docs, 5)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := docstore.CatalogPath("t1")

			sub, err := b.Subscribe(ctx, path)
			require.NoError(t, err)
			require.NoError(t, b.Close())

			for range sub.Events() {
			}

			_, err = b.Add(ctx, path, docstore.Fields{"name": "x"})
			assert.True(t, errors.Is(err, errors.ErrCodeStoreClosed))
			_, err = b.Subscribe(ctx, path)
			assert.True(t, errors.Is(err, errors.ErrCodeStoreClosed))
		})
	}
}

func TestSQLitePersistsAcrossOpens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "docs.db")
	ctx := context.Background()
	path := docstore.CatalogPath("t1")

	s, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	id, err := s.Add(ctx, path, docstore.Fields{
		"name":      "Ann",
		"featured":  true,
		"timestamp": docstore.NewTimestamp(time.Unix(1700000000, 5)),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(dbPath)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Get(ctx, path)
	require.NoError(t, err)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, id, snap.Docs[0].ID)
	assert.Equal(t, true, snap.Docs[0].Fields["featured"])
	assert.Equal(t, map[string]interface{}{"seconds": float64(1700000000), "nanos": float64(5)}, snap.Docs[0].Fields["timestamp"])
}

func TestOpenBackend(t *testing.T) {
	b, err := Open(config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, b)
	require.NoError(t, b.Close())

	b, err = Open(config.StoreConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, b)
	require.NoError(t, b.Close())

	_, err = Open(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
