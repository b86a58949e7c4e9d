package daemon

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/internal/daemon/server"
	"github.com/grovetools/appshelf/internal/daemon/store"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T) (*RemoteStore, *store.MemoryStore) {
	t.Helper()
	backend := store.NewMemory()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := server.New(logger.WithField("component", "test"), backend)
	srv.SetRunningConfig(&server.RunningConfig{Tenant: "t1", Driver: config.DriverMemory})

	ts := httptest.NewServer(srv.Handler())
	remote := newRemoteStoreForURL(ts.URL, ts.Client())
	t.Cleanup(func() {
		remote.Close()
		backend.Close()
		ts.Close()
	})
	return remote, backend
}

func nextEvent(t *testing.T, sub docstore.Subscription) docstore.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return docstore.Event{}
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	remote, _ := newRemote(t)
	ctx := context.Background()
	path := docstore.CatalogPath("t1")

	assert.True(t, remote.IsRunning())

	sub, err := remote.Subscribe(ctx, path)
	require.NoError(t, err)
	defer sub.Close()

	first := nextEvent(t, sub)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Snapshot.Docs)

	id, err := remote.Add(ctx, path, docstore.Fields{"name": "Ann", "category": "tools"})
	require.NoError(t, err)

	ev := nextEvent(t, sub)
	require.NoError(t, ev.Err)
	require.Len(t, ev.Snapshot.Docs, 1)
	assert.Equal(t, id, ev.Snapshot.Docs[0].ID)

	require.NoError(t, remote.Delete(ctx, path, id))
	ev = nextEvent(t, sub)
	assert.Empty(t, ev.Snapshot.Docs)
}

func TestRemoteStoreErrors(t *testing.T) {
	remote, _ := newRemote(t)
	ctx := context.Background()

	err := remote.Delete(ctx, docstore.CatalogPath("t1"), "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	_, err = remote.Subscribe(ctx, docstore.Path("a//b"))
	assert.True(t, errors.Is(err, errors.ErrCodeSubscription))
}

func TestRemoteSubscriptionClose(t *testing.T) {
	remote, backend := newRemote(t)
	path := docstore.CatalogPath("t1")

	sub, err := remote.Subscribe(context.Background(), path)
	require.NoError(t, err)
	nextEvent(t, sub)
	require.Eventually(t, func() bool { return backend.Subscribers(path) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	require.Eventually(t, func() bool { return backend.Subscribers(path) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteStreamEndIsReportedAsError(t *testing.T) {
	remote, backend := newRemote(t)
	path := docstore.CatalogPath("t1")

	sub, err := remote.Subscribe(context.Background(), path)
	require.NoError(t, err)
	defer sub.Close()
	nextEvent(t, sub)

	// Closing the backend ends every server-side subscription
	require.NoError(t, backend.Close())

	ev := nextEvent(t, sub)
	assert.True(t, errors.Is(ev.Err, errors.ErrCodeSubscription))
}

func TestRemoteGetConfig(t *testing.T) {
	remote, _ := newRemote(t)
	cfg, err := remote.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.Tenant)
}

func TestNewFallsBackToLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Daemon.Socket = filepath.Join(t.TempDir(), "missing.sock")

	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.False(t, client.IsRunning())
	assert.IsType(t, &LocalClient{}, client)
}

func TestNewUsesRunningDaemon(t *testing.T) {
	dir, err := os.MkdirTemp("", "as")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "d.sock")

	backend := store.NewMemory()
	defer backend.Close()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := server.New(logger.WithField("component", "test"), backend)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(socket) }()
	require.Eventually(t, func() bool { return Reachable(socket) }, 3*time.Second, 20*time.Millisecond)

	cfg := config.Default()
	cfg.Daemon.Socket = socket
	client, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, client.IsRunning())

	id, err := client.Add(context.Background(), docstore.CatalogPath("t1"), docstore.Fields{"name": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	<-errCh
}

func TestConfigWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "appshelf.yml")
	require.NoError(t, os.WriteFile(file, []byte("tenant: a\n"), 0644))

	reloaded := make(chan string, 4)
	w, err := NewConfigWatcher(file, 10*time.Millisecond, func(f string) { reloaded <- f })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x: 1\n"), 0644))
	require.NoError(t, os.WriteFile(file, []byte("tenant: b\n"), 0644))

	select {
	case f := <-reloaded:
		assert.Equal(t, "appshelf.yml", filepath.Base(f))
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload callback")
	}
}
