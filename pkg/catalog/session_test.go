package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/identity"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func ready(uid string) models.Identity {
	return models.Identity{UserID: uid, Ready: true}
}

func startManager(t *testing.T, s docstore.Store) *SubscriptionManager {
	t.Helper()
	m := NewSubscriptionManager(s, "t1", testLogger(), nil)
	m.Start(context.Background())
	t.Cleanup(m.Close)
	return m
}

func TestManagerCatalogWaitsForIdentity(t *testing.T) {
	s := newCountingStore(t)
	m := startManager(t, s)

	m.SetAdmin(true)
	assert.Never(t, func() bool { return s.subscribeCount(docstore.CatalogPath("t1")) > 0 }, 50*time.Millisecond, tick)
	assert.True(t, m.State().Loading)

	m.SetIdentity(ready("u1"))
	require.Eventually(t, func() bool { return !m.State().Loading }, waitFor, tick)
	assert.Equal(t, 1, s.Subscribers(docstore.CatalogPath("t1")))
}

func TestManagerCatalogSnapshotsReplaceApps(t *testing.T) {
	s := newCountingStore(t)
	m := startManager(t, s)
	ctx := context.Background()
	path := docstore.CatalogPath("t1")

	m.SetIdentity(ready("u1"))
	require.Eventually(t, func() bool { return !m.State().Loading }, waitFor, tick)

	_, err := s.MemoryStore.Add(ctx, path, docstore.Fields{"name": "Zed", "category": "Tools"})
	require.NoError(t, err)
	_, err = s.MemoryStore.Add(ctx, path, docstore.Fields{"name": "Ann", "category": "Media"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(m.State().Apps) == 2 }, waitFor, tick)
	apps := m.State().Apps
	assert.Equal(t, "Ann", apps[0].Name)
	assert.Equal(t, "Zed", apps[1].Name)

	// The loading flag does not wait for messages.
	assert.False(t, m.State().MessagesOpen)
}

func TestManagerCatalogErrorKeepsApps(t *testing.T) {
	s := newScriptedStore()
	m := startManager(t, s)
	path := docstore.CatalogPath("t1")

	m.SetIdentity(ready("u1"))
	require.Eventually(t, func() bool { return s.sub(path) != nil }, waitFor, tick)

	s.sub(path).push(snapshotOf(path, appDoc("a", "Tool", "Dev")))
	require.Eventually(t, func() bool { return len(m.State().Apps) == 1 }, waitFor, tick)

	s.sub(path).push(docstore.Event{Err: fmt.Errorf("permission denied")})
	require.Eventually(t, func() bool { return m.State().CatalogErr != nil }, waitFor, tick)

	state := m.State()
	assert.False(t, state.Loading)
	require.Len(t, state.Apps, 1)
	assert.Equal(t, "Tool", state.Apps[0].Name)
}

func TestManagerFirstCatalogErrorClearsLoading(t *testing.T) {
	s := newScriptedStore()
	m := startManager(t, s)
	path := docstore.CatalogPath("t1")

	m.SetIdentity(ready("u1"))
	require.Eventually(t, func() bool { return s.sub(path) != nil }, waitFor, tick)
	s.sub(path).push(docstore.Event{Err: fmt.Errorf("unavailable")})

	require.Eventually(t, func() bool { return !m.State().Loading }, waitFor, tick)
	assert.Empty(t, m.State().Apps)
}

func TestManagerSubscribeFailure(t *testing.T) {
	s := newScriptedStore()
	s.subscribeErr = fmt.Errorf("offline")
	m := startManager(t, s)

	m.SetIdentity(ready("u1"))

	require.Eventually(t, func() bool { return !m.State().Loading }, waitFor, tick)
	assert.True(t, errors.Is(m.State().CatalogErr, errors.ErrCodeSubscription))
}

func TestManagerMessagesFollowAdminMode(t *testing.T) {
	s := newCountingStore(t)
	m := startManager(t, s)
	ctx := context.Background()
	path := docstore.MessagesPath("t1", "u1")

	m.SetIdentity(ready("u1"))
	assert.Never(t, func() bool { return m.State().MessagesOpen }, 50*time.Millisecond, tick)

	m.SetAdmin(true)
	require.Eventually(t, func() bool { return m.snapshotStats().messagesSnapshots == 1 }, waitFor, tick)
	assert.Equal(t, 1, s.Subscribers(path))

	_, err := s.MemoryStore.Add(ctx, path, docstore.Fields{"name": "A", "email": "a@x.com", "message": "hi"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(m.State().Messages) == 1 }, waitFor, tick)

	m.SetAdmin(false)
	require.Eventually(t, func() bool { return !m.State().MessagesOpen }, waitFor, tick)
	assert.Equal(t, 0, s.Subscribers(path))
	assert.Empty(t, m.State().Messages)
	assert.Equal(t, 1, s.Subscribers(docstore.CatalogPath("t1")), "catalog stays open")
}

func TestManagerReopenAfterLogoutHasNoDuplicateDelivery(t *testing.T) {
	s := newCountingStore(t)
	m := startManager(t, s)
	ctx := context.Background()
	path := docstore.MessagesPath("t1", "u1")

	m.SetIdentity(ready("u1"))
	m.SetAdmin(true)
	require.Eventually(t, func() bool { return m.snapshotStats().messagesSnapshots == 1 }, waitFor, tick)

	m.SetAdmin(false)
	require.Eventually(t, func() bool { return s.Subscribers(path) == 0 }, waitFor, tick)

	m.SetAdmin(true)
	require.Eventually(t, func() bool { return m.snapshotStats().messagesSnapshots == 2 }, waitFor, tick)
	assert.Equal(t, 1, s.Subscribers(path))
	assert.Equal(t, 2, s.subscribeCount(path))

	_, err := s.MemoryStore.Add(ctx, path, docstore.Fields{"name": "A", "email": "a@x.com", "message": "hi"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.snapshotStats().messagesSnapshots == 3 }, waitFor, tick)
	assert.Never(t, func() bool { return m.snapshotStats().messagesSnapshots > 3 }, 100*time.Millisecond, tick)
	assert.Len(t, m.State().Messages, 1)
}

func TestManagerIdentitySwapReopensMessages(t *testing.T) {
	s := newCountingStore(t)
	m := startManager(t, s)
	ctx := context.Background()
	first := docstore.MessagesPath("t1", "u1")
	second := docstore.MessagesPath("t1", "u2")

	_, err := s.MemoryStore.Add(ctx, first, docstore.Fields{"name": "A", "email": "a@x.com", "message": "for u1"})
	require.NoError(t, err)

	m.SetIdentity(ready("u1"))
	m.SetAdmin(true)
	require.Eventually(t, func() bool { return len(m.State().Messages) == 1 }, waitFor, tick)

	m.SetIdentity(ready("u2"))
	require.Eventually(t, func() bool { return s.Subscribers(second) == 1 }, waitFor, tick)
	assert.Equal(t, 0, s.Subscribers(first))
	require.Eventually(t, func() bool { return m.snapshotStats().messagesSnapshots == 2 }, waitFor, tick)
	assert.Empty(t, m.State().Messages)
	assert.Equal(t, "u2", m.State().Identity.UserID)

	// The catalog subscription is not reopened by an identity swap.
	assert.Equal(t, 1, s.subscribeCount(docstore.CatalogPath("t1")))
}

func TestManagerCloseReleasesSubscriptions(t *testing.T) {
	s := newCountingStore(t)
	m := NewSubscriptionManager(s, "t1", testLogger(), nil)
	m.Start(context.Background())

	m.SetIdentity(ready("u1"))
	m.SetAdmin(true)
	require.Eventually(t, func() bool { return m.State().MessagesOpen }, waitFor, tick)

	m.Close()
	m.Close()

	assert.Equal(t, 0, s.Subscribers(docstore.CatalogPath("t1")))
	assert.Equal(t, 0, s.Subscribers(docstore.MessagesPath("t1", "u1")))

	// Events after close are dropped rather than blocking.
	m.SetIdentity(ready("u2"))
}

func TestManagerCloseWithoutStart(t *testing.T) {
	m := NewSubscriptionManager(newScriptedStore(), "t1", testLogger(), nil)
	m.Close()
}

func TestBootstrap(t *testing.T) {
	collect := func() (func(models.Identity), func() []models.Identity) {
		var mu sync.Mutex
		var got []models.Identity
		return func(id models.Identity) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, id)
			}, func() []models.Identity {
				mu.Lock()
				defer mu.Unlock()
				return append([]models.Identity(nil), got...)
			}
	}

	t.Run("anonymous sign-in reports the user", func(t *testing.T) {
		p := &fakeProvider{signInUser: &identity.User{UID: "anon-1", Anonymous: true}}
		b := NewIdentityBootstrap(p, "", testLogger())
		onChange, got := collect()

		require.NoError(t, b.Start(context.Background(), onChange))
		require.Eventually(t, func() bool { return len(got()) == 1 }, waitFor, tick)
		b.Close()

		assert.Equal(t, ready("anon-1"), got()[0])
		anon, tokens := p.calls()
		assert.Equal(t, 1, anon)
		assert.Empty(t, tokens)
		assert.True(t, p.unsubscribed)
	})

	t.Run("token sign-in", func(t *testing.T) {
		p := &fakeProvider{signInUser: &identity.User{UID: "user-7"}}
		b := NewIdentityBootstrap(p, "tok", testLogger())
		onChange, got := collect()

		require.NoError(t, b.Start(context.Background(), onChange))
		require.Eventually(t, func() bool { return len(got()) == 1 }, waitFor, tick)
		b.Close()

		anon, tokens := p.calls()
		assert.Equal(t, 0, anon)
		assert.Equal(t, []string{"tok"}, tokens)
	})

	t.Run("nobody signed in gets a fresh random id", func(t *testing.T) {
		p := &fakeProvider{}
		b := NewIdentityBootstrap(p, "", testLogger())
		n := 0
		b.newID = func() string {
			n++
			return fmt.Sprintf("random-%d", n)
		}
		onChange, got := collect()

		require.NoError(t, b.Start(context.Background(), onChange))
		p.emit(nil)
		p.emit(nil)
		b.Close()

		assert.Equal(t, []models.Identity{ready("random-1"), ready("random-2")}, got())
	})

	t.Run("sign-in failure is recorded", func(t *testing.T) {
		p := &fakeProvider{signInErr: fmt.Errorf("quota exceeded")}
		b := NewIdentityBootstrap(p, "", testLogger())
		onChange, got := collect()

		require.NoError(t, b.Start(context.Background(), onChange))
		require.Eventually(t, func() bool { return b.SignInErr() != nil }, waitFor, tick)
		b.Close()

		assert.Empty(t, got())
	})

	t.Run("listener registration failure", func(t *testing.T) {
		p := &fakeProvider{subscribeErr: fmt.Errorf("not initialized")}
		b := NewIdentityBootstrap(p, "", testLogger())

		err := b.Start(context.Background(), func(models.Identity) {})
		assert.True(t, errors.Is(err, errors.ErrCodeProvider))
		anon, _ := p.calls()
		assert.Equal(t, 0, anon)
		b.Close()
	})

	t.Run("no provider", func(t *testing.T) {
		b := NewIdentityBootstrap(nil, "", testLogger())
		err := b.Start(context.Background(), func(models.Identity) {})
		assert.True(t, errors.Is(err, errors.ErrCodeProvider))
		b.Close()
	})
}

func newTestSession(t *testing.T, s docstore.Store, p identity.Provider, path string) *Session {
	t.Helper()
	sess := NewSession(Options{
		Tenant:      "t1",
		Credentials: testCreds,
		Path:        path,
		Provider:    p,
		Store:       s,
		Logger:      testLogger(),
	})
	sess.Start(context.Background())
	t.Cleanup(sess.Close)
	return sess
}

func await(t *testing.T, sess *Session, cond func(View) bool) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	v, err := sess.Await(ctx, cond)
	require.NoError(t, err)
	return v
}

func TestSessionVisitorFlow(t *testing.T) {
	s := newCountingStore(t)
	p := &fakeProvider{signInUser: &identity.User{UID: "visitor", Anonymous: true}}
	sess := newTestSession(t, s, p, "/")

	v := await(t, sess, func(v View) bool { return !v.Loading })
	assert.Equal(t, "visitor", v.Identity.UserID)
	assert.False(t, v.Admin.LoggedIn)
	assert.False(t, v.MessagesOpen)

	form := &models.ContactForm{Name: "A", Email: "a@x.com", Message: "hi"}
	status := sess.SendMessage(context.Background(), form)
	assert.Equal(t, models.StatusSuccess, status.Kind)
	assert.Equal(t, models.ContactForm{Name: "", Email: "", Message: ""}, *form)

	snap, err := s.Get(context.Background(), docstore.MessagesPath("t1", "visitor"))
	require.NoError(t, err)
	assert.Len(t, snap.Docs, 1)

	// Visitors cannot mutate the catalog.
	status = sess.AddApp(context.Background(), &models.AppDraft{Name: "Tool", Category: "Dev"})
	assert.True(t, errors.Is(status.Err, errors.ErrCodePermissionDenied))
	assert.Equal(t, 1, s.addCount())
	assert.True(t, errors.Is(sess.RequestDelete("x"), errors.ErrCodePermissionDenied))
	assert.True(t, errors.Is(sess.DeleteMessage(context.Background(), "x").Err, errors.ErrCodePermissionDenied))
}

func TestSessionAdminFlow(t *testing.T) {
	s := newCountingStore(t)
	p := &fakeProvider{signInUser: &identity.User{UID: "admin-uid"}}
	sess := newTestSession(t, s, p, AdminPath(testCreds))
	ctx := context.Background()

	v := await(t, sess, func(v View) bool { return !v.Loading && v.MessagesOpen })
	assert.True(t, v.Admin.LoggedIn)
	assert.True(t, v.Admin.PanelVisible)

	draft := &models.AppDraft{Name: "Zed", Category: "Tools"}
	require.True(t, sess.AddApp(ctx, draft).OK())
	require.True(t, sess.AddApp(ctx, &models.AppDraft{Name: "Ann", Category: "Media"}).OK())

	v = await(t, sess, func(v View) bool { return len(v.Apps) == 2 })
	assert.Equal(t, "Ann", v.Apps[0].Name)
	assert.Equal(t, []string{AllCategories, "Media", "Tools"}, sess.Categories())
	assert.Len(t, sess.Filtered("zed", AllCategories), 1)

	assert.True(t, errors.Is(sess.RequestDelete("missing"), errors.ErrCodeNotFound))

	zed := v.Apps[1]
	require.NoError(t, sess.RequestDelete(zed.ID))
	v = sess.View()
	require.NotNil(t, v.PendingDelete)
	assert.Equal(t, zed.ID, v.PendingDelete.ID)

	sess.CancelDelete()
	assert.Nil(t, sess.View().PendingDelete)
	assert.Empty(t, s.deleted())

	require.NoError(t, sess.RequestDelete(zed.ID))
	require.True(t, sess.ConfirmDelete(ctx).OK())
	assert.Equal(t, []string{zed.ID}, s.deleted())
	v = await(t, sess, func(v View) bool { return len(v.Apps) == 1 })
	assert.Equal(t, "Ann", v.Apps[0].Name)

	// Admin reads its own message namespace.
	require.True(t, sess.SendMessage(ctx, &models.ContactForm{Name: "A", Email: "a@x.com", Message: "hi"}).OK())
	v = await(t, sess, func(v View) bool { return len(v.Messages) == 1 })
	require.True(t, sess.DeleteMessage(ctx, v.Messages[0].ID).OK())
	await(t, sess, func(v View) bool { return len(v.Messages) == 0 })

	// Navigating away keeps admin mode; logout leaves it.
	sess.Navigate("/apps")
	assert.True(t, sess.View().Admin.LoggedIn)

	require.NoError(t, sess.RequestDelete(v.Apps[0].ID))
	assert.True(t, sess.Logout())
	v = await(t, sess, func(v View) bool { return !v.MessagesOpen })
	assert.False(t, v.Admin.LoggedIn)
	assert.Equal(t, RootPath, v.Path)
	assert.Nil(t, v.PendingDelete)
	assert.Equal(t, 0, s.Subscribers(docstore.MessagesPath("t1", "admin-uid")))
}

func TestSessionRejectedAdminPath(t *testing.T) {
	s := newCountingStore(t)
	p := &fakeProvider{signInUser: &identity.User{UID: "u1"}}
	sess := newTestSession(t, s, p, "/admin/x/y")

	v := await(t, sess, func(v View) bool { return !v.Loading })
	assert.Equal(t, RootPath, v.Path)
	assert.False(t, v.Admin.LoggedIn)
	assert.False(t, v.MessagesOpen)
}

func TestSessionProviderFailureStaysLoading(t *testing.T) {
	s := newCountingStore(t)
	p := &fakeProvider{subscribeErr: fmt.Errorf("provider misconfigured")}
	sess := newTestSession(t, s, p, "/")

	v := await(t, sess, func(v View) bool { return v.ProviderErr != nil })
	assert.True(t, errors.Is(v.ProviderErr, errors.ErrCodeProvider))
	assert.True(t, v.Loading)
	assert.False(t, v.Identity.Ready)

	assert.Never(t, func() bool { return !sess.View().Loading }, 100*time.Millisecond, tick)
	assert.Equal(t, 0, s.subscribeCount(docstore.CatalogPath("t1")))
}

func TestSessionSignInFailureKeepsIdentity(t *testing.T) {
	s := newCountingStore(t)
	p := &fakeProvider{signInErr: fmt.Errorf("token rejected")}
	sess := newTestSession(t, s, p, "/")

	require.Eventually(t, func() bool { return sess.View().SignInErr != nil }, waitFor, tick)
	p.emit(nil)

	v := await(t, sess, func(v View) bool { return v.Identity.Ready && !v.Loading })
	assert.NoError(t, v.ProviderErr)
	assert.EqualError(t, v.SignInErr, "token rejected")
	assert.NotEmpty(t, v.Identity.UserID)
}

func TestSessionAwaitHonoursContext(t *testing.T) {
	sess := newTestSession(t, newScriptedStore(), &fakeProvider{}, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sess.Await(ctx, func(v View) bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
