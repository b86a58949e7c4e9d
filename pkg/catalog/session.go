// Package catalog implements the catalog browser session: identity
// bootstrap, the admin gate, live subscriptions to the catalog and the
// admin's messages, and the mutations behind them.
package catalog

import (
	"context"
	"sync"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/logging"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/identity"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/sirupsen/logrus"
)

const msgAdminRequired = "Admin mode is required."

// Options configures a Session.
type Options struct {
	Tenant      string
	Credentials Credentials
	// Path is the navigation path the session starts on.
	Path string
	// Token is a pre-supplied identity token. Empty signs in anonymously.
	Token    string
	Provider identity.Provider
	Store    docstore.Store
	Logger   *logrus.Entry
}

// View is a point-in-time copy of everything a presentation layer renders.
type View struct {
	Identity     models.Identity
	Admin        models.AdminSession
	Path         string
	Loading      bool
	Apps         []models.CatalogEntry
	Messages     []models.ContactMessage
	MessagesOpen bool
	// MessagesLoaded is true once the messages subscription delivered.
	MessagesLoaded bool
	PendingDelete  *models.CatalogEntry
	// ProviderErr is an identity provider failure; the session stays loading.
	ProviderErr error
	// SignInErr is a failed sign-in attempt. It does not block identity.
	SignInErr   error
	CatalogErr  error
	MessagesErr error
}

// Session owns the state of one catalog browser process.
type Session struct {
	tenant    string
	logger    *logrus.Entry
	gate      *AccessGate
	bootstrap *IdentityBootstrap
	manager   *SubscriptionManager
	catalog   *CatalogMutator
	messages  *MessageMutator

	mu          sync.Mutex
	changed     chan struct{}
	providerErr error
	closeOnce   sync.Once
}

// NewSession wires the session components together. Nothing runs until Start.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("catalog")
	}
	s := &Session{
		tenant:  opts.Tenant,
		logger:  logger,
		gate:    NewAccessGate(opts.Path, opts.Credentials),
		changed: make(chan struct{}),
	}
	s.bootstrap = NewIdentityBootstrap(opts.Provider, opts.Token, logger)
	s.manager = NewSubscriptionManager(opts.Store, opts.Tenant, logger, s.broadcast)
	s.catalog = NewCatalogMutator(opts.Store, opts.Tenant, logger)
	s.messages = NewMessageMutator(opts.Store, opts.Tenant, logger)
	return s
}

// Start begins synchronization. A provider failure is not fatal: it is
// logged, reported in View.ProviderErr, and the session stays loading.
func (s *Session) Start(ctx context.Context) {
	s.manager.Start(ctx)
	s.manager.SetAdmin(s.gate.LoggedIn())

	if err := s.bootstrap.Start(ctx, s.manager.SetIdentity); err != nil {
		s.logger.WithError(err).Error("Identity provider unavailable")
		s.mu.Lock()
		s.providerErr = err
		s.mu.Unlock()
		s.broadcast()
	}
}

// Close releases the identity listener and every subscription.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.bootstrap.Close()
		s.manager.Close()
	})
}

// View returns the current state.
func (s *Session) View() View {
	state := s.manager.State()
	s.mu.Lock()
	providerErr := s.providerErr
	s.mu.Unlock()
	return View{
		Identity:       state.Identity,
		Admin:          s.gate.Session(),
		Path:           s.gate.Path(),
		Loading:        state.Loading,
		Apps:           state.Apps,
		Messages:       state.Messages,
		MessagesOpen:   state.MessagesOpen,
		MessagesLoaded: state.MessagesLoaded,
		PendingDelete:  s.catalog.Pending(),
		ProviderErr:    providerErr,
		SignInErr:      s.bootstrap.SignInErr(),
		CatalogErr:     state.CatalogErr,
		MessagesErr:    state.MessagesErr,
	}
}

// Changed returns a channel that is closed on the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Session) broadcast() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Await blocks until cond holds for the current view or ctx is done.
func (s *Session) Await(ctx context.Context, cond func(View) bool) (View, error) {
	for {
		changed := s.Changed()
		v := s.View()
		if cond(v) {
			return v, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Filtered projects the current catalog through Filter.
func (s *Session) Filtered(query, category string) []models.CatalogEntry {
	return Filter(s.manager.State().Apps, query, category)
}

// Categories lists the category selector options for the current catalog.
func (s *Session) Categories() []string {
	return Categories(s.manager.State().Apps)
}

// AddApp adds a catalog entry. Admin only.
func (s *Session) AddApp(ctx context.Context, draft *models.AppDraft) models.Status {
	if !s.gate.LoggedIn() {
		return models.Failure(msgAdminRequired, errors.PermissionDenied("add application"))
	}
	return s.catalog.Add(ctx, draft)
}

// RequestDelete stages the catalog entry with the given id for deletion.
// Admin only.
func (s *Session) RequestDelete(id string) error {
	if !s.gate.LoggedIn() {
		return errors.PermissionDenied("delete application")
	}
	for _, app := range s.manager.State().Apps {
		if app.ID == id {
			s.catalog.RequestDelete(app)
			s.broadcast()
			return nil
		}
	}
	return errors.NotFound(docstore.CatalogPath(s.tenant).String(), id)
}

// ConfirmDelete deletes the staged entry. Admin only.
func (s *Session) ConfirmDelete(ctx context.Context) models.Status {
	if !s.gate.LoggedIn() {
		return models.Failure(msgAdminRequired, errors.PermissionDenied("delete application"))
	}
	status := s.catalog.ConfirmDelete(ctx)
	s.broadcast()
	return status
}

// CancelDelete discards the staged entry.
func (s *Session) CancelDelete() {
	s.catalog.CancelDelete()
	s.broadcast()
}

// SendMessage submits the contact form under the current identity.
func (s *Session) SendMessage(ctx context.Context, form *models.ContactForm) models.Status {
	return s.messages.Send(ctx, form, s.manager.State().Identity.UserID)
}

// DeleteMessage removes one of the current identity's messages. Admin only.
func (s *Session) DeleteMessage(ctx context.Context, id string) models.Status {
	if !s.gate.LoggedIn() {
		return models.Failure(msgAdminRequired, errors.PermissionDenied("delete message"))
	}
	return s.messages.Delete(ctx, id, s.manager.State().Identity.UserID)
}

// Logout leaves admin mode, closes the messages subscription and drops any
// staged deletion. It reports whether admin mode was active.
func (s *Session) Logout() bool {
	was := s.gate.Logout()
	s.catalog.CancelDelete()
	s.manager.SetAdmin(false)
	s.broadcast()
	if was {
		s.logger.Info("Admin logged out")
	}
	return was
}

// Navigate records a path change. Admin mode is not re-evaluated.
func (s *Session) Navigate(path string) {
	s.gate.Navigate(path)
	s.broadcast()
}
