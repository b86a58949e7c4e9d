package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/sirupsen/logrus"
)

// Status messages reported to the user.
const (
	msgAppRequired    = "Name and category are required."
	msgAppAdded       = "Application added successfully!"
	msgAppAddFailed   = "Failed to add the application. Please try again."
	msgAppDeleted     = "Application deleted successfully!"
	msgAppDeleteFail  = "Failed to delete the application."
	msgFieldsRequired = "Please fill in all fields."
	msgMessageSent    = "Message sent successfully!"
	msgSendFailed     = "Failed to send the message. Please try again."
	msgNotReady       = "Identity is not ready yet."
	msgMessageDeleted = "Message deleted."
	msgMessageDelFail = "Failed to delete the message."
)

// CatalogMutator adds and deletes catalog entries. Deletion is two-phase:
// RequestDelete stages an entry and only ConfirmDelete removes it.
//
// A success status means the store accepted the write. The local catalog
// only changes when the catalog subscription delivers the next snapshot.
type CatalogMutator struct {
	store  docstore.Store
	path   docstore.Path
	logger *logrus.Entry

	mu      sync.Mutex
	pending *models.CatalogEntry
}

// NewCatalogMutator creates a mutator for the tenant's catalog.
func NewCatalogMutator(store docstore.Store, tenant string, logger *logrus.Entry) *CatalogMutator {
	return &CatalogMutator{
		store:  store,
		path:   docstore.CatalogPath(tenant),
		logger: logger,
	}
}

// Add writes draft as a new entry. Name and category are required; a
// missing one fails without contacting the store. The draft is reset on
// success.
func (c *CatalogMutator) Add(ctx context.Context, draft *models.AppDraft) models.Status {
	if missing := draft.Missing(); len(missing) > 0 {
		return models.Failure(msgAppRequired, errors.MissingField(missing...))
	}

	id, err := c.store.Add(ctx, c.path, draft.Fields())
	if err != nil {
		err = errors.MutationFailed("add", c.path.String(), err)
		c.logger.WithError(err).Error("Failed to add application")
		return models.Failure(msgAppAddFailed, err)
	}

	c.logger.WithField("id", id).WithField("name", draft.Name).Info("Application added")
	draft.Reset()
	return models.Success(msgAppAdded)
}

// RequestDelete stages entry for deletion, replacing any staged entry.
func (c *CatalogMutator) RequestDelete(entry models.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &entry
}

// Pending returns the staged entry, or nil.
func (c *CatalogMutator) Pending() *models.CatalogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	entry := *c.pending
	return &entry
}

// CancelDelete discards the staged entry without contacting the store.
func (c *CatalogMutator) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// ConfirmDelete removes the staged entry. The staged entry is cleared
// whatever the outcome. With nothing staged it does nothing and returns an
// empty status.
func (c *CatalogMutator) ConfirmDelete(ctx context.Context) models.Status {
	c.mu.Lock()
	entry := c.pending
	c.pending = nil
	c.mu.Unlock()

	if entry == nil {
		return models.Status{}
	}

	logger := c.logger.WithField("id", entry.ID)
	if err := c.store.Delete(ctx, c.path, entry.ID); err != nil {
		err = errors.MutationFailed("delete", c.path.String(), err)
		logger.WithError(err).Error("Failed to delete application")
		return models.Failure(msgAppDeleteFail, err)
	}

	logger.WithField("name", entry.Name).Info("Application deleted")
	return models.Success(msgAppDeleted)
}

// MessageMutator sends and deletes contact messages in a user's private
// namespace.
type MessageMutator struct {
	store  docstore.Store
	tenant string
	logger *logrus.Entry
	now    func() time.Time
}

// NewMessageMutator creates a mutator for the tenant's message namespaces.
func NewMessageMutator(store docstore.Store, tenant string, logger *logrus.Entry) *MessageMutator {
	return &MessageMutator{
		store:  store,
		tenant: tenant,
		logger: logger,
		now:    time.Now,
	}
}

// Send stores form in userID's namespace with the current time attached.
// All fields are required. The form is cleared only on success.
func (m *MessageMutator) Send(ctx context.Context, form *models.ContactForm, userID string) models.Status {
	if missing := form.Missing(); len(missing) > 0 {
		return models.Failure(msgFieldsRequired, errors.MissingField(missing...))
	}
	if userID == "" {
		return models.Failure(msgNotReady, errors.ProviderFailed("send", fmt.Errorf("identity not ready")))
	}

	path := docstore.MessagesPath(m.tenant, userID)
	id, err := m.store.Add(ctx, path, docstore.Fields{
		"name":      form.Name,
		"email":     form.Email,
		"message":   form.Message,
		"timestamp": docstore.NewTimestamp(m.now()),
	})
	if err != nil {
		err = errors.MutationFailed("add", path.String(), err)
		m.logger.WithError(err).Error("Failed to send message")
		return models.Failure(msgSendFailed, err)
	}

	m.logger.WithField("id", id).WithField("user_id", userID).Info("Message sent")
	form.Reset()
	return models.Success(msgMessageSent)
}

// Delete removes a message from userID's namespace. Callers check admin
// mode first. Failures are logged and reported in the status.
func (m *MessageMutator) Delete(ctx context.Context, id, userID string) models.Status {
	path := docstore.MessagesPath(m.tenant, userID)
	if err := m.store.Delete(ctx, path, id); err != nil {
		err = errors.MutationFailed("delete", path.String(), err)
		m.logger.WithError(err).WithField("id", id).Error("Failed to delete message")
		return models.Failure(msgMessageDelFail, err)
	}
	m.logger.WithField("id", id).Info("Message deleted")
	return models.Success(msgMessageDeleted)
}
