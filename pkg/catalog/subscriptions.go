package catalog

import (
	"context"
	"sync"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/sirupsen/logrus"
)

type collectionKind int

const (
	catalogCollection collectionKind = iota
	messagesCollection
)

// SyncState is the locally reconciled view of the store.
type SyncState struct {
	Identity models.Identity
	// Loading is true until the first catalog snapshot or catalog error.
	Loading bool
	Apps    []models.CatalogEntry
	// Messages holds the current user's messages while the messages
	// subscription is open.
	Messages     []models.ContactMessage
	MessagesOpen bool
	// MessagesLoaded is true once the open messages subscription has
	// delivered its first snapshot or error.
	MessagesLoaded bool
	// CatalogErr is the last catalog subscription error, cleared by the next snapshot.
	CatalogErr error
	// MessagesErr is the last messages subscription error, cleared by the next snapshot.
	MessagesErr error
}

// syncStats counts applied snapshots per collection.
type syncStats struct {
	catalogSnapshots  int
	messagesSnapshots int
	catalogOpens      int
	messagesOpens     int
}

type identityEvent struct{ identity models.Identity }

type adminEvent struct{ loggedIn bool }

type storeEvent struct {
	kind collectionKind
	gen  uint64
	ev   docstore.Event
}

// managed is one open subscription.
type managed struct {
	kind collectionKind
	gen  uint64
	path docstore.Path
	sub  docstore.Subscription
}

// SubscriptionManager owns the catalog and messages subscriptions. It opens,
// closes and reopens them as identity and admin mode change, and replaces
// the local collections with every snapshot.
//
// All state transitions happen on a single event loop goroutine. Snapshots
// from a subscription that has since been replaced are discarded.
type SubscriptionManager struct {
	store  docstore.Store
	tenant string
	logger *logrus.Entry
	notify func()

	events chan interface{}
	quit   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once

	// Loop-owned.
	ctx      context.Context
	loggedIn bool
	catalog  *managed
	messages *managed
	gen      uint64

	mu    sync.RWMutex
	state SyncState
	stats syncStats
}

// NewSubscriptionManager creates a manager for tenant. notify is called
// after every state change and may be nil.
func NewSubscriptionManager(store docstore.Store, tenant string, logger *logrus.Entry, notify func()) *SubscriptionManager {
	if notify == nil {
		notify = func() {}
	}
	return &SubscriptionManager{
		store:  store,
		tenant: tenant,
		logger: logger,
		notify: notify,
		events: make(chan interface{}, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  SyncState{Loading: true},
	}
}

// Start runs the event loop until Close or ctx is done.
func (m *SubscriptionManager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.ctx = ctx
		go m.loop()
	})
}

// SetIdentity reports the current identity.
func (m *SubscriptionManager) SetIdentity(identity models.Identity) {
	m.send(identityEvent{identity: identity})
}

// SetAdmin reports whether admin mode is active.
func (m *SubscriptionManager) SetAdmin(loggedIn bool) {
	m.send(adminEvent{loggedIn: loggedIn})
}

func (m *SubscriptionManager) send(ev interface{}) {
	select {
	case m.events <- ev:
	case <-m.quit:
	}
}

// State returns a copy of the reconciled state.
func (m *SubscriptionManager) State() SyncState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	s.Apps = append([]models.CatalogEntry(nil), m.state.Apps...)
	s.Messages = append([]models.ContactMessage(nil), m.state.Messages...)
	return s
}

func (m *SubscriptionManager) snapshotStats() syncStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Close stops the loop, releases both subscriptions and waits for every
// forwarding goroutine to exit.
func (m *SubscriptionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.quit)
		// A manager that never started has no loop to wait for.
		m.startOnce.Do(func() { close(m.done) })
		<-m.done
		m.wg.Wait()
	})
}

func (m *SubscriptionManager) loop() {
	defer close(m.done)
	defer func() {
		m.closeSub(&m.catalog)
		m.closeSub(&m.messages)
	}()

	for {
		select {
		case <-m.quit:
			return
		case <-m.ctx.Done():
			return
		case raw := <-m.events:
			switch ev := raw.(type) {
			case identityEvent:
				m.update(func(s *SyncState, _ *syncStats) { s.Identity = ev.identity })
				m.reconcile()
			case adminEvent:
				m.loggedIn = ev.loggedIn
				m.reconcile()
			case storeEvent:
				m.apply(ev)
			}
		}
	}
}

// reconcile opens and closes subscriptions to match identity and admin mode.
func (m *SubscriptionManager) reconcile() {
	identity := m.State().Identity

	if identity.Ready && m.catalog == nil {
		m.open(catalogCollection, docstore.CatalogPath(m.tenant))
	}
	if !identity.Ready {
		m.closeSub(&m.catalog)
	}

	wantMessages := identity.Ready && m.loggedIn && identity.UserID != ""
	if wantMessages {
		path := docstore.MessagesPath(m.tenant, identity.UserID)
		if m.messages == nil || m.messages.path != path {
			m.closeMessages()
			m.open(messagesCollection, path)
		}
	} else if m.messages != nil {
		m.closeMessages()
	}
}

func (m *SubscriptionManager) open(kind collectionKind, path docstore.Path) {
	logger := m.logger.WithField("collection", path)

	sub, err := m.store.Subscribe(m.ctx, path)
	if err != nil {
		err = errors.SubscriptionFailed(path.String(), err)
		logger.WithError(err).Error("Failed to open subscription")
		m.update(func(s *SyncState, _ *syncStats) {
			if kind == catalogCollection {
				s.Loading = false
				s.CatalogErr = err
			} else {
				s.MessagesErr = err
			}
		})
		return
	}

	m.gen++
	opened := &managed{kind: kind, gen: m.gen, path: path, sub: sub}
	if kind == catalogCollection {
		m.catalog = opened
	} else {
		m.messages = opened
	}
	m.update(func(s *SyncState, stats *syncStats) {
		if kind == catalogCollection {
			stats.catalogOpens++
		} else {
			stats.messagesOpens++
			s.MessagesOpen = true
		}
	})
	logger.Debug("Subscription opened")

	m.wg.Add(1)
	go m.forward(opened)
}

// forward relays a subscription's events into the loop until the
// subscription is closed.
func (m *SubscriptionManager) forward(s *managed) {
	defer m.wg.Done()
	for ev := range s.sub.Events() {
		select {
		case m.events <- storeEvent{kind: s.kind, gen: s.gen, ev: ev}:
		case <-m.quit:
			return
		}
	}
}

func (m *SubscriptionManager) closeSub(slot **managed) {
	if *slot == nil {
		return
	}
	s := *slot
	*slot = nil
	if err := s.sub.Close(); err != nil {
		m.logger.WithError(err).WithField("collection", s.path).Warn("Failed to close subscription")
	}
	m.logger.WithField("collection", s.path).Debug("Subscription closed")
}

// closeMessages releases the messages subscription and drops its messages
// so a different scope never shows them.
func (m *SubscriptionManager) closeMessages() {
	if m.messages == nil {
		return
	}
	m.closeSub(&m.messages)
	m.update(func(s *SyncState, _ *syncStats) {
		s.Messages = nil
		s.MessagesOpen = false
		s.MessagesLoaded = false
		s.MessagesErr = nil
	})
}

func (m *SubscriptionManager) current(kind collectionKind) *managed {
	if kind == catalogCollection {
		return m.catalog
	}
	return m.messages
}

// apply replaces a local collection with a snapshot, or records an error
// while keeping the last known collection.
func (m *SubscriptionManager) apply(ev storeEvent) {
	cur := m.current(ev.kind)
	if cur == nil || cur.gen != ev.gen {
		return
	}
	logger := m.logger.WithField("collection", cur.path)

	if ev.ev.Err != nil || ev.ev.Snapshot == nil {
		err := ev.ev.Err
		if err == nil {
			err = errors.SubscriptionFailed(cur.path.String(), nil)
		}
		logger.WithError(err).Error("Subscription error")
		m.update(func(s *SyncState, _ *syncStats) {
			if ev.kind == catalogCollection {
				s.Loading = false
				s.CatalogErr = err
			} else {
				s.MessagesErr = err
				s.MessagesLoaded = true
			}
		})
		return
	}

	if ev.kind == catalogCollection {
		apps := decodeApps(ev.ev.Snapshot, logger)
		m.update(func(s *SyncState, stats *syncStats) {
			s.Apps = apps
			s.Loading = false
			s.CatalogErr = nil
			stats.catalogSnapshots++
		})
		logger.WithField("count", len(apps)).Debug("Catalog snapshot applied")
		return
	}

	msgs := decodeMessages(ev.ev.Snapshot, logger)
	m.update(func(s *SyncState, stats *syncStats) {
		s.Messages = msgs
		s.MessagesLoaded = true
		s.MessagesErr = nil
		stats.messagesSnapshots++
	})
	logger.WithField("count", len(msgs)).Debug("Messages snapshot applied")
}

func (m *SubscriptionManager) update(fn func(*SyncState, *syncStats)) {
	m.mu.Lock()
	fn(&m.state, &m.stats)
	m.mu.Unlock()
	m.notify()
}
