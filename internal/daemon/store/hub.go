// Package store provides the document stores served by the appshelf daemon.
// Both backends fan snapshots out to live subscribers through a hub.
package store

import (
	"context"
	"sync"

	"github.com/grovetools/appshelf/pkg/docstore"
)

// hub tracks live subscriptions per collection.
type hub struct {
	mu     sync.Mutex
	subs   map[docstore.Path]map[*subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[docstore.Path]map[*subscription]struct{})}
}

// add registers a subscription that is delivered first and then released
// when ctx is done or Close is called.
func (h *hub) add(ctx context.Context, path docstore.Path, first docstore.Event) (*subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errStoreClosed()
	}

	sub := &subscription{
		hub:  h,
		path: path,
		ch:   make(chan docstore.Event, 1),
		done: make(chan struct{}),
	}
	if h.subs[path] == nil {
		h.subs[path] = make(map[*subscription]struct{})
	}
	h.subs[path][sub] = struct{}{}
	sub.send(first)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// publish delivers ev to every subscriber of path.
func (h *hub) publish(path docstore.Path, ev docstore.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[path] {
		sub.send(ev)
	}
}

func (h *hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.path]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.path)
		}
	}
}

// count returns the number of live subscriptions for path.
func (h *hub) count(path docstore.Path) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[path])
}

func (h *hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// close releases every subscription and rejects new ones.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

// subscription is a single live query. Its channel holds at most one pending
// event; a newer snapshot replaces an unread one so slow readers never stall
// the store and always see the latest state.
type subscription struct {
	hub  *hub
	path docstore.Path
	ch   chan docstore.Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Events() <-chan docstore.Event {
	return s.ch
}

func (s *subscription) send(ev docstore.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	// Drop the stale pending event
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	s.mu.Unlock()

	s.hub.remove(s)
	return nil
}
