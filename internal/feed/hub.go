// Package feed fans committed changes out to live subscribers and keeps a
// read-through cache of items current.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erazemk/najdeno/internal/model"
)

// ErrClosed is returned by Next after the subscription or hub is closed.
var ErrClosed = errors.New("subscription closed")

// Kind is the type of record an event carries.
type Kind string

// Event kinds.
const (
	KindItem         Kind = "item"
	KindNotification Kind = "notification"
	KindMessage      Kind = "message"
)

// Event announces a committed change.
type Event struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	// Recipient is set for notification events.
	Recipient string `json:"recipient,omitempty"`
	// Parties are the users allowed to see a message event.
	Parties []string `json:"-"`
	// Removed is set when the item was deleted.
	Removed      bool                `json:"removed,omitempty"`
	Item         *model.Item         `json:"item,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
	Message      *model.Message      `json:"message,omitempty"`
}

// ItemChanged returns an event for a stored item.
func ItemChanged(item model.Item) Event {
	c := item.Clone()
	return Event{Kind: KindItem, ID: item.ID, Item: &c}
}

// ItemRemoved returns an event for a deleted item.
func ItemRemoved(id string) Event {
	return Event{Kind: KindItem, ID: id, Removed: true}
}

// NotificationCreated returns an event for a new notification.
func NotificationCreated(n model.Notification) Event {
	return Event{Kind: KindNotification, ID: n.ID, Recipient: n.RecipientID, Notification: &n}
}

// MessageAppended returns an event for a chat message visible to parties.
func MessageAppended(m model.Message, parties ...string) Event {
	return Event{
		Kind:    KindMessage,
		ID:      fmt.Sprintf("%s/%d", m.ItemID, m.Seq),
		Parties: parties,
		Message: &m,
	}
}

func (e Event) key() string {
	return string(e.Kind) + ":" + e.ID
}

// Hub delivers events to subscriptions. Publish never blocks: each
// subscription coalesces pending events so only the latest per record is
// kept until the subscriber catches up.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription receiving events for which match
// returns true. A nil match receives everything.
func (h *Hub) Subscribe(match func(Event) bool) *Subscription {
	s := &Subscription{
		hub:     h,
		match:   match,
		pending: make(map[string]Event),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closeOnce.Do(func() { close(s.done) })
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish delivers e to every matching subscription.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.match == nil || s.match(e) {
			s.deliver(e)
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for s := range subs {
		s.closeOnce.Do(func() { close(s.done) })
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}

// Subscription is one subscriber's queue of coalesced events.
type Subscription struct {
	hub   *Hub
	match func(Event) bool

	mu      sync.Mutex
	pending map[string]Event
	order   []string

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) deliver(e Event) {
	s.mu.Lock()
	k := e.key()
	if _, ok := s.pending[k]; !ok {
		s.order = append(s.order, k)
	}
	s.pending[k] = e
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until events are pending and returns them in the order their
// records first changed, each with its latest state.
func (s *Subscription) Next(ctx context.Context) ([]Event, error) {
	for {
		s.mu.Lock()
		if len(s.order) > 0 {
			batch := make([]Event, 0, len(s.order))
			for _, k := range s.order {
				batch = append(batch, s.pending[k])
			}
			s.order = nil
			clear(s.pending)
			s.mu.Unlock()
			return batch, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.closeOnce.Do(func() { close(s.done) })
}
