// Package events is the in-process publish/subscribe bus for leave activity.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Type string

const (
	LeaveActioned  Type = "leave.actioned"
	LeaveCancelled Type = "leave.cancelled"
	LeaveSubmitted Type = "leave.submitted"
	ListsRefreshed Type = "lists.refreshed"
	SessionStarted Type = "session.started"
	SessionEnded   Type = "session.ended"
)

// Event is what the engine announces after a state change.
type Event struct {
	Type    Type      `json:"type"`
	LeaveID string    `json:"leaveId,omitempty"`
	Role    string    `json:"role,omitempty"`
	Action  string    `json:"action,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type Handler func(ctx context.Context, e Event)

// Filter selects events by type. An empty filter matches everything.
type Filter struct {
	Types []Type
}

func (f Filter) Matches(e Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// TypesOf converts configured event names into a Filter.
func TypesOf(names []string) Filter {
	var f Filter
	for _, n := range names {
		if n == "" || n == "*" {
			return Filter{}
		}
		f.Types = append(f.Types, Type(n))
	}
	return f
}

var (
	ErrInvalidSubscriptionID = errors.New("subscription id is required")
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrSubscriptionExists    = errors.New("subscription with this id already exists")
)

type subscription struct {
	filter  Filter
	handler Handler
}

// Bus delivers events synchronously to matching subscribers, in the order
// they subscribed. Handlers that do slow work should hand it off.
type Bus struct {
	mu    sync.RWMutex
	order []string
	subs  map[string]subscription
	Now   func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]subscription), Now: time.Now}
}

func (b *Bus) Subscribe(id string, filter Filter, h Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if h == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; ok {
		return ErrSubscriptionExists
	}
	b.subs[id] = subscription{filter: filter, handler: h}
	b.order = append(b.order, id)
	return nil
}

// Unsubscribe reports whether id was registered.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish stamps e when At is zero and invokes matching handlers outside
// the lock. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		now := b.Now
		if now == nil {
			now = time.Now
		}
		e.At = now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if s := b.subs[id]; s.filter.Matches(e) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, e)
	}
}
