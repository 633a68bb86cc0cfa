// Package engine coordinates leave operations against the backend: approval
// dispatch, multi-role list aggregation, submission and local cache upkeep.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/chain"
	"leavedesk/internal/directory"
	"leavedesk/internal/domain"
	"leavedesk/internal/events"
	"leavedesk/internal/session"
)

// Options tune an Engine. Zero values fall back to defaults.
type Options struct {
	Refresh RefreshConfig
	NameMax int
}

type Engine struct {
	Client  *leavedesksdk.Client
	Session session.Session
	Bus     *events.Bus
	Dir     *directory.Directory
	Log     zerolog.Logger
	Now     func() time.Time
	Refresh RefreshConfig
	NameMax int

	// busy serializes mutations; TryLock failures surface as ErrBusy.
	busy sync.Mutex

	mu      sync.RWMutex
	pending []Item
	history []Item
	counts  *domain.DashboardCounts
}

// New builds an engine whose client authenticates with sess. dir and bus may be nil.
func New(client *leavedesksdk.Client, sess session.Session, bus *events.Bus, dir *directory.Directory, log zerolog.Logger, opts Options) *Engine {
	if sess != nil {
		client = client.WithTokens(sess)
	}
	e := &Engine{
		Client:  client,
		Session: sess,
		Bus:     bus,
		Dir:     dir,
		Log:     log,
		Now:     time.Now,
		Refresh: opts.Refresh.withDefaults(),
		NameMax: opts.NameMax,
	}
	if bus != nil {
		// Any leave mutation makes the badge counts stale.
		_ = bus.Subscribe(invalidateID(e), events.Filter{Types: []events.Type{
			events.LeaveActioned, events.LeaveCancelled, events.LeaveSubmitted,
		}}, func(context.Context, events.Event) { e.invalidateCounts() })
	}
	return e
}

// Close detaches the engine from the bus.
func (e *Engine) Close() {
	if e.Bus != nil {
		e.Bus.Unsubscribe(invalidateID(e))
	}
}

func invalidateID(e *Engine) string {
	return fmt.Sprintf("engine-counts-%p", e)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) actor() string {
	if e.Session == nil {
		return ""
	}
	return e.Session.UserEmail()
}

func (e *Engine) publish(ctx context.Context, evt events.Event) {
	if evt.Actor == "" {
		evt.Actor = e.actor()
	}
	evt.At = e.now()
	e.Bus.Publish(ctx, evt)
}

// Renderer returns the chain renderer bound to the engine's directory.
func (e *Engine) Renderer() chain.Renderer {
	r := chain.Renderer{NameMax: e.NameMax}
	if e.Dir != nil {
		r.Directory = e.Dir
	}
	return r
}

// Chain renders the approval chain of l.
func (e *Engine) Chain(l domain.Leave) chain.Chain {
	return e.Renderer().Render(l)
}

// loadDirectory warms the directory; honorifics are optional so failures
// only get logged.
func (e *Engine) loadDirectory(ctx context.Context) {
	if e.Dir == nil {
		return
	}
	if err := e.Dir.Load(ctx); err != nil {
		e.Log.Warn().Err(err).Msg("employee directory unavailable, names shown without honorifics")
	}
}

// CachedPending returns the pending items from the last successful load.
func (e *Engine) CachedPending() []Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Item(nil), e.pending...)
}

// CachedHistory returns the history items from the last successful load.
func (e *Engine) CachedHistory() []Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Item(nil), e.history...)
}

func (e *Engine) setPending(items []Item) {
	e.mu.Lock()
	e.pending = items
	e.mu.Unlock()
}

func (e *Engine) setHistory(items []Item) {
	e.mu.Lock()
	e.history = items
	e.mu.Unlock()
}

// removePending drops every pending row for id and reports how many went.
func (e *Engine) removePending(id domain.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.pending[:0:0]
	for _, it := range e.pending {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	n := len(e.pending) - len(kept)
	e.pending = kept
	return n
}

func (e *Engine) invalidateCounts() {
	e.mu.Lock()
	e.counts = nil
	e.mu.Unlock()
}
