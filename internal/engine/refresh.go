package engine

import (
	"context"
	"fmt"
	"time"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/events"
)

// RefreshConfig controls how lists are reloaded after a mutation.
type RefreshConfig struct {
	Delay       time.Duration
	MaxAttempts int
	Backoff     float64
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.Backoff < 1 {
		c.Backoff = 2
	}
	return c
}

// DefaultRefresh waits a second before the first reload.
var DefaultRefresh = RefreshConfig{Delay: time.Second, MaxAttempts: 3, Backoff: 2}

// Refresher reloads pending and history until the backend stops listing the
// acted leave as pending, or the attempts run out.
type Refresher struct {
	Engine *Engine
	Config RefreshConfig
	// Sleep waits d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run returns the number of reloads made and whether the leave left the
// pending list. Only context errors are returned.
func (r Refresher) Run(ctx context.Context, id domain.ID) (int, bool, error) {
	cfg := r.Config.withDefaults()
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	wait := cfg.Delay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := sleep(ctx, wait); err != nil {
			return attempt - 1, false, err
		}
		pending, perr := r.Engine.Pending(ctx)
		if _, herr := r.Engine.History(ctx); herr != nil {
			r.Engine.Log.Warn().Err(herr).Int("attempt", attempt).Msg("history refresh failed")
		}
		if perr != nil {
			r.Engine.Log.Warn().Err(perr).Int("attempt", attempt).Msg("pending refresh failed")
		} else if !contains(pending.Items, id) {
			return attempt, true, nil
		}
		if ctx.Err() != nil {
			return attempt, false, ctx.Err()
		}
		wait = time.Duration(float64(wait) * cfg.Backoff)
	}
	r.Engine.Log.Debug().Str("leave", string(id)).Int("attempts", cfg.MaxAttempts).Msg("leave still listed as pending after refresh")
	return cfg.MaxAttempts, false, nil
}

func contains(items []Item, id domain.ID) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// afterMutation prefers the record returned by the mutation. Without one it
// reloads the lists through a Refresher.
func (e *Engine) afterMutation(ctx context.Context, id domain.ID, resp leavedesksdk.Response) (*domain.Leave, bool) {
	if rec, ok := decodeRecord(resp); ok {
		l := domain.FromRecord(rec)
		e.applyUpdate(l)
		e.publish(ctx, events.Event{Type: events.ListsRefreshed, LeaveID: string(id), Message: "updated from response"})
		return &l, true
	}
	n, done, err := Refresher{Engine: e, Config: e.Refresh}.Run(ctx, id)
	if err != nil {
		e.Log.Debug().Err(err).Msg("refresh interrupted")
		return nil, false
	}
	e.publish(ctx, events.Event{Type: events.ListsRefreshed, LeaveID: string(id), Message: refreshNote(n, done)})
	return nil, done
}

func refreshNote(attempts int, done bool) string {
	if done {
		return fmt.Sprintf("lists reloaded after %d attempt(s)", attempts)
	}
	return "lists reloaded, leave still pending upstream"
}

// applyUpdate patches cached lists with a fresh copy of one leave.
func (e *Engine) applyUpdate(l domain.Leave) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l.Status.IsPending() {
		for i := range e.pending {
			if e.pending[i].ID == l.ID {
				e.pending[i].Leave = l
				e.pending[i].SortKey = l.ReceivedAt
			}
		}
	}
	for i := range e.history {
		if e.history[i].ID == l.ID {
			e.history[i].Leave = l
			e.history[i].ActionDate = actionDate(e.history[i])
			e.history[i].ActionTaken = actionTaken(e.history[i])
		}
	}
}
