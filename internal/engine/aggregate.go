package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"leavedesk/internal/domain"
	"leavedesk/internal/session"
)

// Item is a leave as it appears in an aggregated list, tagged with the
// officer role whose list it came from.
type Item struct {
	domain.Leave
	Role      domain.Role `json:"roleKey"`
	RoleLabel string      `json:"role"`
	// SortKey is the first of receivedDate, requestDate, createdAt, dateSubmitted.
	SortKey *time.Time `json:"sortKey,omitempty"`
	// Set on history items only.
	ActionDate  *time.Time `json:"actionDate,omitempty"`
	ActionTaken string     `json:"actionTaken,omitempty"`
}

// Result is an aggregated list plus the roles that could not be loaded.
type Result struct {
	Items    []Item        `json:"items"`
	Failures []RoleFailure `json:"failures,omitempty"`
}

// Partial reports whether some but not all role lists failed.
func (r Result) Partial() bool {
	return len(r.Failures) > 0 && len(r.Failures) < len(domain.Roles)
}

type fetchFn func(ctx context.Context, role string) ([]domain.LeaveRecord, error)

// Pending loads the three pending queues in parallel. A failing role yields
// no items and is recorded in Failures; only when all fail is an error returned.
func (e *Engine) Pending(ctx context.Context) (Result, error) {
	res, err := e.gather(ctx, "pending", e.Client.Pending)
	if err != nil {
		if errors.As(err, new(*AggregateError)) {
			e.setPending(nil)
		}
		return res, err
	}
	sortByKey(res.Items)
	e.setPending(res.Items)
	return res, nil
}

// History loads what the caller already decided, one row per (leave, role).
func (e *Engine) History(ctx context.Context) (Result, error) {
	res, err := e.gather(ctx, "history", e.Client.History)
	if err != nil {
		if errors.As(err, new(*AggregateError)) {
			e.setHistory(nil)
		}
		return res, err
	}
	items := dedupe(res.Items)
	for i := range items {
		items[i].ActionDate = actionDate(items[i])
		items[i].ActionTaken = actionTaken(items[i])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return newerFirst(items[i].ActionDate, items[j].ActionDate, items[i].ID, items[j].ID)
	})
	res.Items = items
	e.setHistory(items)
	return res, nil
}

func (e *Engine) gather(ctx context.Context, list string, fetch fetchFn) (Result, error) {
	if err := session.Require(e.Session); err != nil {
		return Result{}, err
	}
	var (
		g        errgroup.Group
		perRole  [3][]domain.LeaveRecord
		failures [3]error
	)
	for i, role := range domain.Roles {
		g.Go(func() error {
			recs, err := fetch(ctx, string(role))
			if err != nil {
				failures[i] = err
				e.Log.Warn().Err(err).Str("list", list).Str("role", string(role)).Msg("role list failed, continuing with the others")
				return nil
			}
			perRole[i] = recs
			return nil
		})
	}
	g.Go(func() error {
		e.loadDirectory(ctx)
		return nil
	})
	_ = g.Wait()

	var res Result
	for i, role := range domain.Roles {
		if failures[i] != nil {
			res.Failures = append(res.Failures, RoleFailure{Role: role, Err: failures[i]})
			continue
		}
		for _, rec := range perRole[i] {
			l := domain.FromRecord(rec)
			res.Items = append(res.Items, Item{
				Leave:     l,
				Role:      role,
				RoleLabel: role.Label(),
				SortKey:   l.ReceivedAt,
			})
		}
	}
	if len(res.Failures) == len(domain.Roles) {
		return Result{Failures: res.Failures}, &AggregateError{Failures: res.Failures}
	}
	return res, nil
}

func sortByKey(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return newerFirst(items[i].SortKey, items[j].SortKey, items[i].ID, items[j].ID)
	})
}

// newerFirst orders by time descending; missing times go last and ties fall
// back to id so the order is stable across refreshes.
func newerFirst(a, b *time.Time, aid, bid domain.ID) bool {
	switch {
	case a == nil && b == nil:
		return aid < bid
	case a == nil:
		return false
	case b == nil:
		return true
	case a.Equal(*b):
		return aid < bid
	}
	return a.After(*b)
}

type dedupeKey struct {
	id   domain.ID
	role domain.Role
}

func dedupe(items []Item) []Item {
	seen := make(map[dedupeKey]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		k := dedupeKey{it.ID, it.Role}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func actionDate(it Item) *time.Time {
	if at := it.Slot(it.Role).ApprovedAt; at != nil {
		return at
	}
	if it.UpdatedAt != nil {
		return it.UpdatedAt
	}
	return it.SortKey
}

func actionTaken(it Item) string {
	switch s := it.Slot(it.Role).Status; s {
	case domain.SlotApproved, domain.SlotRejected:
		return string(s)
	}
	if it.Cancelled() {
		return "CANCELLED"
	}
	return string(it.Status)
}
