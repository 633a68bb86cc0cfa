package events

import (
	"context"

	"github.com/rs/zerolog"

	"leavedesk/internal/repo"
)

// Writer persists bus events into the sqlite activity log.
type Writer struct {
	Repo repo.Repo
	Log  zerolog.Logger
}

// Attach subscribes w to every event on b.
func (w Writer) Attach(b *Bus) error {
	return b.Subscribe("activity-log", Filter{}, w.Handle)
}

func (w Writer) Handle(ctx context.Context, e Event) {
	// A cancelled request context must not lose the audit row.
	ctx = context.WithoutCancel(ctx)
	id, err := w.Repo.AppendEvent(ctx, ToRow(e))
	if err != nil {
		w.Log.Warn().Err(err).Str("type", string(e.Type)).Msg("activity log append failed")
		return
	}
	w.Log.Debug().Int64("id", id).Str("type", string(e.Type)).Str("leave", e.LeaveID).Msg("activity logged")
}

// ToRow maps a bus event onto the stored activity row.
func ToRow(e Event) repo.Event {
	return repo.Event{
		At:      e.At,
		Type:    string(e.Type),
		LeaveID: e.LeaveID,
		Role:    e.Role,
		Action:  e.Action,
		Actor:   e.Actor,
		Message: e.Message,
	}
}

// FromRow rebuilds a bus event from a stored row.
func FromRow(r repo.Event) Event {
	return Event{
		Type:    Type(r.Type),
		LeaveID: r.LeaveID,
		Role:    r.Role,
		Action:  r.Action,
		Actor:   r.Actor,
		Message: r.Message,
		At:      r.At,
	}
}
