package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/db"
	"leavedesk/internal/migrate"
	"leavedesk/internal/repo"
)

func TestBusDeliversInSubscribeOrder(t *testing.T) {
	b := NewBus()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b.Now = func() time.Time { return fixed }

	var got []string
	require.NoError(t, b.Subscribe("first", Filter{}, func(_ context.Context, e Event) {
		got = append(got, "first:"+string(e.Type))
		assert.Equal(t, fixed, e.At)
	}))
	require.NoError(t, b.Subscribe("second", Filter{Types: []Type{LeaveCancelled}}, func(_ context.Context, e Event) {
		got = append(got, "second:"+string(e.Type))
	}))
	assert.ErrorIs(t, b.Subscribe("first", Filter{}, func(context.Context, Event) {}), ErrSubscriptionExists)
	assert.ErrorIs(t, b.Subscribe("", Filter{}, func(context.Context, Event) {}), ErrInvalidSubscriptionID)
	assert.ErrorIs(t, b.Subscribe("x", Filter{}, nil), ErrNilHandler)

	b.Publish(context.Background(), Event{Type: LeaveActioned})
	b.Publish(context.Background(), Event{Type: LeaveCancelled})
	assert.Equal(t, []string{"first:leave.actioned", "first:leave.cancelled", "second:leave.cancelled"}, got)

	assert.True(t, b.Unsubscribe("first"))
	assert.False(t, b.Unsubscribe("first"))
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestNilBusIsSafe(t *testing.T) {
	var b *Bus
	b.Publish(context.Background(), Event{Type: LeaveActioned})
}

func TestTypesOf(t *testing.T) {
	assert.True(t, TypesOf(nil).Matches(Event{Type: LeaveSubmitted}))
	assert.True(t, TypesOf([]string{"*"}).Matches(Event{Type: LeaveSubmitted}))
	f := TypesOf([]string{"leave.actioned"})
	assert.True(t, f.Matches(Event{Type: LeaveActioned}))
	assert.False(t, f.Matches(Event{Type: LeaveSubmitted}))
}

func TestWriterPersistsEvents(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}

	b := NewBus()
	require.NoError(t, Writer{Repo: r}.Attach(b))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Publish(ctx, Event{Type: LeaveActioned, LeaveID: "9", Role: "supervising", Action: "APPROVE", Actor: "s@corp.lk", Message: "Leave approved successfully"})

	rows, err := r.LatestEvents(context.Background(), 5, repo.EventFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	e := FromRow(rows[0])
	assert.Equal(t, LeaveActioned, e.Type)
	assert.Equal(t, "9", e.LeaveID)
	assert.Equal(t, "APPROVE", e.Action)
	assert.Equal(t, "Leave approved successfully", e.Message)
}
