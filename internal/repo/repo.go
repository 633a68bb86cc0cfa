// Package repo is the sqlite access layer for local leavedesk state.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const tsLayout = time.RFC3339Nano

// Session is the persisted login of the CLI user. Only one exists at a time.
type Session struct {
	Token     string
	Email     string
	Roles     []string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Event is one row of the activity log.
type Event struct {
	ID      int64          `json:"id"`
	At      time.Time      `json:"at"`
	Type    string         `json:"type"`
	LeaveID string         `json:"leaveId,omitempty"`
	Role    string         `json:"role,omitempty"`
	Action  string         `json:"action,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventFilter narrows LatestEvents. Zero values match everything.
type EventFilter struct {
	Type    string
	LeaveID string
	Actor   string
	Before  int64
}

func (r Repo) SaveSession(ctx context.Context, s Session) error {
	if strings.TrimSpace(s.Token) == "" {
		return fmt.Errorf("session token is required")
	}
	roles, err := json.Marshal(s.Roles)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	var expires any
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.UTC().Format(tsLayout)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO sessions(id,token,email,roles_json,expires_at,created_at) VALUES (1,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET token=excluded.token, email=excluded.email, roles_json=excluded.roles_json,
expires_at=excluded.expires_at, created_at=excluded.created_at`,
		s.Token, s.Email, string(roles), expires, s.CreatedAt.UTC().Format(tsLayout))
	return err
}

func (r Repo) GetSession(ctx context.Context) (Session, error) {
	var (
		s       Session
		roles   string
		expires sql.NullString
		created string
	)
	err := r.DB.QueryRowContext(ctx, `SELECT token,email,roles_json,expires_at,created_at FROM sessions WHERE id=1`).
		Scan(&s.Token, &s.Email, &roles, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal([]byte(roles), &s.Roles); err != nil {
		return s, fmt.Errorf("decode session roles: %w", err)
	}
	if expires.Valid {
		if t, err := time.Parse(tsLayout, expires.String); err == nil {
			s.ExpiresAt = &t
		}
	}
	s.CreatedAt, _ = time.Parse(tsLayout, created)
	return s, nil
}

// DeleteSession removes the stored login. Deleting nothing is not an error.
func (r Repo) DeleteSession(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

// AppendEvent stores e and returns its id.
func (r Repo) AppendEvent(ctx context.Context, e Event) (int64, error) {
	if e.Type == "" {
		return 0, fmt.Errorf("event type is required")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO events(ts,type,leave_id,role,action,actor,message,payload_json) VALUES (?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(tsLayout), e.Type, nullable(e.LeaveID), nullable(e.Role), nullable(e.Action), nullable(e.Actor), nullable(e.Message), string(data))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestEvents returns up to limit events, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, f EventFilter) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.LeaveID != "" {
		clauses = append(clauses, "leave_id=?")
		args = append(args, f.LeaveID)
	}
	if f.Actor != "" {
		clauses = append(clauses, "actor=?")
		args = append(args, f.Actor)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := `SELECT id,ts,type,leave_id,role,action,actor,message,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with ids greater than cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, cursor int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,leave_id,role,action,actor,message,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

// LatestEventID returns the highest event id, 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var (
			e                                 Event
			ts, payload                       string
			leaveID, role, action, actor, msg sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Type, &leaveID, &role, &action, &actor, &msg, &payload); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(tsLayout, ts)
		e.LeaveID, e.Role, e.Action, e.Actor, e.Message = leaveID.String, role.String, action.String, actor.String, msg.String
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode event %d payload: %w", e.ID, err)
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// PutDirectory caches payload under key until expires.
func (r Repo) PutDirectory(ctx context.Context, key string, payload []byte, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO directory_cache(key,payload_json,expires_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET payload_json=excluded.payload_json, expires_at=excluded.expires_at`,
		key, string(payload), expires.UTC().Format(tsLayout))
	return err
}

// GetDirectory returns the cached payload for key. Expired entries are
// reported as ErrNotFound.
func (r Repo) GetDirectory(ctx context.Context, key string, now time.Time) ([]byte, error) {
	var payload, expires string
	err := r.DB.QueryRowContext(ctx, `SELECT payload_json,expires_at FROM directory_cache WHERE key=?`, key).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	exp, err := time.Parse(tsLayout, expires)
	if err != nil || !now.Before(exp) {
		return nil, ErrNotFound
	}
	return []byte(payload), nil
}

// DeleteDirectory drops a cached entry.
func (r Repo) DeleteDirectory(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM directory_cache WHERE key=?`, key)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
