package engine

import (
	"context"
	"fmt"
	"strings"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/events"
	"leavedesk/internal/session"
)

const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
)

// Outcome describes a completed mutation.
type Outcome struct {
	Message string        `json:"message"`
	LeaveID domain.ID     `json:"leaveId"`
	Leave   *domain.Leave `json:"leave,omitempty"`
	// Refreshed is set once the approver lists reflect the change.
	Refreshed bool `json:"refreshed"`
}

// ResolveEndpoint picks the action endpoint from the leave's raw status.
// Anything that is not awaiting an officer fails without a request.
func ResolveEndpoint(l domain.Leave, action string) (string, error) {
	role, ok := domain.PendingRoleOf(l.RawStatus)
	if !ok || l.Cancelled() {
		return "", &InvalidStateError{LeaveID: l.ID, Status: l.RawStatus}
	}
	return leavedesksdk.ActionPath(string(l.ID), string(role)), nil
}

// Act approves or rejects l at the caller's level.
func (e *Engine) Act(ctx context.Context, l domain.Leave, action, comments string) (Outcome, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action != ActionApprove && action != ActionReject {
		return Outcome{}, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q, expected APPROVE or REJECT", action)}
	}
	if err := session.Require(e.Session); err != nil {
		return Outcome{}, err
	}
	endpoint, err := ResolveEndpoint(l, action)
	if err != nil {
		return Outcome{}, err
	}
	if !e.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	// Only the mutation itself is exclusive; the list refresh below is not.
	resp, err := e.Client.Act(ctx, endpoint, action, comments)
	e.busy.Unlock()
	if err != nil {
		return Outcome{}, e.failure(ctx, err)
	}
	role, _ := domain.PendingRoleOf(l.RawStatus)
	out := Outcome{Message: actionMessage(l, action), LeaveID: l.ID}
	e.removePending(l.ID)
	e.publish(ctx, events.Event{
		Type:    events.LeaveActioned,
		LeaveID: string(l.ID),
		Role:    string(role),
		Action:  action,
		Message: out.Message,
	})
	out.Leave, out.Refreshed = e.afterMutation(ctx, l.ID, resp)
	e.Log.Info().Str("leave", string(l.ID)).Str("action", action).Str("role", string(role)).Msg("leave actioned")
	return out, nil
}

// Cancel withdraws l. Cancelled and rejected leaves cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, l domain.Leave, reason string) (Outcome, error) {
	if err := session.Require(e.Session); err != nil {
		return Outcome{}, err
	}
	if l.ID == "" || l.Cancelled() || l.Status.IsRejected() {
		return Outcome{}, &InvalidStateError{LeaveID: l.ID, Status: l.RawStatus}
	}
	if !e.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	resp, err := e.Client.Cancel(ctx, string(l.ID), strings.TrimSpace(reason))
	e.busy.Unlock()
	if err != nil {
		return Outcome{}, e.failure(ctx, err)
	}
	out := Outcome{Message: "Leave cancelled successfully", LeaveID: l.ID}
	e.removePending(l.ID)
	e.publish(ctx, events.Event{
		Type:    events.LeaveCancelled,
		LeaveID: string(l.ID),
		Action:  "CANCEL",
		Message: out.Message,
	})
	if rec, ok := decodeRecord(resp); ok {
		lv := domain.FromRecord(rec)
		out.Leave = &lv
	}
	return out, nil
}

// failure maps token errors to ErrSessionExpired and drops the dead session.
// Other errors are returned unchanged.
func (e *Engine) failure(ctx context.Context, err error) error {
	if !expiredTokenError(err) {
		return err
	}
	if e.Session != nil {
		if cerr := e.Session.Clear(ctx); cerr != nil {
			e.Log.Warn().Err(cerr).Msg("clear expired session")
		}
	}
	e.publish(ctx, events.Event{Type: events.SessionEnded, Message: "session expired"})
	return fmt.Errorf("%w: %v", ErrSessionExpired, err)
}

func actionMessage(l domain.Leave, action string) string {
	if action == ActionReject {
		return "Leave rejected successfully"
	}
	msg := "Leave approved successfully"
	if l.Type != domain.LeaveMaternity {
		return msg
	}
	if role, ok := domain.PendingRoleOf(l.RawStatus); ok && role == domain.RoleApproval {
		return msg + " - maternity leave fully approved"
	}
	return msg + " - approved at your level and forwarded to the next approver"
}

func decodeRecord(resp leavedesksdk.Response) (domain.LeaveRecord, bool) {
	var rec domain.LeaveRecord
	if !resp.JSON || resp.Decode(&rec) != nil || rec.ID == "" {
		return rec, false
	}
	return rec, true
}
