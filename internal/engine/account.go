package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/events"
	"leavedesk/internal/session"
)

// Login exchanges credentials for a token. The caller decides where to keep it.
func (e *Engine) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.LoginResult{}, &ValidationError{Field: "email", Message: "Email and password are required"}
	}
	anon := e.Client.WithTokens(nil)
	res, err := anon.Login(ctx, email, password)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(res.Token) == "" {
		return res, errors.New("login response did not include a token")
	}
	e.publish(ctx, events.Event{Type: events.SessionStarted, Actor: email})
	return res, nil
}

// Logout clears the session and records it.
func (e *Engine) Logout(ctx context.Context) error {
	if e.Session == nil {
		return nil
	}
	actor := e.actor()
	if err := e.Session.Clear(ctx); err != nil {
		return err
	}
	e.publish(ctx, events.Event{Type: events.SessionEnded, Actor: actor})
	return nil
}

// MyLeaves returns the caller's own requests, newest first.
func (e *Engine) MyLeaves(ctx context.Context) ([]domain.Leave, error) {
	if err := session.Require(e.Session); err != nil {
		return nil, err
	}
	recs, err := e.Client.MyLeaves(ctx)
	if err != nil {
		return nil, e.failure(ctx, err)
	}
	leaves := domain.FromRecords(recs)
	sort.SliceStable(leaves, func(i, j int) bool {
		return newerFirst(leaves[i].ReceivedAt, leaves[j].ReceivedAt, leaves[i].ID, leaves[j].ID)
	})
	return leaves, nil
}

// FindMine looks up one of the caller's own leaves by id.
func (e *Engine) FindMine(ctx context.Context, id domain.ID) (domain.Leave, error) {
	leaves, err := e.MyLeaves(ctx)
	if err != nil {
		return domain.Leave{}, err
	}
	for _, l := range leaves {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Leave{}, &InvalidStateError{LeaveID: id}
}

// FindPending looks id up in the pending queues, loading them if needed.
func (e *Engine) FindPending(ctx context.Context, id domain.ID) (domain.Leave, error) {
	for _, it := range e.CachedPending() {
		if it.ID == id {
			return it.Leave, nil
		}
	}
	res, err := e.Pending(ctx)
	if err != nil {
		return domain.Leave{}, err
	}
	for _, it := range res.Items {
		if it.ID == id {
			return it.Leave, nil
		}
	}
	return domain.Leave{}, &InvalidStateError{LeaveID: id}
}

// Balances groups both entitlement endpoints.
type Balances struct {
	Entitlements []domain.Entitlement          `json:"entitlements"`
	ShortLeave   *domain.ShortLeaveEntitlement `json:"shortLeave,omitempty"`
}

// Entitlements loads leave balances. The short-leave allowance is optional;
// its failure is logged and left out.
func (e *Engine) Entitlements(ctx context.Context) (Balances, error) {
	if err := session.Require(e.Session); err != nil {
		return Balances{}, err
	}
	ents, err := e.Client.MyEntitlements(ctx)
	if err != nil {
		return Balances{}, e.failure(ctx, err)
	}
	b := Balances{Entitlements: ents}
	short, err := e.Client.MyShortLeaveEntitlements(ctx)
	if err != nil {
		e.Log.Warn().Err(err).Msg("short leave entitlement unavailable")
		return b, nil
	}
	b.ShortLeave = &short
	return b, nil
}

// Dashboard returns the pending counts, cached until a leave changes.
func (e *Engine) Dashboard(ctx context.Context) (domain.DashboardCounts, error) {
	if err := session.Require(e.Session); err != nil {
		return domain.DashboardCounts{}, err
	}
	e.mu.RLock()
	cached := e.counts
	e.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	c, err := e.Client.DashboardCounts(ctx)
	if err != nil {
		return c, e.failure(ctx, err)
	}
	if c.Total == 0 {
		c.Total = c.Acting + c.Supervising + c.Approval
	}
	e.mu.Lock()
	e.counts = &c
	e.mu.Unlock()
	return c, nil
}

// Me returns the caller's directory profile.
func (e *Engine) Me(ctx context.Context) (domain.User, error) {
	if err := session.Require(e.Session); err != nil {
		return domain.User{}, err
	}
	email := e.Session.UserEmail()
	if e.Dir != nil {
		e.loadDirectory(ctx)
		if u, ok := e.Dir.User(email); ok {
			return u, nil
		}
	}
	u, err := e.Client.User(ctx, email)
	if err != nil {
		return u, e.failure(ctx, err)
	}
	return u, nil
}

// PasswordChange is validated before it is sent.
type PasswordChange struct {
	Old     string `json:"oldPassword" validate:"required"`
	New     string `json:"newPassword" validate:"required,min=6,nefield=Old"`
	Confirm string `json:"confirmPassword" validate:"required,eqfield=New"`
}

func (p PasswordChange) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	msg := fieldMessage(fe)
	switch fe.Tag() {
	case "min":
		msg = "New password must be at least " + fe.Param() + " characters"
	case "nefield":
		msg = "New password must differ from the current one"
	case "eqfield":
		msg = "Passwords do not match"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// ChangePassword updates the caller's password.
func (e *Engine) ChangePassword(ctx context.Context, p PasswordChange) (Outcome, error) {
	if err := session.Require(e.Session); err != nil {
		return Outcome{}, err
	}
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}
	resp, err := e.Client.ChangePassword(ctx, e.Session.UserEmail(), p.Old, p.New)
	if err != nil {
		return Outcome{}, e.failure(ctx, err)
	}
	return Outcome{Message: passwordReply(resp)}, nil
}

func passwordReply(resp leavedesksdk.Response) string {
	if !resp.JSON {
		if txt := strings.TrimSpace(resp.Text); txt != "" {
			return txt
		}
	}
	return "Password changed successfully"
}
