package engine

import (
	"errors"
	"fmt"
	"strings"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/session"
)

var (
	// ErrBusy rejects a mutation while another one is in flight.
	ErrBusy = errors.New("Another action is in progress")
	// ErrSessionExpired is returned when the backend refuses the token.
	ErrSessionExpired = errors.New("Session expired")
)

// InvalidStateError means the leave is in a state that does not allow the
// requested operation. No request was sent.
type InvalidStateError struct {
	LeaveID domain.ID
	Status  string
}

func (e *InvalidStateError) Error() string { return "This leave cannot be processed" }

// ValidationError carries a message meant for the person filling the form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RoleFailure records one role list that could not be loaded.
type RoleFailure struct {
	Role domain.Role `json:"role"`
	Err  error       `json:"-"`
}

func (f RoleFailure) Error() string { return fmt.Sprintf("%s: %v", f.Role, f.Err) }

// AggregateError is returned when every role list failed.
type AggregateError struct {
	Failures []RoleFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "all role lists failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

var sessionMarkers = []string{"Token expired", "Invalid token", "Unauthorized"}

// IsSessionError reports whether err means the user has to log in again.
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, session.ErrNotLoggedIn) {
		return true
	}
	var apiErr *leavedesksdk.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message()
		for _, m := range sessionMarkers {
			if strings.Contains(body, m) {
				return true
			}
		}
	}
	return false
}

// expiredTokenError reports backend bodies that carry the token markers.
// Plain 401s without them are surfaced as they are.
func expiredTokenError(err error) bool {
	var apiErr *leavedesksdk.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	body := apiErr.Message()
	return strings.Contains(body, "Token expired") || strings.Contains(body, "Invalid token")
}

// UserMessage turns err into the single line shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		netErr   *leavedesksdk.NetworkError
		apiErr   *leavedesksdk.APIError
		stateErr *InvalidStateError
		valErr   *ValidationError
		aggErr   *AggregateError
	)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		return session.ErrNotLoggedIn.Error()
	case errors.As(err, &aggErr):
		if len(aggErr.Failures) > 0 {
			return "Failed to load leaves: " + UserMessage(aggErr.Failures[0].Err)
		}
		return "Failed to load leaves"
	case errors.As(err, &netErr):
		return "Network error, please check your connection"
	case IsSessionError(err):
		return "Session expired, please log in again"
	case errors.As(err, &stateErr):
		return stateErr.Error()
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.Is(err, ErrBusy):
		return ErrBusy.Error()
	case errors.As(err, &apiErr):
		return apiErr.Message()
	}
	return err.Error()
}
