package leavedesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/domain"
)

// Wire types of the leave backend.
type (
	LeaveRecord           = domain.LeaveRecord
	User                  = domain.User
	Entitlement           = domain.Entitlement
	ShortLeaveEntitlement = domain.ShortLeaveEntitlement
	DashboardCounts       = domain.DashboardCounts
	ValidationResult      = domain.ValidationResult
	LoginResult           = domain.LoginResult
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is a minimal leave backend HTTP client.
type Client struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
	}
}

// WithTokens returns a shallow copy of c authenticating with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.Tokens = ts
	return &cp
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string { return e.Message() }

// Message is the response body, or a generic status line when it is empty.
func (e *APIError) Message() string {
	if b := strings.TrimSpace(e.Body); b != "" {
		return b
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// NetworkError means the request never produced a response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Response is a successful reply. The backend sometimes answers with a plain
// success string instead of JSON; Text always holds the raw body.
type Response struct {
	StatusCode int
	Text       string
	JSON       bool
}

// Decode unmarshals a JSON body into v.
func (r Response) Decode(v any) error {
	if !r.JSON {
		return errors.New("response is not JSON")
	}
	return json.Unmarshal([]byte(r.Text), v)
}

// Role path segments used by the per-role pending and history endpoints.
const (
	RoleActing      = "acting"
	RoleSupervising = "supervising"
	RoleApproval    = "approval"
)

// Login exchanges credentials for a token. It does not require a session.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var resp LoginResult
	_, err := c.do(ctx, http.MethodPost, "auth/login", body, &resp)
	return resp, err
}

// Users returns the employee directory.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	_, err := c.do(ctx, http.MethodGet, "admin/users", nil, &resp)
	return resp, err
}

// User fetches one employee profile by email.
func (c *Client) User(ctx context.Context, email string) (User, error) {
	var resp User
	_, err := c.do(ctx, http.MethodGet, "admin/users/"+url.PathEscape(email), nil, &resp)
	return resp, err
}

// MyEntitlements returns the caller's leave balances.
func (c *Client) MyEntitlements(ctx context.Context) ([]Entitlement, error) {
	var resp []Entitlement
	_, err := c.do(ctx, http.MethodGet, "entitlements/my-entitlements", nil, &resp)
	return resp, err
}

// MyShortLeaveEntitlements returns the caller's short-leave allowance.
func (c *Client) MyShortLeaveEntitlements(ctx context.Context) (ShortLeaveEntitlement, error) {
	var resp ShortLeaveEntitlement
	_, err := c.do(ctx, http.MethodGet, "leaves/my-short-leave-entitlements", nil, &resp)
	return resp, err
}

// MyLeaves returns requests submitted by the caller.
func (c *Client) MyLeaves(ctx context.Context) ([]LeaveRecord, error) {
	var resp []LeaveRecord
	_, err := c.do(ctx, http.MethodGet, "leaves/my-leaves", nil, &resp)
	return resp, err
}

// Pending returns the queue awaiting the caller in role.
func (c *Client) Pending(ctx context.Context, role string) ([]LeaveRecord, error) {
	var resp []LeaveRecord
	_, err := c.do(ctx, http.MethodGet, "leaves/pending/"+url.PathEscape(role), nil, &resp)
	return resp, err
}

// History returns requests the caller already decided in role.
func (c *Client) History(ctx context.Context, role string) ([]LeaveRecord, error) {
	var resp []LeaveRecord
	_, err := c.do(ctx, http.MethodGet, "leaves/history/"+url.PathEscape(role), nil, &resp)
	return resp, err
}

// DashboardCounts returns pending badge counts.
func (c *Client) DashboardCounts(ctx context.Context) (DashboardCounts, error) {
	var resp DashboardCounts
	_, err := c.do(ctx, http.MethodGet, "leaves/dashboard/counts", nil, &resp)
	return resp, err
}

// SubmitBody is the payload of POST /leaves/submit and the validate endpoints.
type SubmitBody struct {
	LeaveType               string `json:"leaveType"`
	StartDate               string `json:"startDate,omitempty"`
	EndDate                 string `json:"endDate,omitempty"`
	Reason                  string `json:"reason,omitempty"`
	ActingOfficerEmail      string `json:"actingOfficerEmail"`
	SupervisingOfficerEmail string `json:"supervisingOfficerEmail"`
	ApprovalOfficerEmail    string `json:"approvalOfficerEmail"`
	HalfDayPeriod           string `json:"halfDayPeriod,omitempty"`
	ShortLeaveStartTime     string `json:"shortLeaveStartTime,omitempty"`
	ShortLeaveEndTime       string `json:"shortLeaveEndTime,omitempty"`
	MaternityLeaveType      string `json:"maternityLeaveType,omitempty"`
	MaternityPaymentType    string `json:"maternityPaymentType,omitempty"`
}

// Submit creates a leave request.
func (c *Client) Submit(ctx context.Context, body SubmitBody) (Response, error) {
	return c.do(ctx, http.MethodPost, "leaves/submit", body, nil)
}

// ValidatePath returns the pre-submission validation endpoint for a leave type.
func ValidatePath(leaveType string) string {
	switch strings.ToUpper(leaveType) {
	case string(domain.LeaveShort):
		return "/leaves/validate-short-leave"
	case string(domain.LeaveHalfDay):
		return "/leaves/validate-half-day"
	case string(domain.LeaveMaternity):
		return "/leaves/validate-maternity"
	}
	return "/leaves/validate"
}

// Validate runs the type-specific validation endpoint.
func (c *Client) Validate(ctx context.Context, body SubmitBody) (ValidationResult, error) {
	var resp ValidationResult
	_, err := c.do(ctx, http.MethodPost, ValidatePath(body.LeaveType), body, &resp)
	return resp, err
}

// ActionPath is the approve/reject endpoint for id in role.
func ActionPath(id, role string) string {
	return fmt.Sprintf("/leaves/%s/%s-action", url.PathEscape(id), role)
}

// Act posts an approve/reject decision to endpoint.
func (c *Client) Act(ctx context.Context, endpoint, action, comments string) (Response, error) {
	body := map[string]any{
		"action":   strings.ToUpper(action),
		"comments": comments,
	}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// Cancel withdraws a leave request.
func (c *Client) Cancel(ctx context.Context, id, reason string) (Response, error) {
	body := map[string]any{"reason": reason}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("leaves/%s/cancel", url.PathEscape(id)), body, nil)
}

// ChangePassword updates the password of email.
func (c *Client) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) (Response, error) {
	body := map[string]any{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}
	return c.do(ctx, http.MethodPut, "employee/change-password/"+url.PathEscape(email), body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (Response, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return Response{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.Tokens != nil {
		if tok := c.Tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		return Response{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	r := Response{StatusCode: resp.StatusCode, Text: string(b), JSON: json.Valid(b)}
	if out != nil && r.JSON {
		if err := json.Unmarshal(b, out); err != nil {
			return r, fmt.Errorf("decode %s %s: %w", method, endpoint, err)
		}
	}
	return r, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
