package server

import (
	"time"

	"leavedesk/internal/chain"
	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
	"leavedesk/internal/repo"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ActionRequest struct {
	Comments string `json:"comments,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type PasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Response payloads

type LoginResponse struct {
	Token string   `json:"token"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type UserResponse struct {
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Designation string   `json:"designation,omitempty"`
	Roles       []string `json:"roles"`
}

type SlotView struct {
	Role       domain.Role `json:"role"`
	Email      string      `json:"email,omitempty"`
	Name       string      `json:"name,omitempty"`
	Status     string      `json:"status"`
	ApprovedAt *time.Time  `json:"approvedAt,omitempty"`
}

// LeaveView is a leave as the web views draw it: canonical fields plus the
// rendered chain and derived labels.
type LeaveView struct {
	ID            string         `json:"id"`
	EmployeeName  string         `json:"employeeName,omitempty"`
	EmployeeEmail string         `json:"employeeEmail,omitempty"`
	LeaveType     string         `json:"leaveType"`
	Details       map[string]any `json:"details,omitempty"`
	StartDate     *time.Time     `json:"startDate,omitempty"`
	EndDate       *time.Time     `json:"endDate,omitempty"`
	Duration      string         `json:"duration"`
	Status        string         `json:"status"`
	StatusLabel   string         `json:"statusLabel"`
	Reason        string         `json:"reason,omitempty"`
	Comments      string         `json:"comments,omitempty"`
	ReceivedAt    *time.Time     `json:"receivedAt,omitempty"`
	Slots         []SlotView     `json:"slots"`
	Chain         chain.Chain    `json:"chain"`

	RoleKey     string     `json:"roleKey,omitempty"`
	Role        string     `json:"role,omitempty"`
	ActionDate  *time.Time `json:"actionDate,omitempty"`
	ActionTaken string     `json:"actionTaken,omitempty"`
}

type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

type RoleFailureResponse struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type LeaveListResponse struct {
	Items    []LeaveView           `json:"items"`
	Page     PageInfo              `json:"page"`
	Failures []RoleFailureResponse `json:"failures,omitempty"`
}

type OutcomeResponse struct {
	Message   string     `json:"message"`
	LeaveID   string     `json:"leave_id,omitempty"`
	Refreshed bool       `json:"refreshed"`
	Leave     *LeaveView `json:"leave,omitempty"`
}

type EntitlementsResponse struct {
	Entitlements []domain.Entitlement          `json:"entitlements"`
	ShortLeave   *domain.ShortLeaveEntitlement `json:"short_leave,omitempty"`
}

type ActivityResponse struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	LeaveID string    `json:"leave_id,omitempty"`
	Role    string    `json:"role,omitempty"`
	Action  string    `json:"action,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	Message string    `json:"message,omitempty"`
}

type paginatedActivity struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func leaveView(l domain.Leave, r chain.Renderer) LeaveView {
	v := LeaveView{
		ID:            string(l.ID),
		EmployeeName:  l.EmployeeName,
		EmployeeEmail: l.EmployeeEmail,
		LeaveType:     string(l.Type),
		Details:       detailsMap(l.Details),
		StartDate:     l.Start,
		EndDate:       l.End,
		Duration:      domain.Duration(l),
		Status:        string(l.Status),
		StatusLabel:   l.Status.Label(),
		Reason:        l.Reason,
		Comments:      l.Comments,
		ReceivedAt:    l.ReceivedAt,
		Slots:         make([]SlotView, 0, len(l.Slots)),
		Chain:         r.Render(l),
	}
	for _, s := range l.Slots {
		v.Slots = append(v.Slots, SlotView{
			Role:       s.Role,
			Email:      s.Email,
			Name:       s.Name,
			Status:     string(s.Status),
			ApprovedAt: s.ApprovedAt,
		})
	}
	return v
}

func itemView(it engine.Item, r chain.Renderer) LeaveView {
	v := leaveView(it.Leave, r)
	v.RoleKey = string(it.Role)
	v.Role = it.RoleLabel
	v.ActionDate = it.ActionDate
	v.ActionTaken = it.ActionTaken
	return v
}

func mapItems(items []engine.Item, r chain.Renderer) []LeaveView {
	out := make([]LeaveView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView(it, r))
	}
	return out
}

func mapLeaves(items []domain.Leave, r chain.Renderer) []LeaveView {
	out := make([]LeaveView, 0, len(items))
	for _, l := range items {
		out = append(out, leaveView(l, r))
	}
	return out
}

func detailsMap(d domain.Details) map[string]any {
	switch v := d.(type) {
	case domain.HalfDayLeave:
		return map[string]any{"period": v.Period}
	case domain.ShortLeave:
		return map[string]any{"start": v.Start, "end": v.End}
	case domain.MaternityLeave:
		return map[string]any{"category": v.Category, "payment": v.Payment}
	default:
		return nil
	}
}

func outcomeResponse(out engine.Outcome, r chain.Renderer) OutcomeResponse {
	resp := OutcomeResponse{Message: out.Message, LeaveID: string(out.LeaveID), Refreshed: out.Refreshed}
	if out.Leave != nil {
		v := leaveView(*out.Leave, r)
		resp.Leave = &v
	}
	return resp
}

func failuresResponse(failures []engine.RoleFailure) []RoleFailureResponse {
	if len(failures) == 0 {
		return nil
	}
	out := make([]RoleFailureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, RoleFailureResponse{Role: string(f.Role), Message: engine.UserMessage(f.Err)})
	}
	return out
}

func activityResponse(e repo.Event) ActivityResponse {
	return ActivityResponse{
		ID:      e.ID,
		At:      e.At,
		Type:    e.Type,
		LeaveID: e.LeaveID,
		Role:    e.Role,
		Action:  e.Action,
		Actor:   e.Actor,
		Message: e.Message,
	}
}

func nonNilSlice(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
