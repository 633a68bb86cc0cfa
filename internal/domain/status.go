package domain

import "strings"

// Role is one of the three officer slots on a leave request.
type Role string

const (
	RoleActing      Role = "acting"
	RoleSupervising Role = "supervising"
	RoleApproval    Role = "approval"
)

// Roles lists the officer slots in chain order.
var Roles = []Role{RoleActing, RoleSupervising, RoleApproval}

// Label is the human tag attached to aggregated list rows.
func (r Role) Label() string {
	switch r {
	case RoleActing:
		return "Acting Officer"
	case RoleSupervising:
		return "Supervising Officer"
	case RoleApproval:
		return "Approval Officer"
	}
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleActing || r == RoleSupervising || r == RoleApproval
}

// ParseRole accepts the path form ("acting") or the label ("Acting Officer").
func ParseRole(s string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, " officer")
	r := Role(v)
	return r, r.Valid()
}

type SlotStatus string

const (
	SlotNotAssigned SlotStatus = "NOT_ASSIGNED"
	SlotPending     SlotStatus = "PENDING"
	SlotApproved    SlotStatus = "APPROVED"
	SlotRejected    SlotStatus = "REJECTED"
)

// Status is the canonical aggregate status of a leave request. It is derived
// once by FromRecord; consumers never inspect the raw backend string.
type Status string

const (
	StatusPendingActing      Status = "PENDING_ACTING_OFFICER"
	StatusPendingSupervising Status = "PENDING_SUPERVISING_OFFICER"
	StatusPendingApproval    Status = "PENDING_APPROVAL_OFFICER"
	StatusApproved           Status = "APPROVED"
	StatusRejectedActing     Status = "REJECTED_BY_ACTING_OFFICER"
	StatusRejectedSupervise  Status = "REJECTED_BY_SUPERVISING_OFFICER"
	StatusRejectedApproval   Status = "REJECTED_BY_APPROVAL_OFFICER"
	StatusCancelledEmployee  Status = "CANCELLED_BY_EMPLOYEE"
	StatusCancelledAdmin     Status = "CANCELLED_ADMIN"
)

var pendingAliases = map[string]Status{
	"PENDING_ACTING_OFFICER":      StatusPendingActing,
	"PENDING_ACTING":              StatusPendingActing,
	"PENDING_SUPERVISING_OFFICER": StatusPendingSupervising,
	"PENDING_SUPERVISING":         StatusPendingSupervising,
	"PENDING_APPROVAL_OFFICER":    StatusPendingApproval,
	"PENDING_APPROVAL":            StatusPendingApproval,
}

// PendingRoleOf maps a raw backend status to the slot that may act on it.
// Only the three long forms and their short aliases are recognised.
func PendingRoleOf(raw string) (Role, bool) {
	switch pendingAliases[strings.ToUpper(strings.TrimSpace(raw))] {
	case StatusPendingActing:
		return RoleActing, true
	case StatusPendingSupervising:
		return RoleSupervising, true
	case StatusPendingApproval:
		return RoleApproval, true
	}
	return "", false
}

func rejectedBy(r Role) Status {
	switch r {
	case RoleActing:
		return StatusRejectedActing
	case RoleSupervising:
		return StatusRejectedSupervise
	}
	return StatusRejectedApproval
}

// CanonicalStatus folds the raw status, the cancellation flag and the slot
// states into one Status. Cancellation wins over everything else.
func CanonicalStatus(raw string, isCancelled bool, slots [3]Slot) Status {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if isCancelled || strings.Contains(v, "CANCELLED") {
		if strings.Contains(v, "ADMIN") {
			return StatusCancelledAdmin
		}
		return StatusCancelledEmployee
	}
	if s, ok := pendingAliases[v]; ok {
		return s
	}
	if v == "REJECTED" {
		for _, slot := range slots {
			if slot.Status == SlotRejected {
				return rejectedBy(slot.Role)
			}
		}
		return StatusRejectedApproval
	}
	return Status(v)
}

func (s Status) IsPending() bool {
	_, ok := s.PendingRole()
	return ok
}

func (s Status) PendingRole() (Role, bool) {
	return PendingRoleOf(string(s))
}

func (s Status) IsRejected() bool { return strings.HasPrefix(string(s), "REJECTED") }

func (s Status) IsCancelled() bool { return strings.HasPrefix(string(s), "CANCELLED") }

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s.IsRejected() || s.IsCancelled()
}

// Label is the badge text for the status.
func (s Status) Label() string {
	switch s {
	case StatusPendingActing:
		return "Pending Acting Officer"
	case StatusPendingSupervising:
		return "Pending Supervising Officer"
	case StatusPendingApproval:
		return "Pending Approval Officer"
	case StatusApproved:
		return "Approved"
	case StatusRejectedActing:
		return "Rejected by Acting Officer"
	case StatusRejectedSupervise:
		return "Rejected by Supervising Officer"
	case StatusRejectedApproval:
		return "Rejected by Approval Officer"
	case StatusCancelledEmployee:
		return "Cancelled"
	case StatusCancelledAdmin:
		return "Cancelled by Admin"
	case "":
		return "Unknown"
	}
	return strings.ReplaceAll(string(s), "_", " ")
}
