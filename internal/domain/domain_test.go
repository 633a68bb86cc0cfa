package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var recs []domain.LeaveRecord
	err := json.Unmarshal([]byte(`[{"id":42,"status":"APPROVED"},{"id":"abc-1","status":"APPROVED"},{"id":null}]`), &recs)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("42"), recs[0].ID)
	assert.Equal(t, domain.ID("abc-1"), recs[1].ID)
	assert.Equal(t, domain.ID(""), recs[2].ID)
}

func TestCanonicalStatus(t *testing.T) {
	none := [3]domain.Slot{}
	rejectedSupervisor := [3]domain.Slot{
		{Role: domain.RoleActing, Status: domain.SlotApproved},
		{Role: domain.RoleSupervising, Status: domain.SlotRejected},
		{Role: domain.RoleApproval, Status: domain.SlotPending},
	}
	cases := []struct {
		name      string
		raw       string
		cancelled bool
		slots     [3]domain.Slot
		want      domain.Status
	}{
		{"long pending", "PENDING_ACTING_OFFICER", false, none, domain.StatusPendingActing},
		{"short alias", "pending_supervising", false, none, domain.StatusPendingSupervising},
		{"approval alias", "PENDING_APPROVAL", false, none, domain.StatusPendingApproval},
		{"flag wins over pending", "PENDING_APPROVAL_OFFICER", true, none, domain.StatusCancelledEmployee},
		{"cancel substring", "CANCELLED_BY_EMPLOYEE", false, none, domain.StatusCancelledEmployee},
		{"admin cancel", "CANCELLED_ADMIN", false, none, domain.StatusCancelledAdmin},
		{"bare rejected uses slot", "REJECTED", false, rejectedSupervisor, domain.StatusRejectedSupervise},
		{"bare rejected without slot", "REJECTED", false, none, domain.StatusRejectedApproval},
		{"approved", " approved ", false, none, domain.StatusApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.CanonicalStatus(tc.raw, tc.cancelled, tc.slots))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	role, ok := domain.StatusPendingSupervising.PendingRole()
	require.True(t, ok)
	assert.Equal(t, domain.RoleSupervising, role)

	assert.True(t, domain.StatusApproved.IsTerminal())
	assert.True(t, domain.StatusRejectedActing.IsTerminal())
	assert.True(t, domain.StatusCancelledAdmin.IsTerminal())
	assert.False(t, domain.StatusPendingApproval.IsTerminal())
	assert.False(t, domain.StatusApproved.IsPending())
}

func TestFromRecordSlots(t *testing.T) {
	l := domain.FromRecord(domain.LeaveRecord{
		ID:                           "7",
		LeaveType:                    "casual",
		Status:                       "PENDING_SUPERVISING_OFFICER",
		ActingOfficerEmail:           "a@corp.lk",
		ActingOfficerName:            "Amal",
		ActingOfficerStatus:          "approved",
		ActingOfficerApprovedAt:      "2024-03-01T10:00:00",
		SupervisingOfficerEmail:      "NONE",
		SupervisingOfficerName:       "Ghost",
		SupervisingOfficerStatus:     "PENDING",
		ApprovalOfficerEmail:         "c@corp.lk",
		ApprovalOfficerStatus:        "PENDING",
		RequestDate:                  "2024-02-28",
		SupervisingOfficerApprovedAt: "garbage",
	})
	assert.Equal(t, domain.LeaveCasual, l.Type)
	assert.Equal(t, domain.StandardLeave{Type: domain.LeaveCasual}, l.Details)

	acting := l.Slot(domain.RoleActing)
	assert.True(t, acting.HasOfficer())
	assert.Equal(t, domain.SlotApproved, acting.Status)
	require.NotNil(t, acting.ApprovedAt)

	sup := l.Slot(domain.RoleSupervising)
	assert.False(t, sup.Assigned())
	assert.Equal(t, domain.SlotNotAssigned, sup.Status)
	assert.Nil(t, sup.ApprovedAt)

	appr := l.Slot(domain.RoleApproval)
	assert.True(t, appr.Assigned())
	assert.False(t, appr.HasOfficer(), "name is required")

	require.NotNil(t, l.ReceivedAt)
	assert.Equal(t, 28, l.ReceivedAt.Day())
}

func TestDuration(t *testing.T) {
	cases := []struct {
		name string
		rec  domain.LeaveRecord
		want string
	}{
		{"same day", domain.LeaveRecord{LeaveType: "CASUAL", StartDate: "2024-05-02", EndDate: "2024-05-02"}, "1 day"},
		{"range", domain.LeaveRecord{LeaveType: "SICK", StartDate: "2024-05-02", EndDate: "2024-05-04"}, "3 days"},
		{"missing end", domain.LeaveRecord{LeaveType: "DUTY", StartDate: "2024-05-02"}, "Pending end date from admin"},
		{"maternity deferred", domain.LeaveRecord{LeaveType: "MATERNITY", StartDate: "2024-05-02", EndDate: "null"}, "Pending end date from admin"},
		{"inverted", domain.LeaveRecord{LeaveType: "CASUAL", StartDate: "2024-05-04", EndDate: "2024-05-02"}, "Invalid date range"},
		{"half day", domain.LeaveRecord{LeaveType: "HALF_DAY", StartDate: "2024-05-02", HalfDayPeriod: "morning"}, "Half day (MORNING)"},
		{"short", domain.LeaveRecord{LeaveType: "SHORT", ShortLeaveStartTime: "09:00", ShortLeaveEndTime: "10:30:00"}, "09:00 - 10:30 (1h 30m)"},
		{"short whole hours", domain.LeaveRecord{LeaveType: "SHORT", ShortLeaveStartTime: "13:00", ShortLeaveEndTime: "15:00"}, "13:00 - 15:00 (2h)"},
		{"short missing", domain.LeaveRecord{LeaveType: "SHORT"}, "Short leave"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.Duration(domain.FromRecord(tc.rec)))
		})
	}
}

func TestHonorific(t *testing.T) {
	assert.Equal(t, "Mr.", domain.Profile{Gender: "Male"}.Honorific())
	assert.Equal(t, "Mrs.", domain.Profile{Gender: "FEMALE", MaritalStatus: "married"}.Honorific())
	assert.Equal(t, "Miss", domain.Profile{Gender: "female", MaritalStatus: "SINGLE"}.Honorific())
	assert.Equal(t, "", domain.Profile{}.Honorific())
}

func TestParseRole(t *testing.T) {
	r, ok := domain.ParseRole("Supervising Officer")
	require.True(t, ok)
	assert.Equal(t, domain.RoleSupervising, r)
	_, ok = domain.ParseRole("janitor")
	assert.False(t, ok)
}

func TestMaternityDetails(t *testing.T) {
	l := domain.FromRecord(domain.LeaveRecord{ID: "9", LeaveType: "MATERNITY", MaternityLeaveType: "FIRST_CHILD", MaternityPaymentType: "FULL_PAY"})
	d, ok := l.Details.(domain.MaternityLeave)
	require.True(t, ok, "details = %T", l.Details)
	assert.Equal(t, "FIRST_CHILD", d.Category)
	assert.Equal(t, "FULL_PAY", d.Payment)
	assert.Equal(t, domain.LeaveMaternity, d.Kind())
}
