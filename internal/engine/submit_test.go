package engine_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
	"leavedesk/internal/events"
)

func TestSubmitRequestValidation(t *testing.T) {
	cases := []struct {
		name  string
		req   engine.SubmitRequest
		field string
	}{
		{"missing type", engine.SubmitRequest{StartDate: "2024-05-01"}, "leaveType"},
		{"bad date", engine.SubmitRequest{LeaveType: "casual", StartDate: "01/05/2024", EndDate: "2024-05-02"}, "startDate"},
		{"standard needs end", engine.SubmitRequest{LeaveType: "SICK", StartDate: "2024-05-01"}, "endDate"},
		{"end before start", engine.SubmitRequest{LeaveType: "CASUAL", StartDate: "2024-05-03", EndDate: "2024-05-01"}, "endDate"},
		{"half day period", engine.SubmitRequest{LeaveType: "HALF_DAY", StartDate: "2024-05-01"}, "halfDayPeriod"},
		{"bad period", engine.SubmitRequest{LeaveType: "HALF_DAY", StartDate: "2024-05-01", HalfDayPeriod: "noon"}, "halfDayPeriod"},
		{"short times", engine.SubmitRequest{LeaveType: "SHORT", StartDate: "2024-05-01", ShortLeaveStartTime: "9am", ShortLeaveEndTime: "10:00"}, "shortLeaveStartTime"},
		{"short order", engine.SubmitRequest{LeaveType: "SHORT", StartDate: "2024-05-01", ShortLeaveStartTime: "11:00", ShortLeaveEndTime: "10:00"}, "shortLeaveEndTime"},
		{"maternity kind", engine.SubmitRequest{LeaveType: "MATERNITY", StartDate: "2024-05-01"}, "maternityLeaveType"},
		{"officer email", engine.SubmitRequest{LeaveType: "DUTY", StartDate: "2024-05-01", EndDate: "2024-05-01", ActingOfficerEmail: "not-an-email"}, "actingOfficerEmail"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Normalize().Validate()
			var verr *engine.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}

	ok := engine.SubmitRequest{LeaveType: "short", StartDate: "2024-05-01", ShortLeaveStartTime: "09:00:00", ShortLeaveEndTime: "10:30", ActingOfficerEmail: "none"}.Normalize()
	require.NoError(t, ok.Validate())
	assert.Equal(t, "2024-05-01", ok.EndDate)
	assert.Equal(t, "09:00", ok.ShortLeaveStartTime)
	body := ok.Body()
	assert.Equal(t, domain.UnassignedEmail, body.ActingOfficerEmail)
	assert.Equal(t, domain.UnassignedEmail, body.ApprovalOfficerEmail)

	maternity := engine.SubmitRequest{LeaveType: "MATERNITY", StartDate: "2024-05-01", MaternityLeaveType: "first_child"}.Normalize()
	assert.NoError(t, maternity.Validate(), "maternity end date is set later by an admin")
}

func TestSubmitStopsOnInvalidVerdict(t *testing.T) {
	env := newTestEnv(t)
	env.Backend.on(http.MethodPost, "/leaves/validate-half-day", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.ValidationResult{Valid: false, Message: "Half day already taken on this date"})
	})
	_, err := env.Engine.Submit(env.Ctx, engine.SubmitRequest{LeaveType: "HALF_DAY", StartDate: "2024-05-01", HalfDayPeriod: "morning"})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Half day already taken on this date", verr.Message)
	assert.Zero(t, env.Backend.count(http.MethodPost, "/leaves/submit"))
	assert.Empty(t, *env.Events)
}

func TestSubmitSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.Backend.on(http.MethodPost, "/leaves/validate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.ValidationResult{Valid: true})
	})
	env.Backend.on(http.MethodPost, "/leaves/submit", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.LeaveRecord{ID: "77", LeaveType: "CASUAL", Status: "PENDING_ACTING_OFFICER"})
	})
	out, err := env.Engine.Submit(env.Ctx, engine.SubmitRequest{
		LeaveType:            "casual",
		StartDate:            "2024-05-01",
		EndDate:              "2024-05-03",
		Reason:               "wedding",
		ApprovalOfficerEmail: "boss@corp.lk",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("77"), out.LeaveID)
	assert.Equal(t, "Leave request submitted successfully", out.Message)

	sent := env.Backend.body(http.MethodPost, "/leaves/submit")
	assert.Equal(t, "CASUAL", sent["leaveType"])
	assert.Equal(t, "NONE", sent["actingOfficerEmail"])
	assert.Equal(t, "NONE", sent["supervisingOfficerEmail"])
	assert.Equal(t, "boss@corp.lk", sent["approvalOfficerEmail"])
	assert.Equal(t, 1, env.Backend.count(http.MethodPost, "/leaves/validate"))
	assert.Equal(t, []events.Type{events.LeaveSubmitted}, env.eventTypes())
}

func TestChangePasswordValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ChangePassword(env.Ctx, engine.PasswordChange{Old: "secret1", New: "secret1", Confirm: "secret1"})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "New password must differ from the current one", verr.Message)

	_, err = env.Engine.ChangePassword(env.Ctx, engine.PasswordChange{Old: "secret1", New: "secret22", Confirm: "secret2"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Passwords do not match", verr.Message)

	env.Backend.on(http.MethodPut, "/employee/change-password/officer@corp.lk", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Password updated"))
	})
	out, err := env.Engine.ChangePassword(env.Ctx, engine.PasswordChange{Old: "secret1", New: "secret22", Confirm: "secret22"})
	require.NoError(t, err)
	assert.Equal(t, "Password updated", out.Message)
	assert.Equal(t, 1, env.Backend.count(http.MethodPut, "/employee/change-password/officer@corp.lk"))
}
