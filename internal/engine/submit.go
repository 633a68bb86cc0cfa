package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	leavedesksdk "leavedesk/sdk/go"

	"leavedesk/internal/domain"
	"leavedesk/internal/events"
	"leavedesk/internal/session"
)

// SubmitRequest is a new leave application as entered by the employee.
type SubmitRequest struct {
	LeaveType               string `json:"leaveType" validate:"required,oneof=CASUAL SICK DUTY MATERNITY SHORT HALF_DAY"`
	StartDate               string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate                 string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reason                  string `json:"reason,omitempty" validate:"max=500"`
	ActingOfficerEmail      string `json:"actingOfficerEmail,omitempty" validate:"omitempty,email"`
	SupervisingOfficerEmail string `json:"supervisingOfficerEmail,omitempty" validate:"omitempty,email"`
	ApprovalOfficerEmail    string `json:"approvalOfficerEmail,omitempty" validate:"omitempty,email"`
	HalfDayPeriod           string `json:"halfDayPeriod,omitempty" validate:"omitempty,oneof=MORNING EVENING"`
	ShortLeaveStartTime     string `json:"shortLeaveStartTime,omitempty" validate:"omitempty,datetime=15:04"`
	ShortLeaveEndTime       string `json:"shortLeaveEndTime,omitempty" validate:"omitempty,datetime=15:04"`
	MaternityLeaveType      string `json:"maternityLeaveType,omitempty" validate:"omitempty,alphanum_underscore"`
	MaternityPaymentType    string `json:"maternityPaymentType,omitempty" validate:"omitempty,alphanum_underscore"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !(r == '_' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
		return true
	})
	v.RegisterStructValidation(submitRules, SubmitRequest{})
	return v
}

// submitRules holds the checks that depend on the leave type.
func submitRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(SubmitRequest)
	switch domain.LeaveType(r.LeaveType) {
	case domain.LeaveHalfDay:
		if r.HalfDayPeriod == "" {
			sl.ReportError(r.HalfDayPeriod, "halfDayPeriod", "HalfDayPeriod", "required", "")
		}
	case domain.LeaveShort:
		if r.ShortLeaveStartTime == "" {
			sl.ReportError(r.ShortLeaveStartTime, "shortLeaveStartTime", "ShortLeaveStartTime", "required", "")
		}
		if r.ShortLeaveEndTime == "" {
			sl.ReportError(r.ShortLeaveEndTime, "shortLeaveEndTime", "ShortLeaveEndTime", "required", "")
		}
		if s, e, ok := clockPair(r.ShortLeaveStartTime, r.ShortLeaveEndTime); ok && !e.After(s) {
			sl.ReportError(r.ShortLeaveEndTime, "shortLeaveEndTime", "ShortLeaveEndTime", "after_start", "")
		}
	case domain.LeaveMaternity:
		if r.MaternityLeaveType == "" {
			sl.ReportError(r.MaternityLeaveType, "maternityLeaveType", "MaternityLeaveType", "required", "")
		}
	case domain.LeaveCasual, domain.LeaveSick, domain.LeaveDuty:
		if r.EndDate == "" {
			sl.ReportError(r.EndDate, "endDate", "EndDate", "required", "")
		}
	}
	if r.EndDate != "" {
		s, serr := time.Parse(time.DateOnly, r.StartDate)
		e, eerr := time.Parse(time.DateOnly, r.EndDate)
		if serr == nil && eerr == nil && e.Before(s) {
			sl.ReportError(r.EndDate, "endDate", "EndDate", "after_start", "")
		}
	}
}

func clockPair(a, b string) (time.Time, time.Time, bool) {
	s, err1 := time.Parse("15:04", a)
	e, err2 := time.Parse("15:04", b)
	return s, e, err1 == nil && err2 == nil
}

// Normalize upper-cases enum fields, trims input, and fills the single-day
// end date for half-day and short leave. Blank officer slots become NONE
// only in Body, so validation sees them as empty.
func (r SubmitRequest) Normalize() SubmitRequest {
	up := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	r.LeaveType = up(r.LeaveType)
	r.HalfDayPeriod = up(r.HalfDayPeriod)
	r.MaternityLeaveType = up(r.MaternityLeaveType)
	r.MaternityPaymentType = up(r.MaternityPaymentType)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	r.Reason = strings.TrimSpace(r.Reason)
	r.ShortLeaveStartTime = clockHM(r.ShortLeaveStartTime)
	r.ShortLeaveEndTime = clockHM(r.ShortLeaveEndTime)
	for _, p := range []*string{&r.ActingOfficerEmail, &r.SupervisingOfficerEmail, &r.ApprovalOfficerEmail} {
		*p = strings.TrimSpace(*p)
		if strings.EqualFold(*p, domain.UnassignedEmail) {
			*p = ""
		}
	}
	switch domain.LeaveType(r.LeaveType) {
	case domain.LeaveHalfDay, domain.LeaveShort:
		if r.EndDate == "" {
			r.EndDate = r.StartDate
		}
	}
	return r
}

// clockHM drops a seconds suffix so "09:30:00" validates as "09:30".
func clockHM(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == len("15:04:05") && strings.Count(s, ":") == 2 {
		return s[:5]
	}
	return s
}

// Validate runs the local form checks.
func (r SubmitRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "datetime":
		if fe.Param() == "15:04" {
			return fmt.Sprintf("%s must be a time (HH:MM)", fe.Field())
		}
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be an email address", fe.Field())
	case "after_start":
		return fmt.Sprintf("%s must not be before the start", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// Body converts r to the backend payload. Empty officer slots are sent as NONE.
func (r SubmitRequest) Body() leavedesksdk.SubmitBody {
	orNone := func(s string) string {
		if s == "" {
			return domain.UnassignedEmail
		}
		return s
	}
	return leavedesksdk.SubmitBody{
		LeaveType:               r.LeaveType,
		StartDate:               r.StartDate,
		EndDate:                 r.EndDate,
		Reason:                  r.Reason,
		ActingOfficerEmail:      orNone(r.ActingOfficerEmail),
		SupervisingOfficerEmail: orNone(r.SupervisingOfficerEmail),
		ApprovalOfficerEmail:    orNone(r.ApprovalOfficerEmail),
		HalfDayPeriod:           r.HalfDayPeriod,
		ShortLeaveStartTime:     r.ShortLeaveStartTime,
		ShortLeaveEndTime:       r.ShortLeaveEndTime,
		MaternityLeaveType:      r.MaternityLeaveType,
		MaternityPaymentType:    r.MaternityPaymentType,
	}
}

// Submit validates locally, then with the backend, and only then files the
// request. A backend verdict of invalid stops before submission.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (Outcome, error) {
	if err := session.Require(e.Session); err != nil {
		return Outcome{}, err
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	if !e.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer e.busy.Unlock()

	body := req.Body()
	verdict, err := e.Client.Validate(ctx, body)
	if err != nil {
		return Outcome{}, e.failure(ctx, err)
	}
	if !verdict.Valid {
		msg := strings.TrimSpace(verdict.Message)
		if msg == "" {
			msg = "Leave request is not valid"
		}
		return Outcome{}, &ValidationError{Message: msg}
	}
	resp, err := e.Client.Submit(ctx, body)
	if err != nil {
		return Outcome{}, e.failure(ctx, err)
	}
	out := Outcome{Message: "Leave request submitted successfully"}
	if rec, ok := decodeRecord(resp); ok {
		l := domain.FromRecord(rec)
		out.Leave, out.LeaveID = &l, l.ID
	} else if txt := strings.TrimSpace(resp.Text); txt != "" && !resp.JSON {
		out.Message = txt
	}
	e.publish(ctx, events.Event{
		Type:    events.LeaveSubmitted,
		LeaveID: string(out.LeaveID),
		Action:  req.LeaveType,
		Message: out.Message,
	})
	return out, nil
}
