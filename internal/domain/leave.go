package domain

import (
	"fmt"
	"strings"
	"time"
)

type LeaveType string

const (
	LeaveCasual    LeaveType = "CASUAL"
	LeaveSick      LeaveType = "SICK"
	LeaveDuty      LeaveType = "DUTY"
	LeaveMaternity LeaveType = "MATERNITY"
	LeaveShort     LeaveType = "SHORT"
	LeaveHalfDay   LeaveType = "HALF_DAY"
)

// UnassignedEmail is the sentinel the backend uses for an intentionally empty slot.
const UnassignedEmail = "NONE"

// Slot is one officer position on the approval chain.
type Slot struct {
	Role       Role       `json:"role"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	Status     SlotStatus `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// Assigned reports whether an officer email is present and not the sentinel.
func (s Slot) Assigned() bool {
	e := strings.TrimSpace(s.Email)
	return e != "" && !strings.EqualFold(e, UnassignedEmail)
}

// HasOfficer additionally requires a display name.
func (s Slot) HasOfficer() bool {
	return s.Assigned() && strings.TrimSpace(s.Name) != ""
}

// Details carries the fields specific to one kind of leave.
type Details interface {
	Kind() LeaveType
	isDetails()
}

type StandardLeave struct {
	Type LeaveType `json:"type"`
}

type HalfDayLeave struct {
	Period string `json:"period,omitempty"`
}

type ShortLeave struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type MaternityLeave struct {
	Category string `json:"category,omitempty"`
	Payment  string `json:"payment,omitempty"`
}

func (d StandardLeave) Kind() LeaveType { return d.Type }
func (HalfDayLeave) Kind() LeaveType    { return LeaveHalfDay }
func (ShortLeave) Kind() LeaveType      { return LeaveShort }
func (MaternityLeave) Kind() LeaveType  { return LeaveMaternity }

func (StandardLeave) isDetails()  {}
func (HalfDayLeave) isDetails()   {}
func (ShortLeave) isDetails()     {}
func (MaternityLeave) isDetails() {}

// Leave is the canonical, client-side view of a leave request.
type Leave struct {
	ID            ID         `json:"id"`
	EmployeeName  string     `json:"employeeName,omitempty"`
	EmployeeEmail string     `json:"employeeEmail,omitempty"`
	Type          LeaveType  `json:"leaveType"`
	Details       Details    `json:"details"`
	Start         *time.Time `json:"startDate,omitempty"`
	End           *time.Time `json:"endDate,omitempty"`
	Status        Status     `json:"status"`
	RawStatus     string     `json:"rawStatus"`
	Slots         [3]Slot    `json:"slots"`
	Reason        string     `json:"reason,omitempty"`
	Comments      string     `json:"comments,omitempty"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Slot returns the officer slot for r.
func (l Leave) Slot(r Role) Slot {
	for _, s := range l.Slots {
		if s.Role == r {
			return s
		}
	}
	return Slot{Role: r, Status: SlotNotAssigned}
}

func (l Leave) Cancelled() bool { return l.Status.IsCancelled() }

// FromRecord converts a backend record into a Leave, deriving the canonical
// status once. Malformed dates are dropped rather than reported.
func FromRecord(rec LeaveRecord) Leave {
	slots := [3]Slot{
		newSlot(RoleActing, rec.ActingOfficerEmail, rec.ActingOfficerName, rec.ActingOfficerStatus, rec.ActingOfficerApprovedAt),
		newSlot(RoleSupervising, rec.SupervisingOfficerEmail, rec.SupervisingOfficerName, rec.SupervisingOfficerStatus, rec.SupervisingOfficerApprovedAt),
		newSlot(RoleApproval, rec.ApprovalOfficerEmail, rec.ApprovalOfficerName, rec.ApprovalOfficerStatus, rec.ApprovalOfficerApprovedAt),
	}
	lt := LeaveType(strings.ToUpper(strings.TrimSpace(rec.LeaveType)))
	return Leave{
		ID:            rec.ID,
		EmployeeName:  rec.EmployeeName,
		EmployeeEmail: rec.EmployeeEmail,
		Type:          lt,
		Details:       detailsFor(lt, rec),
		Start:         ParseTime(rec.StartDate),
		End:           ParseTime(rec.EndDate),
		Status:        CanonicalStatus(rec.Status, rec.IsCancelled, slots),
		RawStatus:     rec.Status,
		Slots:         slots,
		Reason:        rec.Reason,
		Comments:      rec.Comments,
		ReceivedAt:    firstTime(rec.ReceivedDate, rec.RequestDate, rec.CreatedAt, rec.DateSubmitted),
		UpdatedAt:     ParseTime(rec.UpdatedAt),
	}
}

// FromRecords converts a page of records.
func FromRecords(recs []LeaveRecord) []Leave {
	out := make([]Leave, 0, len(recs))
	for _, r := range recs {
		out = append(out, FromRecord(r))
	}
	return out
}

func newSlot(role Role, email, name, status, approvedAt string) Slot {
	s := Slot{
		Role:       role,
		Email:      strings.TrimSpace(email),
		Name:       strings.TrimSpace(name),
		Status:     SlotStatus(strings.ToUpper(strings.TrimSpace(status))),
		ApprovedAt: ParseTime(approvedAt),
	}
	if !s.Assigned() {
		s.Status = SlotNotAssigned
	}
	return s
}

func detailsFor(lt LeaveType, rec LeaveRecord) Details {
	switch lt {
	case LeaveHalfDay:
		return HalfDayLeave{Period: strings.ToUpper(strings.TrimSpace(rec.HalfDayPeriod))}
	case LeaveShort:
		return ShortLeave{Start: rec.ShortLeaveStartTime, End: rec.ShortLeaveEndTime}
	case LeaveMaternity:
		return MaternityLeave{Category: rec.MaternityLeaveType, Payment: rec.MaternityPaymentType}
	}
	return StandardLeave{Type: lt}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the backend emits. Empty or
// unparseable values yield nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstTime(values ...string) *time.Time {
	for _, v := range values {
		if t := ParseTime(v); t != nil {
			return t
		}
	}
	return nil
}

// DayCount is the inclusive number of calendar days the leave spans. ok is
// false when either date is missing.
func DayCount(l Leave) (int, bool) {
	if l.Start == nil || l.End == nil {
		return 0, false
	}
	start := dateOnly(*l.Start)
	end := dateOnly(*l.End)
	return int(end.Sub(start).Hours()/24) + 1, true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Duration renders how long a leave lasts for list views.
func Duration(l Leave) string {
	switch d := l.Details.(type) {
	case HalfDayLeave:
		if d.Period == "" {
			return "Half day"
		}
		return fmt.Sprintf("Half day (%s)", d.Period)
	case ShortLeave:
		return shortDuration(d)
	}
	if l.End == nil {
		return "Pending end date from admin"
	}
	if l.Start == nil {
		return "-"
	}
	n, _ := DayCount(l)
	switch {
	case n < 1:
		return "Invalid date range"
	case n == 1:
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func shortDuration(d ShortLeave) string {
	start, okStart := parseClock(d.Start)
	end, okEnd := parseClock(d.End)
	if !okStart || !okEnd {
		return "Short leave"
	}
	span := fmt.Sprintf("%s - %s", start.Format("15:04"), end.Format("15:04"))
	mins := int(end.Sub(start).Minutes())
	if mins <= 0 {
		return span
	}
	if mins%60 == 0 {
		return fmt.Sprintf("%s (%dh)", span, mins/60)
	}
	if mins < 60 {
		return fmt.Sprintf("%s (%dm)", span, mins)
	}
	return fmt.Sprintf("%s (%dh %dm)", span, mins/60, mins%60)
}

func parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
