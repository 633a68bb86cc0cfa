package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is an opaque server-assigned identifier. The backend sends numbers for
// some deployments and strings for others.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// LeaveRecord is the leave request exactly as the backend serializes it.
type LeaveRecord struct {
	ID                   ID     `json:"id"`
	EmployeeName         string `json:"employeeName,omitempty"`
	EmployeeEmail        string `json:"employeeEmail,omitempty"`
	LeaveType            string `json:"leaveType"`
	StartDate            string `json:"startDate,omitempty"`
	EndDate              string `json:"endDate,omitempty"`
	HalfDayPeriod        string `json:"halfDayPeriod,omitempty"`
	ShortLeaveStartTime  string `json:"shortLeaveStartTime,omitempty"`
	ShortLeaveEndTime    string `json:"shortLeaveEndTime,omitempty"`
	MaternityLeaveType   string `json:"maternityLeaveType,omitempty"`
	MaternityPaymentType string `json:"maternityPaymentType,omitempty"`
	Status               string `json:"status"`
	IsCancelled          bool   `json:"isCancelled,omitempty"`
	Reason               string `json:"reason,omitempty"`
	Comments             string `json:"comments,omitempty"`

	ActingOfficerEmail      string `json:"actingOfficerEmail,omitempty"`
	ActingOfficerName       string `json:"actingOfficerName,omitempty"`
	ActingOfficerStatus     string `json:"actingOfficerStatus,omitempty"`
	ActingOfficerApprovedAt string `json:"actingOfficerApprovedAt,omitempty"`

	SupervisingOfficerEmail      string `json:"supervisingOfficerEmail,omitempty"`
	SupervisingOfficerName       string `json:"supervisingOfficerName,omitempty"`
	SupervisingOfficerStatus     string `json:"supervisingOfficerStatus,omitempty"`
	SupervisingOfficerApprovedAt string `json:"supervisingOfficerApprovedAt,omitempty"`

	ApprovalOfficerEmail      string `json:"approvalOfficerEmail,omitempty"`
	ApprovalOfficerName       string `json:"approvalOfficerName,omitempty"`
	ApprovalOfficerStatus     string `json:"approvalOfficerStatus,omitempty"`
	ApprovalOfficerApprovedAt string `json:"approvalOfficerApprovedAt,omitempty"`

	ReceivedDate  string `json:"receivedDate,omitempty"`
	RequestDate   string `json:"requestDate,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	DateSubmitted string `json:"dateSubmitted,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

type User struct {
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Gender        string   `json:"gender,omitempty"`
	MaritalStatus string   `json:"maritalStatus,omitempty"`
	Designation   string   `json:"designation,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// Profile is the part of a user the chain renderer needs for honorifics.
type Profile struct {
	Gender        string `json:"gender,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
}

// Honorific returns Mr./Mrs./Miss or "" when the profile is unknown.
func (p Profile) Honorific() string {
	switch strings.ToUpper(strings.TrimSpace(p.Gender)) {
	case "MALE", "M":
		return "Mr."
	case "FEMALE", "F":
		if strings.EqualFold(strings.TrimSpace(p.MaritalStatus), "MARRIED") {
			return "Mrs."
		}
		return "Miss"
	}
	return ""
}

type Entitlement struct {
	LeaveType string  `json:"leaveType"`
	Total     float64 `json:"totalDays"`
	Used      float64 `json:"usedDays"`
	Remaining float64 `json:"remainingDays"`
}

type ShortLeaveEntitlement struct {
	Year      int `json:"year,omitempty"`
	Month     int `json:"month,omitempty"`
	Total     int `json:"totalAllowed"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

type DashboardCounts struct {
	Acting      int `json:"actingPending"`
	Supervising int `json:"supervisingPending"`
	Approval    int `json:"approvalPending"`
	Total       int `json:"totalPending"`
}

type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type LoginResult struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}
