package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

var (
	statusTag  = "attstatus"
	statusText = "{0} must be one of present, absent, late or excused"
)

func init() {
	_ = core.Validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(core.Validate, core.Translator, statusTag, statusText)
}

type Attendance struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	Status         Status     `json:"status"`
	CheckedInAt    *time.Time `json:"checked_in_at"`
	AccessCodeUsed string     `json:"access_code_used,omitempty"`
	MarkedBy       string     `json:"marked_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CheckIn is what a student submits to record their own attendance.
type CheckIn struct {
	AccessCode string            `json:"access_code" validate:"required"`
	Responses  []question.Answer `json:"responses" validate:"omitempty,dive"`
}

// Mark is a manual attendance record set by staff or a team leader.
type Mark struct {
	SessionID string `json:"session_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	Status    Status `json:"status" validate:"required,attstatus"`
}

type UpdateAttendance struct {
	Status Status `json:"status" validate:"required,attstatus"`
}

// ImportRecord identifies a user by email or institutional id.
type ImportRecord struct {
	Email           string `json:"email"`
	InstitutionalID string `json:"institutional_id"`
	Status          Status `json:"status"`
}

type BulkImport struct {
	Attendance []ImportRecord `json:"attendance" validate:"required,min=1"`
}

type ImportResult struct {
	Index           int    `json:"index"`
	Email           string `json:"email,omitempty"`
	InstitutionalID string `json:"institutional_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Status          Status `json:"status,omitempty"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}

type ImportReport struct {
	SessionID string         `json:"session_id"`
	Imported  int            `json:"imported"`
	Failed    int            `json:"failed"`
	Results   []ImportResult `json:"results"`
}

type GetFilter struct {
	ID        string
	SessionID string
	UserID    string
}

type QueryFilter struct {
	SessionID  string
	UserID     string
	OfferingID string
}
