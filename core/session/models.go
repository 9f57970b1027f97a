package session

import (
	"time"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
)

type State string

const (
	StateDraft  State = "draft"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

type Session struct {
	ID                 string     `json:"id"`
	OfferingID         string     `json:"offering_id"`
	TeamID             string     `json:"team_id,omitempty"` // empty for course-wide sessions
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	SessionDate        string     `json:"session_date"` // YYYY-MM-DD in the course timezone
	SessionTime        string     `json:"session_time"` // HH:MM in the course timezone
	StartsAt           time.Time  `json:"starts_at"`    // UTC
	EndsAt             *time.Time `json:"ends_at"`
	AccessCode         string     `json:"access_code"`
	CodeExpiresAt      time.Time  `json:"code_expires_at"`
	AttendanceOpenedAt *time.Time `json:"attendance_opened_at"`
	AttendanceOpenedBy string     `json:"attendance_opened_by,omitempty"`
	AttendanceClosedAt *time.Time `json:"attendance_closed_at"`
	AttendanceClosedBy string     `json:"attendance_closed_by,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"-"`
}

func (s Session) State() State {
	switch {
	case s.AttendanceClosedAt != nil:
		return StateClosed
	case s.AttendanceOpenedAt != nil:
		return StateOpen
	}
	return StateDraft
}

func (s Session) CodeExpired(now time.Time) bool {
	return !now.Before(s.CodeExpiresAt)
}

// Opener returns who the lazy opening is attributed to.
func (s Session) Opener() string {
	if s.CreatedBy != "" {
		return s.CreatedBy
	}
	return core.SystemActor
}

// OpenDecision is the outcome of evaluating the lazy auto-open rule.
type OpenDecision struct {
	Open   bool
	At     time.Time
	By     string
	Reason string
}

// DecideAutoOpen tells whether a Draft session whose start has passed must open now.
func DecideAutoOpen(now time.Time, s Session) OpenDecision {
	switch {
	case s.DeletedAt != nil:
		return OpenDecision{Reason: "deleted"}
	case !s.IsActive:
		return OpenDecision{Reason: "inactive"}
	case s.AttendanceClosedAt != nil:
		return OpenDecision{Reason: "closed"}
	case s.AttendanceOpenedAt != nil:
		return OpenDecision{Reason: "already open"}
	case now.Before(s.StartsAt):
		return OpenDecision{Reason: "not started"}
	}
	return OpenDecision{Open: true, At: now, By: s.Opener(), Reason: "start time passed"}
}

// PublicView is what a student sees when verifying a code.
type PublicView struct {
	ID          string     `json:"id"`
	OfferingID  string     `json:"offering_id"`
	TeamID      string     `json:"team_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	State       State      `json:"state"`
	CodeExpired bool       `json:"code_expired"`

	Questions []question.Question `json:"questions"`
}

func (s Session) Public(now time.Time, qs []question.Question) PublicView {
	if qs == nil {
		qs = []question.Question{}
	}
	return PublicView{
		ID:          s.ID,
		OfferingID:  s.OfferingID,
		TeamID:      s.TeamID,
		Title:       s.Title,
		Description: s.Description,
		StartsAt:    s.StartsAt,
		EndsAt:      s.EndsAt,
		State:       s.State(),
		CodeExpired: s.CodeExpired(now),
		Questions:   qs,
	}
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	OfferingID  string                 `json:"offering_id"`
	TeamID      string                 `json:"team_id"`
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description"`
	SessionDate string                 `json:"session_date" validate:"required,date"`
	SessionTime string                 `json:"session_time" validate:"required,hhmm"`
	EndTime     string                 `json:"end_time" validate:"omitempty,hhmm"`
	Questions   []question.NewQuestion `json:"questions" validate:"omitempty,dive"`
}

func (ns *NewSession) Clean() {
	ns.OfferingID = core.CleanString(ns.OfferingID)
	ns.TeamID = core.CleanString(ns.TeamID)
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.SessionDate = core.CleanString(ns.SessionDate)
	ns.SessionTime = core.CleanString(ns.SessionTime)
	ns.EndTime = core.CleanString(ns.EndTime)
}

// UpdateSession defines what information may be provided to modify an existing Session.
// Empty fields keep their current value.
type UpdateSession struct {
	Title       string  `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	SessionDate string  `json:"session_date" validate:"omitempty,date"`
	SessionTime string  `json:"session_time" validate:"omitempty,hhmm"`
	EndTime     *string `json:"end_time"` // "" clears the end time
	IsActive    *bool   `json:"is_active"`
}

func (us *UpdateSession) Clean() {
	us.Title = core.CleanString(us.Title)
	us.SessionDate = core.CleanString(us.SessionDate)
	us.SessionTime = core.CleanString(us.SessionTime)
	if us.Description != nil {
		d := core.CleanString(*us.Description)
		us.Description = &d
	}
	if us.EndTime != nil {
		e := core.CleanString(*us.EndTime)
		us.EndTime = &e
	}
}

type GetFilter struct {
	ID         string
	AccessCode string
}

type QueryFilter struct {
	OfferingID string `query:"offering_id"`
	TeamID     string `query:"team_id"`
	// CourseWide keeps only sessions without a team.
	CourseWide      bool              `query:"course_wide"`
	IncludeInactive bool              `query:"include_inactive"`
	Ordering        []core.DBOrdering `query:"-"`
}

// CloseReport is returned by closing a session.
type CloseReport struct {
	Session      Session `json:"session"`
	MarkedAbsent int     `json:"marked_absent"`
}
