// Package roster exposes the course offerings, enrollments and teams this module reads but does not own.
package roster

import (
	"context"
	"time"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

type CourseRole string

const (
	CourseRoleStudent  CourseRole = "student"
	CourseRoleTA       CourseRole = "ta"
	CourseRoleTutor    CourseRole = "tutor"
	CourseRoleTeamLead CourseRole = "team-lead"
)

type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentWaitlisted EnrollmentStatus = "waitlisted"
	EnrollmentDropped    EnrollmentStatus = "dropped"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

type MemberRole string

const (
	MemberRoleLeader MemberRole = "leader"
	MemberRoleMember MemberRole = "member"
)

var (
	ErrOfferingNotFound   = core.NewError(core.KindNotFound, "course offering not found")
	ErrNoActiveOffering   = core.NewError(core.KindNotFound, "no active course offering")
	ErrTeamNotFound       = core.NewError(core.KindNotFound, "team not found")
	ErrEnrollmentNotFound = core.NewError(core.KindNotFound, "enrollment not found")
)

type (
	Offering struct {
		ID           string `json:"id"`
		Code         string `json:"code"`
		Name         string `json:"name"`
		InstructorID string `json:"instructor_id"`
		Timezone     string `json:"timezone"`
		IsActive     bool   `json:"is_active"`
	}

	Enrollment struct {
		OfferingID string           `json:"offering_id"`
		UserID     string           `json:"user_id"`
		CourseRole CourseRole       `json:"course_role"`
		Status     EnrollmentStatus `json:"status"`
	}

	Team struct {
		ID         string   `json:"id"`
		OfferingID string   `json:"offering_id"`
		Name       string   `json:"name"`
		LeaderID   string   `json:"leader_id,omitempty"` // direct reference, may be empty
		LeaderIDs  []string `json:"leader_ids"`          // denormalized, may drift from memberships
	}

	TeamMember struct {
		TeamID   string     `json:"team_id"`
		UserID   string     `json:"user_id"`
		Role     MemberRole `json:"role"`
		JoinedAt time.Time  `json:"joined_at"`
		LeftAt   *time.Time `json:"left_at"`
	}

	// Student is an attendance-eligible enrollee.
	Student struct {
		UserID string `json:"user_id" db:"user_id"`
		Name   string `json:"name" db:"name"`
		Email  string `json:"email" db:"email"`
	}

	Repository interface {
		GetActiveOffering(ctx context.Context, exec ...core.DBExecutor) (Offering, error)
		GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (Offering, error)
		GetEnrollment(ctx context.Context, offeringID, userID string, exec ...core.DBExecutor) (Enrollment, error)
		// ListEligibleStudents returns enrolled students of the offering ordered by name.
		ListEligibleStudents(ctx context.Context, offeringID string, exec ...core.DBExecutor) ([]Student, error)
		CountEligibleStudents(ctx context.Context, offeringID string, exec ...core.DBExecutor) (int, error)
		GetTeam(ctx context.Context, id string, exec ...core.DBExecutor) (Team, error)
		// ListTeamMembers returns every membership row of the team, departed members included.
		ListTeamMembers(ctx context.Context, teamID string, exec ...core.DBExecutor) ([]TeamMember, error)
		SetTeamLeaders(ctx context.Context, teamID string, leaderIDs []string, exec ...core.DBExecutor) error
	}

	// Store is the writable roster, used to provision offerings from the admin CLI and fixtures.
	Store interface {
		Repository
		CreateOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) error
		Enroll(ctx context.Context, e Enrollment, exec ...core.DBExecutor) error
		CreateTeam(ctx context.Context, t Team, exec ...core.DBExecutor) error
		AddTeamMember(ctx context.Context, m TeamMember, exec ...core.DBExecutor) error
		// LeaveTeam stamps left_at on the active membership of the user.
		LeaveTeam(ctx context.Context, teamID, userID string, at time.Time, exec ...core.DBExecutor) error
	}
)

// Eligible reports whether the enrollee counts for attendance.
func (e Enrollment) Eligible() bool {
	return e.Status == EnrollmentEnrolled && e.CourseRole == CourseRoleStudent
}

// Location returns the offering's timezone, falling back to `fallback`.
func (o Offering) Location(fallback *time.Location) *time.Location {
	if o.Timezone != "" {
		if loc, err := time.LoadLocation(o.Timezone); err == nil {
			return loc
		}
	}
	return fallback
}

// LiveLeaders derives the current leaders of a team from its membership rows.
// The direct leader reference counts unless that user's membership shows they left.
func LiveLeaders(team Team, members []TeamMember) []string {
	leaders := make([]string, 0, 2)
	active := make(map[string]bool)
	departed := make(map[string]bool)
	for _, m := range members {
		if m.LeftAt != nil {
			departed[m.UserID] = true
			continue
		}
		active[m.UserID] = true
		if m.Role == MemberRoleLeader && !core.Contains(leaders, m.UserID) {
			leaders = append(leaders, m.UserID)
		}
	}
	direct := team.LeaderID
	if direct != "" && (active[direct] || !departed[direct]) && !core.Contains(leaders, direct) {
		leaders = append(leaders, direct)
	}
	return leaders
}

// SameLeaders reports whether a and b hold the same user ids regardless of order.
func SameLeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !core.Contains(b, id) {
			return false
		}
	}
	return true
}
