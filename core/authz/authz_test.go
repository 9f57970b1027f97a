package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	const (
		offering = "offering"
		teamA    = "team-a"
		teamB    = "team-b"
	)
	student := Actor{UserID: "s1"}
	leaderA := Actor{UserID: "l1", Role: RoleTeamLeader, LedTeams: []string{teamA}}
	instructor := Actor{UserID: "i1", Role: RoleInstructor}
	manager := Actor{UserID: "m1", Capabilities: map[Capability]bool{CapSessionManage: true}}
	marker := Actor{UserID: "t1", Capabilities: map[Capability]bool{CapAttendanceMark: true}}

	courseWide := Target{OfferingID: offering}
	teamASession := Target{OfferingID: offering, TeamID: teamA, CreatedBy: "l1"}
	teamBSession := Target{OfferingID: offering, TeamID: teamB, CreatedBy: "l2"}
	ownCourseWide := Target{OfferingID: offering, CreatedBy: "s1"}

	tests := []struct {
		name   string
		actor  Actor
		target Target
		action Action
		want   bool
	}{
		{name: "instructor creates course-wide", actor: instructor, target: courseWide, action: ActionCreateSession, want: true},
		{name: "instructor deletes attendance", actor: instructor, target: teamBSession, action: ActionDeleteAttendance, want: true},
		{name: "student creates course-wide", actor: student, target: courseWide, action: ActionCreateSession},
		{name: "leader creates course-wide", actor: leaderA, target: courseWide, action: ActionCreateSession},
		{name: "manager creates course-wide", actor: manager, target: courseWide, action: ActionCreateSession, want: true},
		{name: "leader creates for own team", actor: leaderA, target: Target{OfferingID: offering, TeamID: teamA}, action: ActionCreateSession, want: true},
		{name: "leader creates for other team", actor: leaderA, target: Target{OfferingID: offering, TeamID: teamB}, action: ActionCreateSession},
		{name: "student creates team session", actor: student, target: Target{OfferingID: offering, TeamID: teamA}, action: ActionCreateSession},
		{name: "leader opens own team session", actor: leaderA, target: teamASession, action: ActionOperateSession, want: true},
		{name: "leader opens other team session", actor: leaderA, target: teamBSession, action: ActionOperateSession},
		{name: "leader opens course-wide", actor: leaderA, target: courseWide, action: ActionOperateSession},
		{name: "creator operates own session", actor: student, target: ownCourseWide, action: ActionOperateSession, want: true},
		{name: "marker operates course-wide", actor: marker, target: courseWide, action: ActionOperateSession, want: true},
		{name: "student operates course-wide", actor: student, target: courseWide, action: ActionOperateSession},
		{name: "creator edits own session", actor: leaderA, target: teamASession, action: ActionEditSession, want: true},
		{name: "leader edits session of teammate", actor: leaderA, target: Target{OfferingID: offering, TeamID: teamA, CreatedBy: "x"}, action: ActionEditSession},
		{name: "manager edits any session", actor: manager, target: teamBSession, action: ActionEditSession, want: true},
		{name: "leader marks own team", actor: leaderA, target: teamASession, action: ActionMarkAttendance, want: true},
		{name: "leader marks other team", actor: leaderA, target: teamBSession, action: ActionMarkAttendance},
		{name: "marker marks course-wide", actor: marker, target: courseWide, action: ActionMarkAttendance, want: true},
		{name: "student marks", actor: student, target: courseWide, action: ActionMarkAttendance},
		{name: "leader views own team", actor: leaderA, target: teamASession, action: ActionViewAttendance, want: true},
		{name: "leader views other team", actor: leaderA, target: teamBSession, action: ActionViewAttendance},
		{name: "student views", actor: student, target: courseWide, action: ActionViewAttendance},
		{name: "manager views", actor: manager, target: courseWide, action: ActionViewAttendance, want: true},
		{name: "leader deletes attendance", actor: leaderA, target: teamASession, action: ActionDeleteAttendance},
		{name: "marker deletes attendance", actor: marker, target: courseWide, action: ActionDeleteAttendance},
		{name: "unknown action", actor: manager, target: courseWide, action: Action("session.explode")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.actor, tt.target, tt.action)
			assert.Equal(t, tt.want, d.Allowed, "reason: %s", d.Reason)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "student", RoleStudent.String())
	assert.Equal(t, "team leader", RoleTeamLeader.String())
	assert.Equal(t, "instructor", RoleInstructor.String())
}
