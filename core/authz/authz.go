// Package authz decides whether an actor may act on a session or its attendance.
//
// Decide is pure: it only looks at the Actor and Target it is given.
// The Resolver builds Actors from storage, re-deriving team leadership on every call.
package authz

import (
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

type Action string

const (
	ActionCreateSession    Action = "session.create"
	ActionOperateSession   Action = "session.operate" // open, close, regenerate code
	ActionEditSession      Action = "session.edit"    // update, delete
	ActionMarkAttendance   Action = "attendance.mark"
	ActionViewAttendance   Action = "attendance.view"
	ActionDeleteAttendance Action = "attendance.delete"
)

// Capability is a fine-grained permission granted outside of course roles.
type Capability string

const (
	CapSessionManage  Capability = "session.manage"
	CapAttendanceMark Capability = "attendance.mark"
)

var AllCapabilities = []Capability{CapSessionManage, CapAttendanceMark}

var ErrForbidden = core.NewError(core.KindForbidden, "you do not have permission to perform this action")

type Role int

const (
	RoleStudent Role = iota
	RoleTeamLeader
	RoleInstructor
)

func (r Role) String() string {
	switch r {
	case RoleInstructor:
		return "instructor"
	case RoleTeamLeader:
		return "team leader"
	}
	return "student"
}

type (
	// Principal is the authenticated identity attached to a request.
	Principal struct {
		ID    string
		Roles []string
	}

	// Actor is a Principal resolved against one offering (and team).
	Actor struct {
		UserID       string
		Role         Role
		LedTeams     []string
		Capabilities map[Capability]bool
	}

	Target struct {
		OfferingID string
		TeamID     string // empty for course-wide sessions
		CreatedBy  string // empty when no session exists yet
	}

	Decision struct {
		Allowed bool
		Reason  string
	}
)

func NewPrincipal(usr user.User) Principal {
	return Principal{ID: usr.ID, Roles: usr.Roles}
}

func (a Actor) Can(c Capability) bool {
	return a.Capabilities[c]
}

func (a Actor) Leads(teamID string) bool {
	return teamID != "" && core.Contains(a.LedTeams, teamID)
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Decide approves or denies `action` by `actor` on `target`.
func Decide(actor Actor, target Target, action Action) Decision {
	if actor.Role == RoleInstructor {
		return allow("instructor of the offering")
	}
	courseWide := target.TeamID == ""
	isCreator := target.CreatedBy != "" && target.CreatedBy == actor.UserID
	leads := actor.Leads(target.TeamID)

	switch action {
	case ActionCreateSession:
		if courseWide {
			if actor.Can(CapSessionManage) {
				return allow("holds session.manage")
			}
			return deny("course-wide sessions are managed by instructors only")
		}
		if leads {
			return allow("leader of the session's team")
		}
		if actor.Can(CapSessionManage) {
			return allow("holds session.manage")
		}
		return deny("not a leader of this team")

	case ActionOperateSession:
		if isCreator {
			return allow("creator of the session")
		}
		if !courseWide && leads {
			return allow("leader of the session's team")
		}
		if actor.Can(CapSessionManage) {
			return allow("holds session.manage")
		}
		if actor.Can(CapAttendanceMark) {
			return allow("holds attendance.mark")
		}
		if courseWide {
			return deny("course-wide sessions are managed by instructors only")
		}
		return deny("not a leader of this team")

	case ActionEditSession:
		if isCreator {
			return allow("creator of the session")
		}
		if actor.Can(CapSessionManage) {
			return allow("holds session.manage")
		}
		return deny("only the creator may change this session")

	case ActionMarkAttendance:
		if actor.Can(CapAttendanceMark) {
			return allow("holds attendance.mark")
		}
		if leads {
			return allow("leader of the session's team")
		}
		return deny("not allowed to mark attendance for this session")

	case ActionViewAttendance:
		if isCreator || leads {
			return allow("runs this session")
		}
		if actor.Can(CapAttendanceMark) || actor.Can(CapSessionManage) {
			return allow("holds an attendance capability")
		}
		return deny("not allowed to view attendance for this session")

	case ActionDeleteAttendance:
		return deny("attendance records are deleted by instructors only")
	}
	return deny("unknown action")
}
