package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	testutil "github.com/Team04-UCSD-CSE210/conductor-app-sub001/tests"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewDummyApp()
	c := app.CreateCourse(t, "UTC", 3)
	admin := app.CreateUser(t, "Root", "root@ucsd.edu", "", "", user.RoleAdmin)
	teamB := app.CreateTeam(t, c.Offering.ID, "Team Two", c.Students[1].ID)
	app.AddMember(t, teamB.ID, c.Students[1].ID, roster.MemberRoleLeader)
	app.Grant(t, c.Students[2].ID, authz.CapAttendanceMark, c.Offering.ID, teamB.ID)

	tests := []struct {
		name     string
		usr      user.User
		target   authz.Target
		wantRole authz.Role
		wantCaps []authz.Capability
	}{
		{name: "offering instructor", usr: c.Instructor, target: authz.Target{OfferingID: c.Offering.ID}, wantRole: authz.RoleInstructor},
		{name: "admin", usr: admin, target: authz.Target{OfferingID: c.Offering.ID}, wantRole: authz.RoleInstructor},
		{name: "leader of the team", usr: c.Leader, target: authz.Target{OfferingID: c.Offering.ID, TeamID: c.Team.ID}, wantRole: authz.RoleTeamLeader},
		{name: "leader of another team", usr: c.Leader, target: authz.Target{OfferingID: c.Offering.ID, TeamID: teamB.ID}, wantRole: authz.RoleStudent},
		{name: "team grant in scope", usr: c.Students[2], target: authz.Target{OfferingID: c.Offering.ID, TeamID: teamB.ID},
			wantRole: authz.RoleStudent, wantCaps: []authz.Capability{authz.CapAttendanceMark}},
		{name: "team grant out of scope", usr: c.Students[2], target: authz.Target{OfferingID: c.Offering.ID}, wantRole: authz.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := app.Gate.Resolve(ctx, authz.NewPrincipal(tt.usr), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, actor.Role)
			for _, c := range authz.AllCapabilities {
				wanted := false
				for _, w := range tt.wantCaps {
					wanted = wanted || w == c
				}
				assert.Equal(t, wanted, actor.Can(c), "capability %s", c)
			}
		})
	}
}

func TestResolver_Authorize(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewDummyApp()
	c := app.CreateCourse(t, "UTC", 2)
	teamB := app.CreateTeam(t, c.Offering.ID, "Team Two", c.Students[1].ID)
	app.AddMember(t, teamB.ID, c.Students[1].ID, roster.MemberRoleLeader)

	leaderA := authz.NewPrincipal(c.Leader)
	teamBSession := authz.Target{OfferingID: c.Offering.ID, TeamID: teamB.ID, CreatedBy: c.Students[1].ID}

	d, err := app.Gate.Authorize(ctx, leaderA, teamBSession, authz.ActionOperateSession)
	assert.Equal(t, authz.ErrForbidden, err)
	assert.True(t, core.IsKind(err, core.KindForbidden))
	assert.False(t, d.Allowed)

	_, err = app.Gate.Authorize(ctx, leaderA, authz.Target{OfferingID: c.Offering.ID, TeamID: c.Team.ID}, authz.ActionCreateSession)
	assert.NoError(t, err)

	_, err = app.Gate.Authorize(ctx, leaderA, authz.Target{OfferingID: "nope"}, authz.ActionViewAttendance)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestResolver_resyncsLeaders(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewDummyApp()
	c := app.CreateCourse(t, "UTC", 3)
	promoted := c.Students[1]
	app.AddMember(t, c.Team.ID, promoted.ID, roster.MemberRoleLeader)

	target := authz.Target{OfferingID: c.Offering.ID, TeamID: c.Team.ID}
	actor, err := app.Gate.Resolve(ctx, authz.NewPrincipal(promoted), target)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleTeamLeader, actor.Role)

	team, err := app.Roster.GetTeam(ctx, c.Team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c.Leader.ID, promoted.ID}, team.LeaderIDs)

	// the first leader leaves: the direct reference no longer counts
	require.NoError(t, app.Roster.LeaveTeam(ctx, c.Team.ID, c.Leader.ID, core.NowFunc()))
	actor, err = app.Gate.Resolve(ctx, authz.NewPrincipal(c.Leader), target)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleStudent, actor.Role)

	team, err = app.Roster.GetTeam(ctx, c.Team.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{promoted.ID}, team.LeaderIDs)
}
