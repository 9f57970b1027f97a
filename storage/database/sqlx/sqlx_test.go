package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	testutil "github.com/Team04-UCSD-CSE210/conductor-app-sub001/tests"
)

var morning = time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)

func lecture(offeringID, clock string) session.NewSession {
	return session.NewSession{
		OfferingID:  offeringID,
		Title:       "Lecture",
		SessionDate: "2025-01-15",
		SessionTime: clock,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	testutil.PinClock(t, morning)
	app, _ := testutil.NewSQLApp(t)

	ada := app.CreateUser(t, "Ada", "ada@ucsd.edu", "A00000001", "Str0ng!Pass", user.RoleInstructor, user.RoleAdmin)

	got, err := app.Repos.Users.GetUser(ctx, user.GetFilter{Email: "ada@ucsd.edu"})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.ElementsMatch(t, []string{user.RoleInstructor, user.RoleAdmin}, got.Roles)
	assert.True(t, got.CreatedAt.Equal(morning))

	got, err = app.Repos.Users.GetUser(ctx, user.GetFilter{InstitutionalID: "A00000001"})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)

	_, err = app.Repos.Users.GetUser(ctx, user.GetFilter{ID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)

	tests := []struct {
		name, email, instID, excluded string
		want                          error
	}{
		{name: "free", email: "bob@ucsd.edu", instID: "A00000002", want: nil},
		{name: "email", email: "ada@ucsd.edu", instID: "A00000002", want: user.ErrEmailExists},
		{name: "institutional id", email: "bob@ucsd.edu", instID: "A00000001", want: user.ErrInstitutionalIDExists},
		{name: "self", email: "ada@ucsd.edu", instID: "A00000001", excluded: ada.ID, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := app.Repos.Users.CheckUniqueness(ctx, tt.email, tt.instID, tt.excluded)
			assert.Equal(t, tt.want, err)
		})
	}

	ada.Name = "Ada Lovelace"
	updated, err := app.Repos.Users.UpdateUser(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
}

func TestRosterRepository(t *testing.T) {
	ctx := context.Background()
	testutil.PinClock(t, morning)
	app, _ := testutil.NewSQLApp(t)
	c := app.CreateCourse(t, "America/Los_Angeles", 3)

	// a dropped student and a TA are not eligible
	app.Enroll(t, c.Offering.ID, c.Students[2].ID, roster.CourseRoleStudent, roster.EnrollmentDropped)
	ta := app.CreateUser(t, "Tom TA", "tom@ucsd.edu", "", "")
	app.Enroll(t, c.Offering.ID, ta.ID, roster.CourseRoleTA, roster.EnrollmentEnrolled)

	students, err := app.Roster.ListEligibleStudents(ctx, c.Offering.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Student A", students[0].Name)
	assert.Equal(t, "Student B", students[1].Name)

	n, err := app.Roster.CountEligibleStudents(ctx, c.Offering.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := app.Roster.GetActiveOffering(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Offering.ID, active.ID)
	assert.Equal(t, "America/Los_Angeles", active.Timezone)

	_, err = app.Roster.GetEnrollment(ctx, c.Offering.ID, "nope")
	assert.Equal(t, roster.ErrEnrollmentNotFound, err)

	require.NoError(t, app.Roster.SetTeamLeaders(ctx, c.Team.ID, []string{c.Leader.ID, c.Students[1].ID}))
	team, err := app.Roster.GetTeam(ctx, c.Team.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.Leader.ID, c.Students[1].ID}, team.LeaderIDs)
	assert.Equal(t, c.Leader.ID, team.LeaderID)

	assert.Equal(t, roster.ErrTeamNotFound, app.Roster.SetTeamLeaders(ctx, "nope", nil))

	require.NoError(t, app.Roster.LeaveTeam(ctx, c.Team.ID, c.Leader.ID, morning.Add(time.Hour)))
	members, err := app.Roster.ListTeamMembers(ctx, c.Team.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NotNil(t, members[0].LeftAt)
	assert.True(t, members[0].LeftAt.Equal(morning.Add(time.Hour)))
}

func TestPermissionRepository(t *testing.T) {
	ctx := context.Background()
	app, _ := testutil.NewSQLApp(t)
	c := app.CreateCourse(t, "UTC", 2)
	key := string(authz.CapAttendanceMark)
	u1, u2, o := c.Students[0].ID, c.Students[1].ID, c.Offering.ID

	require.NoError(t, app.Permissions.Grant(ctx, u1, key, o, c.Team.ID))
	require.NoError(t, app.Permissions.Grant(ctx, u1, key, o, c.Team.ID))
	require.NoError(t, app.Permissions.Grant(ctx, u2, key, o, ""))

	tests := []struct {
		name, userID, teamID string
		want                 bool
	}{
		{name: "team grant on its team", userID: u1, teamID: c.Team.ID, want: true},
		{name: "team grant on another team", userID: u1, teamID: "other", want: false},
		{name: "team grant course-wide", userID: u1, teamID: "", want: false},
		{name: "offering grant on a team", userID: u2, teamID: "other", want: true},
		{name: "offering grant course-wide", userID: u2, teamID: "", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.Permissions.HasPermission(ctx, tt.userID, key, o, tt.teamID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, app.Permissions.Revoke(ctx, u2, key, o, ""))
	got, err := app.Permissions.HasPermission(ctx, u2, key, o, "")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	testutil.PinClock(t, morning)
	app, _ := testutil.NewSQLApp(t)
	c := app.CreateCourse(t, "UTC", 2)
	instructor := authz.NewPrincipal(c.Instructor)

	first, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "10:00"), instructor)
	require.NoError(t, err)
	got, err := app.Sessions.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.AccessCode, got.AccessCode)
	assert.True(t, got.StartsAt.Equal(first.StartsAt))
	assert.True(t, got.CodeExpiresAt.Equal(first.CodeExpiresAt))
	assert.Nil(t, got.EndsAt)
	assert.Equal(t, session.StateDraft, got.State())

	t.Run("unique access code among live sessions", func(t *testing.T) {
		dup := first
		dup.ID = "dup"
		_, err := app.Repos.Sessions.CreateSession(ctx, dup)
		assert.Equal(t, session.ErrAccessCodeTaken, err)

		taken, err := app.Repos.Sessions.AccessCodeTaken(ctx, first.AccessCode)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("open and close only once", func(t *testing.T) {
		ok, err := app.Repos.Sessions.OpenAttendance(ctx, first.ID, morning, c.Instructor.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = app.Repos.Sessions.OpenAttendance(ctx, first.ID, morning.Add(time.Minute), c.Instructor.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = app.Repos.Sessions.CloseAttendance(ctx, first.ID, morning.Add(time.Hour), c.Instructor.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = app.Repos.Sessions.CloseAttendance(ctx, first.ID, morning.Add(2*time.Hour), c.Instructor.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := app.Sessions.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.AttendanceOpenedAt.Equal(morning))
		assert.True(t, got.AttendanceClosedAt.Equal(morning.Add(time.Hour)))
	})

	t.Run("close fills the opening of a draft", func(t *testing.T) {
		sess, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "11:00"), instructor)
		require.NoError(t, err)
		ok, err := app.Repos.Sessions.CloseAttendance(ctx, sess.ID, morning, c.Instructor.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		got, err := app.Sessions.Get(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got.AttendanceOpenedAt)
		assert.True(t, got.AttendanceOpenedAt.Equal(morning))
		assert.Equal(t, c.Instructor.ID, got.AttendanceOpenedBy)
	})

	t.Run("list in start order", func(t *testing.T) {
		early, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "09:30"), instructor)
		require.NoError(t, err)
		list, err := app.Sessions.ListByOffering(ctx, c.Offering.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, early.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("delete frees the code", func(t *testing.T) {
		require.NoError(t, app.Sessions.Delete(ctx, first.ID, instructor))
		_, err := app.Sessions.Get(ctx, first.ID)
		assert.Equal(t, session.ErrNotFound, err)

		taken, err := app.Repos.Sessions.AccessCodeTaken(ctx, first.AccessCode)
		require.NoError(t, err)
		assert.False(t, taken)

		reuse := first
		reuse.ID = "reuse"
		reuse.DeletedAt = nil
		_, err = app.Repos.Sessions.CreateSession(ctx, reuse)
		assert.NoError(t, err)
	})
}

func TestAttendanceRepository(t *testing.T) {
	ctx := context.Background()
	testutil.PinClock(t, morning)
	app, _ := testutil.NewSQLApp(t)
	c := app.CreateCourse(t, "UTC", 4)
	instructor := authz.NewPrincipal(c.Instructor)

	ns := lecture(c.Offering.ID, "08:55")
	ns.Questions = []question.NewQuestion{{Prompt: "One thing you learned?", Required: true}}
	sess, err := app.Sessions.Create(ctx, ns, instructor)
	require.NoError(t, err)
	require.Equal(t, session.StateOpen, sess.State())
	view, err := app.Sessions.VerifyCode(ctx, sess.AccessCode)
	require.NoError(t, err)
	require.Len(t, view.Questions, 1)
	answers := []question.Answer{{QuestionID: view.Questions[0].ID, Answer: "squirrel"}}

	t.Run("concurrent check-ins keep one row", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = app.Attendance.CheckIn(ctx, attendance.CheckIn{AccessCode: sess.AccessCode, Responses: answers}, c.Students[0].ID)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		list, err := app.Attendance.ListForSession(ctx, sess.ID, instructor)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, attendance.StatusPresent, list[0].Status)
		assert.Equal(t, sess.AccessCode, list[0].AccessCodeUsed)
	})

	t.Run("mark then check-in keeps the mark", func(t *testing.T) {
		_, err := app.Attendance.Mark(ctx, attendance.Mark{SessionID: sess.ID, UserID: c.Students[1].ID, Status: attendance.StatusExcused}, instructor)
		require.NoError(t, err)
		att, err := app.Attendance.CheckIn(ctx, attendance.CheckIn{AccessCode: sess.AccessCode, Responses: answers}, c.Students[1].ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusExcused, att.Status)
		assert.Equal(t, c.Instructor.ID, att.MarkedBy)
	})

	t.Run("absence becomes present past the grace period", func(t *testing.T) {
		_, err := app.Attendance.Mark(ctx, attendance.Mark{SessionID: sess.ID, UserID: c.Students[2].ID, Status: attendance.StatusAbsent}, instructor)
		require.NoError(t, err)
		testutil.PinClock(t, morning.Add(30*time.Minute))
		att, err := app.Attendance.CheckIn(ctx, attendance.CheckIn{AccessCode: sess.AccessCode, Responses: answers}, c.Students[2].ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusPresent, att.Status)
		assert.Equal(t, sess.AccessCode, att.AccessCodeUsed)
		require.NotNil(t, att.CheckedInAt)
		assert.True(t, att.CheckedInAt.Equal(morning.Add(30*time.Minute)))
	})

	t.Run("close fills the rest", func(t *testing.T) {
		report, err := app.Attendance.CloseSessionAndMarkAbsent(ctx, sess.ID, instructor)
		require.NoError(t, err)
		assert.Equal(t, 1, report.MarkedAbsent)

		att, err := app.Repos.Attendance.GetAttendance(ctx, attendance.GetFilter{SessionID: sess.ID, UserID: c.Students[3].ID})
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusAbsent, att.Status)
		assert.Nil(t, att.CheckedInAt)

		n, err := app.Repos.Attendance.FillAbsences(ctx, sess.ID, c.Offering.ID, core.NowFunc())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("list for user", func(t *testing.T) {
		list, err := app.Attendance.ListForUser(ctx, c.Offering.ID, c.Students[3].ID, authz.NewPrincipal(c.Students[3]))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, sess.ID, list[0].SessionID)
	})

	t.Run("update and delete", func(t *testing.T) {
		att, err := app.Repos.Attendance.GetAttendance(ctx, attendance.GetFilter{SessionID: sess.ID, UserID: c.Students[3].ID})
		require.NoError(t, err)
		updated, err := app.Attendance.Update(ctx, att.ID, attendance.UpdateAttendance{Status: "Excused"}, instructor)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusExcused, updated.Status)

		require.NoError(t, app.Attendance.Delete(ctx, att.ID, instructor))
		_, err = app.Repos.Attendance.GetAttendance(ctx, attendance.GetFilter{ID: att.ID})
		assert.Equal(t, attendance.ErrNotFound, err)
	})
}

func TestStatsRepository(t *testing.T) {
	ctx := context.Background()
	testutil.PinClock(t, morning)
	app, _ := testutil.NewSQLApp(t)
	c := app.CreateCourse(t, "UTC", 3)
	instructor := authz.NewPrincipal(c.Instructor)

	first, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "08:00"), instructor)
	require.NoError(t, err)
	second, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "08:50"), instructor)
	require.NoError(t, err)
	gone, err := app.Sessions.Create(ctx, lecture(c.Offering.ID, "08:30"), instructor)
	require.NoError(t, err)

	checkIn := func(code string, usr user.User) {
		_, err := app.Attendance.CheckIn(ctx, attendance.CheckIn{AccessCode: code}, usr.ID)
		require.NoError(t, err)
	}
	checkIn(first.AccessCode, c.Students[0])  // late
	checkIn(second.AccessCode, c.Students[0]) // present
	checkIn(first.AccessCode, c.Students[1])  // late
	checkIn(gone.AccessCode, c.Students[2])
	for _, s := range []session.Session{first, second} {
		_, err := app.Attendance.CloseSessionAndMarkAbsent(ctx, s.ID, instructor)
		require.NoError(t, err)
	}
	require.NoError(t, app.Sessions.Delete(ctx, gone.ID, instructor))

	counts, err := app.Repos.Stats.CountSessionStatuses(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Late)
	assert.Equal(t, 1, counts.Absent)

	n, err := app.Repos.Stats.CountSessions(ctx, c.Offering.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err = app.Repos.Stats.CountUserStatuses(ctx, c.Offering.ID, c.Students[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Absent)
	assert.Equal(t, 0, counts.Present)

	summary, err := app.Stats.ForCourse(ctx, c.Offering.ID, instructor)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sessions)
	require.Len(t, summary.Students, 3)
	assert.Equal(t, c.Students[0].ID, summary.Students[0].UserID)
	assert.Equal(t, 1, summary.Students[0].Present)
	assert.Equal(t, 1, summary.Students[0].Late)
	require.NotNil(t, summary.Students[0].Percentage)
	assert.Equal(t, 50.0, *summary.Students[0].Percentage)
	assert.Equal(t, 2, summary.Students[2].Absent)
	assert.Equal(t, 0.0, *summary.Students[2].Percentage)
}
