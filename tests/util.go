package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	logsvc "github.com/Team04-UCSD-CSE210/conductor-app-sub001/services/logger"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database"
	dummydb "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/dummy"
	sqlxrepos "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/sqlx"
)

// NewLogger returns a logger that reports nowhere.
func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB opens a migrated sqlite3 database that lives as long as the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

type Repos struct {
	Users       user.Repository
	Roster      roster.Store
	Permissions authz.PermissionStore
	Sessions    session.Repository
	Attendance  attendance.Repository
	Questions   question.Repository
	Stats       stats.Repository
}

func DummyRepos(db *dummydb.DB) Repos {
	return Repos{
		Users:       dummydb.NewUserRepository(db),
		Roster:      dummydb.NewRosterRepository(db),
		Permissions: dummydb.NewPermissionRepository(db),
		Sessions:    dummydb.NewSessionRepository(db),
		Attendance:  dummydb.NewAttendanceRepository(db),
		Questions:   dummydb.NewQuestionRepository(db),
		Stats:       dummydb.NewStatsRepository(db),
	}
}

func SQLRepos(db *sqlx.DB) Repos {
	return Repos{
		Users:       sqlxrepos.NewUserRepository(db),
		Roster:      sqlxrepos.NewRosterRepository(db),
		Permissions: sqlxrepos.NewPermissionRepository(db),
		Sessions:    sqlxrepos.NewSessionRepository(db),
		Attendance:  sqlxrepos.NewAttendanceRepository(db),
		Questions:   sqlxrepos.NewQuestionRepository(db),
		Stats:       sqlxrepos.NewStatsRepository(db),
	}
}

// App bundles the services over one set of repositories, with fixture helpers.
type App struct {
	Conf   *core.Config
	Logger core.Logger
	Repos

	Gate       *authz.Resolver
	Users      *user.Service
	Questions  *question.Service
	Sessions   *session.Service
	Attendance *attendance.Service
	Stats      *stats.Service
}

func NewApp(conf *core.Config, tx core.Transactor, repos Repos) *App {
	logger := NewLogger(conf)
	app := &App{Conf: conf, Logger: logger, Repos: repos}
	app.Gate = authz.NewResolver(repos.Roster, repos.Permissions, logger)
	app.Users = user.NewService(repos.Users)
	app.Questions = question.NewService(repos.Questions)
	app.Sessions = session.NewService(conf, tx, repos.Sessions, app.Gate, repos.Roster, app.Questions, repos.Attendance, logger)
	app.Attendance = attendance.NewService(
		conf, tx, repos.Attendance, app.Sessions, repos.Roster, app.Users, app.Questions, app.Gate, logger,
	)
	app.Stats = stats.NewService(repos.Stats, repos.Roster, app.Sessions, app.Gate)
	return app
}

// NewDummyApp runs the services over the in-memory store.
func NewDummyApp() *App {
	return NewApp(core.NewTestConfig(), dummydb.Transactor{}, DummyRepos(dummydb.Open()))
}

// NewSQLApp runs the services over a fresh sqlite3 database.
func NewSQLApp(t *testing.T) (*App, *sqlx.DB) {
	db := PrepareDB(t)
	return NewApp(core.NewTestConfig(), database.NewTransactor(db), SQLRepos(db)), db
}

// PinClock sets core.NowFunc to return `now` until the test ends.
func PinClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

// CreateUser stores a user; the password is only hashed when `pwd` is set.
func (app *App) CreateUser(t *testing.T, name, email, institutionalID, pwd string, roles ...string) user.User {
	t.Helper()
	now := core.NowFunc()
	usr := user.User{
		ID:              uuid.NewString(),
		Name:            name,
		Email:           email,
		InstitutionalID: institutionalID,
		IsActive:        true,
		Roles:           roles,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("usr.SetPassword() failed: %v", err)
		}
	}
	usr, err := app.Repos.Users.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (app *App) CreateOffering(t *testing.T, instructorID, timezone string) roster.Offering {
	t.Helper()
	o := roster.Offering{
		ID:           uuid.NewString(),
		Code:         "CSE210",
		Name:         "Software Engineering",
		InstructorID: instructorID,
		Timezone:     timezone,
		IsActive:     true,
	}
	if err := app.Roster.CreateOffering(context.Background(), o); err != nil {
		t.Fatalf("CreateOffering() failed: %v", err)
	}
	return o
}

func (app *App) Enroll(t *testing.T, offeringID, userID string, role roster.CourseRole, status roster.EnrollmentStatus) {
	t.Helper()
	e := roster.Enrollment{OfferingID: offeringID, UserID: userID, CourseRole: role, Status: status}
	if err := app.Roster.Enroll(context.Background(), e); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// EnrollStudent enrolls `userID` as an attendance-eligible student.
func (app *App) EnrollStudent(t *testing.T, offeringID, userID string) {
	app.Enroll(t, offeringID, userID, roster.CourseRoleStudent, roster.EnrollmentEnrolled)
}

// CreateTeam stores a team whose cached leader list is empty.
func (app *App) CreateTeam(t *testing.T, offeringID, name, leaderID string) roster.Team {
	t.Helper()
	team := roster.Team{ID: uuid.NewString(), OfferingID: offeringID, Name: name, LeaderID: leaderID, LeaderIDs: []string{}}
	if err := app.Roster.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	return team
}

func (app *App) AddMember(t *testing.T, teamID, userID string, role roster.MemberRole) {
	t.Helper()
	m := roster.TeamMember{TeamID: teamID, UserID: userID, Role: role, JoinedAt: core.NowFunc()}
	if err := app.Roster.AddTeamMember(context.Background(), m); err != nil {
		t.Fatalf("AddTeamMember() failed: %v", err)
	}
}

func (app *App) Grant(t *testing.T, userID string, c authz.Capability, offeringID, teamID string) {
	t.Helper()
	if err := app.Permissions.Grant(context.Background(), userID, string(c), offeringID, teamID); err != nil {
		t.Fatalf("Grant() failed: %v", err)
	}
}

// Course is a small offering: one instructor, students and one team led by a student.
type Course struct {
	Offering   roster.Offering
	Instructor user.User
	Students   []user.User
	Team       roster.Team
	Leader     user.User
}

// CreateCourse stores an offering in `timezone` with `students` enrolled students,
// the first of which leads the offering's only team.
func (app *App) CreateCourse(t *testing.T, timezone string, students int) Course {
	t.Helper()
	var c Course
	c.Instructor = app.CreateUser(t, "Ada Instructor", "ada@ucsd.edu", "", "", user.RoleInstructor)
	c.Offering = app.CreateOffering(t, c.Instructor.ID, timezone)
	for i := 0; i < students; i++ {
		usr := app.CreateUser(t,
			"Student "+string(rune('A'+i)),
			"student"+string(rune('a'+i))+"@ucsd.edu",
			"A0000000"+string(rune('0'+i)),
			"",
			user.RoleStudent,
		)
		app.EnrollStudent(t, c.Offering.ID, usr.ID)
		c.Students = append(c.Students, usr)
	}
	if students > 0 {
		c.Leader = c.Students[0]
		c.Team = app.CreateTeam(t, c.Offering.ID, "Team One", c.Leader.ID)
		app.AddMember(t, c.Team.ID, c.Leader.ID, roster.MemberRoleLeader)
	}
	return c
}
