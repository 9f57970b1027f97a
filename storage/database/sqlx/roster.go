package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
)

type offeringRow struct {
	ID           string      `db:"id"`
	Code         string      `db:"code"`
	Name         string      `db:"name"`
	InstructorID null.String `db:"instructor_id"`
	Timezone     string      `db:"timezone"`
	IsActive     bool        `db:"is_active"`
}

func (row offeringRow) unboil() roster.Offering {
	return roster.Offering{
		ID:           row.ID,
		Code:         row.Code,
		Name:         row.Name,
		InstructorID: row.InstructorID.String,
		Timezone:     row.Timezone,
		IsActive:     row.IsActive,
	}
}

type teamRow struct {
	ID         string      `db:"id"`
	OfferingID string      `db:"offering_id"`
	Name       string      `db:"name"`
	LeaderID   null.String `db:"leader_id"`
	LeaderIDs  string      `db:"leader_ids"`
}

func (row teamRow) unboil() (roster.Team, error) {
	team := roster.Team{
		ID:         row.ID,
		OfferingID: row.OfferingID,
		Name:       row.Name,
		LeaderID:   row.LeaderID.String,
		LeaderIDs:  []string{},
	}
	if row.LeaderIDs != "" {
		if err := json.Unmarshal([]byte(row.LeaderIDs), &team.LeaderIDs); err != nil {
			return roster.Team{}, errors.Wrap(err, "json.Unmarshal()")
		}
	}
	return team, nil
}

type memberRow struct {
	TeamID   string    `db:"team_id"`
	UserID   string    `db:"user_id"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
	LeftAt   null.Time `db:"left_at"`
}

func (row memberRow) unboil() roster.TeamMember {
	m := roster.TeamMember{
		TeamID:   row.TeamID,
		UserID:   row.UserID,
		Role:     roster.MemberRole(row.Role),
		JoinedAt: row.JoinedAt.UTC(),
	}
	if row.LeftAt.Valid {
		t := row.LeftAt.Time.UTC()
		m.LeftAt = &t
	}
	return m
}

type rosterRepository struct {
	repository
}

var _ roster.Store = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(exec core.DBExecutor) *rosterRepository {
	return &rosterRepository{repository{exec: exec}}
}

var offeringColumns = []string{"id", "code", "name", "instructor_id", "timezone", "is_active"}

func (repo *rosterRepository) GetActiveOffering(ctx context.Context, svcExec ...core.DBExecutor) (roster.Offering, error) {
	q := builder.Select(offeringColumns...).From("offerings").
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		Limit(1)
	var row offeringRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return roster.Offering{}, trapNoRowsErr(err, roster.ErrNoActiveOffering, "getQ()")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetOffering(ctx context.Context, id string, svcExec ...core.DBExecutor) (roster.Offering, error) {
	q := builder.Select(offeringColumns...).From("offerings").Where(sq.Eq{"id": id})
	var row offeringRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return roster.Offering{}, trapNoRowsErr(err, roster.ErrOfferingNotFound, "getQ()")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetEnrollment(ctx context.Context, offeringID, userID string, svcExec ...core.DBExecutor) (roster.Enrollment, error) {
	q := builder.Select("offering_id", "user_id", "course_role", "status").From("enrollments").
		Where(sq.Eq{"offering_id": offeringID, "user_id": userID})
	var row struct {
		OfferingID string `db:"offering_id"`
		UserID     string `db:"user_id"`
		CourseRole string `db:"course_role"`
		Status     string `db:"status"`
	}
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return roster.Enrollment{}, trapNoRowsErr(err, roster.ErrEnrollmentNotFound, "getQ()")
	}
	return roster.Enrollment{
		OfferingID: row.OfferingID,
		UserID:     row.UserID,
		CourseRole: roster.CourseRole(row.CourseRole),
		Status:     roster.EnrollmentStatus(row.Status),
	}, nil
}

// eligible restricts enrollments `e` to the students that count for attendance.
func eligible(offeringID string) sq.Eq {
	return sq.Eq{
		"e.offering_id": offeringID,
		"e.status":      string(roster.EnrollmentEnrolled),
		"e.course_role": string(roster.CourseRoleStudent),
	}
}

func (repo *rosterRepository) ListEligibleStudents(ctx context.Context, offeringID string, svcExec ...core.DBExecutor) ([]roster.Student, error) {
	q := builder.Select("u.id AS user_id", "u.name", "u.email").
		From("enrollments e").
		Join("users u ON u.id = e.user_id").
		Where(eligible(offeringID)).
		OrderBy("u.name", "u.id")
	students := make([]roster.Student, 0)
	if err := selectQ(ctx, repo.getExec(svcExec), &students, q); err != nil {
		return nil, errors.Wrap(err, "selectQ()")
	}
	return students, nil
}

func (repo *rosterRepository) CountEligibleStudents(ctx context.Context, offeringID string, svcExec ...core.DBExecutor) (int, error) {
	q := builder.Select("COUNT(*)").From("enrollments e").Where(eligible(offeringID))
	var n int
	if err := getQ(ctx, repo.getExec(svcExec), &n, q); err != nil {
		return 0, errors.Wrap(err, "getQ()")
	}
	return n, nil
}

func (repo *rosterRepository) GetTeam(ctx context.Context, id string, svcExec ...core.DBExecutor) (roster.Team, error) {
	q := builder.Select("id", "offering_id", "name", "leader_id", "leader_ids").From("teams").Where(sq.Eq{"id": id})
	var row teamRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return roster.Team{}, trapNoRowsErr(err, roster.ErrTeamNotFound, "getQ()")
	}
	return row.unboil()
}

func (repo *rosterRepository) ListTeamMembers(ctx context.Context, teamID string, svcExec ...core.DBExecutor) ([]roster.TeamMember, error) {
	q := builder.Select("team_id", "user_id", "role", "joined_at", "left_at").From("team_members").
		Where(sq.Eq{"team_id": teamID}).
		OrderBy("joined_at")
	var rows []memberRow
	if err := selectQ(ctx, repo.getExec(svcExec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selectQ()")
	}
	members := make([]roster.TeamMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.unboil())
	}
	return members, nil
}

func (repo *rosterRepository) SetTeamLeaders(ctx context.Context, teamID string, leaderIDs []string, svcExec ...core.DBExecutor) error {
	if leaderIDs == nil {
		leaderIDs = []string{}
	}
	ids, err := json.Marshal(leaderIDs)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}
	q := builder.Update("teams").Set("leader_ids", string(ids)).Where(sq.Eq{"id": teamID})
	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		return errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return roster.ErrTeamNotFound
	}
	return nil
}

func (repo *rosterRepository) CreateOffering(ctx context.Context, o roster.Offering, svcExec ...core.DBExecutor) error {
	q := builder.Insert("offerings").
		Columns(append(offeringColumns, "created_at")...).
		Values(o.ID, o.Code, o.Name, null.NewString(o.InstructorID, o.InstructorID != ""), o.Timezone, o.IsActive, core.NowFunc())
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}

func (repo *rosterRepository) Enroll(ctx context.Context, e roster.Enrollment, svcExec ...core.DBExecutor) error {
	q := builder.Insert("enrollments").
		Columns("offering_id", "user_id", "course_role", "status").
		Values(e.OfferingID, e.UserID, string(e.CourseRole), string(e.Status)).
		Suffix("ON CONFLICT (offering_id, user_id) DO UPDATE SET course_role = excluded.course_role, status = excluded.status")
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}

func (repo *rosterRepository) CreateTeam(ctx context.Context, t roster.Team, svcExec ...core.DBExecutor) error {
	if t.LeaderIDs == nil {
		t.LeaderIDs = []string{}
	}
	ids, err := json.Marshal(t.LeaderIDs)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}
	q := builder.Insert("teams").
		Columns("id", "offering_id", "name", "leader_id", "leader_ids").
		Values(t.ID, t.OfferingID, t.Name, null.NewString(t.LeaderID, t.LeaderID != ""), string(ids))
	_, err = execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}

func (repo *rosterRepository) AddTeamMember(ctx context.Context, m roster.TeamMember, svcExec ...core.DBExecutor) error {
	var leftAt null.Time
	if m.LeftAt != nil {
		leftAt = null.TimeFrom(*m.LeftAt)
	}
	q := builder.Insert("team_members").
		Columns("team_id", "user_id", "role", "joined_at", "left_at").
		Values(m.TeamID, m.UserID, string(m.Role), m.JoinedAt, leftAt)
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}

func (repo *rosterRepository) LeaveTeam(ctx context.Context, teamID, userID string, at time.Time, svcExec ...core.DBExecutor) error {
	q := builder.Update("team_members").Set("left_at", at).
		Where(sq.Eq{"team_id": teamID, "user_id": userID, "left_at": nil})
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}
