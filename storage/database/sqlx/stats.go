package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
)

type statusCount struct {
	Status string `db:"status"`
	N      int    `db:"n"`
}

func toCounts(rows []statusCount) stats.Counts {
	var c stats.Counts
	for _, row := range rows {
		switch attendance.Status(row.Status) {
		case attendance.StatusPresent:
			c.Present = row.N
		case attendance.StatusAbsent:
			c.Absent = row.N
		case attendance.StatusLate:
			c.Late = row.N
		case attendance.StatusExcused:
			c.Excused = row.N
		}
	}
	return c
}

type statsRepository struct {
	repository
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) *statsRepository {
	return &statsRepository{repository{exec: exec}}
}

func (repo *statsRepository) countStatuses(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder) (stats.Counts, error) {
	var rows []statusCount
	if err := selectQ(ctx, exec, &rows, q.GroupBy("a.status")); err != nil {
		return stats.Counts{}, errors.Wrap(err, "selectQ()")
	}
	return toCounts(rows), nil
}

func (repo *statsRepository) CountSessionStatuses(ctx context.Context, sessionID string, svcExec ...core.DBExecutor) (stats.Counts, error) {
	q := builder.Select("a.status", "COUNT(*) AS n").From("attendance a").Where(sq.Eq{"a.session_id": sessionID})
	return repo.countStatuses(ctx, repo.getExec(svcExec), q)
}

func (repo *statsRepository) CountUserStatuses(ctx context.Context, offeringID, userID string, svcExec ...core.DBExecutor) (stats.Counts, error) {
	q := builder.Select("a.status", "COUNT(*) AS n").From("attendance a").
		Join("sessions s ON s.id = a.session_id").
		Where(sq.Eq{"a.user_id": userID, "s.offering_id": offeringID, "s.deleted_at": nil, "s.is_active": true})
	return repo.countStatuses(ctx, repo.getExec(svcExec), q)
}

func (repo *statsRepository) CountSessions(ctx context.Context, offeringID string, svcExec ...core.DBExecutor) (int, error) {
	q := builder.Select("COUNT(*)").From("sessions").
		Where(sq.Eq{"offering_id": offeringID, "deleted_at": nil, "is_active": true})
	var n int
	if err := getQ(ctx, repo.getExec(svcExec), &n, q); err != nil {
		return 0, errors.Wrap(err, "getQ()")
	}
	return n, nil
}

const summarizeStudentsQuery = `
SELECT u.id AS user_id, u.name, u.email,
	COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0) AS present,
	COALESCE(SUM(CASE WHEN a.status = 'absent' THEN 1 ELSE 0 END), 0) AS absent,
	COALESCE(SUM(CASE WHEN a.status = 'late' THEN 1 ELSE 0 END), 0) AS late,
	COALESCE(SUM(CASE WHEN a.status = 'excused' THEN 1 ELSE 0 END), 0) AS excused
FROM enrollments e
JOIN users u ON u.id = e.user_id
LEFT JOIN sessions s ON s.offering_id = e.offering_id AND s.deleted_at IS NULL AND s.is_active = ?
LEFT JOIN attendance a ON a.session_id = s.id AND a.user_id = e.user_id
WHERE e.offering_id = ? AND e.status = ? AND e.course_role = ?
GROUP BY u.id, u.name, u.email
ORDER BY u.name, u.id`

func (repo *statsRepository) SummarizeStudents(ctx context.Context, offeringID string, svcExec ...core.DBExecutor) ([]stats.StudentSummary, error) {
	exec := repo.getExec(svcExec)
	var rows []struct {
		UserID string `db:"user_id"`
		Name   string `db:"name"`
		Email  string `db:"email"`
		stats.Counts
	}
	err := sqlxSelect(ctx, exec, &rows, summarizeStudentsQuery, true, offeringID,
		string(roster.EnrollmentEnrolled), string(roster.CourseRoleStudent))
	if err != nil {
		return nil, errors.Wrap(err, "sqlxSelect()")
	}
	summaries := make([]stats.StudentSummary, 0, len(rows))
	for _, row := range rows {
		s := stats.StudentSummary{Counts: row.Counts}
		s.UserID, s.Name, s.Email = row.UserID, row.Name, row.Email
		summaries = append(summaries, s)
	}
	return summaries, nil
}
