package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database"
)

var sessionColumns = []string{
	"id", "offering_id", "team_id", "title", "description", "session_date", "session_time",
	"starts_at", "ends_at", "access_code", "code_expires_at",
	"attendance_opened_at", "attendance_opened_by", "attendance_closed_at", "attendance_closed_by",
	"is_active", "created_by", "created_at", "updated_at", "deleted_at",
}

// sessionOrdering maps the sortable fields of the API to columns.
var sessionOrdering = map[string]string{
	"starts_at":  "starts_at",
	"title":      "title",
	"created_at": "created_at",
}

type sessionRow struct {
	ID                 string      `db:"id"`
	OfferingID         string      `db:"offering_id"`
	TeamID             null.String `db:"team_id"`
	Title              string      `db:"title"`
	Description        string      `db:"description"`
	SessionDate        string      `db:"session_date"`
	SessionTime        string      `db:"session_time"`
	StartsAt           time.Time   `db:"starts_at"`
	EndsAt             null.Time   `db:"ends_at"`
	AccessCode         string      `db:"access_code"`
	CodeExpiresAt      time.Time   `db:"code_expires_at"`
	AttendanceOpenedAt null.Time   `db:"attendance_opened_at"`
	AttendanceOpenedBy null.String `db:"attendance_opened_by"`
	AttendanceClosedAt null.Time   `db:"attendance_closed_at"`
	AttendanceClosedBy null.String `db:"attendance_closed_by"`
	IsActive           bool        `db:"is_active"`
	CreatedBy          string      `db:"created_by"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
	DeletedAt          null.Time   `db:"deleted_at"`
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(*t)
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// boilSession converts a session.Session into its table row
func boilSession(s session.Session) sessionRow {
	return sessionRow{
		ID:                 s.ID,
		OfferingID:         s.OfferingID,
		TeamID:             nullString(s.TeamID),
		Title:              s.Title,
		Description:        s.Description,
		SessionDate:        s.SessionDate,
		SessionTime:        s.SessionTime,
		StartsAt:           s.StartsAt,
		EndsAt:             nullTime(s.EndsAt),
		AccessCode:         s.AccessCode,
		CodeExpiresAt:      s.CodeExpiresAt,
		AttendanceOpenedAt: nullTime(s.AttendanceOpenedAt),
		AttendanceOpenedBy: nullString(s.AttendanceOpenedBy),
		AttendanceClosedAt: nullTime(s.AttendanceClosedAt),
		AttendanceClosedBy: nullString(s.AttendanceClosedBy),
		IsActive:           s.IsActive,
		CreatedBy:          s.CreatedBy,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		DeletedAt:          nullTime(s.DeletedAt),
	}
}

// unboil converts a session row into a session.Session
func (row sessionRow) unboil() session.Session {
	return session.Session{
		ID:                 row.ID,
		OfferingID:         row.OfferingID,
		TeamID:             row.TeamID.String,
		Title:              row.Title,
		Description:        row.Description,
		SessionDate:        row.SessionDate,
		SessionTime:        row.SessionTime,
		StartsAt:           row.StartsAt.UTC(),
		EndsAt:             timePtr(row.EndsAt),
		AccessCode:         row.AccessCode,
		CodeExpiresAt:      row.CodeExpiresAt.UTC(),
		AttendanceOpenedAt: timePtr(row.AttendanceOpenedAt),
		AttendanceOpenedBy: row.AttendanceOpenedBy.String,
		AttendanceClosedAt: timePtr(row.AttendanceClosedAt),
		AttendanceClosedBy: row.AttendanceClosedBy.String,
		IsActive:           row.IsActive,
		CreatedBy:          row.CreatedBy,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		DeletedAt:          timePtr(row.DeletedAt),
	}
}

type sessionRepository struct {
	repository
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{repository{exec: exec}}
}

func live() sq.Eq {
	return sq.Eq{"deleted_at": nil}
}

// AccessCodeTaken reports whether a live session holds `code`.
func (repo *sessionRepository) AccessCodeTaken(ctx context.Context, code string, svcExec ...core.DBExecutor) (bool, error) {
	q := builder.Select("COUNT(*)").From("sessions").Where(sq.Eq{"access_code": code}).Where(live())
	var n int
	if err := getQ(ctx, repo.getExec(svcExec), &n, q); err != nil {
		return false, errors.Wrap(err, "getQ()")
	}
	return n > 0, nil
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session, svcExec ...core.DBExecutor) (session.Session, error) {
	row := boilSession(sess)
	q := builder.Insert("sessions").Columns(sessionColumns...).Values(
		row.ID, row.OfferingID, row.TeamID, row.Title, row.Description, row.SessionDate, row.SessionTime,
		row.StartsAt, row.EndsAt, row.AccessCode, row.CodeExpiresAt,
		row.AttendanceOpenedAt, row.AttendanceOpenedBy, row.AttendanceClosedAt, row.AttendanceClosedBy,
		row.IsActive, row.CreatedBy, row.CreatedAt, row.UpdatedAt, row.DeletedAt,
	)
	if _, err := execQ(ctx, repo.getExec(svcExec), q); err != nil {
		if database.IsUniqueViolation(err, "access_code") {
			return session.Session{}, session.ErrAccessCodeTaken
		}
		return session.Session{}, errors.Wrap(err, "execQ()")
	}
	return row.unboil(), nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, filter session.GetFilter, svcExec ...core.DBExecutor) (session.Session, error) {
	q := builder.Select(sessionColumns...).From("sessions").Where(live())
	switch {
	case filter.ID != "":
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.AccessCode != "":
		q = q.Where(sq.Eq{"access_code": filter.AccessCode})
	default:
		return session.Session{}, session.ErrNotFound
	}

	var row sessionRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "getQ()")
	}
	return row.unboil(), nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter session.QueryFilter, svcExec ...core.DBExecutor) ([]session.Session, error) {
	q := builder.Select(sessionColumns...).From("sessions").Where(live())
	if filter.OfferingID != "" {
		q = q.Where(sq.Eq{"offering_id": filter.OfferingID})
	}
	if filter.TeamID != "" {
		q = q.Where(sq.Eq{"team_id": filter.TeamID})
	} else if filter.CourseWide {
		q = q.Where(sq.Eq{"team_id": nil})
	}
	if !filter.IncludeInactive {
		q = q.Where(sq.Eq{"is_active": true})
	}
	q = q.OrderBy(orderBy(filter.Ordering, sessionOrdering, "starts_at ASC", "id ASC")...)

	var rows []sessionRow
	if err := selectQ(ctx, repo.getExec(svcExec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selectQ()")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.unboil())
	}
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session, svcExec ...core.DBExecutor) (session.Session, error) {
	row := boilSession(sess)
	q := builder.Update("sessions").
		Set("title", row.Title).
		Set("description", row.Description).
		Set("session_date", row.SessionDate).
		Set("session_time", row.SessionTime).
		Set("starts_at", row.StartsAt).
		Set("ends_at", row.EndsAt).
		Set("code_expires_at", row.CodeExpiresAt).
		Set("is_active", row.IsActive).
		Set("updated_at", row.UpdatedAt).
		Where(sq.Eq{"id": row.ID}).
		Where(live())

	exec := repo.getExec(svcExec)
	n, err := execAffected(ctx, exec, q)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return repo.GetSession(ctx, session.GetFilter{ID: row.ID}, exec)
}

func (repo *sessionRepository) SetAccessCode(ctx context.Context, id, code string, at time.Time, svcExec ...core.DBExecutor) error {
	q := builder.Update("sessions").
		Set("access_code", code).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(live())
	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		if database.IsUniqueViolation(err, "access_code") {
			return session.ErrAccessCodeTaken
		}
		return errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (repo *sessionRepository) OpenAttendance(ctx context.Context, id string, at time.Time, by string, svcExec ...core.DBExecutor) (bool, error) {
	q := builder.Update("sessions").
		Set("attendance_opened_at", at).
		Set("attendance_opened_by", by).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "attendance_opened_at": nil, "attendance_closed_at": nil}).
		Where(live())
	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		return false, errors.Wrap(err, "execAffected()")
	}
	return n == 1, nil
}

func (repo *sessionRepository) CloseAttendance(ctx context.Context, id string, at time.Time, by string, svcExec ...core.DBExecutor) (bool, error) {
	q := builder.Update("sessions").
		Set("attendance_opened_at", sq.Expr("COALESCE(attendance_opened_at, ?)", at)).
		Set("attendance_opened_by", sq.Expr("COALESCE(attendance_opened_by, ?)", by)).
		Set("attendance_closed_at", at).
		Set("attendance_closed_by", by).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "attendance_closed_at": nil}).
		Where(live())
	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		return false, errors.Wrap(err, "execAffected()")
	}
	return n == 1, nil
}

// DeleteSession soft-deletes the session; its code is no longer considered taken.
func (repo *sessionRepository) DeleteSession(ctx context.Context, id string, at time.Time, svcExec ...core.DBExecutor) error {
	q := builder.Update("sessions").
		Set("deleted_at", at).
		Set("is_active", false).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(live())
	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		return errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}
