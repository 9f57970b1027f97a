package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
)

var attendanceColumns = []string{
	"id", "session_id", "user_id", "status", "checked_in_at", "access_code_used", "marked_by", "created_at", "updated_at",
}

type attendanceRow struct {
	ID             string      `db:"id"`
	SessionID      string      `db:"session_id"`
	UserID         string      `db:"user_id"`
	Status         string      `db:"status"`
	CheckedInAt    null.Time   `db:"checked_in_at"`
	AccessCodeUsed null.String `db:"access_code_used"`
	MarkedBy       null.String `db:"marked_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// boilAttendance converts an attendance.Attendance into its table row
func boilAttendance(att attendance.Attendance) attendanceRow {
	return attendanceRow{
		ID:             att.ID,
		SessionID:      att.SessionID,
		UserID:         att.UserID,
		Status:         string(att.Status),
		CheckedInAt:    nullTime(att.CheckedInAt),
		AccessCodeUsed: nullString(att.AccessCodeUsed),
		MarkedBy:       nullString(att.MarkedBy),
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}

func (row attendanceRow) values() []interface{} {
	return []interface{}{
		row.ID, row.SessionID, row.UserID, row.Status, row.CheckedInAt, row.AccessCodeUsed, row.MarkedBy,
		row.CreatedAt, row.UpdatedAt,
	}
}

// unboil converts an attendance row into an attendance.Attendance
func (row attendanceRow) unboil() attendance.Attendance {
	return attendance.Attendance{
		ID:             row.ID,
		SessionID:      row.SessionID,
		UserID:         row.UserID,
		Status:         attendance.Status(row.Status),
		CheckedInAt:    timePtr(row.CheckedInAt),
		AccessCodeUsed: row.AccessCodeUsed.String,
		MarkedBy:       row.MarkedBy.String,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	repository
}

var (
	// interface compliance checks
	_ attendance.Repository = (*attendanceRepository)(nil)
	_ session.AbsenceFiller = (*attendanceRepository)(nil)
)

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{repository{exec: exec}}
}

func (repo *attendanceRepository) CheckIn(ctx context.Context, att attendance.Attendance, svcExec ...core.DBExecutor) (attendance.Attendance, error) {
	row := boilAttendance(att)
	q := builder.Insert("attendance").Columns(attendanceColumns...).Values(row.values()...).
		Suffix(`ON CONFLICT (session_id, user_id) DO UPDATE
			SET status = ?, checked_in_at = excluded.checked_in_at,
				access_code_used = excluded.access_code_used, updated_at = excluded.updated_at
			WHERE attendance.status = ?`, string(attendance.StatusPresent), string(attendance.StatusAbsent))

	exec := repo.getExec(svcExec)
	if _, err := execQ(ctx, exec, q); err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "execQ()")
	}
	return repo.GetAttendance(ctx, attendance.GetFilter{SessionID: att.SessionID, UserID: att.UserID}, exec)
}

func (repo *attendanceRepository) UpsertMarks(ctx context.Context, marks []attendance.Attendance, svcExec ...core.DBExecutor) error {
	exec := repo.getExec(svcExec)
	for start := 0; start < len(marks); start += batchSize {
		end := start + batchSize
		if end > len(marks) {
			end = len(marks)
		}
		q := builder.Insert("attendance").Columns(attendanceColumns...)
		for _, m := range marks[start:end] {
			q = q.Values(boilAttendance(m).values()...)
		}
		q = q.Suffix(`ON CONFLICT (session_id, user_id) DO UPDATE
			SET status = excluded.status, marked_by = excluded.marked_by, updated_at = excluded.updated_at`)
		if _, err := execQ(ctx, exec, q); err != nil {
			return errors.Wrap(err, "execQ()")
		}
	}
	return nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, filter attendance.GetFilter, svcExec ...core.DBExecutor) (attendance.Attendance, error) {
	q := builder.Select(attendanceColumns...).From("attendance")
	switch {
	case filter.ID != "":
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.SessionID != "" && filter.UserID != "":
		q = q.Where(sq.Eq{"session_id": filter.SessionID, "user_id": filter.UserID})
	default:
		return attendance.Attendance{}, attendance.ErrNotFound
	}

	var row attendanceRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return attendance.Attendance{}, trapNoRowsErr(err, attendance.ErrNotFound, "getQ()")
	}
	return row.unboil(), nil
}

func (repo *attendanceRepository) UpdateStatus(ctx context.Context, id string, status attendance.Status, by string, at time.Time, svcExec ...core.DBExecutor) (attendance.Attendance, error) {
	q := builder.Update("attendance").
		Set("status", string(status)).
		Set("marked_by", by).
		Set("updated_at", at).
		Where(sq.Eq{"id": id})

	exec := repo.getExec(svcExec)
	n, err := execAffected(ctx, exec, q)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	return repo.GetAttendance(ctx, attendance.GetFilter{ID: id}, exec)
}

func (repo *attendanceRepository) DeleteAttendance(ctx context.Context, id string, svcExec ...core.DBExecutor) error {
	n, err := execAffected(ctx, repo.getExec(svcExec), builder.Delete("attendance").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "execAffected()")
	}
	if n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.QueryFilter, svcExec ...core.DBExecutor) ([]attendance.Attendance, error) {
	q := builder.Select(attendanceColumns...).From("attendance")
	if filter.SessionID != "" {
		q = q.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.UserID != "" {
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.OfferingID != "" {
		q = q.Where("session_id IN (SELECT id FROM sessions WHERE offering_id = ? AND deleted_at IS NULL)", filter.OfferingID)
	}
	q = q.OrderBy("created_at ASC", "id ASC")

	var rows []attendanceRow
	if err := selectQ(ctx, repo.getExec(svcExec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selectQ()")
	}
	records := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.unboil())
	}
	return records, nil
}

// FillAbsences runs in the caller's transaction. A check-in landing between the read and the insert is kept.
func (repo *attendanceRepository) FillAbsences(ctx context.Context, sessionID, offeringID string, at time.Time, svcExec ...core.DBExecutor) (int, error) {
	exec := repo.getExec(svcExec)
	q := builder.Select("e.user_id").From("enrollments e").
		Where(eligible(offeringID)).
		Where("NOT EXISTS (SELECT 1 FROM attendance a WHERE a.session_id = ? AND a.user_id = e.user_id)", sessionID).
		OrderBy("e.user_id")
	var missing []string
	if err := selectQ(ctx, exec, &missing, q); err != nil {
		return 0, errors.Wrap(err, "selectQ()")
	}

	inserted := 0
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		ins := builder.Insert("attendance").Columns(attendanceColumns...)
		for _, userID := range missing[start:end] {
			row := boilAttendance(attendance.Attendance{
				ID:        uuid.NewString(),
				SessionID: sessionID,
				UserID:    userID,
				Status:    attendance.StatusAbsent,
				CreatedAt: at,
				UpdatedAt: at,
			})
			ins = ins.Values(row.values()...)
		}
		n, err := execAffected(ctx, exec, ins.Suffix("ON CONFLICT (session_id, user_id) DO NOTHING"))
		if err != nil {
			return inserted, errors.Wrap(err, "execAffected()")
		}
		inserted += n
	}
	return inserted, nil
}
