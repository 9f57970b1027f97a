package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
)

type attendanceRepository struct {
	db *DB
}

var (
	// interface compliance checks
	_ attendance.Repository = (*attendanceRepository)(nil)
	_ session.AbsenceFiller = (*attendanceRepository)(nil)
)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// findAttendance returns the row of (sessionID, userID). Callers hold the lock.
func (db *DB) findAttendance(sessionID, userID string) (*attendance.Attendance, bool) {
	for _, att := range db.attendance {
		if att.SessionID == sessionID && att.UserID == userID {
			return att, true
		}
	}
	return nil, false
}

func (repo *attendanceRepository) CheckIn(_ context.Context, att attendance.Attendance, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.findAttendance(att.SessionID, att.UserID)
	if !ok {
		repo.db.attendance[att.ID] = &att
		return att, nil
	}
	if existing.Status == attendance.StatusAbsent {
		existing.Status = attendance.StatusPresent
		existing.CheckedInAt = att.CheckedInAt
		existing.AccessCodeUsed = att.AccessCodeUsed
		existing.UpdatedAt = att.UpdatedAt
	}
	return *existing, nil
}

func (repo *attendanceRepository) UpsertMarks(_ context.Context, marks []attendance.Attendance, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, m := range marks {
		m := m
		if existing, ok := repo.db.findAttendance(m.SessionID, m.UserID); ok {
			existing.Status = m.Status
			existing.MarkedBy = m.MarkedBy
			existing.UpdatedAt = m.UpdatedAt
			continue
		}
		repo.db.attendance[m.ID] = &m
	}
	return nil
}

func (repo *attendanceRepository) GetAttendance(_ context.Context, filter attendance.GetFilter, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if att, ok := repo.db.attendance[filter.ID]; ok {
			return *att, nil
		}
	case filter.SessionID != "" && filter.UserID != "":
		if att, ok := repo.db.findAttendance(filter.SessionID, filter.UserID); ok {
			return *att, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateStatus(_ context.Context, id string, status attendance.Status, by string, at time.Time, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	att, ok := repo.db.attendance[id]
	if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	att.Status, att.MarkedBy, att.UpdatedAt = status, by, at
	return *att, nil
}

func (repo *attendanceRepository) DeleteAttendance(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attendance[id]; !ok {
		return attendance.ErrNotFound
	}
	delete(repo.db.attendance, id)
	return nil
}

func (repo *attendanceRepository) QueryAttendance(_ context.Context, filter attendance.QueryFilter, _ ...core.DBExecutor) ([]attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, att := range repo.db.attendance {
		if filter.SessionID != "" && att.SessionID != filter.SessionID {
			continue
		}
		if filter.UserID != "" && att.UserID != filter.UserID {
			continue
		}
		if filter.OfferingID != "" {
			s, ok := repo.db.liveSession(att.SessionID)
			if !ok || s.OfferingID != filter.OfferingID {
				continue
			}
		}
		records = append(records, *att)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (repo *attendanceRepository) FillAbsences(_ context.Context, sessionID, offeringID string, at time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	inserted := 0
	for _, s := range repo.db.eligibleStudents(offeringID) {
		if _, ok := repo.db.findAttendance(sessionID, s.UserID); ok {
			continue
		}
		att := attendance.Attendance{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			UserID:    s.UserID,
			Status:    attendance.StatusAbsent,
			CreatedAt: at,
			UpdatedAt: at,
		}
		repo.db.attendance[att.ID] = &att
		inserted++
	}
	return inserted, nil
}
