package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

// codeTaken reports whether a live session other than `id` holds `code`. Callers hold the lock.
func (db *DB) codeTaken(code, id string) bool {
	for _, s := range db.sessions {
		if s.DeletedAt == nil && s.AccessCode == code && s.ID != id {
			return true
		}
	}
	return false
}

// liveSession returns the stored session `id` unless it is deleted. Callers hold the lock.
func (db *DB) liveSession(id string) (*session.Session, bool) {
	s, ok := db.sessions[id]
	if !ok || s.DeletedAt != nil {
		return nil, false
	}
	return s, true
}

func (repo *sessionRepository) AccessCodeTaken(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.codeTaken(code, ""), nil
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.codeTaken(sess.AccessCode, "") {
		return session.Session{}, session.ErrAccessCodeTaken
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, filter session.GetFilter, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.sessions {
		if s.DeletedAt != nil {
			continue
		}
		if (filter.ID != "" && s.ID == filter.ID) || (filter.ID == "" && filter.AccessCode != "" && s.AccessCode == filter.AccessCode) {
			return *s, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter session.QueryFilter, _ ...core.DBExecutor) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0)
	for _, s := range repo.db.sessions {
		switch {
		case s.DeletedAt != nil,
			filter.OfferingID != "" && s.OfferingID != filter.OfferingID,
			filter.TeamID != "" && s.TeamID != filter.TeamID,
			filter.TeamID == "" && filter.CourseWide && s.TeamID != "",
			!filter.IncludeInactive && !s.IsActive:
			continue
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartsAt.Equal(sessions[j].StartsAt) {
			return sessions[i].StartsAt.Before(sessions[j].StartsAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.liveSession(sess.ID)
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	s.Title = sess.Title
	s.Description = sess.Description
	s.SessionDate = sess.SessionDate
	s.SessionTime = sess.SessionTime
	s.StartsAt = sess.StartsAt
	s.EndsAt = sess.EndsAt
	s.CodeExpiresAt = sess.CodeExpiresAt
	s.IsActive = sess.IsActive
	s.UpdatedAt = sess.UpdatedAt
	return *s, nil
}

func (repo *sessionRepository) SetAccessCode(_ context.Context, id, code string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.liveSession(id)
	if !ok {
		return session.ErrNotFound
	}
	if repo.db.codeTaken(code, id) {
		return session.ErrAccessCodeTaken
	}
	s.AccessCode = code
	s.UpdatedAt = at
	return nil
}

func (repo *sessionRepository) OpenAttendance(_ context.Context, id string, at time.Time, by string, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.liveSession(id)
	if !ok || s.AttendanceOpenedAt != nil || s.AttendanceClosedAt != nil {
		return false, nil
	}
	s.AttendanceOpenedAt, s.AttendanceOpenedBy = &at, by
	s.UpdatedAt = at
	return true, nil
}

func (repo *sessionRepository) CloseAttendance(_ context.Context, id string, at time.Time, by string, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.liveSession(id)
	if !ok || s.AttendanceClosedAt != nil {
		return false, nil
	}
	if s.AttendanceOpenedAt == nil {
		opened := at
		s.AttendanceOpenedAt = &opened
	}
	if s.AttendanceOpenedBy == "" {
		s.AttendanceOpenedBy = by
	}
	s.AttendanceClosedAt, s.AttendanceClosedBy = &at, by
	s.UpdatedAt = at
	return true, nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.liveSession(id)
	if !ok {
		return session.ErrNotFound
	}
	s.DeletedAt = &at
	s.IsActive = false
	s.UpdatedAt = at
	return nil
}
