package dummydb

import (
	"context"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
)

type statsRepository struct {
	db *DB
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *DB) *statsRepository {
	return &statsRepository{db: db}
}

func count(c *stats.Counts, status attendance.Status) {
	switch status {
	case attendance.StatusPresent:
		c.Present++
	case attendance.StatusAbsent:
		c.Absent++
	case attendance.StatusLate:
		c.Late++
	case attendance.StatusExcused:
		c.Excused++
	}
}

// countedSession reports whether the session counts towards the offering's statistics. Callers hold the lock.
func (db *DB) countedSession(id, offeringID string) bool {
	s, ok := db.liveSession(id)
	return ok && s.IsActive && s.OfferingID == offeringID
}

func (repo *statsRepository) CountSessionStatuses(_ context.Context, sessionID string, _ ...core.DBExecutor) (stats.Counts, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var c stats.Counts
	for _, att := range repo.db.attendance {
		if att.SessionID == sessionID {
			count(&c, att.Status)
		}
	}
	return c, nil
}

func (repo *statsRepository) CountUserStatuses(_ context.Context, offeringID, userID string, _ ...core.DBExecutor) (stats.Counts, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var c stats.Counts
	for _, att := range repo.db.attendance {
		if att.UserID == userID && repo.db.countedSession(att.SessionID, offeringID) {
			count(&c, att.Status)
		}
	}
	return c, nil
}

func (repo *statsRepository) CountSessions(_ context.Context, offeringID string, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	n := 0
	for id := range repo.db.sessions {
		if repo.db.countedSession(id, offeringID) {
			n++
		}
	}
	return n, nil
}

func (repo *statsRepository) SummarizeStudents(_ context.Context, offeringID string, _ ...core.DBExecutor) ([]stats.StudentSummary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.db.eligibleStudents(offeringID)
	summaries := make([]stats.StudentSummary, 0, len(students))
	for _, s := range students {
		summary := stats.StudentSummary{Student: s}
		for _, att := range repo.db.attendance {
			if att.UserID == s.UserID && repo.db.countedSession(att.SessionID, offeringID) {
				count(&summary.Counts, att.Status)
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
