// Package stats rolls attendance records up per session, per student and per course.
package stats

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
)

type (
	Counts struct {
		Present int `json:"present" db:"present"`
		Absent  int `json:"absent" db:"absent"`
		Late    int `json:"late" db:"late"`
		Excused int `json:"excused" db:"excused"`
	}

	SessionStats struct {
		SessionID string `json:"session_id"`
		Counts
		Recorded   int      `json:"recorded"`
		Enrolled   int      `json:"enrolled"`
		Percentage *float64 `json:"percentage"`
	}

	UserStats struct {
		OfferingID string `json:"offering_id"`
		UserID     string `json:"user_id"`
		Counts
		Sessions   int      `json:"sessions"`
		Percentage *float64 `json:"percentage"`
	}

	StudentSummary struct {
		roster.Student
		Counts
		Percentage *float64 `json:"percentage"`
	}

	CourseSummary struct {
		OfferingID string           `json:"offering_id"`
		Sessions   int              `json:"sessions"`
		Students   []StudentSummary `json:"students"`
	}

	Repository interface {
		CountSessionStatuses(ctx context.Context, sessionID string, exec ...core.DBExecutor) (Counts, error)
		CountUserStatuses(ctx context.Context, offeringID, userID string, exec ...core.DBExecutor) (Counts, error)
		// CountSessions counts the live sessions of the offering.
		CountSessions(ctx context.Context, offeringID string, exec ...core.DBExecutor) (int, error)
		// SummarizeStudents returns one row per eligible student, ordered by name.
		SummarizeStudents(ctx context.Context, offeringID string, exec ...core.DBExecutor) ([]StudentSummary, error)
	}

	Service struct {
		repo     Repository
		roster   roster.Repository
		sessions *session.Service
		gate     session.Gate
	}
)

func NewService(repo Repository, rosterRepo roster.Repository, sessions *session.Service, gate session.Gate) *Service {
	return &Service{repo: repo, roster: rosterRepo, sessions: sessions, gate: gate}
}

func (c Counts) Total() int {
	return c.Present + c.Absent + c.Late + c.Excused
}

// Percentage returns part/whole*100 rounded to 2 decimals, or nil when whole is 0.
func Percentage(part, whole int) *float64 {
	if whole <= 0 {
		return nil
	}
	p := math.Round(float64(part)/float64(whole)*100*100) / 100
	return &p
}

// ForSession rolls up one session against the eligible enrollees of its offering.
func (svc *Service) ForSession(ctx context.Context, sessionID string, p authz.Principal) (SessionStats, error) {
	sess, err := svc.sessions.Get(ctx, sessionID)
	if err != nil {
		return SessionStats{}, err
	}
	if _, err := svc.gate.Authorize(ctx, p, sess.Target(), authz.ActionViewAttendance); err != nil {
		return SessionStats{}, err
	}
	counts, err := svc.repo.CountSessionStatuses(ctx, sess.ID)
	if err != nil {
		return SessionStats{}, errors.Wrap(err, "repo.CountSessionStatuses()")
	}
	enrolled, err := svc.roster.CountEligibleStudents(ctx, sess.OfferingID)
	if err != nil {
		return SessionStats{}, errors.Wrap(err, "roster.CountEligibleStudents()")
	}
	return SessionStats{
		SessionID:  sess.ID,
		Counts:     counts,
		Recorded:   counts.Total(),
		Enrolled:   enrolled,
		Percentage: Percentage(counts.Present, enrolled),
	}, nil
}

// ForUser rolls up one student across the sessions of an offering. Students may see their own.
func (svc *Service) ForUser(ctx context.Context, offeringID, userID string, p authz.Principal) (UserStats, error) {
	if p.ID != userID {
		if _, err := svc.gate.Authorize(ctx, p, authz.Target{OfferingID: offeringID}, authz.ActionViewAttendance); err != nil {
			return UserStats{}, err
		}
	}
	counts, err := svc.repo.CountUserStatuses(ctx, offeringID, userID)
	if err != nil {
		return UserStats{}, errors.Wrap(err, "repo.CountUserStatuses()")
	}
	sessions, err := svc.repo.CountSessions(ctx, offeringID)
	if err != nil {
		return UserStats{}, errors.Wrap(err, "repo.CountSessions()")
	}
	return UserStats{
		OfferingID: offeringID,
		UserID:     userID,
		Counts:     counts,
		Sessions:   sessions,
		Percentage: Percentage(counts.Present, sessions),
	}, nil
}

// ForCourse summarizes every eligible student of an offering, ordered by name.
func (svc *Service) ForCourse(ctx context.Context, offeringID string, p authz.Principal) (CourseSummary, error) {
	if _, err := svc.gate.Authorize(ctx, p, authz.Target{OfferingID: offeringID}, authz.ActionViewAttendance); err != nil {
		return CourseSummary{}, err
	}
	sessions, err := svc.repo.CountSessions(ctx, offeringID)
	if err != nil {
		return CourseSummary{}, errors.Wrap(err, "repo.CountSessions()")
	}
	students, err := svc.repo.SummarizeStudents(ctx, offeringID)
	if err != nil {
		return CourseSummary{}, errors.Wrap(err, "repo.SummarizeStudents()")
	}
	for i := range students {
		students[i].Percentage = Percentage(students[i].Present, sessions)
	}
	return CourseSummary{OfferingID: offeringID, Sessions: sessions, Students: students}, nil
}
