package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewError(core.KindNotFound, "attendance record not found")
	ErrInvalidCode      = core.NewError(core.KindInvalidCode, "invalid access code")
	ErrCodeExpired      = core.NewError(core.KindCodeExpired, "this access code has expired")
	ErrAttendanceClosed = core.NewError(core.KindAttendanceClosed, "attendance for this session is closed")
	ErrNotOpenYet       = core.NewError(core.KindInvalidCode, "attendance for this session is not open yet")
	ErrNotEnrolled      = core.NewError(core.KindNotEnrolled, "not enrolled as a student in this course")
)

type (
	Repository interface {
		// CheckIn inserts `att`, or flips an existing absent row of the same student to present, in one statement.
		// Rows with any other status are left untouched. The stored row is returned.
		CheckIn(ctx context.Context, att Attendance, exec ...core.DBExecutor) (Attendance, error)
		// UpsertMarks inserts or overwrites the status of every (session, user) row in one statement.
		UpsertMarks(ctx context.Context, marks []Attendance, exec ...core.DBExecutor) error
		GetAttendance(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Attendance, error)
		UpdateStatus(ctx context.Context, id string, status Status, by string, at time.Time, exec ...core.DBExecutor) (Attendance, error)
		DeleteAttendance(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryAttendance(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Attendance, error)
		// FillAbsences inserts an absent row for every eligible student of the offering without a row for the
		// session and returns how many it inserted.
		FillAbsences(ctx context.Context, sessionID, offeringID string, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		gracePeriod time.Duration
		db          core.Transactor
		repo        Repository
		sessions    *session.Service
		roster      roster.Repository
		users       *user.Service
		questions   *question.Service
		gate        session.Gate
		logger      core.Logger
	}
)

func NewService(
	conf *core.Config,
	db core.Transactor,
	repo Repository,
	sessions *session.Service,
	rosterRepo roster.Repository,
	users *user.Service,
	questions *question.Service,
	gate session.Gate,
	logger core.Logger,
) *Service {
	return &Service{
		gracePeriod: conf.Attendance.GracePeriod,
		db:          db,
		repo:        repo,
		sessions:    sessions,
		roster:      rosterRepo,
		users:       users,
		questions:   questions,
		gate:        gate,
		logger:      logger,
	}
}

func (svc *Service) authorize(ctx context.Context, p authz.Principal, sess session.Session, action authz.Action) error {
	_, err := svc.gate.Authorize(ctx, p, sess.Target(), action)
	return err
}

func (svc *Service) checkEnrolled(ctx context.Context, offeringID, userID string) error {
	enr, err := svc.roster.GetEnrollment(ctx, offeringID, userID)
	if err != nil {
		if errors.Cause(err) == roster.ErrEnrollmentNotFound {
			return ErrNotEnrolled
		}
		return errors.Wrap(err, "roster.GetEnrollment()")
	}
	if !enr.Eligible() {
		return ErrNotEnrolled
	}
	return nil
}

// StatusAt is the status a student checking in at `now` gets.
func (svc *Service) StatusAt(sess session.Session, now time.Time) Status {
	if now.After(sess.StartsAt.Add(svc.gracePeriod)) {
		return StatusLate
	}
	return StatusPresent
}

// CheckIn records the attendance of `userID` from an access code.
// A new row is present, or late past the grace period. Checking in twice leaves one row.
// A prior absence becomes present whatever the time; any other status is kept.
func (svc *Service) CheckIn(ctx context.Context, ci CheckIn, userID string) (Attendance, error) {
	ci.AccessCode = core.CleanString(ci.AccessCode)
	if err := core.ValidateStruct(ci); err != nil {
		return Attendance{}, err
	}

	sess, err := svc.sessions.GetByCode(ctx, ci.AccessCode)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return Attendance{}, ErrInvalidCode
		}
		return Attendance{}, err
	}

	now := core.NowFunc()
	switch {
	case !sess.IsActive:
		return Attendance{}, ErrInvalidCode
	case sess.State() == session.StateClosed:
		return Attendance{}, ErrAttendanceClosed
	case sess.State() == session.StateDraft:
		return Attendance{}, ErrNotOpenYet
	case sess.CodeExpired(now):
		return Attendance{}, ErrCodeExpired
	}

	if err := svc.checkEnrolled(ctx, sess.OfferingID, userID); err != nil {
		return Attendance{}, err
	}
	if err := svc.questions.CheckRequired(ctx, sess.ID, ci.Responses); err != nil {
		return Attendance{}, err
	}

	att := Attendance{
		ID:             uuid.NewString(),
		SessionID:      sess.ID,
		UserID:         userID,
		Status:         svc.StatusAt(sess, now),
		CheckedInAt:    &now,
		AccessCodeUsed: sess.AccessCode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	var stored Attendance
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if stored, err = svc.repo.CheckIn(ctx, att, exec); err != nil {
			return errors.Wrap(err, "repo.CheckIn()")
		}
		return svc.questions.Save(ctx, sess.ID, userID, ci.Responses, exec)
	})
	if err != nil {
		return Attendance{}, err
	}
	return stored, nil
}

// Mark sets the attendance of one student regardless of the attendance window.
func (svc *Service) Mark(ctx context.Context, m Mark, p authz.Principal) (Attendance, error) {
	m.SessionID = core.CleanString(m.SessionID)
	m.UserID = core.CleanString(m.UserID)
	m.Status = Status(core.CleanString(string(m.Status), true /* lower */))
	if err := core.ValidateStruct(m); err != nil {
		return Attendance{}, err
	}

	sess, err := svc.sessions.Get(ctx, m.SessionID)
	if err != nil {
		return Attendance{}, err
	}
	if err := svc.authorize(ctx, p, sess, authz.ActionMarkAttendance); err != nil {
		return Attendance{}, err
	}
	if err := svc.checkEnrolled(ctx, sess.OfferingID, m.UserID); err != nil {
		return Attendance{}, err
	}

	now := core.NowFunc()
	mark := Attendance{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		UserID:    m.UserID,
		Status:    m.Status,
		MarkedBy:  p.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.repo.UpsertMarks(ctx, []Attendance{mark}); err != nil {
		return Attendance{}, errors.Wrap(err, "repo.UpsertMarks()")
	}
	return svc.repo.GetAttendance(ctx, GetFilter{SessionID: sess.ID, UserID: m.UserID})
}

// Update changes the status of an attendance record.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAttendance, p authz.Principal) (Attendance, error) {
	ua.Status = Status(core.CleanString(string(ua.Status), true /* lower */))
	if err := core.ValidateStruct(ua); err != nil {
		return Attendance{}, err
	}
	att, err := svc.repo.GetAttendance(ctx, GetFilter{ID: id})
	if err != nil {
		return Attendance{}, err
	}
	sess, err := svc.sessions.Get(ctx, att.SessionID)
	if err != nil {
		return Attendance{}, err
	}
	if err := svc.authorize(ctx, p, sess, authz.ActionMarkAttendance); err != nil {
		return Attendance{}, err
	}
	return svc.repo.UpdateStatus(ctx, id, ua.Status, p.ID, core.NowFunc())
}

// Delete removes an attendance record for good.
func (svc *Service) Delete(ctx context.Context, id string, p authz.Principal) error {
	att, err := svc.repo.GetAttendance(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	sess, err := svc.sessions.Get(ctx, att.SessionID)
	if err != nil {
		return err
	}
	if err := svc.authorize(ctx, p, sess, authz.ActionDeleteAttendance); err != nil {
		return err
	}
	if err := svc.repo.DeleteAttendance(ctx, id); err != nil {
		return errors.Wrap(err, "repo.DeleteAttendance()")
	}
	svc.logger.Info(fmt.Sprintf("attendance %s of user %s deleted by %s", id, att.UserID, p.ID))
	return nil
}

// CloseSessionAndMarkAbsent closes the session, recording an absence for every eligible student without a record.
func (svc *Service) CloseSessionAndMarkAbsent(ctx context.Context, sessionID string, p authz.Principal) (session.CloseReport, error) {
	return svc.sessions.Close(ctx, sessionID, p)
}

// BulkImport upserts a batch of records into one session.
// Records that cannot be applied are reported in the results and never block the others.
func (svc *Service) BulkImport(ctx context.Context, sessionID string, bi BulkImport, p authz.Principal) (ImportReport, error) {
	sess, err := svc.sessions.Get(ctx, sessionID)
	if err != nil {
		return ImportReport{}, err
	}
	if err := svc.authorize(ctx, p, sess, authz.ActionMarkAttendance); err != nil {
		return ImportReport{}, err
	}
	if err := core.ValidateStruct(bi); err != nil {
		return ImportReport{}, err
	}

	students, err := svc.roster.ListEligibleStudents(ctx, sess.OfferingID)
	if err != nil {
		return ImportReport{}, errors.Wrap(err, "roster.ListEligibleStudents()")
	}
	eligible := make(map[string]bool, len(students))
	for _, s := range students {
		eligible[s.UserID] = true
	}

	now := core.NowFunc()
	report := ImportReport{SessionID: sess.ID, Results: make([]ImportResult, 0, len(bi.Attendance))}
	marks := make([]Attendance, 0, len(bi.Attendance))
	seen := make(map[string]bool, len(bi.Attendance))

	for i, rec := range bi.Attendance {
		res := ImportResult{
			Index:           i,
			Email:           core.CleanString(rec.Email, true /* lower */),
			InstitutionalID: core.CleanString(rec.InstitutionalID),
			Status:          Status(core.CleanString(string(rec.Status), true /* lower */)),
		}
		fail := func(msg string) {
			res.Error = msg
			report.Failed++
			report.Results = append(report.Results, res)
		}

		if !res.Status.Valid() {
			fail(fmt.Sprintf("invalid status %q", rec.Status))
			continue
		}
		usr, err := svc.users.Resolve(ctx, res.Email, res.InstitutionalID)
		if err != nil {
			switch core.KindOf(err) {
			case core.KindNotFound:
				fail("user not found")
			case core.KindValidation:
				fail("email or institutional_id is required")
			default:
				return ImportReport{}, errors.Wrap(err, "users.Resolve()")
			}
			continue
		}
		res.UserID = usr.ID
		if !eligible[usr.ID] {
			fail("user is not enrolled as a student in this course")
			continue
		}
		if seen[usr.ID] {
			fail("duplicate record for this user")
			continue
		}
		seen[usr.ID] = true

		marks = append(marks, Attendance{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			UserID:    usr.ID,
			Status:    res.Status,
			MarkedBy:  p.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		res.Success = true
		report.Imported++
		report.Results = append(report.Results, res)
	}

	if len(marks) > 0 {
		err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
			return svc.repo.UpsertMarks(ctx, marks, exec)
		})
		if err != nil {
			return ImportReport{}, errors.Wrap(err, "repo.UpsertMarks()")
		}
	}
	svc.logger.Info(fmt.Sprintf("bulk import into session %s by %s: %d imported, %d failed",
		sess.ID, p.ID, report.Imported, report.Failed))
	return report, nil
}

// ListForSession returns the attendance records of a session.
func (svc *Service) ListForSession(ctx context.Context, sessionID string, p authz.Principal) ([]Attendance, error) {
	sess, err := svc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := svc.authorize(ctx, p, sess, authz.ActionViewAttendance); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, QueryFilter{SessionID: sess.ID})
}

// ListForUser returns the attendance records of one student across an offering.
// Students may list their own records.
func (svc *Service) ListForUser(ctx context.Context, offeringID, userID string, p authz.Principal) ([]Attendance, error) {
	if p.ID != userID {
		target := authz.Target{OfferingID: offeringID}
		if _, err := svc.gate.Authorize(ctx, p, target, authz.ActionViewAttendance); err != nil {
			return nil, err
		}
	}
	return svc.repo.QueryAttendance(ctx, QueryFilter{OfferingID: offeringID, UserID: userID})
}

// ParseStatus accepts a status in any letter case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}
