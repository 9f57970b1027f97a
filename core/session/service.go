package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/accesscode"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
)

var (
	// errors
	ErrNotFound        = core.NewError(core.KindNotFound, "session not found")
	ErrAccessCodeTaken = core.NewError(core.KindConflict, "access code is already in use")
	ErrAlreadyClosed   = core.NewError(core.KindAttendanceClosed, "attendance for this session is already closed")
)

type (
	Repository interface {
		accesscode.Checker
		// CreateSession returns ErrAccessCodeTaken when another live session holds the code.
		CreateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		// GetSession only sees sessions that are not deleted.
		GetSession(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Session, error)
		// UpdateSession writes the editable fields: schedule, title, description, code expiry and is_active.
		UpdateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		// SetAccessCode returns ErrAccessCodeTaken when another live session holds the code.
		SetAccessCode(ctx context.Context, id, code string, at time.Time, exec ...core.DBExecutor) error
		// OpenAttendance stamps attendance_opened_at only if the session is neither open nor closed,
		// reporting whether it did.
		OpenAttendance(ctx context.Context, id string, at time.Time, by string, exec ...core.DBExecutor) (bool, error)
		// CloseAttendance stamps attendance_closed_at (and attendance_opened_at when still unset) only if the
		// session is not closed yet, reporting whether it did.
		CloseAttendance(ctx context.Context, id string, at time.Time, by string, exec ...core.DBExecutor) (bool, error)
		DeleteSession(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	// Gate approves actions on sessions.
	Gate interface {
		Authorize(ctx context.Context, p authz.Principal, target authz.Target, action authz.Action) (authz.Decision, error)
	}

	// AbsenceFiller records an absence for every eligible student without attendance for the session.
	AbsenceFiller interface {
		FillAbsences(ctx context.Context, sessionID, offeringID string, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		conf      core.AttendanceConfig
		db        core.Transactor
		repo      Repository
		codes     *accesscode.Generator
		gate      Gate
		roster    roster.Repository
		questions *question.Service
		absences  AbsenceFiller
		logger    core.Logger
	}
)

func NewService(
	conf *core.Config,
	db core.Transactor,
	repo Repository,
	gate Gate,
	rosterRepo roster.Repository,
	questions *question.Service,
	absences AbsenceFiller,
	logger core.Logger,
) *Service {
	return &Service{
		conf:      conf.Attendance,
		db:        db,
		repo:      repo,
		codes:     accesscode.NewGenerator(repo, conf.Attendance.CodeLength, conf.Attendance.CodeMaxAttempts),
		gate:      gate,
		roster:    rosterRepo,
		questions: questions,
		absences:  absences,
		logger:    logger,
	}
}

// Target is what authorization decisions about the session look at.
func (s Session) Target() authz.Target {
	return authz.Target{OfferingID: s.OfferingID, TeamID: s.TeamID, CreatedBy: s.CreatedBy}
}

func (svc *Service) authorize(ctx context.Context, p authz.Principal, target authz.Target, action authz.Action) error {
	_, err := svc.gate.Authorize(ctx, p, target, action)
	return err
}

// withFreshCode runs fn in a transaction with a code no stored session holds.
// Losing a race on the unique index retries with another code, within the generator's bound.
func (svc *Service) withFreshCode(ctx context.Context, fn func(exec core.DBExecutor, code string) error) error {
	var err error
	for attempt := 0; attempt < svc.codes.MaxAttempts(); attempt++ {
		err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
			code, err := svc.codes.GenerateUnique(ctx, exec)
			if err != nil {
				return err
			}
			return fn(exec, code)
		})
		if errors.Cause(err) != ErrAccessCodeTaken {
			break
		}
	}
	if errors.Cause(err) == ErrAccessCodeTaken {
		err = accesscode.ErrExhaustedRetries
	}
	if errors.Cause(err) == accesscode.ErrExhaustedRetries {
		svc.logger.Error("access code generation exhausted its retries", err)
	}
	return err
}

// schedule composes the UTC start and end instants and the code expiry of a session.
func (svc *Service) schedule(loc *time.Location, date, clock, endClock string) (start time.Time, end *time.Time, expires time.Time, err error) {
	day, err := time.ParseInLocation(core.DateLayout, date, loc)
	if err != nil {
		return start, nil, expires, core.NewValidationError(err, core.FieldError{Field: "session_date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	start, err = time.ParseInLocation(core.DateLayout+" "+core.TimeLayout, date+" "+clock, loc)
	if err != nil {
		return start, nil, expires, core.NewValidationError(err, core.FieldError{Field: "session_time", Error: "must be a time of day formatted as HH:MM"})
	}
	start = start.UTC()
	expires = day.Add(svc.conf.CodeTTL).UTC()

	if endClock != "" {
		e, err := time.ParseInLocation(core.DateLayout+" "+core.TimeLayout, date+" "+endClock, loc)
		if err != nil {
			return start, nil, expires, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: "must be a time of day formatted as HH:MM"})
		}
		if !e.After(start) {
			err = errors.New("end_time must be after session_time")
			return start, nil, expires, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: err.Error()})
		}
		e = e.UTC()
		end, expires = &e, e
	}
	return start, end, expires, nil
}

func (svc *Service) location(ctx context.Context, offeringID string) (*time.Location, error) {
	offering, err := svc.roster.GetOffering(ctx, offeringID)
	if err != nil {
		return nil, errors.Wrap(err, "roster.GetOffering()")
	}
	return offering.Location(svc.conf.Location()), nil
}

// autoOpen applies the lazy auto-open rule to `sess`, in place.
func (svc *Service) autoOpen(ctx context.Context, sess *Session) error {
	d := DecideAutoOpen(core.NowFunc(), *sess)
	if !d.Open {
		return nil
	}
	opened, err := svc.repo.OpenAttendance(ctx, sess.ID, d.At, d.By)
	if err != nil {
		return errors.Wrap(err, "repo.OpenAttendance()")
	}
	if !opened {
		// another request got there first; keep its timestamp
		fresh, err := svc.repo.GetSession(ctx, GetFilter{ID: sess.ID})
		if err != nil {
			return errors.Wrap(err, "repo.GetSession()")
		}
		*sess = fresh
		return nil
	}
	at := d.At
	sess.AttendanceOpenedAt = &at
	sess.AttendanceOpenedBy = d.By
	sess.UpdatedAt = at
	svc.logger.Info(fmt.Sprintf("session %s auto-opened on behalf of %s", sess.ID, d.By))
	return nil
}

// Create schedules a new session and issues its access code.
func (svc *Service) Create(ctx context.Context, ns NewSession, p authz.Principal) (Session, error) {
	ns.Clean()
	if err := core.ValidateStruct(ns); err != nil {
		return Session{}, err
	}

	if ns.OfferingID == "" {
		offering, err := svc.roster.GetActiveOffering(ctx)
		if err != nil {
			return Session{}, errors.Wrap(err, "roster.GetActiveOffering()")
		}
		ns.OfferingID = offering.ID
	}
	if ns.TeamID != "" {
		team, err := svc.roster.GetTeam(ctx, ns.TeamID)
		if err != nil {
			return Session{}, errors.Wrap(err, "roster.GetTeam()")
		}
		if team.OfferingID != ns.OfferingID {
			err = errors.New("team does not belong to this offering")
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "team_id", Error: err.Error()})
		}
	}

	target := authz.Target{OfferingID: ns.OfferingID, TeamID: ns.TeamID}
	if err := svc.authorize(ctx, p, target, authz.ActionCreateSession); err != nil {
		return Session{}, err
	}

	loc, err := svc.location(ctx, ns.OfferingID)
	if err != nil {
		return Session{}, err
	}
	start, end, expires, err := svc.schedule(loc, ns.SessionDate, ns.SessionTime, ns.EndTime)
	if err != nil {
		return Session{}, err
	}

	now := core.NowFunc()
	sess := Session{
		ID:            uuid.NewString(),
		OfferingID:    ns.OfferingID,
		TeamID:        ns.TeamID,
		Title:         ns.Title,
		Description:   ns.Description,
		SessionDate:   ns.SessionDate,
		SessionTime:   ns.SessionTime,
		StartsAt:      start,
		EndsAt:        end,
		CodeExpiresAt: expires,
		IsActive:      true,
		CreatedBy:     p.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var created Session
	err = svc.withFreshCode(ctx, func(exec core.DBExecutor, code string) error {
		sess.AccessCode = code
		var err error
		if created, err = svc.repo.CreateSession(ctx, sess, exec); err != nil {
			return err
		}
		_, err = svc.questions.Create(ctx, sess.ID, ns.Questions, exec)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	if err := svc.autoOpen(ctx, &created); err != nil {
		return Session{}, err
	}
	return created, nil
}

// Get returns a live session, opening it first when its start has passed.
func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return Session{}, err
	}
	if err := svc.autoOpen(ctx, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetByCode resolves a session from its access code, applying the auto-open rule.
// Codes compare case-sensitively; anything outside the code alphabet is not found.
func (svc *Service) GetByCode(ctx context.Context, code string) (Session, error) {
	code = core.CleanString(code)
	if err := core.Validate.Var(code, "required,accesscode"); err != nil {
		return Session{}, ErrNotFound
	}
	sess, err := svc.repo.GetSession(ctx, GetFilter{AccessCode: code})
	if err != nil {
		return Session{}, err
	}
	if err := svc.autoOpen(ctx, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// VerifyCode returns what a student needs to see before checking in with `code`.
func (svc *Service) VerifyCode(ctx context.Context, code string) (PublicView, error) {
	sess, err := svc.GetByCode(ctx, code)
	if err != nil {
		return PublicView{}, err
	}
	if !sess.IsActive {
		return PublicView{}, ErrNotFound
	}
	qs, err := svc.questions.List(ctx, sess.ID)
	if err != nil {
		return PublicView{}, errors.Wrap(err, "questions.List()")
	}
	return sess.Public(core.NowFunc(), qs), nil
}

// List returns the sessions matching `filter`, ordered by start, each passed through the auto-open rule.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Session, error) {
	filter.OfferingID = core.CleanString(filter.OfferingID)
	filter.TeamID = core.CleanString(filter.TeamID)
	if filter.OfferingID == "" && filter.TeamID == "" {
		err := errors.New("offering_id or team_id is required")
		return nil, core.NewValidationError(err, core.FieldError{Field: "offering_id", Error: err.Error()})
	}
	sessions, err := svc.repo.QuerySessions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "repo.QuerySessions()")
	}
	for i := range sessions {
		if err := svc.autoOpen(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (svc *Service) ListByOffering(ctx context.Context, offeringID string) ([]Session, error) {
	return svc.List(ctx, QueryFilter{OfferingID: offeringID})
}

func (svc *Service) ListByTeam(ctx context.Context, teamID string) ([]Session, error) {
	return svc.List(ctx, QueryFilter{TeamID: teamID})
}

// Open opens the attendance window now. Opening an open session is a no-op.
func (svc *Service) Open(ctx context.Context, id string, p authz.Principal) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return Session{}, err
	}
	if err := svc.authorize(ctx, p, sess.Target(), authz.ActionOperateSession); err != nil {
		return Session{}, err
	}
	switch sess.State() {
	case StateClosed:
		return Session{}, ErrAlreadyClosed
	case StateOpen:
		return sess, nil
	}

	if _, err := svc.repo.OpenAttendance(ctx, id, core.NowFunc(), p.ID); err != nil {
		return Session{}, errors.Wrap(err, "repo.OpenAttendance()")
	}
	return svc.repo.GetSession(ctx, GetFilter{ID: id})
}

// Close records an absence for every eligible student who has not checked in, then closes the window.
// Closing again reports zero new absences.
func (svc *Service) Close(ctx context.Context, id string, p authz.Principal) (CloseReport, error) {
	sess, err := svc.Get(ctx, id)
	if err != nil {
		return CloseReport{}, err
	}
	if err := svc.authorize(ctx, p, sess.Target(), authz.ActionOperateSession); err != nil {
		return CloseReport{}, err
	}

	var (
		marked int
		closed bool
	)
	now := core.NowFunc()
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if marked, err = svc.absences.FillAbsences(ctx, sess.ID, sess.OfferingID, now, exec); err != nil {
			return errors.Wrap(err, "absences.FillAbsences()")
		}
		closed, err = svc.repo.CloseAttendance(ctx, sess.ID, now, p.ID, exec)
		return errors.Wrap(err, "repo.CloseAttendance()")
	})
	if err != nil {
		return CloseReport{}, err
	}
	if closed || marked > 0 {
		svc.logger.Info(fmt.Sprintf("session %s closed by %s: %d marked absent", sess.ID, p.ID, marked))
	}

	sess, err = svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return CloseReport{}, err
	}
	return CloseReport{Session: sess, MarkedAbsent: marked}, nil
}

// Update changes the editable fields of a session, keeping its attendance window as is.
func (svc *Service) Update(ctx context.Context, id string, us UpdateSession, p authz.Principal) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return Session{}, err
	}
	if err := svc.authorize(ctx, p, sess.Target(), authz.ActionEditSession); err != nil {
		return Session{}, err
	}
	us.Clean()
	if err := core.ValidateStruct(us); err != nil {
		return Session{}, err
	}

	if us.Title != "" {
		sess.Title = us.Title
	}
	if us.Description != nil {
		sess.Description = *us.Description
	}
	if us.SessionDate != "" {
		sess.SessionDate = us.SessionDate
	}
	if us.SessionTime != "" {
		sess.SessionTime = us.SessionTime
	}
	if us.IsActive != nil {
		sess.IsActive = *us.IsActive
	}
	loc, err := svc.location(ctx, sess.OfferingID)
	if err != nil {
		return Session{}, err
	}
	endClock := ""
	if sess.EndsAt != nil {
		endClock = sess.EndsAt.In(loc).Format(core.TimeLayout)
	}
	if us.EndTime != nil {
		endClock = *us.EndTime
	}
	if sess.StartsAt, sess.EndsAt, sess.CodeExpiresAt, err = svc.schedule(loc, sess.SessionDate, sess.SessionTime, endClock); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = core.NowFunc()

	updated, err := svc.repo.UpdateSession(ctx, sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "repo.UpdateSession()")
	}
	if err := svc.autoOpen(ctx, &updated); err != nil {
		return Session{}, err
	}
	return updated, nil
}

// Delete soft-deletes a session, which frees its access code.
func (svc *Service) Delete(ctx context.Context, id string, p authz.Principal) error {
	sess, err := svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if err := svc.authorize(ctx, p, sess.Target(), authz.ActionEditSession); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteSession(ctx, id, core.NowFunc()), "repo.DeleteSession()")
}

// RegenerateCode replaces the access code of a session with a fresh unique one.
func (svc *Service) RegenerateCode(ctx context.Context, id string, p authz.Principal) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, GetFilter{ID: id})
	if err != nil {
		return Session{}, err
	}
	if err := svc.authorize(ctx, p, sess.Target(), authz.ActionOperateSession); err != nil {
		return Session{}, err
	}
	err = svc.withFreshCode(ctx, func(exec core.DBExecutor, code string) error {
		return svc.repo.SetAccessCode(ctx, id, code, core.NowFunc(), exec)
	})
	if err != nil {
		return Session{}, err
	}
	return svc.Get(ctx, id)
}
