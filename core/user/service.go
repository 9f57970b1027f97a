package user

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

var (
	// errors
	ErrNotFound               = core.NewError(core.KindNotFound, "user not found")
	ErrEmailExists            = errors.New("a user with this email already exists")
	ErrInstitutionalIDExists  = errors.New("a user with this institutional id already exists")
	ErrInvalidCredentials     = core.NewError(core.KindValidation, "invalid credentials")
	errMissingLookupAttribute = core.NewValidationError(errors.New("email or institutional_id is required"),
		core.FieldError{Field: "email", Error: "email or institutional_id is required"})
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrInstitutionalIDExists when another user holds the value.
		CheckUniqueness(ctx context.Context, email, institutionalID string, excludedID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, email, institutionalID, excludedID string) error {
	if err := svc.repo.CheckUniqueness(ctx, email, institutionalID, excludedID); err != nil {
		var field string
		switch err {
		case ErrEmailExists:
			field = "email"
		case ErrInstitutionalIDExists:
			field = "institutional_id"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := core.ValidateStruct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email, nu.InstitutionalID, ""); err != nil {
		return User{}, err
	}
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}

	now := core.NowFunc()
	usr := User{
		Name:            nu.Name,
		Email:           nu.Email,
		InstitutionalID: nu.InstitutionalID,
		IsActive:        true,
		Roles:           roles,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Resolve finds a user by email, falling back to the institutional id.
func (svc *Service) Resolve(ctx context.Context, email, institutionalID string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	institutionalID = core.CleanString(institutionalID)
	if email == "" && institutionalID == "" {
		return User{}, errMissingLookupAttribute
	}
	if email != "" {
		usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
		if err == nil || institutionalID == "" || errors.Cause(err) != ErrNotFound {
			return usr, err
		}
	}
	return svc.repo.GetUser(ctx, GetFilter{InstitutionalID: institutionalID})
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, login Login) (User, error) {
	if err := core.ValidateStruct(login); err != nil {
		return User{}, err
	}
	var email, institutionalID string
	if strings.Contains(login.Login, "@") {
		email = login.Login
	} else {
		institutionalID = login.Login
	}
	usr, err := svc.Resolve(ctx, email, institutionalID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsActive || usr.CheckPassword(login.Password) != nil {
		return User{}, ErrInvalidCredentials
	}
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword validates `sp` against the password policy and stores the new hash.
func (svc *Service) SetPassword(ctx context.Context, id string, sp SetPassword) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	sp.usr = usr
	if err := core.ValidateStruct(sp); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}
