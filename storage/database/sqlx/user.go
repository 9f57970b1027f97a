package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database"
)

var userColumns = []string{
	"id", "name", "email", "institutional_id", "roles", "password_hash",
	"is_active", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Email           string      `db:"email"`
	InstitutionalID null.String `db:"institutional_id"`
	Roles           string      `db:"roles"`
	PasswordHash    string      `db:"password_hash"`
	IsActive        bool        `db:"is_active"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
	LastLogin       null.Time   `db:"last_login"`
}

// boilUser converts a user.User into its table row
func boilUser(usr user.User) userRow {
	return userRow{
		ID:              usr.ID,
		Name:            usr.Name,
		Email:           usr.Email,
		InstitutionalID: null.NewString(usr.InstitutionalID, usr.InstitutionalID != ""),
		Roles:           strings.Join(usr.Roles, ","),
		PasswordHash:    string(usr.PasswordHash),
		IsActive:        usr.IsActive,
		CreatedAt:       usr.CreatedAt,
		UpdatedAt:       usr.UpdatedAt,
		LastLogin:       null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

// unboil converts a user row into a user.User
func (row userRow) unboil() user.User {
	var roles []string
	if row.Roles != "" {
		roles = strings.Split(row.Roles, ",")
	}
	usr := user.User{
		ID:              row.ID,
		Name:            row.Name,
		Email:           row.Email,
		InstitutionalID: row.InstitutionalID.String,
		IsActive:        row.IsActive,
		Roles:           roles,
		PasswordHash:    []byte(row.PasswordHash),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, email, institutionalID, excludedID string, svcExec ...core.DBExecutor) error {
	or := sq.Or{sq.Eq{"email": email}}
	if institutionalID != "" {
		or = append(or, sq.Eq{"institutional_id": institutionalID})
	}
	q := builder.Select("email", "institutional_id").From("users").Where(or).Limit(1)
	if excludedID != "" {
		q = q.Where(sq.NotEq{"id": excludedID})
	}

	var row userRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return trapNoRowsErr(err, nil, "getQ()")
	}
	if row.Email == email {
		return user.ErrEmailExists
	}
	return user.ErrInstitutionalIDExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, svcExec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := boilUser(usr)
	q := builder.Insert("users").Columns(userColumns...).Values(
		row.ID, row.Name, row.Email, row.InstitutionalID, row.Roles, row.PasswordHash,
		row.IsActive, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if _, err := execQ(ctx, repo.getExec(svcExec), q); err != nil {
		return user.User{}, repo.trapUniqueErr(err, "execQ()")
	}
	return row.unboil(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, svcExec ...core.DBExecutor) (user.User, error) {
	q := builder.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	case filter.InstitutionalID != "":
		q = q.Where(sq.Eq{"institutional_id": filter.InstitutionalID})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getQ(ctx, repo.getExec(svcExec), &row, q); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getQ()")
	}
	return row.unboil(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, svcExec ...core.DBExecutor) (user.User, error) {
	row := boilUser(usr)
	q := builder.Update("users").
		Set("name", row.Name).
		Set("email", row.Email).
		Set("institutional_id", row.InstitutionalID).
		Set("roles", row.Roles).
		Set("password_hash", row.PasswordHash).
		Set("is_active", row.IsActive).
		Set("updated_at", row.UpdatedAt).
		Set("last_login", row.LastLogin).
		Where(sq.Eq{"id": row.ID})

	n, err := execAffected(ctx, repo.getExec(svcExec), q)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "execAffected()")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.unboil(), nil
}

func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	switch {
	case database.IsUniqueViolation(err, "email"):
		return user.ErrEmailExists
	case database.IsUniqueViolation(err, "institutional_id"):
		return user.ErrInstitutionalIDExists
	}
	return errors.Wrap(err, msg)
}
