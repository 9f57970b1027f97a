package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

// Roles
const (
	RoleAdmin      = "admin:"
	RoleInstructor = "instructor:"
	RoleStudent    = "student:"
)

var AllRoles = []string{RoleAdmin, RoleInstructor, RoleStudent}

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	InstitutionalID string    `json:"institutional_id,omitempty"`
	IsActive        bool      `json:"is_active"`
	Roles           []string  `json:"roles"`
	PasswordHash    []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
	LastLogin       time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsInstructor() bool {
	return u.RoleStartsWith(RoleInstructor)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	InstitutionalID string   `json:"institutional_id" validate:"omitempty,alphanum_"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.InstitutionalID = core.CleanString(nu.InstitutionalID)
}

// SetPassword replaces the password of an existing User.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User
}

// Login carries the credentials exchanged for an access token.
type Login struct {
	Login    string `json:"login" validate:"required"` // email or institutional id
	Password string `json:"password" validate:"required"`
}

// GetFilter selects a single user by the first non-empty field.
type GetFilter struct {
	ID              string
	Email           string
	InstitutionalID string
}
