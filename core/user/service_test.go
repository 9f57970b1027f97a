package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	dummydb "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/dummy"
)

const strongPwd = "Str0ng!Pass"

func newService(t *testing.T) (*user.Service, user.User) {
	t.Helper()
	svc := user.NewService(dummydb.NewUserRepository(dummydb.Open()))
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:            " Jane Doe ",
		Email:           "Jane@UCSD.edu",
		InstitutionalID: "A12345678",
		Password:        strongPwd,
		PasswordConfirm: strongPwd,
	})
	require.NoError(t, err)
	return svc, usr
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "err = %v", err)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	return fields
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, usr := newService(t)
	assert.Equal(t, "Jane Doe", usr.Name)
	assert.Equal(t, "jane@ucsd.edu", usr.Email)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(strongPwd))

	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields []string
	}{
		{name: "duplicate email", nu: user.NewUser{Name: "J", Email: "JANE@ucsd.edu", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"email"}},
		{name: "duplicate institutional id", nu: user.NewUser{Name: "J", Email: "j2@ucsd.edu", InstitutionalID: "A12345678", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"institutional_id"}},
		{name: "bad email", nu: user.NewUser{Name: "J", Email: "nope", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"email"}},
		{name: "password mismatch", nu: user.NewUser{Name: "J", Email: "j3@ucsd.edu", Password: strongPwd, PasswordConfirm: strongPwd + "x"},
			wantFields: []string{"password_confirm"}},
		{name: "short password", nu: user.NewUser{Name: "J", Email: "j4@ucsd.edu", Password: "Ab1!", PasswordConfirm: "Ab1!"},
			wantFields: []string{"password"}},
		{name: "simple password", nu: user.NewUser{Name: "J", Email: "j5@ucsd.edu", Password: "abcdefgh", PasswordConfirm: "abcdefgh"},
			wantFields: []string{"password"}},
		{name: "invalid role", nu: user.NewUser{Name: "J", Email: "j6@ucsd.edu", Password: strongPwd, PasswordConfirm: strongPwd, Roles: []string{"god:"}},
			wantFields: []string{"roles"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nu)
			require.True(t, core.IsKind(err, core.KindValidation), "err = %v", err)
			assert.Equal(t, tt.wantFields, fieldsOf(t, err))
		})
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	svc, usr := newService(t)

	tests := []struct {
		name          string
		email, instID string
		wantErr       bool
		wantKind      core.ErrorKind
	}{
		{name: "by email", email: " JANE@ucsd.edu "},
		{name: "by institutional id", instID: "A12345678"},
		{name: "falls back to institutional id", email: "old@ucsd.edu", instID: "A12345678"},
		{name: "unknown", email: "old@ucsd.edu", wantErr: true, wantKind: core.KindNotFound},
		{name: "nothing to look up", wantErr: true, wantKind: core.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Resolve(ctx, tt.email, tt.instID)
			if tt.wantErr {
				assert.Equal(t, tt.wantKind, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc, usr := newService(t)

	got, err := svc.Authenticate(ctx, user.Login{Login: "jane@ucsd.edu", Password: strongPwd})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.False(t, got.LastLogin.IsZero())

	_, err = svc.Authenticate(ctx, user.Login{Login: "A12345678", Password: strongPwd})
	assert.NoError(t, err)

	_, err = svc.Authenticate(ctx, user.Login{Login: "jane@ucsd.edu", Password: "wrong"})
	assert.Equal(t, user.ErrInvalidCredentials, err)
	_, err = svc.Authenticate(ctx, user.Login{Login: "who@ucsd.edu", Password: strongPwd})
	assert.Equal(t, user.ErrInvalidCredentials, err)
	_, err = svc.Authenticate(ctx, user.Login{})
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestService_SetPassword(t *testing.T) {
	ctx := context.Background()
	svc, usr := newService(t)

	_, err := svc.SetPassword(ctx, usr.ID, user.SetPassword{Password: "jane@ucsd.edU1", PasswordConfirm: "jane@ucsd.edU1"})
	assert.True(t, core.IsKind(err, core.KindValidation), "a password similar to the email is rejected")

	newPwd := "N3w&Better"
	updated, err := svc.SetPassword(ctx, usr.ID, user.SetPassword{Password: newPwd, PasswordConfirm: newPwd})
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword(newPwd))

	_, err = svc.SetPassword(ctx, "nope", user.SetPassword{Password: newPwd, PasswordConfirm: newPwd})
	assert.Equal(t, user.ErrNotFound, err)
}
