package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

// findUser looks a user up by email when `login` holds an "@", by institutional id otherwise.
func (cli *commandLine) findUser(ctx context.Context, login string) (user.User, error) {
	if strings.Contains(login, "@") {
		return cli.usrSvc.Resolve(ctx, login, "")
	}
	return cli.usrSvc.Resolve(ctx, "", login)
}

// addUser updates or creates a user.User. The password policy does not apply here.
func (cli *commandLine) addUser(name, email, institutionalID, pwd string, isInstructor, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	institutionalID = core.CleanString(institutionalID)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Email: email, Roles: []string{user.RoleStudent}, CreatedAt: core.NowFunc()}
	}
	if err := cli.usrRepo.CheckUniqueness(ctx, email, institutionalID, usr.ID); err != nil {
		return err
	}

	usr.Name = name
	if institutionalID != "" {
		usr.InstitutionalID = institutionalID
	}
	switch {
	case isAdmin:
		usr.Roles = user.AllRoles
	case isInstructor && !usr.IsInstructor():
		usr.Roles = append(usr.Roles, user.RoleInstructor)
	}
	usr.IsActive = true
	usr.UpdatedAt = core.NowFunc()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s (%s) saved with roles %v\n", usr.Email, usr.ID, usr.Roles)
	return nil
}
