package main

import "context"

func (cli *commandLine) resetPassword(login, pwd string) error {
	ctx := context.Background()
	usr, err := cli.findUser(ctx, login)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
