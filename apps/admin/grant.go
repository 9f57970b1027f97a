package main

import (
	"context"
	"fmt"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
)

var errUnknownCapability = fmt.Errorf("unknown capability, expected one of %v", authz.AllCapabilities)

func (cli *commandLine) grant(login, key, offeringID, teamID string, revoke bool) error {
	ctx := context.Background()
	known := false
	for _, c := range authz.AllCapabilities {
		if string(c) == key {
			known = true
			break
		}
	}
	if !known {
		return errUnknownCapability
	}

	usr, err := cli.findUser(ctx, login)
	if err != nil {
		return err
	}
	offeringID, teamID = core.CleanString(offeringID), core.CleanString(teamID)
	if revoke {
		if err := cli.perms.Revoke(ctx, usr.ID, key, offeringID, teamID); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "revoked %s from %s\n", key, usr.Email)
		return nil
	}
	if err := cli.perms.Grant(ctx, usr.ID, key, offeringID, teamID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "granted %s to %s\n", key, usr.Email)
	return nil
}
