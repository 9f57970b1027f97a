package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
	usrSvc  *user.Service
	perms   authz.PermissionStore
	attSvc  *attendance.Service
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-pid ID] [-instructor] [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -login EMAIL|PID - reset user's password")
	fmt.Fprintln(cli.out, "  grant -login EMAIL|PID -perm KEY -offering ID [-team ID] [-revoke] - grant or revoke a capability")
	fmt.Fprintln(cli.out, "  importattendance -session ID -file CSV -as EMAIL|PID - bulk import attendance records")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserPID := addUserCmd.String("pid", "", "The user's institutional id.")
	addUserInstructor := addUserCmd.Bool("instructor", false, "Give the user the instructor role.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Give the user every role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordLogin := resetPasswordCmd.String("login", "", "The user's email or institutional id. The password will be prompted next.")

	grantCmd := flag.NewFlagSet("grant", flag.ContinueOnError)
	grantLogin := grantCmd.String("login", "", "The user's email or institutional id.")
	grantPerm := grantCmd.String("perm", "", "The capability: session.manage or attendance.mark.")
	grantOffering := grantCmd.String("offering", "", "The course offering id.")
	grantTeam := grantCmd.String("team", "", "Restrict the grant to one team.")
	grantRevoke := grantCmd.Bool("revoke", false, "Revoke instead of granting.")

	importCmd := flag.NewFlagSet("importattendance", flag.ContinueOnError)
	importSession := importCmd.String("session", "", "The session id.")
	importFile := importCmd.String("file", "", "CSV file with an email or institutional_id column and a status column.")
	importAs := importCmd.String("as", "", "Email or institutional id of the instructor importing.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, grantCmd, importCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserPID, pwd, *addUserInstructor, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordLogin == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordLogin, pwd)

	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *grantLogin == "" || *grantPerm == "" || *grantOffering == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grant(*grantLogin, *grantPerm, *grantOffering, *grantTeam, *grantRevoke)

	case "importattendance":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importSession == "" || *importFile == "" || *importAs == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importAttendance(*importSession, *importFile, *importAs)

	default:
		cli.printUsage()
		return errHelp
	}
}
