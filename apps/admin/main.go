package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	logsvc "github.com/Team04-UCSD-CSE210/conductor-app-sub001/services/logger"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database"
	sqlxrepos "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		stdLogger.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err := db.Ping(); err != nil {
		logger.Fatal("pinging database", err)
	}

	// start CLI
	cli := newCommandLine(conf, db, logger)
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newCommandLine(conf *core.Config, db *sqlx.DB, logger core.Logger) *commandLine {
	usrRepo := sqlxrepos.NewUserRepository(db)
	rosterRepo := sqlxrepos.NewRosterRepository(db)
	permRepo := sqlxrepos.NewPermissionRepository(db)
	attRepo := sqlxrepos.NewAttendanceRepository(db)
	tx := database.NewTransactor(db)

	gate := authz.NewResolver(rosterRepo, permRepo, logger)
	usrSvc := user.NewService(usrRepo)
	questionSvc := question.NewService(sqlxrepos.NewQuestionRepository(db))
	sessionSvc := session.NewService(conf, tx, sqlxrepos.NewSessionRepository(db), gate, rosterRepo, questionSvc, attRepo, logger)

	return &commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		perms:   permRepo,
		attSvc:  attendance.NewService(conf, tx, attRepo, sessionSvc, rosterRepo, usrSvc, questionSvc, gate, logger),
		out:     os.Stdout,
	}
}
