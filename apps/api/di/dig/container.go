package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/Team04-UCSD-CSE210/conductor-app-sub001/apps/api/echo"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	logsvc "github.com/Team04-UCSD-CSE210/conductor-app-sub001/services/logger"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database"
	sqlxrepos "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Gate          session.Gate
	UserSvc       *user.Service
	SessionSvc    *session.Service
	AttendanceSvc *attendance.Service
	StatsSvc      *stats.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newTransactor(db *sqlx.DB) core.Transactor {
	return database.NewTransactor(db)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, &echoapi.Deps{
		Gate:          p.Gate,
		UserSvc:       p.UserSvc,
		SessionSvc:    p.SessionSvc,
		AttendanceSvc: p.AttendanceSvc,
		StatsSvc:      p.StatsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newTransactor))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewRosterRepository, dig.As(new(roster.Repository))))
	must(c.Provide(sqlxrepos.NewPermissionRepository, dig.As(new(authz.PermissionService))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(session.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository), new(session.AbsenceFiller))))
	must(c.Provide(sqlxrepos.NewQuestionRepository, dig.As(new(question.Repository))))
	must(c.Provide(sqlxrepos.NewStatsRepository, dig.As(new(stats.Repository))))

	// services
	must(c.Provide(authz.NewResolver, dig.As(new(session.Gate))))
	must(c.Provide(user.NewService))
	must(c.Provide(question.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(stats.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
