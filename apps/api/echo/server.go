package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

type (
	Deps struct {
		Gate          session.Gate
		UserSvc       *user.Service
		SessionSvc    *session.Service
		AttendanceSvc *attendance.Service
		StatsSvc      *stats.Service
	}

	Options struct {
		DisableReqLogs bool
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     *Deps
		auth     *authenticator
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps, opts ...Options) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		auth:     newAuthenticator(conf, deps.UserSvc),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	s.setup(opt)
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s
}

func (s *Server) setup(opt Options) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !opt.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	authed := []echo.MiddlewareFunc{jwt, s.auth.principalMiddleware}

	registerUserAPI(v1, s.auth, authed)
	registerSessionAPI(v1, s.conf, s.deps.SessionSvc, s.deps.Gate, authed)
	registerAttendanceAPI(v1, s.deps.AttendanceSvc, s.deps.StatsSvc, authed)
}

// Start blocks until the listener stops; the failure is reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
