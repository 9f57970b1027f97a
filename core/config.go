package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite3 only
	}

	AttendanceConfig struct {
		GracePeriod     time.Duration
		CodeLength      int
		CodeMaxAttempts int
		CodeTTL         time.Duration
		Timezone        string
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Attendance   AttendanceConfig
	}
)

// Address returns the "host:port" of the postgres server.
func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location returns the course timezone used to compose session start instants.
func (c AttendanceConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// NewConfig loads the configuration of the current environment ($ENV).
// Values come from the environment, optionally seeded from config/.env.<env>.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Conductor")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k7#d2x!q$9v^m0r=conductor-dev-only&w8e@z4n")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.address", "http://localhost:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "conductor")
	v.SetDefault("database.user", "conductor")
	v.SetDefault("database.password", "conductor")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "conductor.db")

	v.SetDefault("attendance.gracePeriod", 15*time.Minute)
	v.SetDefault("attendance.codeLength", 6)
	v.SetDefault("attendance.codeMaxAttempts", 10)
	v.SetDefault("attendance.codeTTL", 24*time.Hour)
	v.SetDefault("attendance.timezone", "UTC")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "godotenv.Load(%s)", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "os.Stat(%s)", dotEnvPath)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Attendance: AttendanceConfig{
			GracePeriod:     v.GetDuration("attendance.gracePeriod"),
			CodeLength:      v.GetInt("attendance.codeLength"),
			CodeMaxAttempts: v.GetInt("attendance.codeMaxAttempts"),
			CodeTTL:         v.GetDuration("attendance.codeTTL"),
			Timezone:        v.GetString("attendance.timezone"),
		},
	}
	if _, err := time.LoadLocation(conf.Attendance.Timezone); err != nil {
		return nil, errors.Wrapf(err, "attendance.timezone %q", conf.Attendance.Timezone)
	}
	return conf, nil
}

// NewTestConfig returns the configuration used by tests: sqlite3 engine, no rollbar.
func NewTestConfig() *Config {
	return &Config{
		Env:       "TEST",
		AppName:   "Conductor",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: ServerConfig{
			Host:                      "127.0.0.1:0",
			Address:                   "http://localhost:8000",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 30 * time.Minute,
		},
		Database: DatabaseConfig{Engine: "sqlite3"},
		Attendance: AttendanceConfig{
			GracePeriod:     15 * time.Minute,
			CodeLength:      6,
			CodeMaxAttempts: 10,
			CodeTTL:         24 * time.Hour,
			Timezone:        "UTC",
		},
	}
}
