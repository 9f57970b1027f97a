// Package dummydb is an in-memory store implementing every repository, for tests and local runs.
// Executors passed to its repositories are ignored.
package dummydb

import (
	"context"
	"sync"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

type permissionKey struct {
	userID, key, offeringID, teamID string
}

// DB holds every table behind a single lock, so cross-table writes are atomic.
type DB struct {
	sync.RWMutex

	seq int

	users       map[string]*user.User
	offerings   map[string]*offering
	enrollments map[[2]string]*roster.Enrollment
	teams       map[string]*roster.Team
	members     []roster.TeamMember
	permissions map[permissionKey]bool
	sessions    map[string]*session.Session
	attendance  map[string]*attendance.Attendance
	questions   map[string]*question.Question
	responses   map[[2]string]*question.Response
}

type offering struct {
	roster.Offering
	seq int
}

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		offerings:   make(map[string]*offering),
		enrollments: make(map[[2]string]*roster.Enrollment),
		teams:       make(map[string]*roster.Team),
		permissions: make(map[permissionKey]bool),
		sessions:    make(map[string]*session.Session),
		attendance:  make(map[string]*attendance.Attendance),
		questions:   make(map[string]*question.Question),
		responses:   make(map[[2]string]*question.Response),
	}
}

// Transactor runs fn without isolation; writes are not rolled back on error.
type Transactor struct{}

var _ core.Transactor = Transactor{} // interface compliance check

func (Transactor) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}

