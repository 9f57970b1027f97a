package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// IsUniqueViolation reports whether err was raised by a unique constraint whose name or columns mention `key`.
func IsUniqueViolation(err error, key string) bool {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Code == "23505" && strings.Contains(e.Constraint, key)
	case sqlite3.Error:
		return e.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(e.Error(), key)
	}
	return false
}
