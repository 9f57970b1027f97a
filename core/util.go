package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SystemActor is recorded as the actor of transitions no user triggered (e.g. auto-open).
const SystemActor = "system"

// NowFunc returns the current time at the precision the database keeps; tests replace it to pin the clock.
var NowFunc = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd finds the project root (the closest parent directory holding go.mod).
// go-test changes the working directory to the package being tested, so config lookups walk up from there.
func Getwd() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "os.Getwd()")
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir, nil
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return "", errors.New("project root not found")
		}
		currDir = newDir
	}
}

// Contains reports whether `s` is in `list`.
func Contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
