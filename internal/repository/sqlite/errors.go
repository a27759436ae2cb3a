package sqlite

import (
	"errors"

	"github.com/sakif/master-of-jokes/internal/apperror"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteCode extracts the SQLite result code from err, or 0 if err did not
// come from the driver.
func sqliteCode(err error) int {
	var sErr *msqlite.Error
	if errors.As(err, &sErr) {
		return sErr.Code()
	}
	return 0
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	switch sqliteCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// translateError turns lock contention into apperror.ErrConflict so callers
// can retry. The low byte of an extended result code is the primary code
// (SQLITE_BUSY_SNAPSHOT & 0xff == SQLITE_BUSY).
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch sqliteCode(err) & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "database is busy, try again",
		}
	}
	return err
}
