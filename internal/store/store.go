// Package store persists items and their surrounding records in SQLite.
// Functions take the *sql.DB explicitly and return nil, nil when a looked-up
// row does not exist.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	// ErrStale is returned when a compare-and-set finds the row in a
	// different state than expected.
	ErrStale = errors.New("item was changed by someone else")
	// ErrNotFound is returned by writes that need an existing row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an idempotent insert was already done.
	ErrDuplicate = errors.New("already recorded")
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime maps a nil pointer to NULL and stores times in UTC.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
