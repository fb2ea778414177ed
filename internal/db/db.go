package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas are applied by the driver to every new connection in the pool.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// dsn builds a modernc.org/sqlite connection string for path. Transactions
// start with BEGIN IMMEDIATE so concurrent transitions queue on the write
// lock instead of failing when they upgrade from a read.
func dsn(path string) string {
	v := url.Values{}
	for _, p := range pragmas {
		v.Add("_pragma", p)
	}
	v.Set("_txlock", "immediate")

	if path != ":memory:" {
		path = strings.ReplaceAll(path, "?", "%3F")
	}
	return "file:" + path + "?" + v.Encode()
}

// Open opens a SQLite database and checks that it is reachable.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return db, nil
}
