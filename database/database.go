package database

import (
	"database/sql"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// connection pragmas understood by go-sqlite3
var pragmas = url.Values{
	"_busy_timeout": {"5000"},
	"_journal_mode": {"WAL"},
	"_foreign_keys": {"on"},
	// writers take the lock at BEGIN, so reads inside a write transaction
	// see no concurrent inserts
	"_txlock": {"immediate"},
}

// dsn appends the connection pragmas to path, keeping any the caller set.
func dsn(path string) string {
	base, query, _ := strings.Cut(path, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	for k, v := range pragmas {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}
	return base + "?" + values.Encode()
}

// Open opens the SQLite database at path and brings its schema up to date.
func Open(path string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
