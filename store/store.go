// Package store holds the SQL behind every persisted entity.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("version conflict")
	ErrDuplicate = errors.New("already exists")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Now is the clock used for created/updated stamps. Tests replace it.
var Now = func() time.Time {
	return time.Now().UTC()
}

func newPublicID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generate id")
	}
	return id.String(), nil
}

// NewSecret returns a random hex secret.
func NewSecret() (string, error) {
	a, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generate secret")
	}
	b, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generate secret")
	}
	return hex.EncodeToString(a.Bytes()) + hex.EncodeToString(b.Bytes()), nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}
