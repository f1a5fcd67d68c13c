package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

// CreateUser registers a new owner. The email must be unused.
func CreateUser(ctx context.Context, db DBTX, email string, passwordHash []byte) (id int, err error) {
	err = db.QueryRowContext(ctx, `
		INSERT INTO user (email, password_hash, created_at) VALUES (?, ?, ?)
		RETURNING id`,
		email, passwordHash, Now(),
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, errors.Wrap(err, "insert user")
}

func scanUser(row scanner) (u model.User, err error) {
	var paidUntil sql.NullTime
	err = row.Scan(&u.ID, &u.Email, &paidUntil, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, errors.Wrap(err, "scan user")
	}
	if paidUntil.Valid {
		t := paidUntil.Time.UTC()
		u.PaidUntil = &t
	}
	return u, nil
}

func GetUser(ctx context.Context, db DBTX, id int) (model.User, error) {
	return scanUser(db.QueryRowContext(ctx, `
		SELECT id, email, paid_until, created_at FROM user WHERE id = ?`, id))
}

func GetUserByEmail(ctx context.Context, db DBTX, email string) (model.User, error) {
	return scanUser(db.QueryRowContext(ctx, `
		SELECT id, email, paid_until, created_at FROM user WHERE email = ?`, email))
}

// Credentials returns the id and password hash registered for email.
func Credentials(ctx context.Context, db DBTX, email string) (id int, hash []byte, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM user WHERE email = ?`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	return id, hash, errors.Wrap(err, "get credentials")
}

// StoreToken records a refresh token id pair issued to username.
func StoreToken(ctx context.Context, db DBTX, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)`,
		username, tokenID, refreshTokenID, expiration.UTC(),
	)
	return errors.Wrap(err, "store token")
}

// ConsumeToken deletes a refresh token id pair and returns its expiration.
// Each pair can be consumed once.
func ConsumeToken(ctx context.Context, db DBTX, username, tokenID, refreshTokenID string) (expiration time.Time, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT expiration FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		username, tokenID, refreshTokenID,
	).Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return expiration, ErrNotFound
	}
	if err != nil {
		return expiration, errors.Wrap(err, "find token")
	}

	res, err := db.ExecContext(ctx, `
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		username, tokenID, refreshTokenID,
	)
	if err != nil {
		return expiration, errors.Wrap(err, "consume token")
	}
	// a concurrent refresh got there first
	return expiration, affectedOne(res)
}
