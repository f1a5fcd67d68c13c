package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

// CreditPayment records p and moves the user's paid-until date to
// extend(current). A reference is credited once: replays return ErrDuplicate.
func CreditPayment(ctx context.Context, db *sql.DB, p model.Payment, extend func(current *time.Time) time.Time) (time.Time, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if p.PaidAt.IsZero() {
		p.PaidAt = Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment (reference, user_id, amount, currency, status, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Reference, p.UserID, p.Amount, p.Currency, p.Status, p.PaidAt.UTC(),
	)
	if isUniqueViolation(err) {
		return time.Time{}, ErrDuplicate
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "insert payment")
	}

	user, err := GetUser(ctx, tx, p.UserID)
	if err != nil {
		return time.Time{}, err
	}

	paidUntil := extend(user.PaidUntil).UTC()
	_, err = tx.ExecContext(ctx, `UPDATE user SET paid_until = ? WHERE id = ?`, paidUntil, p.UserID)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "extend subscription")
	}

	return paidUntil, errors.Wrap(tx.Commit(), "commit payment")
}

func ListPayments(ctx context.Context, db DBTX, userID int) ([]model.Payment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT reference, user_id, amount, currency, status, paid_at
		FROM payment
		WHERE user_id = ?
		ORDER BY paid_at DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.Reference, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.PaidAt); err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		payments = append(payments, p)
	}
	return payments, errors.Wrap(rows.Err(), "list payments")
}
