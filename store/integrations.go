package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

// CreateIntegration registers an outbound target and generates its signing secret.
func CreateIntegration(ctx context.Context, db DBTX, in *model.Integration) error {
	secret, err := NewSecret()
	if err != nil {
		return err
	}
	now := Now()

	var formID sql.NullInt64
	if in.FormID != nil {
		formID = sql.NullInt64{Int64: int64(*in.FormID), Valid: true}
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO integration (user_id, form_id, kind, target_url, secret, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		in.UserID, formID, string(in.Kind), in.TargetURL, secret, now,
	).Scan(&in.ID)
	if err != nil {
		return errors.Wrap(err, "insert integration")
	}
	in.Secret = secret
	in.CreatedAt = now
	return nil
}

func scanIntegrations(rows *sql.Rows) ([]model.Integration, error) {
	defer rows.Close()

	integrations := []model.Integration{}
	for rows.Next() {
		var in model.Integration
		var formID sql.NullInt64
		var kind string
		if err := rows.Scan(&in.ID, &in.UserID, &formID, &kind, &in.TargetURL, &in.Secret, &in.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan integration")
		}
		if formID.Valid {
			id := int(formID.Int64)
			in.FormID = &id
		}
		in.Kind = model.IntegrationKind(kind)
		integrations = append(integrations, in)
	}
	return integrations, errors.Wrap(rows.Err(), "read integrations")
}

func ListIntegrations(ctx context.Context, db DBTX, userID int) ([]model.Integration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, form_id, kind, target_url, secret, created_at
		FROM integration
		WHERE user_id = ?
		ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list integrations")
	}
	return scanIntegrations(rows)
}

// FormIntegrations returns the targets that receive submissions of a form:
// the ones bound to it and the owner's catch-all ones.
func FormIntegrations(ctx context.Context, db DBTX, userID, formID int) ([]model.Integration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, form_id, kind, target_url, secret, created_at
		FROM integration
		WHERE user_id = ?
			AND (form_id IS NULL OR form_id = ?)
		ORDER BY id`,
		userID, formID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list form integrations")
	}
	return scanIntegrations(rows)
}

func DeleteIntegration(ctx context.Context, db DBTX, userID, id int) error {
	res, err := db.ExecContext(ctx, `DELETE FROM integration WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete integration")
	}
	return affectedOne(res)
}
