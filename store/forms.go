package store

import (
	"context"
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

const formColumns = `
	f.id, f.public_id, f.user_id, f.version, f.title, f.description,
	f.blocks, f.questions, f.media, f.style, f.settings,
	f.is_published, f.share_url, f.created_at, f.updated_at`

type formDocs struct {
	blocks, questions, media, style, settings []byte
}

func encodeForm(f model.Form) (docs formDocs, err error) {
	if f.Blocks == nil {
		f.Blocks = []model.Block{}
	}
	if f.Questions == nil {
		f.Questions = []model.Question{}
	}
	if f.Media == nil {
		f.Media = map[string]any{}
	}
	if f.Style == nil {
		f.Style = map[string]any{}
	}
	if docs.blocks, err = json.Marshal(f.Blocks); err != nil {
		return docs, errors.Wrap(err, "encode blocks")
	}
	if docs.questions, err = json.Marshal(f.Questions); err != nil {
		return docs, errors.Wrap(err, "encode questions")
	}
	if docs.media, err = json.Marshal(f.Media); err != nil {
		return docs, errors.Wrap(err, "encode media")
	}
	if docs.style, err = json.Marshal(f.Style); err != nil {
		return docs, errors.Wrap(err, "encode style")
	}
	if docs.settings, err = json.Marshal(f.Settings); err != nil {
		return docs, errors.Wrap(err, "encode settings")
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(row scanner, extra ...any) (f model.Form, err error) {
	var blocks, questions, media, style, settings string
	dest := []any{
		&f.ID, &f.PublicID, &f.UserID, &f.Version, &f.Title, &f.Description,
		&blocks, &questions, &media, &style, &settings,
		&f.IsPublished, &f.ShareURL, &f.CreatedAt, &f.UpdatedAt,
	}
	if err = row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return f, ErrNotFound
		}
		return f, errors.Wrap(err, "scan form")
	}

	if err = json.Unmarshal([]byte(blocks), &f.Blocks); err != nil {
		return f, errors.Wrap(err, "decode blocks")
	}
	if err = json.Unmarshal([]byte(questions), &f.Questions); err != nil {
		return f, errors.Wrap(err, "decode questions")
	}
	if err = json.Unmarshal([]byte(media), &f.Media); err != nil {
		return f, errors.Wrap(err, "decode media")
	}
	if err = json.Unmarshal([]byte(style), &f.Style); err != nil {
		return f, errors.Wrap(err, "decode style")
	}
	if err = json.Unmarshal([]byte(settings), &f.Settings); err != nil {
		return f, errors.Wrap(err, "decode settings")
	}
	return f, nil
}

// CreateForm inserts f as a new unpublished form and fills in its generated fields.
func CreateForm(ctx context.Context, db DBTX, f *model.Form) error {
	docs, err := encodeForm(*f)
	if err != nil {
		return err
	}
	publicID, err := newPublicID()
	if err != nil {
		return err
	}

	now := Now()
	err = db.QueryRowContext(ctx, `
		INSERT INTO form (
			public_id, user_id, title, description,
			blocks, questions, media, style, settings,
			is_published, share_url, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)
		RETURNING id, version`,
		publicID, f.UserID, f.Title, f.Description,
		string(docs.blocks), string(docs.questions), string(docs.media), string(docs.style), string(docs.settings),
		now, now,
	).Scan(&f.ID, &f.Version)
	if err != nil {
		return errors.Wrap(err, "insert form")
	}

	f.PublicID = publicID
	f.IsPublished = false
	f.ShareURL = ""
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// GetForm returns form id if it belongs to userID.
func GetForm(ctx context.Context, db DBTX, userID, id int) (model.Form, error) {
	row := db.QueryRowContext(ctx, `
		SELECT`+formColumns+`
		FROM form f
		WHERE f.id = ? AND f.user_id = ?`,
		id, userID,
	)
	return scanForm(row)
}

func GetFormByPublicID(ctx context.Context, db DBTX, publicID string) (model.Form, error) {
	row := db.QueryRowContext(ctx, `
		SELECT`+formColumns+`
		FROM form f
		WHERE f.public_id = ?`,
		publicID,
	)
	return scanForm(row)
}

// ListForms returns the forms of userID, most recently updated first, with
// their submission counts.
func ListForms(ctx context.Context, db DBTX, userID int) ([]model.Form, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT`+formColumns+`,
			(SELECT COUNT(*) FROM submission s WHERE s.form_id = f.id)
		FROM form f
		WHERE f.user_id = ?
		ORDER BY f.updated_at DESC, f.id DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list forms")
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		var count int
		f, err := scanForm(rows, &count)
		if err != nil {
			return nil, err
		}
		f.SubmissionCount = count
		forms = append(forms, f)
	}
	return forms, errors.Wrap(rows.Err(), "list forms")
}

func CountForms(ctx context.Context, db DBTX, userID int) (n int, err error) {
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM form WHERE user_id = ?`, userID).Scan(&n)
	return n, errors.Wrap(err, "count forms")
}

// UpdateForm replaces the editable content of f when f.Version is still the
// stored version, and bumps the version.
func UpdateForm(ctx context.Context, db DBTX, f *model.Form) error {
	docs, err := encodeForm(*f)
	if err != nil {
		return err
	}

	now := Now()
	res, err := db.ExecContext(ctx, `
		UPDATE form
		SET
			title = ?,
			description = ?,
			blocks = ?,
			questions = ?,
			media = ?,
			style = ?,
			settings = ?,
			version = version+1,
			updated_at = ?
		WHERE id = ?
			AND user_id = ?
			AND version = ?`,
		f.Title, f.Description,
		string(docs.blocks), string(docs.questions), string(docs.media), string(docs.style), string(docs.settings),
		now,
		f.ID, f.UserID, f.Version,
	)
	if err != nil {
		return errors.Wrap(err, "update form")
	}

	// optimistic lock
	if err = affectedOne(res); errors.Is(err, ErrNotFound) {
		if _, err := GetForm(ctx, db, f.UserID, f.ID); err != nil {
			return err
		}
		return ErrConflict
	} else if err != nil {
		return err
	}

	f.Version++
	f.UpdatedAt = now
	return nil
}

// SetPublished flips the published flag. shareURL is kept when unpublishing
// so the link survives a republish.
func SetPublished(ctx context.Context, db DBTX, userID, id int, published bool, shareURL string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE form
		SET
			is_published = ?,
			share_url = CASE WHEN ? <> '' THEN ? ELSE share_url END,
			updated_at = ?
		WHERE id = ? AND user_id = ?`,
		published, shareURL, shareURL, Now(), id, userID,
	)
	if err != nil {
		return errors.Wrap(err, "publish form")
	}
	return affectedOne(res)
}

// DeleteForm removes a form; its submissions and events go with it.
func DeleteForm(ctx context.Context, db DBTX, userID, id int) error {
	res, err := db.ExecContext(ctx, `DELETE FROM form WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete form")
	}
	return affectedOne(res)
}
