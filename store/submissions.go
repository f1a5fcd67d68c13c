package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

const submissionColumns = `s.id, s.public_id, s.form_id, s.data, s.submitted_at, s.user_agent, s.ip`

func scanSubmission(row scanner) (s model.Submission, err error) {
	var data string
	err = row.Scan(&s.ID, &s.PublicID, &s.FormID, &data, &s.SubmittedAt, &s.UserAgent, &s.IPAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, ErrNotFound
		}
		return s, errors.Wrap(err, "scan submission")
	}
	if err = json.Unmarshal([]byte(data), &s.Data); err != nil {
		return s, errors.Wrap(err, "decode submission data")
	}
	return s, nil
}

func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, errors.Wrap(rows.Err(), "read submissions")
}

// InsertSubmission stores s; submissions are never modified afterwards.
func InsertSubmission(ctx context.Context, db DBTX, s *model.Submission) error {
	publicID, err := newPublicID()
	if err != nil {
		return err
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	data, err := json.Marshal(s.Data)
	if err != nil {
		return errors.Wrap(err, "encode submission data")
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = Now()
	}

	err = db.QueryRowContext(ctx, `
		INSERT INTO submission (public_id, form_id, data, submitted_at, user_agent, ip)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		publicID, s.FormID, string(data), s.SubmittedAt, s.UserAgent, s.IPAddress,
	).Scan(&s.ID)
	if err != nil {
		return errors.Wrap(err, "insert submission")
	}
	s.PublicID = publicID
	return nil
}

// ListSubmissions pages through the submissions of a form, newest first.
// A negative limit returns them all.
func ListSubmissions(ctx context.Context, db DBTX, formID, limit, offset int) ([]model.Submission, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submission s
		WHERE s.form_id = ?
		ORDER BY s.submitted_at DESC, s.id DESC
		LIMIT ? OFFSET ?`,
		formID, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	return scanSubmissions(rows)
}

// SubmissionsSince returns up to limit submissions newer than since, oldest first.
func SubmissionsSince(ctx context.Context, db DBTX, formID int, since time.Time, limit int) ([]model.Submission, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submission s
		WHERE s.form_id = ? AND s.submitted_at > ?
		ORDER BY s.submitted_at ASC, s.id ASC
		LIMIT ?`,
		formID, since.UTC(), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions since")
	}
	return scanSubmissions(rows)
}

func GetSubmission(ctx context.Context, db DBTX, formID int, publicID string) (model.Submission, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submission s
		WHERE s.form_id = ? AND s.public_id = ?`,
		formID, publicID,
	)
	return scanSubmission(row)
}

func CountSubmissions(ctx context.Context, db DBTX, formID int) (n int, err error) {
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submission WHERE form_id = ?`, formID).Scan(&n)
	return n, errors.Wrap(err, "count submissions")
}

// CountUserSubmissions counts submissions received by all forms of userID since a time.
func CountUserSubmissions(ctx context.Context, db DBTX, userID int, since time.Time) (n int, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM submission s
		INNER JOIN form f ON (f.id = s.form_id)
		WHERE f.user_id = ? AND s.submitted_at >= ?`,
		userID, since.UTC(),
	).Scan(&n)
	return n, errors.Wrap(err, "count user submissions")
}

func HasSubmissionFromIP(ctx context.Context, db DBTX, formID int, ip string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM submission
		WHERE form_id = ?
			AND ip = ?
		LIMIT 1`,
		formID, ip,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, errors.Wrap(err, "find submission by ip")
}
