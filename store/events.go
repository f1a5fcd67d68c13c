package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/leadform/model"
)

func InsertEvent(ctx context.Context, db DBTX, e model.Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO analytics_event (form_id, event_type, session_id, timestamp)
		VALUES (?, ?, ?, ?)`,
		e.FormID, string(e.Type), e.SessionID, e.Timestamp.UTC(),
	)
	return errors.Wrap(err, "insert event")
}

// CountEvents counts the events of a form by type since a time.
func CountEvents(ctx context.Context, db DBTX, formID int, since time.Time) (map[model.EventType]int, error) {
	return countEvents(ctx, db, `
		SELECT e.event_type, COUNT(*)
		FROM analytics_event e
		WHERE e.form_id = ? AND e.timestamp >= ?
		GROUP BY e.event_type`,
		formID, since.UTC(),
	)
}

// CountUserEvents counts the events of every form of userID by type since a time.
func CountUserEvents(ctx context.Context, db DBTX, userID int, since time.Time) (map[model.EventType]int, error) {
	return countEvents(ctx, db, `
		SELECT e.event_type, COUNT(*)
		FROM analytics_event e
		INNER JOIN form f ON (f.id = e.form_id)
		WHERE f.user_id = ? AND e.timestamp >= ?
		GROUP BY e.event_type`,
		userID, since.UTC(),
	)
}

// CountFormEvents counts the events of every form of userID by form and
// type since a time. Forms without events are absent.
func CountFormEvents(ctx context.Context, db DBTX, userID int, since time.Time) (map[int]map[model.EventType]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.form_id, e.event_type, COUNT(*)
		FROM analytics_event e
		INNER JOIN form f ON (f.id = e.form_id)
		WHERE f.user_id = ? AND e.timestamp >= ?
		GROUP BY e.form_id, e.event_type`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "count form events")
	}
	defer rows.Close()

	counts := map[int]map[model.EventType]int{}
	for rows.Next() {
		var formID, n int
		var t string
		if err := rows.Scan(&formID, &t, &n); err != nil {
			return nil, errors.Wrap(err, "scan form event count")
		}
		if counts[formID] == nil {
			counts[formID] = map[model.EventType]int{}
		}
		counts[formID][model.EventType(t)] = n
	}
	return counts, errors.Wrap(rows.Err(), "count form events")
}

func countEvents(ctx context.Context, db DBTX, query string, args ...any) (map[model.EventType]int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "count events")
	}
	defer rows.Close()

	counts := map[model.EventType]int{}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, errors.Wrap(err, "scan event count")
		}
		counts[model.EventType(t)] = n
	}
	return counts, errors.Wrap(rows.Err(), "count events")
}

// EventsSince lists the events of a form since a time, oldest first.
func EventsSince(ctx context.Context, db DBTX, formID int, since time.Time) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.form_id, e.event_type, e.session_id, e.timestamp
		FROM analytics_event e
		WHERE e.form_id = ? AND e.timestamp >= ?
		ORDER BY e.timestamp ASC`,
		formID, since.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var t string
		if err := rows.Scan(&e.FormID, &t, &e.SessionID, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Type = model.EventType(t)
		events = append(events, e)
	}
	return events, errors.Wrap(rows.Err(), "list events")
}
