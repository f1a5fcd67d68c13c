// Package analytics turns raw form events into funnel numbers.
package analytics

import (
	"time"

	"github.com/mbolis/leadform/model"
)

const dateLayout = "2006-01-02"

// Funnel summarises how visitors progress through a form.
type Funnel struct {
	Views       int `json:"views"`
	Starts      int `json:"starts"`
	Completes   int `json:"completes"`
	Abandons    int `json:"abandons"`
	Submissions int `json:"submissions"`

	StartRate      float64 `json:"start_rate"`
	CompletionRate float64 `json:"completion_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	AbandonRate    float64 `json:"abandon_rate"`
}

// NewFunnel derives the rates from event counts.
func NewFunnel(counts map[model.EventType]int, submissions int) Funnel {
	f := Funnel{
		Views:       counts[model.EventView],
		Starts:      counts[model.EventStart],
		Completes:   counts[model.EventComplete],
		Abandons:    counts[model.EventAbandon],
		Submissions: submissions,
	}
	f.StartRate = rate(f.Starts, f.Views)
	f.CompletionRate = rate(f.Completes, f.Starts)
	f.ConversionRate = rate(f.Completes, f.Views)
	f.AbandonRate = rate(f.Abandons, f.Starts)
	return f
}

// rate returns part/whole rounded to four decimals, or 0 for an empty whole.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	r := float64(part) / float64(whole)
	return float64(int64(r*10000+0.5)) / 10000
}

// Day holds the events of one calendar day (UTC).
type Day struct {
	Date      string `json:"date"`
	Views     int    `json:"views"`
	Starts    int    `json:"starts"`
	Completes int    `json:"completes"`
	Abandons  int    `json:"abandons"`
}

// WindowStart is the first instant counted by a window of days ending at now.
func WindowStart(days int, now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(days - 1))
}

// Daily buckets events into the last days calendar days, oldest first.
// Days without events are present with zero counts.
func Daily(events []model.Event, days int, now time.Time) []Day {
	if days < 1 {
		return []Day{}
	}

	start := WindowStart(days, now)
	buckets := make([]Day, days)
	index := make(map[string]int, days)
	for i := range buckets {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		buckets[i].Date = date
		index[date] = i
	}

	for _, e := range events {
		i, ok := index[e.Timestamp.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		switch e.Type {
		case model.EventView:
			buckets[i].Views++
		case model.EventStart:
			buckets[i].Starts++
		case model.EventComplete:
			buckets[i].Completes++
		case model.EventAbandon:
			buckets[i].Abandons++
		}
	}
	return buckets
}
