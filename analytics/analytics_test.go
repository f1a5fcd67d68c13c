package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/leadform/model"
)

func TestNewFunnel(t *testing.T) {
	f := NewFunnel(map[model.EventType]int{
		model.EventView:     200,
		model.EventStart:    80,
		model.EventComplete: 30,
		model.EventAbandon:  50,
	}, 31)

	assert.Equal(t, 200, f.Views)
	assert.Equal(t, 31, f.Submissions)
	assert.Equal(t, 0.4, f.StartRate)
	assert.Equal(t, 0.375, f.CompletionRate)
	assert.Equal(t, 0.15, f.ConversionRate)
	assert.Equal(t, 0.625, f.AbandonRate)
}

func TestFunnelWithoutTraffic(t *testing.T) {
	f := NewFunnel(nil, 0)
	assert.Zero(t, f.StartRate)
	assert.Zero(t, f.CompletionRate)
	assert.Zero(t, f.ConversionRate)
	assert.Zero(t, f.AbandonRate)

	f = NewFunnel(map[model.EventType]int{model.EventComplete: 3}, 3)
	assert.Zero(t, f.ConversionRate, "completes without views never divide by zero")
}

func TestFunnelRounding(t *testing.T) {
	f := NewFunnel(map[model.EventType]int{model.EventView: 3, model.EventStart: 1}, 0)
	assert.Equal(t, 0.3333, f.StartRate)
}

func TestDaily(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	events := []model.Event{
		{Type: model.EventView, Timestamp: time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)},
		{Type: model.EventView, Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		{Type: model.EventStart, Timestamp: time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)},
		{Type: model.EventAbandon, Timestamp: time.Date(2026, 3, 8, 9, 5, 0, 0, time.UTC)},
		{Type: model.EventComplete, Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	days := Daily(events, 3, now)
	require.Len(t, days, 3)
	assert.Equal(t, Day{Date: "2026-03-08", Starts: 1, Abandons: 1}, days[0])
	assert.Equal(t, Day{Date: "2026-03-09"}, days[1])
	assert.Equal(t, Day{Date: "2026-03-10", Views: 2}, days[2])

	assert.Empty(t, Daily(events, 0, now))
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), WindowStart(1, now))
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), WindowStart(30, now))
}
