package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnswerValues(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"string", "yes", []string{"yes"}},
		{"list", []any{"a", "b"}, []string{"a", "b"}},
		{"nested", []any{"a", []any{"b"}}, []string{"a", "b"}},
		{"number", float64(42), []string{"42"}},
		{"decimal", 1.5, []string{"1.5"}},
		{"bool", true, []string{"true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnswerValues(tt.input))
		})
	}

	assert.Equal(t, "red, blue", AnswerText([]any{"red", "blue"}))
}

func TestFormClosed(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := Form{}
	assert.False(t, f.Closed(now))

	closes := now.Add(time.Hour)
	f.Settings.ClosesAt = &closes
	assert.False(t, f.Closed(now))
	assert.True(t, f.Closed(closes))
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventAbandon.Valid())
	assert.False(t, EventType("click").Valid())
}
