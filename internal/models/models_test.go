package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    Priority
		wantErr bool
	}{
		{input: "None", want: PriorityNone},
		{input: "", want: PriorityNone},
		{input: "important", want: PriorityImportant},
		{input: "URGENT", want: PriorityUrgent},
		{input: "Urgent & Important", want: PriorityUrgentImportant},
		{input: "urgent-important", want: PriorityUrgentImportant},
		{input: "critical", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePriority(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestPriorityFilter(t *testing.T) {
	f, err := ParsePriorityFilter("all")
	require.NoError(t, err)
	_, ok := f.Priority()
	assert.False(t, ok)

	f, err = ParsePriorityFilter("urgent")
	require.NoError(t, err)
	p, ok := f.Priority()
	assert.True(t, ok)
	assert.Equal(t, PriorityUrgent, p)

	_, err = ParsePriorityFilter("nope")
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	for _, f := range Filters() {
		got, err := ParseFilter(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseFilter("due-today")
	require.NoError(t, err)
	assert.Equal(t, FilterDueToday, got)

	_, err = ParseFilter("overdue")
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2026, 3, 9, 23, 59, 59, 999, loc)

	got := StartOfDay(ts)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestParseDueDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	day, err := ParseDueDate("2026-10-18", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, loc), day)

	day, err = ParseDueDate("2026-10-18T15:04:05Z", loc)
	require.NoError(t, err)
	assert.Equal(t, 18, day.Day())

	_, err = ParseDueDate("", loc)
	assert.ErrorIs(t, err, ErrInvalidDueDate)

	_, err = ParseDueDate("18/10/2026", loc)
	assert.ErrorIs(t, err, ErrInvalidDueDate)
}

func TestValidateDueDate(t *testing.T) {
	assert.NoError(t, ValidateDueDate(""))
	assert.NoError(t, ValidateDueDate("2026-02-28"))
	assert.ErrorIs(t, ValidateDueDate("2026-02-30"), ErrInvalidDueDate)
	assert.ErrorIs(t, ValidateDueDate("2026-10-18T10:00:00Z"), ErrInvalidDueDate)
}

func TestSameIdentity(t *testing.T) {
	a := &Identity{ID: "u1", Email: "a@example.com"}
	b := &Identity{ID: "u1", Email: "changed@example.com"}
	c := &Identity{ID: "u2"}

	assert.True(t, SameIdentity(nil, nil))
	assert.True(t, SameIdentity(a, b))
	assert.False(t, SameIdentity(a, c))
	assert.False(t, SameIdentity(a, nil))
}
