package models

import (
	"errors"
	"time"
)

// DateLayout is the storage format of Task.DueDate.
const DateLayout = "2006-01-02"

var ErrInvalidDueDate = errors.New("due date must be formatted as YYYY-MM-DD")

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDueDate parses a stored due date as a calendar day in loc.
// Values carrying a time part (RFC 3339) are reduced to their date prefix.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) < len(DateLayout) {
		return time.Time{}, ErrInvalidDueDate
	}
	day, err := time.ParseInLocation(DateLayout, s[:len(DateLayout)], loc)
	if err != nil {
		return time.Time{}, ErrInvalidDueDate
	}
	return day, nil
}

// FormatDueDate renders t as a stored due date.
func FormatDueDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidateDueDate accepts "" (no due date) or a strict YYYY-MM-DD date.
func ValidateDueDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ErrInvalidDueDate
	}
	return nil
}
