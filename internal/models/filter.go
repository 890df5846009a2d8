package models

import (
	"fmt"
	"strings"
)

// Filter selects the main task view.
type Filter string

// Filter constants
const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterDueToday  Filter = "dueToday"
)

// Filters returns every filter in display order.
func Filters() []Filter {
	return []Filter{FilterAll, FilterActive, FilterCompleted, FilterDueToday}
}

// Label is the heading shown for the filter.
func (f Filter) Label() string {
	switch f {
	case FilterAll:
		return "All Tasks"
	case FilterActive:
		return "Active"
	case FilterCompleted:
		return "Completed"
	case FilterDueToday:
		return "Due Today"
	default:
		return string(f)
	}
}

// ParseFilter accepts the canonical names plus "due-today" and "today".
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed", "done":
		return FilterCompleted, nil
	case "duetoday", "due-today", "today":
		return FilterDueToday, nil
	default:
		return "", fmt.Errorf("unknown filter: %q", s)
	}
}
