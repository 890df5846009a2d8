package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskCollection is the document store collection that holds tasks.
const TaskCollection = "tasks"

// Document field names used by the task codec and scoped queries.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "dueDate"
	FieldPriority    = "priority"
	FieldCompleted   = "completed"
	FieldRecurrent   = "recurrent"
	FieldCompletedAt = "completedAt"
	FieldUserID      = "userId"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// Priority is the closed set of task priorities.
type Priority string

// Priority constants
const (
	PriorityNone            Priority = "None"
	PriorityImportant       Priority = "Important"
	PriorityUrgent          Priority = "Urgent"
	PriorityUrgentImportant Priority = "Urgent & Important"
)

// Priorities returns every priority in display order.
func Priorities() []Priority {
	return []Priority{PriorityNone, PriorityImportant, PriorityUrgent, PriorityUrgentImportant}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityImportant, PriorityUrgent, PriorityUrgentImportant:
		return true
	default:
		return false
	}
}

func (p Priority) String() string {
	return string(p)
}

// ParsePriority accepts the display names case-insensitively plus the
// short CLI aliases "none", "important", "urgent" and "urgent-important".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return PriorityNone, nil
	case "important":
		return PriorityImportant, nil
	case "urgent":
		return PriorityUrgent, nil
	case "urgent & important", "urgent-important", "urgent_important":
		return PriorityUrgentImportant, nil
	default:
		return "", fmt.Errorf("unknown priority: %q", s)
	}
}

// PriorityFilter narrows a task list to one priority or leaves it untouched.
type PriorityFilter string

// AnyPriority matches every task.
const AnyPriority PriorityFilter = "all"

// OnlyPriority returns a filter that matches tasks with exactly p.
func OnlyPriority(p Priority) PriorityFilter {
	return PriorityFilter(p)
}

// Priority returns the selected priority and false for AnyPriority.
func (f PriorityFilter) Priority() (Priority, bool) {
	if f == AnyPriority || f == "" {
		return "", false
	}
	return Priority(f), true
}

// ParsePriorityFilter parses "all" or any value accepted by ParsePriority.
func ParsePriorityFilter(s string) (PriorityFilter, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(AnyPriority)) || strings.TrimSpace(s) == "" {
		return AnyPriority, nil
	}
	p, err := ParsePriority(s)
	if err != nil {
		return "", err
	}
	return OnlyPriority(p), nil
}

// Task is a single to-do item owned by one user.
type Task struct {
	ID          string
	Title       string
	Description string
	// DueDate is a YYYY-MM-DD calendar date, empty when the task has none.
	DueDate     string
	Priority    Priority
	Completed   bool
	Recurrent   bool
	CompletedAt *time.Time
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskDraft is the caller-supplied part of a new task.
type TaskDraft struct {
	Title       string
	Description string
	DueDate     string
	Priority    Priority
	Completed   bool
	Recurrent   bool
}

// TaskPatch holds the fields to change on an existing task; nil means untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Priority    *Priority
	Completed   *bool
	Recurrent   *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.Completed == nil && p.Recurrent == nil
}
