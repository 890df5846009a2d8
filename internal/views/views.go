// Package views derives the read-only task lists and counters shown to the
// user. Every function is pure; the current time is always a parameter.
package views

import (
	"fmt"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/models"
)

// Counts are computed over the whole task set, never over a filtered view.
type Counts struct {
	All       int
	Active    int
	Completed int
	DueToday  int
}

// For returns the count shown next to filter f.
func (c Counts) For(f models.Filter) int {
	switch f {
	case models.FilterAll:
		return c.All
	case models.FilterActive:
		return c.Active
	case models.FilterCompleted:
		return c.Completed
	case models.FilterDueToday:
		return c.DueToday
	default:
		return 0
	}
}

// IsDueToday reports whether the task's due date is now's calendar day.
// Tasks without a due date are never due today.
func IsDueToday(task models.Task, now time.Time) bool {
	if task.DueDate == "" {
		return false
	}
	due, err := models.ParseDueDate(task.DueDate, now.Location())
	if err != nil {
		return false
	}
	return due.Equal(models.StartOfDay(now))
}

// IsOverdue reports whether an open task's due date is a day before today.
func IsOverdue(task models.Task, now time.Time) bool {
	if task.Completed || task.DueDate == "" {
		return false
	}
	due, err := models.ParseDueDate(task.DueDate, now.Location())
	if err != nil {
		return false
	}
	return due.Before(models.StartOfDay(now))
}

// FilterBy returns the tasks selected by f, in their original order.
// An unknown filter selects nothing.
func FilterBy(tasks []models.Task, f models.Filter, now time.Time) []models.Task {
	var keep func(models.Task) bool
	switch f {
	case models.FilterAll:
		keep = func(models.Task) bool { return true }
	case models.FilterActive:
		keep = func(t models.Task) bool { return !t.Completed }
	case models.FilterCompleted:
		keep = func(t models.Task) bool { return t.Completed }
	case models.FilterDueToday:
		keep = func(t models.Task) bool { return IsDueToday(t, now) }
	default:
		return []models.Task{}
	}
	return selectTasks(tasks, keep)
}

// FilterByPriority keeps the tasks with exactly the selected priority;
// AnyPriority keeps everything.
func FilterByPriority(tasks []models.Task, pf models.PriorityFilter) []models.Task {
	p, ok := pf.Priority()
	if !ok {
		return selectTasks(tasks, func(models.Task) bool { return true })
	}
	return selectTasks(tasks, func(t models.Task) bool { return t.Priority == p })
}

// Apply narrows tasks by f and then by pf.
func Apply(tasks []models.Task, f models.Filter, pf models.PriorityFilter, now time.Time) []models.Task {
	return FilterByPriority(FilterBy(tasks, f, now), pf)
}

// Count tallies the whole task set.
func Count(tasks []models.Task, now time.Time) Counts {
	c := Counts{All: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		} else {
			c.Active++
		}
		if IsDueToday(t, now) {
			c.DueToday++
		}
	}
	return c
}

// EmptyState is the message shown for an empty list.
type EmptyState struct {
	Title string
	Hint  string
}

// EmptyStateFor picks the empty list message for the selected filters.
func EmptyStateFor(f models.Filter, pf models.PriorityFilter) EmptyState {
	switch f {
	case models.FilterCompleted:
		return EmptyState{Title: "No completed tasks yet", Hint: "Complete some tasks to see them here."}
	case models.FilterActive:
		return EmptyState{Title: "No active tasks", Hint: "All your tasks are complete! Time to celebrate! 🎉"}
	case models.FilterDueToday:
		return EmptyState{Title: "No tasks due today", Hint: "No tasks are due today. Enjoy your day!"}
	case models.FilterAll:
		if p, ok := pf.Priority(); ok {
			return EmptyState{Title: "No tasks yet", Hint: fmt.Sprintf("No tasks with %s priority found.", p)}
		}
		return EmptyState{Title: "No tasks yet", Hint: "Start by adding your first task!"}
	default:
		return EmptyState{Title: "No tasks", Hint: fmt.Sprintf("Unknown filter %q.", f)}
	}
}

// Summary is the progress line under the list; empty when there are no tasks.
func Summary(c Counts) string {
	if c.All == 0 {
		return ""
	}
	plural := "s"
	if c.Active == 1 {
		plural = ""
	}
	line := fmt.Sprintf("You have %d active task%s", c.Active, plural)
	if c.Completed > 0 {
		line += fmt.Sprintf(" and %d completed", c.Completed)
	}
	return line
}

// Encouragement is shown under the summary once something is completed.
func Encouragement(c Counts) string {
	if c.Completed > 0 {
		return "Great progress! Keep going! ✨"
	}
	return ""
}

func selectTasks(tasks []models.Task, keep func(models.Task) bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
