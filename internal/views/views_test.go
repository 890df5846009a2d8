package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gurkanbulca/tasktracker/internal/models"
)

var now = time.Date(2026, 10, 18, 14, 0, 0, 0, time.Local)

func sample() []models.Task {
	return []models.Task{
		{ID: "1", Title: "Water plants", DueDate: "2026-10-18", Priority: models.PriorityNone, Recurrent: true},
		{ID: "2", Title: "Pay rent", DueDate: "2026-10-17", Priority: models.PriorityUrgentImportant},
		{ID: "3", Title: "Book dentist", Priority: models.PriorityImportant, Completed: true},
		{ID: "4", Title: "Call bank", DueDate: "2026-10-18", Priority: models.PriorityUrgent, Completed: true},
		{ID: "5", Title: "Plan trip", DueDate: "2026-11-02", Priority: models.PriorityImportant},
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilterBy(t *testing.T) {
	tests := []struct {
		filter models.Filter
		want   []string
	}{
		{filter: models.FilterAll, want: []string{"1", "2", "3", "4", "5"}},
		{filter: models.FilterActive, want: []string{"1", "2", "5"}},
		{filter: models.FilterCompleted, want: []string{"3", "4"}},
		{filter: models.FilterDueToday, want: []string{"1", "4"}},
		{filter: models.Filter("someday"), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterBy(sample(), tt.filter, now)))
		})
	}
}

func TestFilterBy_DueTodayNeverMatchesEmptyDate(t *testing.T) {
	tasks := []models.Task{{ID: "a"}, {ID: "b", DueDate: "not a date"}, {ID: "c", DueDate: "2026-10-18"}}
	assert.Equal(t, []string{"c"}, ids(FilterBy(tasks, models.FilterDueToday, now)))
}

func TestFilterByPriority(t *testing.T) {
	assert.Equal(t, []string{"3", "5"}, ids(FilterByPriority(sample(), models.OnlyPriority(models.PriorityImportant))))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(FilterByPriority(sample(), models.AnyPriority)))
}

func TestApply_ComposesWithAnd(t *testing.T) {
	active := Apply(sample(), models.FilterActive, models.OnlyPriority(models.PriorityImportant), now)
	assert.Equal(t, []string{"5"}, ids(active))

	// Switching the priority filter back to all restores the full active set.
	assert.Equal(t, []string{"1", "2", "5"}, ids(Apply(sample(), models.FilterActive, models.AnyPriority, now)))
}

func TestCount_IsGlobal(t *testing.T) {
	tasks := sample()
	c := Count(tasks, now)

	assert.Equal(t, Counts{All: 5, Active: 3, Completed: 2, DueToday: 2}, c)
	assert.Equal(t, len(tasks), c.All)
	assert.Equal(t, c.All, c.Active+c.Completed)
	assert.Equal(t, 3, c.For(models.FilterActive))
	assert.Equal(t, 0, c.For(models.Filter("unknown")))
}

func TestIsOverdue(t *testing.T) {
	tests := []struct {
		name string
		task models.Task
		want bool
	}{
		{name: "yesterday open", task: models.Task{DueDate: "2026-10-17"}, want: true},
		{name: "yesterday completed", task: models.Task{DueDate: "2026-10-17", Completed: true}, want: false},
		{name: "today", task: models.Task{DueDate: "2026-10-18"}, want: false},
		{name: "future", task: models.Task{DueDate: "2026-12-01"}, want: false},
		{name: "no due date", task: models.Task{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOverdue(tt.task, now))
		})
	}
}

func TestIsDueToday_AtDayBoundaries(t *testing.T) {
	task := models.Task{DueDate: "2026-10-18"}
	midnight := time.Date(2026, 10, 18, 0, 0, 0, 0, time.Local)
	lastSecond := time.Date(2026, 10, 18, 23, 59, 59, 0, time.Local)

	assert.True(t, IsDueToday(task, midnight))
	assert.True(t, IsDueToday(task, lastSecond))
	assert.False(t, IsDueToday(task, lastSecond.Add(time.Second)))
}

func TestEmptyStateFor(t *testing.T) {
	assert.Equal(t, "No completed tasks yet", EmptyStateFor(models.FilterCompleted, models.AnyPriority).Title)
	assert.Equal(t, "No tasks due today", EmptyStateFor(models.FilterDueToday, models.AnyPriority).Title)
	assert.Equal(t, "Start by adding your first task!", EmptyStateFor(models.FilterAll, models.AnyPriority).Hint)
	assert.Equal(t, "No tasks with Urgent priority found.",
		EmptyStateFor(models.FilterAll, models.OnlyPriority(models.PriorityUrgent)).Hint)
}

func TestSummary(t *testing.T) {
	tests := []struct {
		counts Counts
		want   string
	}{
		{counts: Counts{}, want: ""},
		{counts: Counts{All: 1, Active: 1}, want: "You have 1 active task"},
		{counts: Counts{All: 3, Active: 2, Completed: 1}, want: "You have 2 active tasks and 1 completed"},
		{counts: Counts{All: 2, Completed: 2}, want: "You have 0 active tasks and 2 completed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.counts))
		})
	}
	assert.Empty(t, Encouragement(Counts{All: 1, Active: 1}))
	assert.NotEmpty(t, Encouragement(Counts{All: 1, Completed: 1}))
}
