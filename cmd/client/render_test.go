package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/tasktracker/internal/models"
	"github.com/gurkanbulca/tasktracker/internal/views"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

func TestMain(m *testing.M) {
	color.NoColor = true
	text.DisableColors()
	os.Exit(m.Run())
}

func TestPriorityBadge(t *testing.T) {
	assert.Empty(t, priorityBadge(models.PriorityNone))
	assert.Equal(t, "⚑ Important", priorityBadge(models.PriorityImportant))
	assert.Equal(t, "⚠ Urgent", priorityBadge(models.PriorityUrgent))
	assert.Equal(t, "⚡ Urgent & Important", priorityBadge(models.PriorityUrgentImportant))
}

func TestPriorityNames(t *testing.T) {
	names := priorityNames()
	assert.Equal(t, []string{"none", "important", "urgent", "urgent-important"}, names)
	for i, name := range names {
		p, err := models.ParsePriority(name)
		require.NoError(t, err)
		assert.Equal(t, models.Priorities()[i], p)
	}
}

func TestDueLabel(t *testing.T) {
	tests := []struct {
		name string
		task models.Task
		want string
	}{
		{name: "no due date", task: models.Task{}, want: ""},
		{name: "today", task: models.Task{DueDate: "2026-10-18"}, want: "2026-10-18 (Today)"},
		{name: "overdue", task: models.Task{DueDate: "2026-10-10"}, want: "2026-10-10 (Overdue)"},
		{name: "past but completed", task: models.Task{DueDate: "2026-10-10", Completed: true}, want: "2026-10-10"},
		{name: "future", task: models.Task{DueDate: "2026-12-24"}, want: "2026-12-24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dueLabel(tt.task, now))
		})
	}
}

func TestRenderTasks(t *testing.T) {
	tasks := []models.Task{
		{ID: "a1b2c3d4e5", Title: "Water plants", Recurrent: true, DueDate: "2026-10-18"},
		{ID: "f6g7h8", Title: "Pay rent", Priority: models.PriorityUrgent, Completed: true},
	}

	var buf bytes.Buffer
	renderTasks(&buf, tasks, models.FilterAll, models.AnyPriority, views.Count(tasks, now), now)
	out := buf.String()

	assert.Contains(t, out, "All Tasks (2) | Active (1) | Completed (1) | Due Today (1)")
	assert.Contains(t, out, "a1b2c3d4")
	assert.NotContains(t, out, "a1b2c3d4e5")
	assert.Contains(t, out, "↻ Daily")
	assert.Contains(t, out, "⚠ Urgent")
	assert.Contains(t, out, "2026-10-18 (Today)")
	assert.Contains(t, out, "You have 1 active task and 1 completed")
	assert.Contains(t, out, "Great progress! Keep going!")
}

func TestRenderTasks_EmptyState(t *testing.T) {
	var buf bytes.Buffer
	pf := models.OnlyPriority(models.PriorityImportant)
	renderTasks(&buf, nil, models.FilterAll, pf, views.Counts{}, now)

	out := buf.String()
	assert.Contains(t, out, "Priority: Important")
	assert.Contains(t, out, "No tasks yet")
	assert.Contains(t, out, "No tasks with Important priority found.")
	assert.NotContains(t, out, "You have")
}

func TestResolveTask(t *testing.T) {
	tasks := []models.Task{{ID: "abc123"}, {ID: "abd456"}, {ID: "xyz"}}

	task, err := resolveTask(tasks, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", task.ID)

	task, err = resolveTask(tasks, "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", task.ID)

	_, err = resolveTask(tasks, "ab")
	assert.ErrorContains(t, err, "matches 2 tasks")

	_, err = resolveTask(tasks, "nope")
	assert.ErrorContains(t, err, "no task matches")

	_, err = resolveTask(tasks, " ")
	assert.Error(t, err)
}
