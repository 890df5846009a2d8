package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gurkanbulca/tasktracker/internal/models"
	"github.com/gurkanbulca/tasktracker/internal/views"
)

// shortIDLen is how much of a task id the list shows; any unique prefix
// is accepted back by the commands.
const shortIDLen = 8

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
	todayColor   = color.New(color.FgHiYellow)
	overdueColor = color.New(color.FgRed)
	dailyColor   = color.New(color.FgHiCyan)
)

type priorityStyle struct {
	icon  string
	color *color.Color
}

var priorityStyles = map[models.Priority]priorityStyle{
	models.PriorityUrgentImportant: {icon: "⚡", color: color.New(color.FgHiRed, color.Bold)},
	models.PriorityUrgent:          {icon: "⚠", color: color.New(color.FgHiYellow)},
	models.PriorityImportant:       {icon: "⚑", color: color.New(color.FgHiBlue)},
}

// priorityBadge is empty for PriorityNone.
func priorityBadge(p models.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return ""
	}
	return style.color.Sprintf("%s %s", style.icon, p)
}

// dueLabel renders the due date with its Today or Overdue marker.
func dueLabel(task models.Task, now time.Time) string {
	if task.DueDate == "" {
		return ""
	}
	switch {
	case views.IsOverdue(task, now):
		return overdueColor.Sprintf("%s (Overdue)", task.DueDate)
	case views.IsDueToday(task, now):
		return todayColor.Sprintf("%s (Today)", task.DueDate)
	default:
		return task.DueDate
	}
}

// priorityNames lists the --priority values in display order.
func priorityNames() []string {
	names := make([]string, 0, len(models.Priorities()))
	for _, p := range models.Priorities() {
		names = append(names, strings.ReplaceAll(strings.ToLower(string(p)), " & ", "-"))
	}
	return names
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func titleCell(task models.Task) string {
	title := task.Title
	if task.Completed {
		title = dimColor.Sprint(title)
	}
	if task.Recurrent {
		title += " " + dailyColor.Sprint("↻ Daily")
	}
	if task.Description != "" {
		title += "\n" + dimColor.Sprint(task.Description)
	}
	return title
}

// filterBar lists every filter with its global count, the selected one highlighted.
func filterBar(selected models.Filter, counts views.Counts) string {
	parts := make([]string, 0, len(models.Filters()))
	for _, f := range models.Filters() {
		label := fmt.Sprintf("%s (%d)", f.Label(), counts.For(f))
		if f == selected {
			label = headingColor.Sprint(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " | ")
}

// renderTasks writes the filtered list, or its empty state, followed by the
// progress summary.
func renderTasks(w io.Writer, tasks []models.Task, f models.Filter, pf models.PriorityFilter, counts views.Counts, now time.Time) {
	fmt.Fprintln(w, filterBar(f, counts))
	if p, ok := pf.Priority(); ok {
		fmt.Fprintf(w, "Priority: %s\n", p)
	}
	fmt.Fprintln(w)

	if len(tasks) == 0 {
		empty := views.EmptyStateFor(f, pf)
		headingColor.Fprintln(w, empty.Title)
		fmt.Fprintln(w, empty.Hint)
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.FgGreen.Sprint("ID"),
			text.FgGreen.Sprint(""),
			text.FgGreen.Sprint("Title"),
			text.FgGreen.Sprint("Priority"),
			text.FgGreen.Sprint("Due"),
		})
		for _, task := range tasks {
			check := "○"
			if task.Completed {
				check = successColor.Sprint("✔")
			}
			t.AppendRow(table.Row{
				shortID(task.ID),
				check,
				titleCell(task),
				priorityBadge(task.Priority),
				dueLabel(task, now),
			})
		}
		t.Render()
	}

	if summary := views.Summary(counts); summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, summary)
		if cheer := views.Encouragement(counts); cheer != "" {
			successColor.Fprintln(w, cheer)
		}
	}
}

// resolveTask finds the task whose id is ref or starts with it.
func resolveTask(tasks []models.Task, ref string) (models.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Task{}, fmt.Errorf("task id is required")
	}

	var matches []models.Task
	for _, task := range tasks {
		if task.ID == ref {
			return task, nil
		}
		if strings.HasPrefix(task.ID, ref) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Task{}, fmt.Errorf("%q matches %d tasks, use more characters", ref, len(matches))
	}
}
