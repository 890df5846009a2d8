package repository

import (
	"fmt"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/docstore"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

// TaskFields converts t into a document body. The id is not part of the body.
func TaskFields(t models.Task) docstore.Fields {
	priority := t.Priority
	if priority == "" {
		priority = models.PriorityNone
	}

	fields := docstore.Fields{
		models.FieldTitle:       t.Title,
		models.FieldDescription: t.Description,
		models.FieldDueDate:     t.DueDate,
		models.FieldPriority:    string(priority),
		models.FieldCompleted:   t.Completed,
		models.FieldRecurrent:   t.Recurrent,
		models.FieldCompletedAt: encodeTime(t.CompletedAt),
		models.FieldUserID:      t.UserID,
		models.FieldCreatedAt:   encodeTime(&t.CreatedAt),
		models.FieldUpdatedAt:   encodeTime(&t.UpdatedAt),
	}
	return fields
}

// PatchFields converts a patch into a partial document, adding the
// server-owned updatedAt and completedAt fields from changes.
func PatchFields(patch models.TaskPatch, changes Changes) docstore.Fields {
	fields := docstore.Fields{}
	if patch.Title != nil {
		fields[models.FieldTitle] = *patch.Title
	}
	if patch.Description != nil {
		fields[models.FieldDescription] = *patch.Description
	}
	if patch.DueDate != nil {
		fields[models.FieldDueDate] = *patch.DueDate
	}
	if patch.Priority != nil {
		fields[models.FieldPriority] = string(*patch.Priority)
	}
	if patch.Completed != nil {
		fields[models.FieldCompleted] = *patch.Completed
	}
	if patch.Recurrent != nil {
		fields[models.FieldRecurrent] = *patch.Recurrent
	}
	if !changes.UpdatedAt.IsZero() {
		fields[models.FieldUpdatedAt] = encodeTime(&changes.UpdatedAt)
	}
	switch {
	case changes.ClearCompletedAt:
		fields[models.FieldCompletedAt] = nil
	case changes.SetCompletedAt != nil:
		fields[models.FieldCompletedAt] = encodeTime(changes.SetCompletedAt)
	}
	return fields
}

// DecodeTask builds a Task from a stored document. Missing optional fields
// take their zero value; fields with the wrong type are an error.
func DecodeTask(doc docstore.Document) (models.Task, error) {
	f := doc.Fields
	t := models.Task{ID: doc.ID}

	var err error
	if t.Title, err = stringField(f, models.FieldTitle); err != nil {
		return models.Task{}, err
	}
	if t.Description, err = stringField(f, models.FieldDescription); err != nil {
		return models.Task{}, err
	}
	if t.DueDate, err = stringField(f, models.FieldDueDate); err != nil {
		return models.Task{}, err
	}
	if t.UserID, err = stringField(f, models.FieldUserID); err != nil {
		return models.Task{}, err
	}

	priority, err := stringField(f, models.FieldPriority)
	if err != nil {
		return models.Task{}, err
	}
	switch p := models.Priority(priority); {
	case p == "":
		t.Priority = models.PriorityNone
	case p.Valid():
		t.Priority = p
	default:
		return models.Task{}, fmt.Errorf("field %s: unknown priority %q", models.FieldPriority, priority)
	}

	if t.Completed, err = boolField(f, models.FieldCompleted); err != nil {
		return models.Task{}, err
	}
	if t.Recurrent, err = boolField(f, models.FieldRecurrent); err != nil {
		return models.Task{}, err
	}

	if t.CompletedAt, err = timeField(f, models.FieldCompletedAt); err != nil {
		return models.Task{}, err
	}
	createdAt, err := timeField(f, models.FieldCreatedAt)
	if err != nil {
		return models.Task{}, err
	}
	if createdAt != nil {
		t.CreatedAt = *createdAt
	}
	updatedAt, err := timeField(f, models.FieldUpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	if updatedAt != nil {
		t.UpdatedAt = *updatedAt
	}
	return t, nil
}

func encodeTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringField(f docstore.Fields, key string) (string, error) {
	switch v := f[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("field %s: expected string, got %T", key, v)
	}
}

func boolField(f docstore.Fields, key string) (bool, error) {
	switch v := f[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("field %s: expected bool, got %T", key, v)
	}
}

func timeField(f docstore.Fields, key string) (*time.Time, error) {
	switch v := f[key].(type) {
	case nil:
		return nil, nil
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("field %s: expected timestamp, got %T", key, v)
	}
}
