package entity

import (
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusDone       = "done"

	DefaultStatus = StatusPending
)

var validStatuses = []string{StatusPending, StatusInProgress, StatusDone}

// Field names accepted by the API.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldDueDate     = "dueDate"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// UpdatableFields is the whitelist for partial updates.
var UpdatableFields = []string{FieldDescription, FieldStatus, FieldDueDate}

// ListFields is the projection used when listing tasks.
var ListFields = []string{
	FieldID, FieldTitle, FieldDescription, FieldStatus, FieldDueDate, FieldCreatedAt, FieldUpdatedAt,
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskInput is the raw payload of a create request.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
}

// TaskPatch carries the fields of a partial update. Nil pointers are left untouched.
type TaskPatch struct {
	Description  *string
	Status       *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Empty reports whether the patch changes nothing besides updatedAt.
func (p TaskPatch) Empty() bool {
	return p.Description == nil && p.Status == nil && p.DueDate == nil && !p.ClearDueDate
}

// Apply copies the patch onto t. Timestamps are left to the caller.
func (p TaskPatch) Apply(t *Task) {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		d := *p.DueDate
		t.DueDate = &d
	}
}

// Validate rejects blank title or description. Values are stored as given,
// so titles differing only in surrounding spaces are distinct.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("title and description fields are required")
	}
	return ValidateStatus(t.Status)
}

func ValidateStatus(status string) error {
	for _, s := range validStatuses {
		if status == s {
			return nil
		}
	}
	return fmt.Errorf("status must be one of: %s", strings.Join(validStatuses, ", "))
}

var dueDateLayouts = []string{time.RFC3339Nano, time.DateOnly}

// ParseDueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dueDate %q is not a valid date", value)
}
