package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned for a field name that is not an editable task field.
var ErrUnknownField = errors.New("unknown task field")

// Field names an editable task attribute using its wire name.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
	FieldDueDate     Field = "due_date"
	FieldCategory    Field = "category"
)

// ParseField validates a field name.
func ParseField(name string) (Field, error) {
	switch f := Field(name); f {
	case FieldTitle, FieldDescription, FieldPriority, FieldStatus, FieldDueDate, FieldCategory:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Patch is a single-field partial update payload.
type Patch map[string]any

// NewPatch builds the payload for updating one field. A blank due date is
// sent as null.
func NewPatch(f Field, value string) Patch {
	if f == FieldDueDate && value == "" {
		return Patch{string(f): nil}
	}
	return Patch{string(f): value}
}

// ApplyField returns a copy of t with the field set to value. A blank due
// date clears it.
func ApplyField(t Task, f Field, value string) (Task, error) {
	switch f {
	case FieldTitle:
		t.Title = value
	case FieldDescription:
		t.Description = value
	case FieldPriority:
		t.Priority = Priority(value)
	case FieldStatus:
		t.Status = Status(value)
	case FieldCategory:
		t.Category = Category(value)
	case FieldDueDate:
		if value == "" {
			t.DueDate = nil
		} else {
			v := value
			t.DueDate = &v
		}
	default:
		return t, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return t, nil
}

// FieldValue reads the current value of a field from t.
func FieldValue(t Task, f Field) (string, error) {
	switch f {
	case FieldTitle:
		return t.Title, nil
	case FieldDescription:
		return t.Description, nil
	case FieldPriority:
		return string(t.Priority), nil
	case FieldStatus:
		return string(t.Status), nil
	case FieldCategory:
		return string(t.Category), nil
	case FieldDueDate:
		return t.DueString(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, string(f))
}
