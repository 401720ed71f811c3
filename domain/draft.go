package domain

import "strings"

// Draft holds the creation form. Due date is kept as typed.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	DueDate     string   `json:"due_date"`
	Category    Category `json:"category"`
}

// NewDraft returns an empty form with the store defaults.
func NewDraft() Draft {
	return Draft{
		Priority: PriorityMedium,
		Status:   StatusPending,
		Category: CategoryGeneral,
	}
}

// HasTitle reports whether the draft can be submitted.
func (d Draft) HasTitle() bool {
	return strings.TrimSpace(d.Title) != ""
}

// With returns a copy of d with one field replaced.
func (d Draft) With(f Field, value string) (Draft, error) {
	switch f {
	case FieldTitle:
		d.Title = value
	case FieldDescription:
		d.Description = value
	case FieldPriority:
		d.Priority = Priority(value)
	case FieldStatus:
		d.Status = Status(value)
	case FieldDueDate:
		d.DueDate = value
	case FieldCategory:
		d.Category = Category(value)
	default:
		_, err := ParseField(string(f))
		return d, err
	}
	return d, nil
}

// Input converts the draft to a create payload. A blank due date becomes null.
func (d Draft) Input() TaskInput {
	in := TaskInput{
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		Status:      d.Status,
		Category:    d.Category,
	}
	if d.DueDate != "" {
		due := d.DueDate
		in.DueDate = &due
	}
	return in
}
