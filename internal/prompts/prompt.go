// Package prompts implements the prompt domain for Loom. Prompts are
// ordered within their step like steps are within their project, and are
// additionally versioned: all rows sharing a (project, step) slot form an
// append-only version chain keyed by the slot, not by any single prompt id.
package prompts

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Variables maps placeholder names to their bound values.
// Stored as a jsonb column.
type Variables map[string]string

// Value serializes the variables for database storage.
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Scan deserializes the variables from their jsonb column value.
func (v *Variables) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Variables{}
		return nil
	case []byte:
		return json.Unmarshal(s, v)
	case string:
		return json.Unmarshal([]byte(s), v)
	default:
		return fmt.Errorf("unsupported variables source type %T", src)
	}
}

// Prompt represents one version of a text artifact within a project,
// optionally attached to a step.
type Prompt struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	StepID     *uuid.UUID `json:"step_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Response   *string    `json:"response"`
	Variables  Variables  `json:"variables"`
	Version    int        `json:"version"`
	Order      int        `json:"order"`
	IsTemplate bool       `json:"is_template"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreateCommand carries the data needed to create a new prompt. New prompts
// always start their version chain at 1; order is assigned by the
// repository within the sibling group (the step, or the project's
// unattached group when StepID is nil).
type CreateCommand struct {
	ProjectID uuid.UUID  `json:"project_id"`
	StepID    *uuid.UUID `json:"step_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Variables Variables  `json:"variables"`
}

// Validate checks required fields before any write.
func (c *CreateCommand) Validate() error {
	if c.ProjectID == uuid.Nil {
		return fmt.Errorf("%w: project_id is required", ErrValidation)
	}
	if c.StepID != nil && *c.StepID == uuid.Nil {
		return fmt.Errorf("%w: step_id cannot be the zero uuid", ErrValidation)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Title     *string    `json:"title,omitempty"`
	Content   *string    `json:"content,omitempty"`
	Response  *string    `json:"response,omitempty"`
	Variables *Variables `json:"variables,omitempty"`
}

// Validate checks value constraints on present fields.
func (p *Patch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	return nil
}

// Empty reports whether the patch carries no field updates.
func (p *Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Response == nil && p.Variables == nil
}

// VersionPatch carries overrides for a new version. Empty or absent fields
// fall back to the original prompt's values.
type VersionPatch struct {
	Title     *string    `json:"title,omitempty"`
	Content   *string    `json:"content,omitempty"`
	Variables *Variables `json:"variables,omitempty"`
}

// OrderAssignment pairs a prompt id with its requested order index.
type OrderAssignment struct {
	ID    uuid.UUID `json:"id"`
	Order int       `json:"order"`
}

// ReorderCommand carries the assignment list for a step's prompts.
// Assignments referencing ids outside the step are skipped, not rejected.
type ReorderCommand struct {
	Assignments []OrderAssignment `json:"assignments"`
}
