// Package steps implements the step domain for Loom. Steps form a dense,
// 1-based order sequence within their project; the sequence survives
// insertion, deletion, and reordering without gaps or duplicates (except
// where a reorder assignment deliberately introduces them).
package steps

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step represents an ordered unit of work within a project.
type Step struct {
	ID             uuid.UUID `json:"id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Order          int       `json:"order"`
	IsCompleted    bool      `json:"is_completed"`
	ExpectedOutput string    `json:"expected_output"`
	ActualOutput   string    `json:"actual_output"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a new step. The order
// index is assigned by the repository, never by the caller.
type CreateCommand struct {
	ProjectID      uuid.UUID `json:"project_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ExpectedOutput string    `json:"expected_output"`
}

// Validate checks required fields before any write.
func (c *CreateCommand) Validate() error {
	if c.ProjectID == uuid.Nil {
		return fmt.Errorf("%w: project_id is required", ErrValidation)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
	ActualOutput   *string `json:"actual_output,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	IsCompleted    *bool   `json:"is_completed,omitempty"`
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
	return p.Title == nil && p.Description == nil && p.ExpectedOutput == nil &&
		p.ActualOutput == nil && p.Notes == nil && p.IsCompleted == nil
}

// OrderAssignment pairs a step id with its requested order index.
type OrderAssignment struct {
	ID    uuid.UUID `json:"id"`
	Order int       `json:"order"`
}

// ReorderCommand carries the assignment list for a project's steps.
// Assignments referencing ids outside the project are skipped, not rejected.
type ReorderCommand struct {
	Assignments []OrderAssignment `json:"assignments"`
}
