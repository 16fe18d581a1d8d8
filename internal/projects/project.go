// Package projects implements the project domain for Loom.
// It provides types, data access, and business logic for project CRUD,
// structural cloning (duplicate, template extraction, template
// instantiation), export serialization, and export archiving.
package projects

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project status values.
const (
	StatusPlanning   = "planning"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// ValidStatus reports whether s is a recognized project status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPlanning, StatusInProgress, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// TechStack maps a technology category to an ordered list of entries.
// Stored as a jsonb column.
type TechStack map[string][]string

// Value serializes the tech stack for database storage.
func (t TechStack) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan deserializes the tech stack from its jsonb column value.
func (t *TechStack) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = TechStack{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported tech_stack source type %T", src)
	}
}

// Project represents a user-owned project with its planning metadata.
type Project struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   TechStack `json:"tech_stack"`
	Status      string    `json:"status"`
	IsTemplate  bool      `json:"is_template"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a new project.
type CreateCommand struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   TechStack `json:"tech_stack"`
	Status      string    `json:"status"`
}

// Validate checks required fields and value constraints before any write.
func (c *CreateCommand) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if c.Status != "" && !ValidStatus(c.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, c.Status)
	}
	return nil
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	TechStack   *TechStack `json:"tech_stack,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// Validate checks value constraints on present fields.
func (p *Patch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if p.Status != nil && !ValidStatus(*p.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, *p.Status)
	}
	return nil
}

// Empty reports whether the patch carries no field updates.
func (p *Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.TechStack == nil && p.Status == nil
}
