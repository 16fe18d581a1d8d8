package prompts

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for prompt domain operations.
// Every operation is scoped to the authenticated owner through the prompt's
// project; prompts under another user's project behave as if absent.
type System interface {
	Handler() *Handler

	Create(ctx context.Context, owner string, cmd CreateCommand) (*Prompt, error)
	ListByStep(ctx context.Context, owner string, stepID uuid.UUID) ([]Prompt, error)
	Find(ctx context.Context, owner string, id uuid.UUID) (*Prompt, error)
	Update(ctx context.Context, owner string, id uuid.UUID, patch Patch) (*Prompt, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	Reorder(ctx context.Context, owner string, stepID uuid.UUID, cmd ReorderCommand) ([]Prompt, error)

	CreateVersion(ctx context.Context, owner string, id uuid.UUID, patch VersionPatch) (*Prompt, error)
	ListVersions(ctx context.Context, owner string, id uuid.UUID) ([]Prompt, error)
}
