package steps

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for step domain operations.
// Every operation is scoped to the authenticated owner through the step's
// project; steps under another user's project behave as if absent.
type System interface {
	Handler() *Handler

	Create(ctx context.Context, owner string, cmd CreateCommand) (*Step, error)
	List(ctx context.Context, owner string, projectID uuid.UUID) ([]Step, error)
	Find(ctx context.Context, owner string, id uuid.UUID) (*Step, error)
	Update(ctx context.Context, owner string, id uuid.UUID, patch Patch) (*Step, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	Reorder(ctx context.Context, owner string, projectID uuid.UUID, cmd ReorderCommand) ([]Step, error)
}
