package projects

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/pagination"
	"github.com/mcutler/loom/pkg/storage"
)

// System defines the public contract for project domain operations.
// Every operation is scoped to the authenticated owner; rows owned by
// other users behave as if they do not exist.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		owner string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Project], error)

	Find(ctx context.Context, owner string, id uuid.UUID) (*Project, error)
	Create(ctx context.Context, owner string, cmd CreateCommand) (*Project, error)
	Update(ctx context.Context, owner string, id uuid.UUID, patch Patch) (*Project, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error

	Clone(ctx context.Context, owner string, id uuid.UUID, mode CloneMode) (*Project, error)
	Export(ctx context.Context, owner string, id uuid.UUID) (*ExportDocument, error)

	Archive(ctx context.Context, owner string, id uuid.UUID) (*ArchiveReceipt, error)
	ArchiveAll(ctx context.Context, owner string) ([]ArchiveResult, error)
	ListArchives(ctx context.Context, owner string) ([]storage.Object, error)
	DownloadArchive(ctx context.Context, owner, key string) (io.ReadCloser, error)
}
