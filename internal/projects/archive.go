package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcutler/loom/pkg/repository"
	"github.com/mcutler/loom/pkg/storage"
)

const archiveWorkerLimit = 4

// ArchiveReceipt records a stored export document.
type ArchiveReceipt struct {
	ProjectID  uuid.UUID `json:"project_id"`
	Key        string    `json:"key"`
	SizeBytes  int64     `json:"size_bytes"`
	ArchivedAt time.Time `json:"archived_at"`
}

// ArchiveResult reports the outcome of one project within a bulk archive.
// On success, Receipt is populated and Error is empty.
type ArchiveResult struct {
	ProjectID uuid.UUID       `json:"project_id"`
	Receipt   *ArchiveReceipt `json:"receipt,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Archive serializes the project and uploads the export document to blob
// storage under an owner-scoped key.
func (r *repo) Archive(ctx context.Context, owner string, id uuid.UUID) (*ArchiveReceipt, error) {
	doc, err := r.Export(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export document: %w", err)
	}

	now := time.Now().UTC()
	key := buildArchiveKey(owner, id, now)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}

	r.logger.Info("project archived", "id", id, "key", key)

	return &ArchiveReceipt{
		ProjectID:  id,
		Key:        key,
		SizeBytes:  int64(len(data)),
		ArchivedAt: now,
	}, nil
}

// ArchiveAll archives every non-template project owned by the caller with
// bounded concurrency. Individual failures are reported per project rather
// than aborting the batch.
func (r *repo) ArchiveAll(ctx context.Context, owner string) ([]ArchiveResult, error) {
	ids, err := repository.QueryMany(
		ctx, r.db,
		"SELECT id FROM projects WHERE owner_id = $1 AND is_template = false ORDER BY created_at ASC",
		[]any{owner},
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list projects for archive: %w", err)
	}

	results := make([]ArchiveResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveWorkerLimit)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = ArchiveResult{ProjectID: id}

			receipt, err := r.Archive(gctx, owner, id)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}

			results[i].Receipt = receipt
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// ListArchives returns the caller's stored archives.
func (r *repo) ListArchives(ctx context.Context, owner string) ([]storage.Object, error) {
	return r.storage.List(ctx, archivePrefix(owner))
}

// DownloadArchive streams a stored archive. Keys outside the caller's
// prefix behave as missing.
func (r *repo) DownloadArchive(ctx context.Context, owner, key string) (io.ReadCloser, error) {
	if !strings.HasPrefix(key, archivePrefix(owner)) {
		return nil, storage.ErrNotFound
	}
	return r.storage.Download(ctx, key)
}

func archivePrefix(owner string) string {
	return fmt.Sprintf("exports/%s/", url.PathEscape(owner))
}

func buildArchiveKey(owner string, id uuid.UUID, ts time.Time) string {
	return fmt.Sprintf("%s%s/%s.json", archivePrefix(owner), id, ts.Format("20060102T150405Z"))
}
