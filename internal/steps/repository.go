package steps

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/query"
	"github.com/mcutler/loom/pkg/repository"
)

const stepColumns = "id, project_id, title, description, position, is_completed, expected_output, actual_output, notes, created_at, updated_at"

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a step repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "steps"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// lockProject acquires a row lock on the owning project, serializing order
// assignment within the sibling group for the rest of the transaction.
// Missing and not-owned projects are indistinguishable.
func lockProject(ctx context.Context, tx *sql.Tx, projectID uuid.UUID, owner string) error {
	var id uuid.UUID
	err := tx.QueryRowContext(
		ctx,
		"SELECT id FROM projects WHERE id = $1 AND owner_id = $2 FOR UPDATE",
		projectID, owner,
	).Scan(&id)
	return err
}

func (r *repo) Create(ctx context.Context, owner string, cmd CreateCommand) (*Step, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	st, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Step, error) {
		if err := lockProject(ctx, tx, cmd.ProjectID, owner); err != nil {
			return Step{}, err
		}

		count, err := repository.Count(
			ctx, tx,
			"SELECT COUNT(*) FROM steps WHERE project_id = $1",
			cmd.ProjectID,
		)
		if err != nil {
			return Step{}, err
		}

		return repository.QueryOne(
			ctx, tx,
			fmt.Sprintf(`
				INSERT INTO steps(id, project_id, title, description, position, expected_output)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING %s`, stepColumns),
			[]any{uuid.New(), cmd.ProjectID, cmd.Title, cmd.Description, count + 1, cmd.ExpectedOutput},
			scanStep,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("step created", "id", st.ID, "project", st.ProjectID, "order", st.Order)
	return &st, nil
}

func (r *repo) List(ctx context.Context, owner string, projectID uuid.UUID) ([]Step, error) {
	exists, err := repository.Count(
		ctx, r.db,
		"SELECT COUNT(*) FROM projects WHERE id = $1 AND owner_id = $2",
		projectID, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("ProjectID", projectID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanStep)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	return items, nil
}

func (r *repo) Find(ctx context.Context, owner string, id uuid.UUID) (*Step, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("ID", id).
		WhereEquals("p.owner_id", owner).
		BuildSingleOrNull()

	st, err := repository.QueryOne(ctx, r.db, q, args, scanStep)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &st, nil
}

func (r *repo) Update(ctx context.Context, owner string, id uuid.UUID, patch Patch) (*Step, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return r.Find(ctx, owner, id)
	}

	sets := []string{"updated_at = now()"}
	args := make([]any, 0, 8)
	idx := 1

	set := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.ExpectedOutput != nil {
		set("expected_output", *patch.ExpectedOutput)
	}
	if patch.ActualOutput != nil {
		set("actual_output", *patch.ActualOutput)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.IsCompleted != nil {
		set("is_completed", *patch.IsCompleted)
	}

	q := fmt.Sprintf(`
		UPDATE steps SET %s
		WHERE id = $%d
		  AND project_id IN (SELECT id FROM projects WHERE owner_id = $%d)
		RETURNING %s`,
		strings.Join(sets, ", "), idx, idx+1, stepColumns,
	)
	args = append(args, id, owner)

	st, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Step, error) {
		return repository.QueryOne(ctx, tx, q, args, scanStep)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("step updated", "id", st.ID)
	return &st, nil
}

// Delete removes the step and closes the order gap: every sibling with a
// greater order index shifts down by one within the same transaction.
func (r *repo) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var projectID uuid.UUID
		err := tx.QueryRowContext(
			ctx,
			`SELECT s.project_id FROM steps s
			 INNER JOIN projects p ON s.project_id = p.id
			 WHERE s.id = $1 AND p.owner_id = $2`,
			id, owner,
		).Scan(&projectID)
		if err != nil {
			return struct{}{}, err
		}

		if err := lockProject(ctx, tx, projectID, owner); err != nil {
			return struct{}{}, err
		}

		// The position must be read under the project lock. A concurrent
		// delete committed between the ownership check and the lock can
		// shift this row, and the gap-closure range is keyed on it.
		var position int
		if err := tx.QueryRowContext(
			ctx,
			"SELECT position FROM steps WHERE id = $1",
			id,
		).Scan(&position); err != nil {
			return struct{}{}, err
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM steps WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}

		_, err = tx.ExecContext(
			ctx,
			"UPDATE steps SET position = position - 1 WHERE project_id = $1 AND position > $2",
			projectID, position,
		)
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("step deleted", "id", id)
	return nil
}

// Reorder applies the assignment list in one transaction. Assignments
// referencing ids outside the project are skipped. Density and uniqueness
// of the requested order values are the caller's responsibility; the full
// sibling set is re-read ascending and returned.
func (r *repo) Reorder(ctx context.Context, owner string, projectID uuid.UUID, cmd ReorderCommand) ([]Step, error) {
	items, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Step, error) {
		if err := lockProject(ctx, tx, projectID, owner); err != nil {
			return nil, err
		}

		ids, err := repository.QueryMany(
			ctx, tx,
			"SELECT id FROM steps WHERE project_id = $1",
			[]any{projectID},
			func(s repository.Scanner) (uuid.UUID, error) {
				var stepID uuid.UUID
				err := s.Scan(&stepID)
				return stepID, err
			},
		)
		if err != nil {
			return nil, err
		}

		members := make(map[uuid.UUID]struct{}, len(ids))
		for _, stepID := range ids {
			members[stepID] = struct{}{}
		}

		for _, a := range cmd.Assignments {
			if _, ok := members[a.ID]; !ok {
				continue
			}
			if _, err := tx.ExecContext(
				ctx,
				"UPDATE steps SET position = $1, updated_at = now() WHERE id = $2",
				a.Order, a.ID,
			); err != nil {
				return nil, err
			}
		}

		return repository.QueryMany(
			ctx, tx,
			fmt.Sprintf("SELECT %s FROM steps WHERE project_id = $1 ORDER BY position ASC", stepColumns),
			[]any{projectID},
			scanStep,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("steps reordered", "project", projectID, "assignments", len(cmd.Assignments))
	return items, nil
}
