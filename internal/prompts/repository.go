package prompts

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

const promptColumns = "id, project_id, step_id, title, content, response, variables, version, position, is_template, created_at, updated_at"

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a prompt repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "prompts"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// lockProject acquires a row lock on the owning project, serializing order
// and version assignment for the project-level sibling group.
func lockProject(ctx context.Context, tx *sql.Tx, projectID uuid.UUID, owner string) error {
	var id uuid.UUID
	return tx.QueryRowContext(
		ctx,
		"SELECT id FROM projects WHERE id = $1 AND owner_id = $2 FOR UPDATE",
		projectID, owner,
	).Scan(&id)
}

// lockStep acquires a row lock on the step, serializing order and version
// assignment for the step-level sibling group, and returns the step's
// project id for membership checks.
func lockStep(ctx context.Context, tx *sql.Tx, stepID uuid.UUID, owner string) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := tx.QueryRowContext(
		ctx,
		`SELECT s.project_id FROM steps s
		 INNER JOIN projects p ON s.project_id = p.id
		 WHERE s.id = $1 AND p.owner_id = $2
		 FOR UPDATE OF s`,
		stepID, owner,
	).Scan(&projectID)
	return projectID, err
}

// lockSlot locks the parent of the (project, step) slot: the step when the
// prompt is attached, otherwise the project.
func lockSlot(ctx context.Context, tx *sql.Tx, owner string, projectID uuid.UUID, stepID *uuid.UUID) error {
	if stepID == nil {
		return lockProject(ctx, tx, projectID, owner)
	}
	_, err := lockStep(ctx, tx, *stepID, owner)
	return err
}

// countSlot returns the number of live rows in the (project, step) slot.
// Must be called with the slot's parent locked.
func countSlot(ctx context.Context, tx *sql.Tx, projectID uuid.UUID, stepID *uuid.UUID) (int, error) {
	if stepID == nil {
		return repository.Count(
			ctx, tx,
			"SELECT COUNT(*) FROM prompts WHERE project_id = $1 AND step_id IS NULL",
			projectID,
		)
	}
	return repository.Count(
		ctx, tx,
		"SELECT COUNT(*) FROM prompts WHERE project_id = $1 AND step_id = $2",
		projectID, *stepID,
	)
}

func (r *repo) Create(ctx context.Context, owner string, cmd CreateCommand) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		var count int
		if cmd.StepID != nil {
			projectID, err := lockStep(ctx, tx, *cmd.StepID, owner)
			if err != nil {
				return Prompt{}, err
			}
			if projectID != cmd.ProjectID {
				return Prompt{}, fmt.Errorf("%w: step does not belong to project", ErrValidation)
			}

			count, err = repository.Count(
				ctx, tx,
				"SELECT COUNT(*) FROM prompts WHERE step_id = $1",
				*cmd.StepID,
			)
			if err != nil {
				return Prompt{}, err
			}
		} else {
			if err := lockProject(ctx, tx, cmd.ProjectID, owner); err != nil {
				return Prompt{}, err
			}

			var err error
			count, err = countSlot(ctx, tx, cmd.ProjectID, nil)
			if err != nil {
				return Prompt{}, err
			}
		}

		return repository.QueryOne(
			ctx, tx,
			fmt.Sprintf(`
				INSERT INTO prompts(id, project_id, step_id, title, content, variables, version, position)
				VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
				RETURNING %s`, promptColumns),
			[]any{uuid.New(), cmd.ProjectID, cmd.StepID, cmd.Title, cmd.Content, cmd.Variables, count + 1},
			scanPrompt,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt created", "id", p.ID, "project", p.ProjectID, "order", p.Order)
	return &p, nil
}

func (r *repo) ListByStep(ctx context.Context, owner string, stepID uuid.UUID) ([]Prompt, error) {
	exists, err := repository.Count(
		ctx, r.db,
		`SELECT COUNT(*) FROM steps s
		 INNER JOIN projects p ON s.project_id = p.id
		 WHERE s.id = $1 AND p.owner_id = $2`,
		stepID, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("check step: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	q, args := query.
		NewBuilder(projection, defaultSort...).
		WhereEquals("StepID", stepID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	return items, nil
}

func (r *repo) Find(ctx context.Context, owner string, id uuid.UUID) (*Prompt, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("ID", id).
		WhereEquals("p.owner_id", owner).
		BuildSingleOrNull()

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Update(ctx context.Context, owner string, id uuid.UUID, patch Patch) (*Prompt, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return r.Find(ctx, owner, id)
	}

	sets := []string{"updated_at = now()"}
	args := make([]any, 0, 6)
	idx := 1

	set := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Content != nil {
		set("content", *patch.Content)
	}
	if patch.Response != nil {
		set("response", *patch.Response)
	}
	if patch.Variables != nil {
		set("variables", *patch.Variables)
	}

	q := fmt.Sprintf(`
		UPDATE prompts SET %s
		WHERE id = $%d
		  AND project_id IN (SELECT id FROM projects WHERE owner_id = $%d)
		RETURNING %s`,
		strings.Join(sets, ", "), idx, idx+1, promptColumns,
	)
	args = append(args, id, owner)

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt updated", "id", p.ID)
	return &p, nil
}

// Delete removes the prompt and closes the order gap within its sibling
// group, mirroring step deletion.
func (r *repo) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var projectID uuid.UUID
		var stepID *uuid.UUID
		err := tx.QueryRowContext(
			ctx,
			`SELECT pr.project_id, pr.step_id FROM prompts pr
			 INNER JOIN projects p ON pr.project_id = p.id
			 WHERE pr.id = $1 AND p.owner_id = $2`,
			id, owner,
		).Scan(&projectID, &stepID)
		if err != nil {
			return struct{}{}, err
		}

		if err := lockSlot(ctx, tx, owner, projectID, stepID); err != nil {
			return struct{}{}, err
		}

		// The position must be read under the slot lock. A concurrent
		// sibling delete committed before the lock was acquired can shift
		// this row, and the gap-closure range is keyed on it.
		var position int
		if err := tx.QueryRowContext(
			ctx,
			"SELECT position FROM prompts WHERE id = $1",
			id,
		).Scan(&position); err != nil {
			return struct{}{}, err
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM prompts WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}

		if stepID != nil {
			_, err = tx.ExecContext(
				ctx,
				"UPDATE prompts SET position = position - 1 WHERE step_id = $1 AND position > $2",
				*stepID, position,
			)
		} else {
			_, err = tx.ExecContext(
				ctx,
				"UPDATE prompts SET position = position - 1 WHERE project_id = $1 AND step_id IS NULL AND position > $2",
				projectID, position,
			)
		}
		return struct{}{}, err
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

// Reorder applies the assignment list to a step's prompts in one
// transaction. Assignments referencing ids outside the step are skipped.
// The full sibling set is re-read in listing order and returned.
func (r *repo) Reorder(ctx context.Context, owner string, stepID uuid.UUID, cmd ReorderCommand) ([]Prompt, error) {
	items, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Prompt, error) {
		if _, err := lockStep(ctx, tx, stepID, owner); err != nil {
			return nil, err
		}

		ids, err := repository.QueryMany(
			ctx, tx,
			"SELECT id FROM prompts WHERE step_id = $1",
			[]any{stepID},
			func(s repository.Scanner) (uuid.UUID, error) {
				var promptID uuid.UUID
				err := s.Scan(&promptID)
				return promptID, err
			},
		)
		if err != nil {
			return nil, err
		}

		members := make(map[uuid.UUID]struct{}, len(ids))
		for _, promptID := range ids {
			members[promptID] = struct{}{}
		}

		for _, a := range cmd.Assignments {
			if _, ok := members[a.ID]; !ok {
				continue
			}
			if _, err := tx.ExecContext(
				ctx,
				"UPDATE prompts SET position = $1, updated_at = now() WHERE id = $2",
				a.Order, a.ID,
			); err != nil {
				return nil, err
			}
		}

		return repository.QueryMany(
			ctx, tx,
			fmt.Sprintf(
				"SELECT %s FROM prompts WHERE step_id = $1 ORDER BY position ASC, version DESC",
				promptColumns,
			),
			[]any{stepID},
			scanPrompt,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompts reordered", "step", stepID, "assignments", len(cmd.Assignments))
	return items, nil
}

// CreateVersion appends a new row to the prompt's slot. The new version is
// one greater than the live slot row count, computed under the slot parent
// lock so concurrent version creation cannot collide. The original row is
// never mutated.
func (r *repo) CreateVersion(ctx context.Context, owner string, id uuid.UUID, patch VersionPatch) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		orig, err := repository.QueryOne(
			ctx, tx,
			fmt.Sprintf(`
				SELECT %s FROM prompts pr
				WHERE pr.id = $1
				  AND pr.project_id IN (SELECT id FROM projects WHERE owner_id = $2)`,
				qualified("pr", promptColumns)),
			[]any{id, owner},
			scanPrompt,
		)
		if err != nil {
			return Prompt{}, err
		}

		if err := lockSlot(ctx, tx, owner, orig.ProjectID, orig.StepID); err != nil {
			return Prompt{}, err
		}

		count, err := countSlot(ctx, tx, orig.ProjectID, orig.StepID)
		if err != nil {
			return Prompt{}, err
		}

		return repository.QueryOne(
			ctx, tx,
			fmt.Sprintf(`
				INSERT INTO prompts(id, project_id, step_id, title, content, variables, version, position, is_template)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING %s`, promptColumns),
			[]any{
				uuid.New(),
				orig.ProjectID,
				orig.StepID,
				pickString(patch.Title, orig.Title),
				pickString(patch.Content, orig.Content),
				pickVariables(patch.Variables, orig.Variables),
				count + 1,
				orig.Order,
				orig.IsTemplate,
			},
			scanPrompt,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt version created", "id", p.ID, "slot_source", id, "version", p.Version)
	return &p, nil
}

// ListVersions returns every row in the prompt's slot, newest version first.
func (r *repo) ListVersions(ctx context.Context, owner string, id uuid.UUID) ([]Prompt, error) {
	orig, err := r.Find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	var q string
	args := []any{orig.ProjectID}
	if orig.StepID != nil {
		q = fmt.Sprintf(
			"SELECT %s FROM prompts WHERE project_id = $1 AND step_id = $2 ORDER BY version DESC",
			promptColumns,
		)
		args = append(args, *orig.StepID)
	} else {
		q = fmt.Sprintf(
			"SELECT %s FROM prompts WHERE project_id = $1 AND step_id IS NULL ORDER BY version DESC",
			promptColumns,
		)
	}

	items, err := repository.QueryMany(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	return items, nil
}

// pickString prefers a present, non-empty patch value over the original.
func pickString(patch *string, orig string) string {
	if patch != nil && *patch != "" {
		return *patch
	}
	return orig
}

// pickVariables prefers a present, non-empty patch map over the original.
func pickVariables(patch *Variables, orig Variables) Variables {
	if patch != nil && len(*patch) > 0 {
		return *patch
	}
	return orig
}

// qualified prefixes each column in a comma-separated list with the alias.
func qualified(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, col := range parts {
		parts[i] = alias + "." + col
	}
	return strings.Join(parts, ", ")
}
