package projects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/repository"
)

// CloneMode selects the field-carry-over rules for a structural clone.
type CloneMode string

const (
	// CloneDuplicate copies the full working tree, including step outputs.
	CloneDuplicate CloneMode = "duplicate"
	// CloneSaveAsTemplate extracts a reusable template from the project.
	CloneSaveAsTemplate CloneMode = "template"
	// CloneInstantiate creates a working project from a template.
	CloneInstantiate CloneMode = "instantiate"
)

const (
	copyMarker     = " (copy)"
	templateMarker = " (Template)"
)

// cloneSpec parameterizes the shared tree-walk. The three modes differ only
// in the name transform, whether step outputs carry over, and the template
// flags on the result.
type cloneSpec struct {
	transformName   func(string) string
	carryOutputs    bool
	setTemplate     bool
	requireTemplate bool
}

var cloneSpecs = map[CloneMode]cloneSpec{
	CloneDuplicate: {
		transformName: func(name string) string { return name + copyMarker },
		carryOutputs:  true,
	},
	CloneSaveAsTemplate: {
		transformName: func(name string) string { return name + templateMarker },
		setTemplate:   true,
	},
	CloneInstantiate: {
		transformName:   func(name string) string { return strings.ReplaceAll(name, templateMarker, "") },
		requireTemplate: true,
	},
}

type sourceStep struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Position       int
	ExpectedOutput string
	ActualOutput   string
	Notes          string
}

type sourcePrompt struct {
	StepID    *uuid.UUID
	Title     string
	Content   string
	Variables []byte
	Position  int
}

// Clone deep-copies the project subtree (steps, then prompts) in a single
// transaction. The source row is locked for the duration so concurrent
// structural edits cannot interleave with the copy.
func (r *repo) Clone(ctx context.Context, owner string, id uuid.UUID, mode CloneMode) (*Project, error) {
	spec, ok := cloneSpecs[mode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown clone mode %q", ErrValidation, mode)
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Project, error) {
		src, err := repository.QueryOne(
			ctx, tx,
			"SELECT "+projectColumns+" FROM projects WHERE id = $1 AND owner_id = $2 FOR UPDATE",
			[]any{id, owner},
			scanProject,
		)
		if err != nil {
			return Project{}, err
		}

		if spec.requireTemplate && !src.IsTemplate {
			return Project{}, ErrNotTemplate
		}

		clone, err := repository.QueryOne(
			ctx, tx,
			fmt.Sprintf(`
				INSERT INTO projects(id, owner_id, name, description, tech_stack, status, is_template)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING %s`, projectColumns),
			[]any{
				uuid.New(),
				owner,
				spec.transformName(src.Name),
				src.Description,
				src.TechStack,
				StatusPlanning,
				spec.setTemplate,
			},
			scanProject,
		)
		if err != nil {
			return Project{}, err
		}

		stepIDs, err := cloneSteps(ctx, tx, src.ID, clone.ID, spec)
		if err != nil {
			return Project{}, err
		}

		if err := clonePrompts(ctx, tx, src.ID, clone.ID, stepIDs, spec); err != nil {
			return Project{}, err
		}

		return clone, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("project cloned", "source", id, "clone", p.ID, "mode", mode)
	return &p, nil
}

// cloneSteps copies every step under src in ascending position and returns
// the source-to-clone step id mapping needed to reattach prompts.
func cloneSteps(
	ctx context.Context,
	tx *sql.Tx,
	src, dst uuid.UUID,
	spec cloneSpec,
) (map[uuid.UUID]uuid.UUID, error) {
	steps, err := repository.QueryMany(
		ctx, tx,
		`SELECT id, title, description, position, expected_output, actual_output, notes
		 FROM steps WHERE project_id = $1 ORDER BY position ASC`,
		[]any{src},
		func(s repository.Scanner) (sourceStep, error) {
			var st sourceStep
			err := s.Scan(&st.ID, &st.Title, &st.Description, &st.Position,
				&st.ExpectedOutput, &st.ActualOutput, &st.Notes)
			return st, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load source steps: %w", err)
	}

	stepIDs := make(map[uuid.UUID]uuid.UUID, len(steps))

	for _, st := range steps {
		actualOutput, notes := "", ""
		if spec.carryOutputs {
			actualOutput, notes = st.ActualOutput, st.Notes
		}

		newID := uuid.New()
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO steps(id, project_id, title, description, position, expected_output, actual_output, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			newID, dst, st.Title, st.Description, st.Position,
			st.ExpectedOutput, actualOutput, notes,
		)
		if err != nil {
			return nil, fmt.Errorf("copy step %s: %w", st.ID, err)
		}

		stepIDs[st.ID] = newID
	}

	return stepIDs, nil
}

// clonePrompts copies every prompt under src in insertion order. Clones
// always restart their version chain at 1 and never carry the response.
func clonePrompts(
	ctx context.Context,
	tx *sql.Tx,
	src, dst uuid.UUID,
	stepIDs map[uuid.UUID]uuid.UUID,
	spec cloneSpec,
) error {
	prompts, err := repository.QueryMany(
		ctx, tx,
		`SELECT step_id, title, content, variables, position
		 FROM prompts WHERE project_id = $1 ORDER BY created_at ASC`,
		[]any{src},
		func(s repository.Scanner) (sourcePrompt, error) {
			var sp sourcePrompt
			err := s.Scan(&sp.StepID, &sp.Title, &sp.Content, &sp.Variables, &sp.Position)
			return sp, err
		},
	)
	if err != nil {
		return fmt.Errorf("load source prompts: %w", err)
	}

	for _, sp := range prompts {
		var stepID *uuid.UUID
		if sp.StepID != nil {
			if mapped, ok := stepIDs[*sp.StepID]; ok {
				stepID = &mapped
			}
		}

		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO prompts(id, project_id, step_id, title, content, variables, version, position, is_template)
			 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`,
			uuid.New(), dst, stepID, sp.Title, sp.Content, sp.Variables,
			sp.Position, spec.setTemplate,
		)
		if err != nil {
			return fmt.Errorf("copy prompt: %w", err)
		}
	}

	return nil
}
