package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/repository"
)

// ExportDocument is the flattened, replayable form of a project subtree.
// It carries no identifiers and no version history.
type ExportDocument struct {
	Project ExportProject `json:"project"`
	Steps   []ExportStep  `json:"steps"`
}

// ExportProject holds the exported project metadata.
type ExportProject struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   TechStack `json:"tech_stack"`
}

// ExportStep holds one exported step and its prompts.
type ExportStep struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Order          int            `json:"order"`
	ExpectedOutput string         `json:"expected_output"`
	Prompts        []ExportPrompt `json:"prompts"`
}

// ExportPrompt holds one exported prompt.
type ExportPrompt struct {
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Variables map[string]string `json:"variables"`
	Response  *string           `json:"response"`
}

// Export serializes the project subtree into an ExportDocument. Steps are
// emitted ascending by position; prompts within each step in insertion
// order. All reads share one transaction for a consistent snapshot.
func (r *repo) Export(ctx context.Context, owner string, id uuid.UUID) (*ExportDocument, error) {
	doc, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ExportDocument, error) {
		project, err := repository.QueryOne(
			ctx, tx,
			"SELECT "+projectColumns+" FROM projects WHERE id = $1 AND owner_id = $2",
			[]any{id, owner},
			scanProject,
		)
		if err != nil {
			return ExportDocument{}, err
		}

		steps, err := repository.QueryMany(
			ctx, tx,
			`SELECT id, title, description, position, expected_output
			 FROM steps WHERE project_id = $1 ORDER BY position ASC`,
			[]any{id},
			func(s repository.Scanner) (exportStepRow, error) {
				var st exportStepRow
				err := s.Scan(&st.ID, &st.Title, &st.Description, &st.Position, &st.ExpectedOutput)
				return st, err
			},
		)
		if err != nil {
			return ExportDocument{}, fmt.Errorf("load steps: %w", err)
		}

		prompts, err := repository.QueryMany(
			ctx, tx,
			`SELECT step_id, title, content, variables, response
			 FROM prompts WHERE project_id = $1 AND step_id IS NOT NULL
			 ORDER BY created_at ASC`,
			[]any{id},
			func(s repository.Scanner) (exportPromptRow, error) {
				var pr exportPromptRow
				err := s.Scan(&pr.StepID, &pr.Title, &pr.Content, &pr.Variables, &pr.Response)
				return pr, err
			},
		)
		if err != nil {
			return ExportDocument{}, fmt.Errorf("load prompts: %w", err)
		}

		return assemble(project, steps, prompts)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return &doc, nil
}

type exportStepRow struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Position       int
	ExpectedOutput string
}

type exportPromptRow struct {
	StepID    uuid.UUID
	Title     string
	Content   string
	Variables []byte
	Response  *string
}

func assemble(project Project, steps []exportStepRow, prompts []exportPromptRow) (ExportDocument, error) {
	byStep := make(map[uuid.UUID][]ExportPrompt, len(steps))
	for _, pr := range prompts {
		variables := map[string]string{}
		if len(pr.Variables) > 0 {
			if err := json.Unmarshal(pr.Variables, &variables); err != nil {
				return ExportDocument{}, fmt.Errorf("decode prompt variables: %w", err)
			}
		}

		byStep[pr.StepID] = append(byStep[pr.StepID], ExportPrompt{
			Title:     pr.Title,
			Content:   pr.Content,
			Variables: variables,
			Response:  pr.Response,
		})
	}

	doc := ExportDocument{
		Project: ExportProject{
			Name:        project.Name,
			Description: project.Description,
			TechStack:   project.TechStack,
		},
		Steps: make([]ExportStep, 0, len(steps)),
	}

	for _, st := range steps {
		stepPrompts := byStep[st.ID]
		if stepPrompts == nil {
			stepPrompts = []ExportPrompt{}
		}

		doc.Steps = append(doc.Steps, ExportStep{
			Title:          st.Title,
			Description:    st.Description,
			Order:          st.Position,
			ExpectedOutput: st.ExpectedOutput,
			Prompts:        stepPrompts,
		})
	}

	return doc, nil
}
