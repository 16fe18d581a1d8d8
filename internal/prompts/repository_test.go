package prompts_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcutler/loom/internal/prompts"
)

const owner = "user-1"

var promptColumns = []string{
	"id", "project_id", "step_id", "title", "content", "response",
	"variables", "version", "position", "is_template",
	"created_at", "updated_at",
}

func newRepo(t *testing.T) (prompts.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return prompts.New(db, logger), mock
}

type promptRow struct {
	id        uuid.UUID
	projectID uuid.UUID
	stepID    *uuid.UUID
	title     string
	content   string
	version   int
	position  int
}

func addPromptRow(rows *sqlmock.Rows, r promptRow) *sqlmock.Rows {
	now := time.Now()
	var stepID any
	if r.stepID != nil {
		stepID = r.stepID.String()
	}
	return rows.AddRow(
		r.id.String(), r.projectID.String(), stepID, r.title, r.content,
		nil, []byte(`{}`), r.version, r.position, false, now, now,
	)
}

func TestCreateStartsAtVersionOne(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.project_id FROM steps s").
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(projectID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM prompts WHERE step_id = \$1`).
		WithArgs(stepID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO prompts").
		WithArgs(sqlmock.AnyArg(), projectID, &stepID, "Scaffold", "Generate the files", sqlmock.AnyArg(), 2).
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: uuid.New(), projectID: projectID, stepID: &stepID,
			title: "Scaffold", content: "Generate the files", version: 1, position: 2,
		}))
	mock.ExpectCommit()

	p, err := repo.Create(context.Background(), owner, prompts.CreateCommand{
		ProjectID: projectID,
		StepID:    &stepID,
		Title:     "Scaffold",
		Content:   "Generate the files",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, 2, p.Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsStepOutsideProject(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	otherProject := uuid.New()
	stepID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.project_id FROM steps s").
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(otherProject.String()))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), owner, prompts.CreateCommand{
		ProjectID: projectID,
		StepID:    &stepID,
		Title:     "Scaffold",
		Content:   "body",
	})

	assert.ErrorIs(t, err, prompts.ErrValidation)
}

func TestCreateUnattachedUsesProjectSlot(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM projects WHERE id = \\$1 AND owner_id = \\$2 FOR UPDATE").
		WithArgs(projectID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(projectID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM prompts WHERE project_id = \$1 AND step_id IS NULL`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO prompts").
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: uuid.New(), projectID: projectID,
			title: "Notes", content: "body", version: 1, position: 1,
		}))
	mock.ExpectCommit()

	p, err := repo.Create(context.Background(), owner, prompts.CreateCommand{
		ProjectID: projectID,
		Title:     "Notes",
		Content:   "body",
	})

	require.NoError(t, err)
	assert.Nil(t, p.StepID)
	assert.Equal(t, 1, p.Order)
}

func TestCreateVersionIncrementsSlotCount(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepID := uuid.New()
	promptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pr.id, pr.project_id").
		WithArgs(promptID, owner).
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: promptID, projectID: projectID, stepID: &stepID,
			title: "Scaffold", content: "v1 body", version: 1, position: 2,
		}))
	mock.ExpectQuery("SELECT s.project_id FROM steps s").
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(projectID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM prompts WHERE project_id = \$1 AND step_id = \$2`).
		WithArgs(projectID, stepID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("INSERT INTO prompts").
		WithArgs(
			sqlmock.AnyArg(), projectID, &stepID,
			"Scaffold", "v3 body", sqlmock.AnyArg(),
			3, 2, false,
		).
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: uuid.New(), projectID: projectID, stepID: &stepID,
			title: "Scaffold", content: "v3 body", version: 3, position: 2,
		}))
	mock.ExpectCommit()

	content := "v3 body"
	p, err := repo.CreateVersion(context.Background(), owner, promptID, prompts.VersionPatch{
		Content: &content,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, p.Version)
	assert.Equal(t, 2, p.Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVersionEmptyPatchCarriesOriginal(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	promptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pr.id, pr.project_id").
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: promptID, projectID: projectID,
			title: "Notes", content: "original body", version: 1, position: 1,
		}))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(projectID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM prompts WHERE project_id = \$1 AND step_id IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO prompts").
		WithArgs(
			sqlmock.AnyArg(), projectID, nil,
			"Notes", "original body", sqlmock.AnyArg(),
			2, 1, false,
		).
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: uuid.New(), projectID: projectID,
			title: "Notes", content: "original body", version: 2, position: 1,
		}))
	mock.ExpectCommit()

	empty := ""
	p, err := repo.CreateVersion(context.Background(), owner, promptID, prompts.VersionPatch{
		Title: &empty,
	})

	require.NoError(t, err)
	assert.Equal(t, "Notes", p.Title)
	assert.Equal(t, 2, p.Version)
}

// The position feeding the shift range must be read only after the slot
// lock is granted; a pre-lock read can go stale if a concurrent sibling
// delete commits first, making the shift skip a trailing sibling.
func TestDeleteClosesGapWithinStepGroup(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepID := uuid.New()
	promptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pr.project_id, pr.step_id FROM prompts pr").
		WithArgs(promptID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "step_id"}).
			AddRow(projectID.String(), stepID.String()))
	mock.ExpectQuery("SELECT s.project_id FROM steps s").
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(projectID.String()))
	mock.ExpectQuery("SELECT position FROM prompts WHERE id = \\$1").
		WithArgs(promptID).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(2))
	mock.ExpectExec("DELETE FROM prompts WHERE id = \\$1").
		WithArgs(promptID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE prompts SET position = position - 1 WHERE step_id = \$1 AND position > \$2`).
		WithArgs(stepID, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), owner, promptID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteClosesGapWithinProjectGroup(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	promptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pr.project_id, pr.step_id FROM prompts pr").
		WithArgs(promptID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "step_id"}).
			AddRow(projectID.String(), nil))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(projectID.String()))
	mock.ExpectQuery("SELECT position FROM prompts WHERE id = \\$1").
		WithArgs(promptID).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(1))
	mock.ExpectExec("DELETE FROM prompts WHERE id = \\$1").
		WithArgs(promptID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE prompts SET position = position - 1 WHERE project_id = \$1 AND step_id IS NULL AND position > \$2`).
		WithArgs(projectID, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), owner, promptID)
	require.NoError(t, err)
}

func TestListByStepUnknownStepNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	stepID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM steps s`).
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := repo.ListByStep(context.Background(), owner, stepID)
	assert.ErrorIs(t, err, prompts.ErrNotFound)
}

func TestListVersionsNewestFirst(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepID := uuid.New()
	promptID := uuid.New()

	mock.ExpectQuery("LIMIT 1").
		WillReturnRows(addPromptRow(sqlmock.NewRows(promptColumns), promptRow{
			id: promptID, projectID: projectID, stepID: &stepID,
			title: "Scaffold", content: "body", version: 1, position: 1,
		}))

	rows := sqlmock.NewRows(promptColumns)
	addPromptRow(rows, promptRow{
		id: uuid.New(), projectID: projectID, stepID: &stepID,
		title: "Scaffold", content: "v3", version: 3, position: 1,
	})
	addPromptRow(rows, promptRow{
		id: uuid.New(), projectID: projectID, stepID: &stepID,
		title: "Scaffold", content: "v2", version: 2, position: 1,
	})
	addPromptRow(rows, promptRow{
		id: promptID, projectID: projectID, stepID: &stepID,
		title: "Scaffold", content: "body", version: 1, position: 1,
	})
	mock.ExpectQuery("ORDER BY version DESC").
		WithArgs(projectID, stepID).
		WillReturnRows(rows)

	items, err := repo.ListVersions(context.Background(), owner, promptID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{items[0].Version, items[1].Version, items[2].Version})
}

func TestReorderSkipsUnknownIDs(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepID := uuid.New()
	a := uuid.New()
	b := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.project_id FROM steps s").
		WithArgs(stepID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(projectID.String()))
	mock.ExpectQuery("SELECT id FROM prompts WHERE step_id = \\$1").
		WithArgs(stepID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))
	mock.ExpectExec("UPDATE prompts SET position = \\$1").
		WithArgs(2, a).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE prompts SET position = \\$1").
		WithArgs(1, b).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := sqlmock.NewRows(promptColumns)
	addPromptRow(rows, promptRow{id: b, projectID: projectID, stepID: &stepID, title: "B", content: "b", version: 1, position: 1})
	addPromptRow(rows, promptRow{id: a, projectID: projectID, stepID: &stepID, title: "A", content: "a", version: 1, position: 2})
	mock.ExpectQuery("ORDER BY position ASC, version DESC").
		WithArgs(stepID).
		WillReturnRows(rows)
	mock.ExpectCommit()

	items, err := repo.Reorder(context.Background(), owner, stepID, prompts.ReorderCommand{
		Assignments: []prompts.OrderAssignment{
			{ID: a, Order: 2},
			{ID: uuid.New(), Order: 9},
			{ID: b, Order: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b, items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
