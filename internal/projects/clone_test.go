package projects_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcutler/loom/internal/projects"
)

var stepSourceColumns = []string{
	"id", "title", "description", "position", "expected_output", "actual_output", "notes",
}

var promptSourceColumns = []string{"step_id", "title", "content", "variables", "position"}

func TestCloneDuplicateCarriesOutputs(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()
	cloneID := uuid.New()
	stepID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), srcID, "My Project", "in_progress", false))
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), owner, "My Project (copy)", "", sqlmock.AnyArg(), "planning", false).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), cloneID, "My Project (copy)", "planning", false))
	mock.ExpectQuery("FROM steps WHERE project_id = \\$1 ORDER BY position ASC").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(stepSourceColumns).
			AddRow(stepID.String(), "Deploy", "", 1, "expected", "done", "worked first try"))
	mock.ExpectExec("INSERT INTO steps").
		WithArgs(sqlmock.AnyArg(), cloneID, "Deploy", "", 1, "expected", "done", "worked first try").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM prompts WHERE project_id = \\$1 ORDER BY created_at ASC").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(promptSourceColumns).
			AddRow(stepID.String(), "Scaffold", "body", []byte(`{}`), 1))
	mock.ExpectExec("INSERT INTO prompts").
		WithArgs(sqlmock.AnyArg(), cloneID, sqlmock.AnyArg(), "Scaffold", "body", []byte(`{}`), 1, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := repo.Clone(context.Background(), owner, srcID, projects.CloneDuplicate)

	require.NoError(t, err)
	assert.Equal(t, "My Project (copy)", p.Name)
	assert.False(t, p.IsTemplate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloneTemplateResetsWorkingState(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()
	cloneID := uuid.New()
	stepID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), srcID, "My Project", "completed", false))
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), owner, "My Project (Template)", "", sqlmock.AnyArg(), "planning", true).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), cloneID, "My Project (Template)", "planning", true))
	mock.ExpectQuery("FROM steps").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(stepSourceColumns).
			AddRow(stepID.String(), "Deploy", "", 1, "expected", "done", "notes"))
	mock.ExpectExec("INSERT INTO steps").
		WithArgs(sqlmock.AnyArg(), cloneID, "Deploy", "", 1, "expected", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM prompts").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(promptSourceColumns).
			AddRow(stepID.String(), "Scaffold", "body", []byte(`{}`), 1))
	mock.ExpectExec(`INSERT INTO prompts\(id, project_id, step_id, title, content, variables, version, position, is_template\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, 1, \$7, \$8\)`).
		WithArgs(sqlmock.AnyArg(), cloneID, sqlmock.AnyArg(), "Scaffold", "body", []byte(`{}`), 1, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := repo.Clone(context.Background(), owner, srcID, projects.CloneSaveAsTemplate)

	require.NoError(t, err)
	assert.True(t, p.IsTemplate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloneInstantiateRequiresTemplate(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), srcID, "My Project", "planning", false))
	mock.ExpectRollback()

	_, err := repo.Clone(context.Background(), owner, srcID, projects.CloneInstantiate)
	assert.ErrorIs(t, err, projects.ErrNotTemplate)
}

func TestCloneInstantiateStripsTemplateMarker(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()
	cloneID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), srcID, "Base (Template)", "planning", true))
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), owner, "Base", "", sqlmock.AnyArg(), "planning", false).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), cloneID, "Base", "planning", false))
	mock.ExpectQuery("FROM steps").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(stepSourceColumns))
	mock.ExpectQuery("FROM prompts").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(promptSourceColumns))
	mock.ExpectCommit()

	p, err := repo.Clone(context.Background(), owner, srcID, projects.CloneInstantiate)

	require.NoError(t, err)
	assert.Equal(t, "Base", p.Name)
	assert.False(t, p.IsTemplate)
}

// A template that has itself been saved as a template accumulates marker
// suffixes; instantiation strips every occurrence, not just the first.
func TestCloneInstantiateStripsRepeatedMarkers(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()
	cloneID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), srcID, "Base (Template) (Template)", "planning", true))
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), owner, "Base", "", sqlmock.AnyArg(), "planning", false).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), cloneID, "Base", "planning", false))
	mock.ExpectQuery("FROM steps").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(stepSourceColumns))
	mock.ExpectQuery("FROM prompts").
		WithArgs(srcID).
		WillReturnRows(sqlmock.NewRows(promptSourceColumns))
	mock.ExpectCommit()

	p, err := repo.Clone(context.Background(), owner, srcID, projects.CloneInstantiate)

	require.NoError(t, err)
	assert.Equal(t, "Base", p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloneUnknownMode(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Clone(context.Background(), owner, uuid.New(), projects.CloneMode("merge"))
	assert.ErrorIs(t, err, projects.ErrValidation)
}

func TestCloneMissingProjectNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	srcID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(srcID, owner).
		WillReturnRows(sqlmock.NewRows(projectColumns))
	mock.ExpectRollback()

	_, err := repo.Clone(context.Background(), owner, srcID, projects.CloneDuplicate)
	assert.ErrorIs(t, err, projects.ErrNotFound)
}
