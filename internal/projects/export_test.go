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

var exportStepColumns = []string{"id", "title", "description", "position", "expected_output"}

var exportPromptColumns = []string{"step_id", "title", "content", "variables", "response"}

func TestExportAssemblesSubtree(t *testing.T) {
	repo, mock := newRepo(t)

	projectID := uuid.New()
	stepA := uuid.New()
	stepB := uuid.New()
	response := "generated output"

	mock.ExpectBegin()
	mock.ExpectQuery("FROM projects WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs(projectID, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), projectID, "My Project", "in_progress", false))
	mock.ExpectQuery("FROM steps WHERE project_id = \\$1 ORDER BY position ASC").
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(exportStepColumns).
			AddRow(stepA.String(), "Design", "schema first", 1, "an ERD").
			AddRow(stepB.String(), "Build", "", 2, "working code"))
	mock.ExpectQuery("FROM prompts WHERE project_id = \\$1 AND step_id IS NOT NULL").
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(exportPromptColumns).
			AddRow(stepA.String(), "Model", "draw the schema", []byte(`{"db":"postgres"}`), nil).
			AddRow(stepA.String(), "Review", "check the schema", []byte(`{}`), response))
	mock.ExpectCommit()

	doc, err := repo.Export(context.Background(), owner, projectID)

	require.NoError(t, err)
	assert.Equal(t, "My Project", doc.Project.Name)
	require.Len(t, doc.Steps, 2)

	design := doc.Steps[0]
	assert.Equal(t, 1, design.Order)
	require.Len(t, design.Prompts, 2)
	assert.Equal(t, "postgres", design.Prompts[0].Variables["db"])
	assert.Nil(t, design.Prompts[0].Response)
	require.NotNil(t, design.Prompts[1].Response)
	assert.Equal(t, response, *design.Prompts[1].Response)

	build := doc.Steps[1]
	assert.Equal(t, 2, build.Order)
	assert.NotNil(t, build.Prompts)
	assert.Empty(t, build.Prompts)
}

func TestExportMissingProjectNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM projects").
		WillReturnRows(sqlmock.NewRows(projectColumns))
	mock.ExpectRollback()

	_, err := repo.Export(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, projects.ErrNotFound)
}
