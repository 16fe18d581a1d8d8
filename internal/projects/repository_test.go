package projects_test

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

	"github.com/mcutler/loom/internal/projects"
	"github.com/mcutler/loom/pkg/pagination"
)

const owner = "user-1"

var projectColumns = []string{
	"id", "owner_id", "name", "description", "tech_stack", "status",
	"is_template", "created_at", "updated_at",
}

func newRepo(t *testing.T) (projects.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	return projects.New(db, nil, logger, cfg), mock
}

func addProjectRow(rows *sqlmock.Rows, id uuid.UUID, name, status string, isTemplate bool) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id.String(), owner, name, "", []byte(`{}`), status, isTemplate, now, now,
	)
}

func TestCreateDefaultsToPlanning(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), owner, "API Gateway", "", sqlmock.AnyArg(), "planning").
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), id, "API Gateway", "planning", false))
	mock.ExpectCommit()

	p, err := repo.Create(context.Background(), owner, projects.CreateCommand{Name: "API Gateway"})

	require.NoError(t, err)
	assert.Equal(t, "planning", p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateValidation(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Create(context.Background(), owner, projects.CreateCommand{})
	assert.ErrorIs(t, err, projects.ErrValidation)

	_, err = repo.Create(context.Background(), owner, projects.CreateCommand{Name: "x", Status: "done"})
	assert.ErrorIs(t, err, projects.ErrValidation)
}

func TestFindScopedToOwner(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()

	mock.ExpectQuery("WHERE p.id = \\$1 AND p.owner_id = \\$2 LIMIT 1").
		WithArgs(id, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), id, "API Gateway", "planning", false))

	p, err := repo.Find(context.Background(), owner, id)

	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMissingNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("LIMIT 1").
		WillReturnRows(sqlmock.NewRows(projectColumns))

	_, err := repo.Find(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, projects.ErrNotFound)
}

func TestListCountsAndPages(t *testing.T) {
	repo, mock := newRepo(t)

	rows := sqlmock.NewRows(projectColumns)
	addProjectRow(rows, uuid.New(), "Newest", "planning", false)
	addProjectRow(rows, uuid.New(), "Older", "completed", false)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public.projects p WHERE p.owner_id = \$1`).
		WithArgs(owner).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery("LIMIT 20 OFFSET 0").
		WithArgs(owner).
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), owner, pagination.PageRequest{}, projects.Filters{})

	require.NoError(t, err)
	assert.Equal(t, 42, result.Total)
	assert.Equal(t, 3, result.TotalPages)
	assert.Len(t, result.Data, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	repo, mock := newRepo(t)

	status := "completed"
	isTemplate := false

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(owner, status, isTemplate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("p.status = \\$2 AND p.is_template = \\$3").
		WithArgs(owner, status, isTemplate).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), uuid.New(), "Done", status, false))

	result, err := repo.List(context.Background(), owner, pagination.PageRequest{}, projects.Filters{
		Status:     &status,
		IsTemplate: &isTemplate,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestUpdateScopedToOwner(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()
	name := "Renamed"

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE projects SET updated_at = now\(\), name = \$1 WHERE id = \$2 AND owner_id = \$3`).
		WithArgs(name, id, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), id, name, "planning", false))
	mock.ExpectCommit()

	p, err := repo.Update(context.Background(), owner, id, projects.Patch{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, name, p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmptyPatchReturnsCurrent(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()

	mock.ExpectQuery("LIMIT 1").
		WithArgs(id, owner).
		WillReturnRows(addProjectRow(sqlmock.NewRows(projectColumns), id, "Unchanged", "planning", false))

	p, err := repo.Update(context.Background(), owner, id, projects.Patch{})

	require.NoError(t, err)
	assert.Equal(t, "Unchanged", p.Name)
}

func TestDeleteMissingNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM projects WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), owner, id)
	assert.ErrorIs(t, err, projects.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepo(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM projects").
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), owner, id)
	assert.NoError(t, err)
}
