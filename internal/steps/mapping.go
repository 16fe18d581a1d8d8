package steps

import (
	"github.com/mcutler/loom/pkg/query"
	"github.com/mcutler/loom/pkg/repository"
)

// Ownership is resolved transitively: every read joins the owning project
// and filters on its owner_id. The join contributes no selected columns;
// conditions reference p.owner_id directly.
var projection = query.
	NewProjectionMap("public", "steps", "s").
	Project("id", "ID").
	Project("project_id", "ProjectID").
	Project("title", "Title").
	Project("description", "Description").
	Project("position", "Order").
	Project("is_completed", "IsCompleted").
	Project("expected_output", "ExpectedOutput").
	Project("actual_output", "ActualOutput").
	Project("notes", "Notes").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "projects", "p", "INNER JOIN", "s.project_id = p.id")

var defaultSort = query.SortField{
	Field: "Order",
}

func scanStep(s repository.Scanner) (Step, error) {
	var st Step
	err := s.Scan(
		&st.ID,
		&st.ProjectID,
		&st.Title,
		&st.Description,
		&st.Order,
		&st.IsCompleted,
		&st.ExpectedOutput,
		&st.ActualOutput,
		&st.Notes,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	return st, err
}
