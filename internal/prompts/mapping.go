package prompts

import (
	"github.com/mcutler/loom/pkg/query"
	"github.com/mcutler/loom/pkg/repository"
)

// Ownership is resolved transitively through the owning project; conditions
// reference p.owner_id directly without selecting it.
var projection = query.
	NewProjectionMap("public", "prompts", "pr").
	Project("id", "ID").
	Project("project_id", "ProjectID").
	Project("step_id", "StepID").
	Project("title", "Title").
	Project("content", "Content").
	Project("response", "Response").
	Project("variables", "Variables").
	Project("version", "Version").
	Project("position", "Order").
	Project("is_template", "IsTemplate").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "projects", "p", "INNER JOIN", "pr.project_id = p.id")

// Listing sorts structurally first; when multiple versions of the same slot
// coexist, the newest version sorts first within the position tie.
var defaultSort = []query.SortField{
	{Field: "Order"},
	{Field: "Version", Descending: true},
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.ProjectID,
		&p.StepID,
		&p.Title,
		&p.Content,
		&p.Response,
		&p.Variables,
		&p.Version,
		&p.Order,
		&p.IsTemplate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
