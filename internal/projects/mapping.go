package projects

import (
	"net/url"
	"strconv"

	"github.com/mcutler/loom/pkg/query"
	"github.com/mcutler/loom/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "projects", "p").
	Project("id", "ID").
	Project("owner_id", "OwnerID").
	Project("name", "Name").
	Project("description", "Description").
	Project("tech_stack", "TechStack").
	Project("status", "Status").
	Project("is_template", "IsTemplate").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for project queries.
// Nil fields are ignored.
type Filters struct {
	Status     *string `json:"status,omitempty"`
	IsTemplate *bool   `json:"is_template,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("IsTemplate", f.IsTemplate)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if t := values.Get("is_template"); t != "" {
		if v, err := strconv.ParseBool(t); err == nil {
			f.IsTemplate = &v
		}
	}

	return f
}

func scanProject(s repository.Scanner) (Project, error) {
	var p Project
	err := s.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.TechStack,
		&p.Status,
		&p.IsTemplate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
