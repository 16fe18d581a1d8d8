package api

import (
	"github.com/mcutler/loom/internal/config"
	"github.com/mcutler/loom/pkg/openapi"
)

// buildSpec constructs the OpenAPI document for the API module. Paths are
// relative to the module base path.
func buildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(domainSchemas())

	addProjectPaths(spec)
	addStepPaths(spec)
	addPromptPaths(spec)

	return spec
}

func domainSchemas() map[string]*openapi.Schema {
	statusEnum := []any{"planning", "in_progress", "completed", "archived"}

	return map[string]*openapi.Schema{
		"Project": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"owner_id":    {Type: "string"},
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"tech_stack":  {Type: "object", Description: "Category to technology list map"},
				"status":      {Type: "string", Enum: statusEnum},
				"is_template": {Type: "boolean"},
				"created_at":  {Type: "string", Format: "date-time"},
				"updated_at":  {Type: "string", Format: "date-time"},
			},
		},
		"CreateProject": {
			Type:     "object",
			Required: []string{"name"},
			Properties: map[string]*openapi.Schema{
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"tech_stack":  {Type: "object"},
				"status":      {Type: "string", Enum: statusEnum, Default: "planning"},
			},
		},
		"ProjectPatch": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"tech_stack":  {Type: "object"},
				"status":      {Type: "string", Enum: statusEnum},
			},
		},
		"ProjectPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Project")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"Step": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"project_id":      {Type: "string", Format: "uuid"},
				"title":           {Type: "string"},
				"description":     {Type: "string"},
				"order":           {Type: "integer", Description: "1-based position within the project"},
				"is_completed":    {Type: "boolean"},
				"expected_output": {Type: "string"},
				"actual_output":   {Type: "string"},
				"notes":           {Type: "string"},
				"created_at":      {Type: "string", Format: "date-time"},
				"updated_at":      {Type: "string", Format: "date-time"},
			},
		},
		"CreateStep": {
			Type:     "object",
			Required: []string{"project_id", "title"},
			Properties: map[string]*openapi.Schema{
				"project_id":      {Type: "string", Format: "uuid"},
				"title":           {Type: "string"},
				"description":     {Type: "string"},
				"expected_output": {Type: "string"},
			},
		},
		"StepPatch": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"title":           {Type: "string"},
				"description":     {Type: "string"},
				"is_completed":    {Type: "boolean"},
				"expected_output": {Type: "string"},
				"actual_output":   {Type: "string"},
				"notes":           {Type: "string"},
			},
		},
		"Prompt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"project_id":  {Type: "string", Format: "uuid"},
				"step_id":     {Type: "string", Format: "uuid"},
				"title":       {Type: "string"},
				"content":     {Type: "string"},
				"response":    {Type: "string"},
				"variables":   {Type: "object", Description: "Placeholder name to value map"},
				"version":     {Type: "integer"},
				"order":       {Type: "integer", Description: "1-based position within the sibling group"},
				"is_template": {Type: "boolean"},
				"created_at":  {Type: "string", Format: "date-time"},
				"updated_at":  {Type: "string", Format: "date-time"},
			},
		},
		"CreatePrompt": {
			Type:     "object",
			Required: []string{"project_id", "title", "content"},
			Properties: map[string]*openapi.Schema{
				"project_id": {Type: "string", Format: "uuid"},
				"step_id":    {Type: "string", Format: "uuid"},
				"title":      {Type: "string"},
				"content":    {Type: "string"},
				"variables":  {Type: "object"},
			},
		},
		"PromptPatch": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"title":     {Type: "string"},
				"content":   {Type: "string"},
				"response":  {Type: "string"},
				"variables": {Type: "object"},
			},
		},
		"VersionPatch": {
			Type:        "object",
			Description: "Fields for the new version. Empty fields carry over from the source prompt.",
			Properties: map[string]*openapi.Schema{
				"title":     {Type: "string"},
				"content":   {Type: "string"},
				"variables": {Type: "object"},
			},
		},
		"ReorderRequest": {
			Type:     "object",
			Required: []string{"assignments"},
			Properties: map[string]*openapi.Schema{
				"assignments": {
					Type: "array",
					Items: &openapi.Schema{
						Type:     "object",
						Required: []string{"id", "order"},
						Properties: map[string]*openapi.Schema{
							"id":    {Type: "string", Format: "uuid"},
							"order": {Type: "integer"},
						},
					},
				},
			},
		},
		"Export": {
			Type:        "object",
			Description: "Portable project snapshot without ids, owners, or version history",
			Properties: map[string]*openapi.Schema{
				"project": {
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"name":        {Type: "string"},
						"description": {Type: "string"},
						"tech_stack":  {Type: "object"},
					},
				},
				"steps": {Type: "array", Items: &openapi.Schema{Type: "object"}},
			},
		},
		"ArchiveReceipt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"project_id":  {Type: "string", Format: "uuid"},
				"key":         {Type: "string"},
				"size_bytes":  {Type: "integer"},
				"archived_at": {Type: "string", Format: "date-time"},
			},
		},
		"ArchiveResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"project_id": {Type: "string", Format: "uuid"},
				"receipt":    openapi.SchemaRef("ArchiveReceipt"),
				"error":      {Type: "string"},
			},
		},
		"StorageObject": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"key":           {Type: "string"},
				"size":          {Type: "integer"},
				"content_type":  {Type: "string"},
				"last_modified": {Type: "string", Format: "date-time"},
			},
		},
	}
}

func addProjectPaths(spec *openapi.Spec) {
	tags := []string{"projects"}

	spec.Paths["/projects"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List projects",
			Tags:    tags,
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("search", "string", "Match against name and description", false),
				openapi.QueryParam("sort", "string", "Sort fields, - prefix for descending", false),
				openapi.QueryParam("status", "string", "Filter by status", false),
				openapi.QueryParam("is_template", "boolean", "Filter templates", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Project page", "ProjectPage"),
				401: openapi.ResponseRef("Unauthorized"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Create project",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("CreateProject", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Created project", "Project"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/projects/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search projects with a structured page request",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("PageRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Project page", "ProjectPage"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/projects/templates"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List template projects",
			Tags:    tags,
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Project page", "ProjectPage"),
			},
		},
	}

	id := openapi.PathParam("id", "Project id")

	spec.Paths["/projects/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get project",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Project", "Project"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Patch: &openapi.Operation{
			Summary:     "Update project",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{id},
			RequestBody: openapi.RequestBodyJSON("ProjectPatch", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Updated project", "Project"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
		Delete: &openapi.Operation{
			Summary:    "Delete project and all of its steps and prompts",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				204: {Description: "Deleted"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	clone := func(summary string) *openapi.PathItem {
		return &openapi.PathItem{
			Post: &openapi.Operation{
				Summary:    summary,
				Tags:       tags,
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Cloned project", "Project"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
				},
			},
		}
	}
	spec.Paths["/projects/{id}/duplicate"] = clone("Duplicate project with its full structure")
	spec.Paths["/projects/{id}/template"] = clone("Save project as a reusable template")
	spec.Paths["/projects/{id}/instantiate"] = clone("Create a working project from a template")

	spec.Paths["/projects/{id}/export"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Export project as a portable document",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Export document", "Export"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/projects/{id}/archive"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:    "Export project and upload the document to blob storage",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Archive receipt", "ArchiveReceipt"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/projects/archive"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary: "Archive every non-template project owned by the caller",
			Tags:    tags,
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Per-project archive results",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type:  "array",
							Items: openapi.SchemaRef("ArchiveResult"),
						}},
					},
				},
			},
		},
	}

	spec.Paths["/projects/archives"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List the caller's archived exports",
			Tags:    tags,
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Archive objects",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type:  "array",
							Items: openapi.SchemaRef("StorageObject"),
						}},
					},
				},
			},
		},
	}

	spec.Paths["/projects/archives/download/{key}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Download an archived export document",
			Tags:    tags,
			Parameters: []*openapi.Parameter{
				{
					Name:        "key",
					In:          "path",
					Required:    true,
					Description: "Blob key within the caller's archive prefix",
					Schema:      &openapi.Schema{Type: "string"},
				},
			},
			Responses: map[int]*openapi.Response{
				200: {Description: "Export document stream"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addStepPaths(spec *openapi.Spec) {
	tags := []string{"steps"}
	id := openapi.PathParam("id", "Step id")
	projectID := openapi.PathParam("projectID", "Project id")

	spec.Paths["/steps"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Create step at the end of its project's sequence",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("CreateStep", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Created step", "Step"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/steps/project/{projectID}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "List a project's steps in order",
			Tags:       tags,
			Parameters: []*openapi.Parameter{projectID},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Steps in ascending order",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type:  "array",
							Items: openapi.SchemaRef("Step"),
						}},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/steps/project/{projectID}/reorder"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Reorder a project's steps",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{projectID},
			RequestBody: openapi.RequestBodyJSON("ReorderRequest", true),
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Full step set in the resulting order",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{
							Type:  "array",
							Items: openapi.SchemaRef("Step"),
						}},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/steps/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get step",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Step", "Step"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Patch: &openapi.Operation{
			Summary:     "Update step",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{id},
			RequestBody: openapi.RequestBodyJSON("StepPatch", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Updated step", "Step"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary:    "Delete step and close the order gap",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				204: {Description: "Deleted"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addPromptPaths(spec *openapi.Spec) {
	tags := []string{"prompts"}
	id := openapi.PathParam("id", "Prompt id")
	stepID := openapi.PathParam("stepID", "Step id")

	promptArray := &openapi.Schema{
		Type:  "array",
		Items: openapi.SchemaRef("Prompt"),
	}

	spec.Paths["/prompts"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Create prompt at version 1, ordered last in its group",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("CreatePrompt", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Created prompt", "Prompt"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/prompts/step/{stepID}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "List a step's prompts by position, newest version first",
			Tags:       tags,
			Parameters: []*openapi.Parameter{stepID},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Prompts",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: promptArray},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/prompts/step/{stepID}/reorder"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Reorder a step's prompts",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{stepID},
			RequestBody: openapi.RequestBodyJSON("ReorderRequest", true),
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Full prompt set in the resulting order",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: promptArray},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/prompts/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get prompt",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Prompt", "Prompt"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Patch: &openapi.Operation{
			Summary:     "Update prompt in place",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{id},
			RequestBody: openapi.RequestBodyJSON("PromptPatch", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Updated prompt", "Prompt"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary:    "Delete prompt and close the order gap",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				204: {Description: "Deleted"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/prompts/{id}/versions"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Append a new version to the prompt's history",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{id},
			RequestBody: openapi.RequestBodyJSON("VersionPatch", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("New version", "Prompt"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Get: &openapi.Operation{
			Summary:    "List the prompt's version history, newest first",
			Tags:       tags,
			Parameters: []*openapi.Parameter{id},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Versions in descending order",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: promptArray},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}
