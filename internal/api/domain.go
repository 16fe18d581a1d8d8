package api

import (
	"github.com/mcutler/loom/internal/projects"
	"github.com/mcutler/loom/internal/prompts"
	"github.com/mcutler/loom/internal/steps"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Projects projects.System
	Steps    steps.System
	Prompts  prompts.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	projectsSystem := projects.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	stepsSystem := steps.New(
		runtime.Database.Connection(),
		runtime.Logger,
	)

	promptsSystem := prompts.New(
		runtime.Database.Connection(),
		runtime.Logger,
	)

	return &Domain{
		Projects: projectsSystem,
		Steps:    stepsSystem,
		Prompts:  promptsSystem,
	}
}
