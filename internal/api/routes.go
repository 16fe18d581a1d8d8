package api

import (
	"net/http"

	"github.com/mcutler/loom/internal/config"
	"github.com/mcutler/loom/pkg/openapi"
	"github.com/mcutler/loom/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	routes.Register(
		mux,
		domain.Projects.Handler().Routes(),
		domain.Steps.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	)

	spec := buildSpec(cfg)
	specBytes, err := openapi.MarshalJSON(spec)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(specBytes))

	return nil
}
