// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/mcutler/loom/internal/config"
	"github.com/mcutler/loom/internal/infrastructure"
	"github.com/mcutler/loom/pkg/identity"
	"github.com/mcutler/loom/pkg/middleware"
	"github.com/mcutler/loom/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(identity.Middleware(runtime.Identity, runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
