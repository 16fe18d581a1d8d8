package prompts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/handlers"
	"github.com/mcutler/loom/pkg/identity"
	"github.com/mcutler/loom/pkg/routes"
)

// Handler provides HTTP endpoints for prompt operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "prompts"),
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/step/{stepID}", Handler: h.ListByStep},
			{Method: "POST", Pattern: "/step/{stepID}/reorder", Handler: h.Reorder},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/versions", Handler: h.CreateVersion},
			{Method: "GET", Pattern: "/{id}/versions", Handler: h.ListVersions},
		},
	}
}

// Create appends a new prompt to the end of its sibling group's order
// sequence, at version 1.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	p, err := h.sys.Create(r.Context(), identity.Subject(r.Context()), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, p)
}

// ListByStep returns a step's prompts ordered by position, then newest
// version first.
func (h *Handler) ListByStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := parsePathID(r, "stepID", "step id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	items, err := h.sys.ListByStep(r.Context(), identity.Subject(r.Context()), stepID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Find returns a single prompt by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "prompt id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	p, err := h.sys.Find(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Update applies a partial update to a prompt in place.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "prompt id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	p, err := h.sys.Update(r.Context(), identity.Subject(r.Context()), id, patch)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Delete removes a prompt and closes the gap in its sibling group's order
// sequence.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "prompt id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.sys.Delete(r.Context(), identity.Subject(r.Context()), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reorder applies an order assignment list to a step's prompts and returns
// the full set in the resulting order.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	stepID, err := parsePathID(r, "stepID", "step id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var cmd ReorderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	items, err := h.sys.Reorder(r.Context(), identity.Subject(r.Context()), stepID, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// CreateVersion appends a new version to the prompt's slot, carrying any
// fields the request body leaves empty from the source prompt.
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "prompt id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var patch VersionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	p, err := h.sys.CreateVersion(r.Context(), identity.Subject(r.Context()), id, patch)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, p)
}

// ListVersions returns every version in the prompt's slot, newest first.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "prompt id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	items, err := h.sys.ListVersions(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

func parsePathID(r *http.Request, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrValidation, label)
	}
	return id, nil
}

func errInvalidBody(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
