package steps

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

// Handler provides HTTP endpoints for step operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "steps"),
	}
}

// Routes returns the route group definition for step endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/steps",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/project/{projectID}", Handler: h.List},
			{Method: "POST", Pattern: "/project/{projectID}/reorder", Handler: h.Reorder},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// Create appends a new step to the end of its project's order sequence.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	st, err := h.sys.Create(r.Context(), identity.Subject(r.Context()), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, st)
}

// List returns a project's steps in ascending order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parsePathID(r, "projectID", "project id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	items, err := h.sys.List(r.Context(), identity.Subject(r.Context()), projectID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Find returns a single step by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "step id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	st, err := h.sys.Find(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, st)
}

// Update applies a partial update to a step.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "step id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	st, err := h.sys.Update(r.Context(), identity.Subject(r.Context()), id, patch)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, st)
}

// Delete removes a step and closes the gap in its project's order sequence.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id", "step id")
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

// Reorder applies an order assignment list to a project's steps and returns
// the full set in the resulting ascending order.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	projectID, err := parsePathID(r, "projectID", "project id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var cmd ReorderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	items, err := h.sys.Reorder(r.Context(), identity.Subject(r.Context()), projectID, cmd)
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
