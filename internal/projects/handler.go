package projects

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mcutler/loom/pkg/handlers"
	"github.com/mcutler/loom/pkg/identity"
	"github.com/mcutler/loom/pkg/pagination"
	"github.com/mcutler/loom/pkg/routes"
	"github.com/mcutler/loom/pkg/storage"
)

// Handler provides HTTP endpoints for project operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "projects"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for project endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/projects",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/templates", Handler: h.Templates},
			{Method: "POST", Pattern: "/archive", Handler: h.ArchiveAll},
			{Method: "GET", Pattern: "/archives", Handler: h.ListArchives},
			{Method: "GET", Pattern: "/archives/download/{key...}", Handler: h.DownloadArchive},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/duplicate", Handler: h.Duplicate},
			{Method: "POST", Pattern: "/{id}/template", Handler: h.SaveAsTemplate},
			{Method: "POST", Pattern: "/{id}/instantiate", Handler: h.Instantiate},
			{Method: "GET", Pattern: "/{id}/export", Handler: h.Export},
			{Method: "POST", Pattern: "/{id}/archive", Handler: h.Archive},
		},
	}
}

// List returns a paginated list of the caller's projects with optional
// query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), identity.Subject(r.Context()), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching projects.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), identity.Subject(r.Context()), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Templates returns a paginated list of the caller's template projects.
func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	isTemplate := true
	filters := Filters{IsTemplate: &isTemplate}

	result, err := h.sys.List(r.Context(), identity.Subject(r.Context()), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single project by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	project, err := h.sys.Find(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, project)
}

// Create registers a new project owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	project, err := h.sys.Create(r.Context(), identity.Subject(r.Context()), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, project)
}

// Update applies a partial update to a project. Only fields present in the
// body are changed.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody(err))
		return
	}

	project, err := h.sys.Update(r.Context(), identity.Subject(r.Context()), id, patch)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, project)
}

// Delete removes a project and, by cascade, its steps and prompts.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
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

// Duplicate deep-copies a project including step outputs.
func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	h.clone(w, r, CloneDuplicate)
}

// SaveAsTemplate extracts a reusable template from a project.
func (h *Handler) SaveAsTemplate(w http.ResponseWriter, r *http.Request) {
	h.clone(w, r, CloneSaveAsTemplate)
}

// Instantiate creates a working project from a template.
func (h *Handler) Instantiate(w http.ResponseWriter, r *http.Request) {
	h.clone(w, r, CloneInstantiate)
}

func (h *Handler) clone(w http.ResponseWriter, r *http.Request, mode CloneMode) {
	id, err := parseID(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	project, err := h.sys.Clone(r.Context(), identity.Subject(r.Context()), id, mode)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, project)
}

// Export returns the flattened, replayable form of a project subtree.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	doc, err := h.sys.Export(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Archive serializes a project and stores the export document in blob storage.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.sys.Archive(r.Context(), identity.Subject(r.Context()), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, receipt)
}

// ArchiveAll archives every non-template project owned by the caller.
func (h *Handler) ArchiveAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.sys.ArchiveAll(r.Context(), identity.Subject(r.Context()))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, results)
}

// ListArchives returns the caller's stored export archives.
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	objects, err := h.sys.ListArchives(r.Context(), identity.Subject(r.Context()))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, objects)
}

// DownloadArchive streams a stored export archive by its storage key.
func (h *Handler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	reader, err := h.sys.DownloadArchive(r.Context(), identity.Subject(r.Context()), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("archive stream failed", "key", key, "error", err)
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid project id", ErrValidation)
	}
	return id, nil
}

func errInvalidBody(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
