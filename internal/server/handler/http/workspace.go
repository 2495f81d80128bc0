package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/atinyakov/BranchLift/internal/models"
	"github.com/go-chi/chi/v5"
)

// WorkspaceService defines the workspace operations required by WorkspaceHandler.
type WorkspaceService interface {
	LoadRepositories(ctx context.Context) ([]models.Repository, error)
	LoadBranches(ctx context.Context) ([]models.Branch, error)
	LoadEnvironments(ctx context.Context) ([]models.Environment, error)
	SearchRepository(ctx context.Context, query string) (*models.Repository, bool, error)
	CreateEnvironment(ctx context.Context, name string) (*models.Environment, error)
	RemoveEnvironment(ctx context.Context, id int64) (bool, error)
}

// WorkspaceHandler serves the repositories, branches and environments views.
type WorkspaceHandler struct {
	Workspace WorkspaceService
}

// AddRepositoryRequest is the JSON payload of POST /api/repositories.
type AddRepositoryRequest struct {
	// Query is an "owner/name" identifier.
	Query string `json:"query"`
}

// AddRepositoryResponse reports the resolved repository and whether it was new.
type AddRepositoryResponse struct {
	Repository *models.Repository `json:"repository"`
	Added      bool               `json:"added"`
}

// CreateEnvironmentRequest is the JSON payload of POST /api/environments.
type CreateEnvironmentRequest struct {
	Name string `json:"name"`
}

// Repositories handles GET /api/repositories.
func (h *WorkspaceHandler) Repositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.Workspace.LoadRepositories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// AddRepository handles POST /api/repositories. Adding a repository that is
// already tracked answers 200 with added=false.
func (h *WorkspaceHandler) AddRepository(w http.ResponseWriter, r *http.Request) {
	var req AddRepositoryRequest
	if !decode(w, r, &req) {
		return
	}
	repo, added, err := h.Workspace.SearchRepository(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, AddRepositoryResponse{Repository: repo, Added: added})
}

// Branches handles GET /api/branches.
func (h *WorkspaceHandler) Branches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Workspace.LoadBranches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

// Environments handles GET /api/environments.
func (h *WorkspaceHandler) Environments(w http.ResponseWriter, r *http.Request) {
	envs, err := h.Workspace.LoadEnvironments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

// CreateEnvironment handles POST /api/environments.
func (h *WorkspaceHandler) CreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvironmentRequest
	if !decode(w, r, &req) {
		return
	}
	env, err := h.Workspace.CreateEnvironment(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

// RemoveEnvironment handles DELETE /api/environments/{id}.
func (h *WorkspaceHandler) RemoveEnvironment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid environment id"})
		return
	}
	removed, err := h.Workspace.RemoveEnvironment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "environment not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
