package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a request body into a typed request struct, rejecting
// unknown fields so malformed shapes fail in one place instead of per field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// loadWorkspace resolves the {slug} URL param to a workspace and the caller's
// role in it. A missing workspace and a workspace the caller cannot see get
// the identical 404, so existence is never leaked to outsiders. Returns
// ok=false when a response has already been written.
func loadWorkspace(w http.ResponseWriter, r *http.Request, db *gorm.DB, resolver *authz.Resolver) (*models.Workspace, string, bool) {
	slug := chi.URLParam(r, "slug")
	userID := middleware.GetUserID(r.Context())

	var ws models.Workspace
	if err := db.WithContext(r.Context()).Where("slug = ?", slug).First(&ws).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workspace not found"})
			return nil, "", false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load workspace"})
		return nil, "", false
	}

	role, err := resolver.WorkspaceRole(r.Context(), &ws, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to resolve role"})
		return nil, "", false
	}
	if !authz.IsWorkspaceMember(role) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workspace not found"})
		return nil, "", false
	}

	return &ws, role, true
}

// loadProject resolves the {identifier} URL param within a workspace.
func loadProject(w http.ResponseWriter, r *http.Request, db *gorm.DB, ws *models.Workspace) (*models.Project, bool) {
	identifier := chi.URLParam(r, "identifier")

	var project models.Project
	err := db.WithContext(r.Context()).
		Where("workspace_id = ? AND identifier = ?", ws.ID, identifier).
		First(&project).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load project"})
		return nil, false
	}
	return &project, true
}

// loadTeam resolves a team by identifier within a workspace.
func loadTeam(w http.ResponseWriter, r *http.Request, db *gorm.DB, ws *models.Workspace, param string) (*models.Team, bool) {
	identifier := chi.URLParam(r, param)

	var team models.Team
	err := db.WithContext(r.Context()).
		Where("workspace_id = ? AND identifier = ?", ws.ID, identifier).
		First(&team).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load team"})
		return nil, false
	}
	return &team, true
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// parseUserIDParam parses the {userID} URL param.
func parseUserIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}
