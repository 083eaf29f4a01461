package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/api/validation"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

type WorkspaceHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
}

func NewWorkspaceHandler(db *gorm.DB, resolver *authz.Resolver) *WorkspaceHandler {
	return &WorkspaceHandler{db: db, resolver: resolver}
}

type CreateWorkspaceRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Timezone string `json:"timezone,omitempty"`
}

func (r CreateWorkspaceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	name := strings.TrimSpace(r.Name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if r.Slug == "" {
		errors["slug"] = "Slug is required"
	} else if !validation.IsValidSlug(r.Slug) {
		errors["slug"] = "Slug must be lowercase letters, numbers and hyphens"
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			errors["timezone"] = "Unknown timezone"
		}
	}
	return errors
}

type UpdateWorkspaceRequest struct {
	Name     *string `json:"name"`
	Timezone *string `json:"timezone"`
}

type WorkspaceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	OwnerID  string `json:"owner_id"`
	Timezone string `json:"timezone"`
	Role     string `json:"role,omitempty"`
}

func workspaceToResponse(ws *models.Workspace, role string) WorkspaceResponse {
	return WorkspaceResponse{
		ID:       ws.ID.String(),
		Name:     ws.Name,
		Slug:     ws.Slug,
		OwnerID:  ws.OwnerID.String(),
		Timezone: ws.Timezone,
		Role:     role,
	}
}

// List handles GET /api/v1/workspaces — workspaces owned by or joined by the
// caller.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var workspaces []models.Workspace
	err := h.db.WithContext(r.Context()).
		Where("owner_id = ?", userID).
		Or("id IN (?)", h.db.Model(&models.WorkspaceMember{}).
			Select("workspace_id").
			Where("user_id = ?", userID)).
		Order("created_at ASC").
		Find(&workspaces).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list workspaces"})
		return
	}

	response := make([]WorkspaceResponse, 0, len(workspaces))
	for i := range workspaces {
		role, err := h.resolver.WorkspaceRole(r.Context(), &workspaces[i], userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to resolve role"})
			return
		}
		response = append(response, workspaceToResponse(&workspaces[i], role))
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/workspaces. The creator becomes the owner via
// Workspace.OwnerID; no member row is written for them.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateWorkspaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	ws := models.Workspace{
		Name:     strings.TrimSpace(req.Name),
		Slug:     req.Slug,
		OwnerID:  userID,
		Timezone: timezone,
	}
	if err := h.db.WithContext(r.Context()).Create(&ws).Error; err != nil {
		if isDuplicateKeyErr(err) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Slug is already taken"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create workspace"})
		return
	}

	writeJSON(w, http.StatusCreated, workspaceToResponse(&ws, models.RoleOwner))
}

// Get handles GET /api/v1/workspaces/{slug}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, workspaceToResponse(ws, role))
}

// Update handles PUT /api/v1/workspaces/{slug}. Partial update: omitted
// fields are untouched.
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageMembers(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req UpdateWorkspaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"name": "Name must be 1-100 characters"}})
			return
		}
		updates["name"] = name
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"timezone": "Unknown timezone"}})
			return
		}
		updates["timezone"] = *req.Timezone
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(ws).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update workspace"})
			return
		}
	}

	writeJSON(w, http.StatusOK, workspaceToResponse(ws, role))
}

// Delete handles DELETE /api/v1/workspaces/{slug}. Owner only.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Only the owner can delete a workspace"})
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(ws).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete workspace"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Workspace deleted"})
}

func isDuplicateKeyErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
