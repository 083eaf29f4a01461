package handlers

import (
	"net/http"

	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

type MemberHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
}

func NewMemberHandler(db *gorm.DB, resolver *authz.Resolver) *MemberHandler {
	return &MemberHandler{db: db, resolver: resolver}
}

type MemberResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// List handles GET /api/v1/workspaces/{slug}/members. The owner holds no
// member row, so a virtual owner entry is synthesized for display.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}

	var owner models.User
	if err := h.db.WithContext(r.Context()).First(&owner, ws.OwnerID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	type memberRow struct {
		UserID string
		Email  string
		Name   string
		Role   string
	}
	var rows []memberRow
	err := h.db.WithContext(r.Context()).Model(&models.WorkspaceMember{}).
		Select("workspace_members.user_id, users.email, users.name, workspace_members.role").
		Joins("JOIN users ON users.id = workspace_members.user_id").
		Where("workspace_members.workspace_id = ?", ws.ID).
		Order("users.name ASC").
		Scan(&rows).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	response := make([]MemberResponse, 0, len(rows)+1)
	response = append(response, MemberResponse{
		UserID: owner.ID.String(),
		Email:  owner.Email,
		Name:   owner.Name,
		Role:   models.RoleOwner,
	})
	for _, row := range rows {
		response = append(response, MemberResponse{
			UserID: row.UserID,
			Email:  row.Email,
			Name:   row.Name,
			Role:   row.Role,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// UpdateRole handles PUT /api/v1/workspaces/{slug}/members/{userID}. The
// owner-target guard runs before the capability check: nobody, however
// privileged, changes the owner's role.
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ws, callerRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	targetID, ok := parseUserIDParam(w, r)
	if !ok {
		return
	}

	if targetID == ws.OwnerID {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Cannot modify the workspace owner"})
		return
	}

	if !authz.CanManageMembers(callerRole) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"role": "Role must be admin or member"}})
		return
	}
	if req.Role == models.RoleAdmin && !authz.CanAssignAdminRole(callerRole) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Only the owner can assign the admin role"})
		return
	}

	res := h.db.WithContext(r.Context()).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", ws.ID, targetID).
		Update("role", req.Role)
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member updated"})
}

// Remove handles DELETE /api/v1/workspaces/{slug}/members/{userID}. Same
// owner-target guard ordering as UpdateRole.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ws, callerRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	targetID, ok := parseUserIDParam(w, r)
	if !ok {
		return
	}

	if targetID == ws.OwnerID {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Cannot modify the workspace owner"})
		return
	}

	if !authz.CanManageMembers(callerRole) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	res := h.db.WithContext(r.Context()).
		Where("workspace_id = ? AND user_id = ?", ws.ID, targetID).
		Delete(&models.WorkspaceMember{})
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

// Leave handles POST /api/v1/workspaces/{slug}/leave. The owner cannot leave;
// ownership is permanent until the workspace is deleted.
func (h *MemberHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if role == models.RoleOwner {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "The workspace owner cannot leave"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	res := h.db.WithContext(r.Context()).
		Where("workspace_id = ? AND user_id = ?", ws.ID, userID).
		Delete(&models.WorkspaceMember{})
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to leave workspace"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Left workspace"})
}
