package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/api/validation"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

type TeamHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
}

func NewTeamHandler(db *gorm.DB, resolver *authz.Resolver) *TeamHandler {
	return &TeamHandler{db: db, resolver: resolver}
}

type CreateTeamRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

func (r CreateTeamRequest) Validate() map[string]string {
	errors := make(map[string]string)
	name := strings.TrimSpace(r.Name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if r.Identifier == "" {
		errors["identifier"] = "Identifier is required"
	} else if !validation.IsValidTeamIdentifier(r.Identifier) {
		errors["identifier"] = "Identifier must be lowercase letters, numbers and hyphens"
	}
	return errors
}

type UpdateTeamRequest struct {
	Name *string `json:"name"`
}

type AddTeamMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

type TeamResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

func teamToResponse(team *models.Team) TeamResponse {
	return TeamResponse{
		ID:         team.ID.String(),
		Identifier: team.Identifier,
		Name:       team.Name,
	}
}

// Create handles POST /api/v1/workspaces/{slug}/teams. Any workspace member
// can start a team; the creator becomes its lead.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}

	var req CreateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	userID := middleware.GetUserID(r.Context())
	team := models.Team{
		WorkspaceID: ws.ID,
		Identifier:  req.Identifier,
		Name:        strings.TrimSpace(req.Name),
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: userID,
			Role:   models.TeamRoleLead,
		}).Error
	})
	if err != nil {
		if isDuplicateKeyErr(err) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Team identifier is already taken"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create team"})
		return
	}

	writeJSON(w, http.StatusCreated, teamToResponse(&team))
}

// List handles GET /api/v1/workspaces/{slug}/teams.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}

	var teams []models.Team
	err := h.db.WithContext(r.Context()).
		Where("workspace_id = ?", ws.ID).
		Order("identifier ASC").
		Find(&teams).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list teams"})
		return
	}

	response := make([]TeamResponse, len(teams))
	for i := range teams {
		response[i] = teamToResponse(&teams[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Update handles PUT /api/v1/workspaces/{slug}/teams/{teamIdentifier}.
// Managed by a team lead or a workspace owner/admin; the two paths are
// independent.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	ws, wsRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	team, ok := loadTeam(w, r, h.db, ws, "teamIdentifier")
	if !ok {
		return
	}
	if !h.canManage(w, r, wsRole, team) {
		return
	}

	var req UpdateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"name": "Name must be 1-100 characters"}})
			return
		}
		if err := h.db.WithContext(r.Context()).Model(team).Update("name", name).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update team"})
			return
		}
	}

	writeJSON(w, http.StatusOK, teamToResponse(team))
}

// Delete handles DELETE /api/v1/workspaces/{slug}/teams/{teamIdentifier}.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws, wsRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	team, ok := loadTeam(w, r, h.db, ws, "teamIdentifier")
	if !ok {
		return
	}
	if !h.canManage(w, r, wsRole, team) {
		return
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.ProjectTeam{}).Error; err != nil {
			return err
		}
		return tx.Delete(team).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete team"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Team deleted"})
}

// AddMember handles POST /api/v1/workspaces/{slug}/teams/{teamIdentifier}/members.
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ws, wsRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	team, ok := loadTeam(w, r, h.db, ws, "teamIdentifier")
	if !ok {
		return
	}
	if !h.canManage(w, r, wsRole, team) {
		return
	}

	var req AddTeamMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	targetID, err := parseUUID(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"user_id": "Invalid user ID"}})
		return
	}
	role := req.Role
	if role == "" {
		role = models.TeamRoleMember
	}
	if role != models.TeamRoleLead && role != models.TeamRoleMember {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"role": "Role must be lead or member"}})
		return
	}

	// The target must already belong to the workspace.
	targetWsRole, err := h.resolver.WorkspaceRole(r.Context(), ws, targetID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to resolve role"})
		return
	}
	if !authz.IsWorkspaceMember(targetWsRole) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "User is not a workspace member"})
		return
	}

	member := models.TeamMember{TeamID: team.ID, UserID: targetID, Role: role}
	if err := h.db.WithContext(r.Context()).Create(&member).Error; err != nil {
		if isDuplicateKeyErr(err) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "User is already a team member"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add team member"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.SuccessResponse{Message: "Team member added"})
}

// RemoveMember handles DELETE /api/v1/workspaces/{slug}/teams/{teamIdentifier}/members/{userID}.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ws, wsRole, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	team, ok := loadTeam(w, r, h.db, ws, "teamIdentifier")
	if !ok {
		return
	}
	if !h.canManage(w, r, wsRole, team) {
		return
	}
	targetID, ok := parseUserIDParam(w, r)
	if !ok {
		return
	}

	res := h.db.WithContext(r.Context()).
		Where("team_id = ? AND user_id = ?", team.ID, targetID).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove team member"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team member not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Team member removed"})
}

// canManage resolves the caller's team role and applies the dual-path team
// management policy, writing the 403 itself on failure.
func (h *TeamHandler) canManage(w http.ResponseWriter, r *http.Request, wsRole string, team *models.Team) bool {
	userID := middleware.GetUserID(r.Context())
	teamRole, err := h.resolver.TeamRole(r.Context(), team.ID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to resolve role"})
		return false
	}
	if !authz.CanManageTeam(wsRole, teamRole) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return false
	}
	return true
}
