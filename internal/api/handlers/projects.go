package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/validation"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
}

func NewProjectHandler(db *gorm.DB, resolver *authz.Resolver) *ProjectHandler {
	return &ProjectHandler{db: db, resolver: resolver}
}

type CreateProjectRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	name := strings.TrimSpace(r.Name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if !validation.IsValidProjectIdentifier(r.Identifier) {
		errors["identifier"] = "Identifier must be 2-6 uppercase letters or digits"
	}
	return errors
}

type UpdateProjectRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

type AttachTeamRequest struct {
	TeamIdentifier string `json:"team_identifier"`
}

type ProjectResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

func projectToResponse(p *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID.String(),
		Identifier: p.Identifier,
		Name:       p.Name,
		Status:     string(p.Status),
	}
}

// Create handles POST /api/v1/workspaces/{slug}/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageProject(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	project := models.Project{
		WorkspaceID: ws.ID,
		Identifier:  req.Identifier,
		Name:        strings.TrimSpace(req.Name),
		Status:      models.ProjectStatusActive,
	}
	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		if isDuplicateKeyErr(err) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Project identifier is already taken"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}

	writeJSON(w, http.StatusCreated, projectToResponse(&project))
}

// List handles GET /api/v1/workspaces/{slug}/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}

	var projects []models.Project
	err := h.db.WithContext(r.Context()).
		Where("workspace_id = ?", ws.ID).
		Order("identifier ASC").
		Find(&projects).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
		return
	}

	response := make([]ProjectResponse, len(projects))
	for i := range projects {
		response[i] = projectToResponse(&projects[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/workspaces/{slug}/projects/{identifier}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectToResponse(project))
}

// Update handles PUT /api/v1/workspaces/{slug}/projects/{identifier}.
// Partial update; omitted fields are untouched.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageProject(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}

	var req UpdateProjectRequest
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
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		switch status {
		case models.ProjectStatusActive, models.ProjectStatusArchived, models.ProjectStatusCompleted:
		default:
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"status": "Status must be active, archived or completed"}})
			return
		}
		updates["status"] = status
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(project).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update project"})
			return
		}
	}

	writeJSON(w, http.StatusOK, projectToResponse(project))
}

// AttachTeam handles POST /api/v1/workspaces/{slug}/projects/{identifier}/teams.
func (h *ProjectHandler) AttachTeam(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageProject(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}

	var req AttachTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var team models.Team
	err := h.db.WithContext(r.Context()).
		Where("workspace_id = ? AND identifier = ?", ws.ID, req.TeamIdentifier).
		First(&team).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load team"})
		return
	}

	link := models.ProjectTeam{ProjectID: project.ID, TeamID: team.ID}
	if err := h.db.WithContext(r.Context()).Create(&link).Error; err != nil {
		if isDuplicateKeyErr(err) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Team is already attached to this project"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to attach team"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.SuccessResponse{Message: "Team attached"})
}

// DetachTeam handles DELETE /api/v1/workspaces/{slug}/projects/{identifier}/teams/{teamIdentifier}.
func (h *ProjectHandler) DetachTeam(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageProject(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}
	team, ok := loadTeam(w, r, h.db, ws, "teamIdentifier")
	if !ok {
		return
	}

	res := h.db.WithContext(r.Context()).
		Where("project_id = ? AND team_id = ?", project.ID, team.ID).
		Delete(&models.ProjectTeam{})
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to detach team"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team is not attached to this project"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Team detached"})
}
