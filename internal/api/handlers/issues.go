package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/issues"
	"gorm.io/gorm"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
)

type IssueHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
	issues   *issues.Service
}

func NewIssueHandler(db *gorm.DB, resolver *authz.Resolver, issuesService *issues.Service) *IssueHandler {
	return &IssueHandler{db: db, resolver: resolver, issues: issuesService}
}

type CreateIssueRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
}

func (r CreateIssueRequest) Validate() map[string]string {
	errors := make(map[string]string)
	title := strings.TrimSpace(r.Title)
	if title == "" {
		errors["title"] = "Title is required"
	} else if len(title) > maxTitleLength {
		errors["title"] = "Title must be at most 200 characters"
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLength {
		errors["description"] = "Description must be at most 10000 characters"
	}
	if r.Status != "" && !models.IssueStatus(r.Status).Valid() {
		errors["status"] = "Invalid issue status"
	}
	return errors
}

// UpdateIssueRequest distinguishes omitted fields from explicit nulls:
// description carries the raw message so null clears while omission keeps.
type UpdateIssueRequest struct {
	Title       *string         `json:"title"`
	Description json.RawMessage `json:"description"`
	Status      *string         `json:"status"`
}

type IssueResponse struct {
	ID          string  `json:"id"`
	Number      int     `json:"number"`
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
	CreatedByID string  `json:"created_by_id"`
}

func issueToResponse(issue *models.Issue, projectIdentifier string) IssueResponse {
	return IssueResponse{
		ID:          issue.ID.String(),
		Number:      issue.Number,
		Identifier:  issue.Identifier(projectIdentifier),
		Title:       issue.Title,
		Description: issue.Description,
		Status:      string(issue.Status),
		CreatedByID: issue.CreatedByID.String(),
	}
}

// Create handles POST /api/v1/workspaces/{slug}/projects/{identifier}/issues.
// Any workspace member can file an issue.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}

	var req CreateIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	userID := middleware.GetUserID(r.Context())
	issue, err := h.issues.Create(r.Context(), project, userID, issues.CreateInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      models.IssueStatus(req.Status),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create issue"})
		return
	}

	writeJSON(w, http.StatusCreated, issueToResponse(issue, project.Identifier))
}

// List handles GET /api/v1/workspaces/{slug}/projects/{identifier}/issues.
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return
	}

	list, err := h.issues.List(r.Context(), project.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list issues"})
		return
	}

	response := make([]IssueResponse, len(list))
	for i := range list {
		response[i] = issueToResponse(&list[i], project.Identifier)
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/workspaces/{slug}/projects/{identifier}/issues/{number}.
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, project, issue, _, ok := h.loadIssue(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, issueToResponse(issue, project.Identifier))
}

// Update handles PUT .../issues/{number}. Creator or workspace owner/admin.
func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, project, issue, role, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !authz.CanManageIssue(role, issue.CreatedByID, userID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req UpdateIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := issues.UpdateInput{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > maxTitleLength {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"title": "Title must be 1-200 characters"}})
			return
		}
		input.Title = req.Title
	}
	if len(req.Description) > 0 {
		input.DescriptionSet = true
		if string(req.Description) != "null" {
			var desc string
			if err := json.Unmarshal(req.Description, &desc); err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
					Details: map[string]string{"description": "Description must be a string or null"}})
				return
			}
			if len(desc) > maxDescriptionLength {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
					Details: map[string]string{"description": "Description must be at most 10000 characters"}})
				return
			}
			input.Description = &desc
		}
	}
	if req.Status != nil {
		status := models.IssueStatus(*req.Status)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"status": "Invalid issue status"}})
			return
		}
		input.Status = &status
	}

	if err := h.issues.Update(r.Context(), issue, input); err != nil {
		if errors.Is(err, issues.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Issue not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update issue"})
		return
	}

	writeJSON(w, http.StatusOK, issueToResponse(issue, project.Identifier))
}

// Delete handles DELETE .../issues/{number}. The number stays reserved.
func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, _, issue, role, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !authz.CanManageIssue(role, issue.CreatedByID, userID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	if err := h.issues.Delete(r.Context(), issue); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete issue"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Issue deleted"})
}

func (h *IssueHandler) loadIssue(w http.ResponseWriter, r *http.Request) (*models.Workspace, *models.Project, *models.Issue, string, bool) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return nil, nil, nil, "", false
	}
	project, ok := loadProject(w, r, h.db, ws)
	if !ok {
		return nil, nil, nil, "", false
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid issue number"})
		return nil, nil, nil, "", false
	}

	issue, err := h.issues.GetByNumber(r.Context(), project.ID, number)
	if err != nil {
		if errors.Is(err, issues.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Issue not found"})
			return nil, nil, nil, "", false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load issue"})
		return nil, nil, nil, "", false
	}

	return ws, project, issue, role, true
}
