package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/api/dto"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/api/validation"
	"github.com/hugh/go-tracker/internal/auth"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/invites"
	"gorm.io/gorm"
)

type InvitationHandler struct {
	db       *gorm.DB
	resolver *authz.Resolver
	invites  *invites.Service
	auth     *auth.Service
}

func NewInvitationHandler(db *gorm.DB, resolver *authz.Resolver, invitesService *invites.Service, authService *auth.Service) *InvitationHandler {
	return &InvitationHandler{db: db, resolver: resolver, invites: invitesService, auth: authService}
}

type CreateInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r CreateInvitationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	email := validation.NormalizeEmail(r.Email)
	if email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Invalid email format"
	}
	if r.Role != models.RoleAdmin && r.Role != models.RoleMember {
		errors["role"] = "Role must be admin or member"
	}
	return errors
}

type InvitationResponse struct {
	ID        string `json:"id"`
	Token     string `json:"token,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

func invitationToResponse(inv *models.WorkspaceInvitation, includeToken bool) InvitationResponse {
	resp := InvitationResponse{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		Role:      inv.Role,
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
	}
	if includeToken {
		resp.Token = inv.Token
	}
	return resp
}

// Create handles POST /api/v1/workspaces/{slug}/invitations.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageMembers(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req CreateInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}
	if req.Role == models.RoleAdmin && !authz.CanAssignAdminRole(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Only the owner can invite admins"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	invitation, err := h.invites.Create(r.Context(), ws.ID, userID, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrAlreadyMember):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "This email already belongs to a member"})
		case errors.Is(err, invites.ErrDuplicatePending):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "An invitation was already sent to this email"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invitation"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, invitationToResponse(invitation, true))
}

// List handles GET /api/v1/workspaces/{slug}/invitations (pending only).
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageMembers(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	invitations, err := h.invites.ListPending(r.Context(), ws.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list invitations"})
		return
	}

	response := make([]InvitationResponse, len(invitations))
	for i := range invitations {
		response[i] = invitationToResponse(&invitations[i], false)
	}
	writeJSON(w, http.StatusOK, response)
}

// Revoke handles DELETE /api/v1/workspaces/{slug}/invitations/{id}: a hard
// delete scoped to the workspace so ids cannot be guessed across tenants.
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ws, role, ok := loadWorkspace(w, r, h.db, h.resolver)
	if !ok {
		return
	}
	if !authz.CanManageMembers(role) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid invitation ID"})
		return
	}

	if err := h.invites.Revoke(r.Context(), id, ws.ID); err != nil {
		if errors.Is(err, invites.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to revoke invitation"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invitation revoked"})
}

// AcceptByID handles POST /api/v1/invitations/id/{id}/accept: the
// authenticated path used from the invitee's own notification list. An email
// mismatch is a 403, not a 404; the invitation was addressed, just not to
// this session.
func (h *InvitationHandler) AcceptByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid invitation ID"})
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var invitation models.WorkspaceInvitation
	if err := h.db.WithContext(r.Context()).First(&invitation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load invitation"})
		return
	}

	if err := h.invites.Accept(r.Context(), &invitation, user); err != nil {
		h.writeAcceptError(w, err, false)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"workspace_id": invitation.WorkspaceID.String()})
}

// Lookup handles GET /api/v1/invitations/{token}: public, but failures stay
// distinguishable (not-found vs expired vs processed) so the page can render
// the right message.
func (h *InvitationHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	invitation, err := h.invites.GetByToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
		case errors.Is(err, invites.ErrExpired):
			writeJSON(w, http.StatusGone, dto.ErrorResponse{Error: "Invitation has expired"})
		case errors.Is(err, invites.ErrAlreadyProcessed):
			writeJSON(w, http.StatusGone, dto.ErrorResponse{Error: "Invitation was already processed"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load invitation"})
		}
		return
	}

	var ws models.Workspace
	if err := h.db.WithContext(r.Context()).First(&ws, invitation.WorkspaceID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load invitation"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"workspace_name": ws.Name,
		"email":          invitation.Email,
		"role":           invitation.Role,
		"expires_at":     invitation.ExpiresAt.Format(time.RFC3339),
	})
}

// AcceptByToken handles POST /api/v1/invitations/{token}/accept. Requires a
// session; the session email must match the invitation's.
func (h *InvitationHandler) AcceptByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	invitation, err := h.invites.GetByToken(r.Context(), token)
	if err != nil {
		h.writeAcceptError(w, err, true)
		return
	}

	if err := h.invites.Accept(r.Context(), invitation, user); err != nil {
		h.writeAcceptError(w, err, true)
		return
	}

	var ws models.Workspace
	if err := h.db.WithContext(r.Context()).First(&ws, invitation.WorkspaceID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load workspace"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"workspace_slug": ws.Slug})
}

// DeclineByToken handles POST /api/v1/invitations/{token}/decline. Possession
// of the token is the credential; no session required.
func (h *InvitationHandler) DeclineByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	invitation, err := h.invites.GetByToken(r.Context(), token)
	if err != nil {
		h.writeAcceptError(w, err, true)
		return
	}

	if err := h.invites.Decline(r.Context(), invitation); err != nil {
		h.writeAcceptError(w, err, true)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invitation declined"})
}

// currentUser loads the session user; the invitation email check needs the
// stored email, not just the claim.
func (h *InvitationHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return nil, false
	}
	return user, true
}

// writeAcceptError maps lifecycle errors to statuses. The public token path
// uses 410 for dead invitations; the authenticated id path reports 400 since
// the caller already sees the invitation in their list.
func (h *InvitationHandler) writeAcceptError(w http.ResponseWriter, err error, tokenPath bool) {
	deadStatus := http.StatusBadRequest
	if tokenPath {
		deadStatus = http.StatusGone
	}
	switch {
	case errors.Is(err, invites.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
	case errors.Is(err, invites.ErrExpired):
		writeJSON(w, deadStatus, dto.ErrorResponse{Error: "Invitation has expired"})
	case errors.Is(err, invites.ErrAlreadyProcessed):
		writeJSON(w, deadStatus, dto.ErrorResponse{Error: "Invitation was already processed"})
	case errors.Is(err, invites.ErrEmailMismatch):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "This invitation was issued for a different email"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to process invitation"})
	}
}
