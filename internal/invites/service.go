package invites

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("invitation not found")
	ErrExpired          = errors.New("invitation has expired")
	ErrAlreadyProcessed = errors.New("invitation already processed")
	ErrEmailMismatch    = errors.New("invitation was issued for a different email")
	ErrAlreadyMember    = errors.New("email already belongs to a workspace member")
	ErrDuplicatePending = errors.New("an invitation for this email was already sent")
	ErrInvalidRole      = errors.New("invalid invitation role")
)

const DefaultTTL = 7 * 24 * time.Hour

// Service drives the invitation state machine: pending -> accepted/declined,
// with expiry computed from ExpiresAt and revocation as a scoped hard delete.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{db: db, logger: logger, ttl: ttl, now: time.Now}
}

// Create issues a pending invitation. The caller is responsible for the
// capability check; Create enforces the data invariants: normalized email, no
// active member with that email, no live pending duplicate.
func (s *Service) Create(ctx context.Context, workspaceID, invitedByID uuid.UUID, email, role string) (*models.WorkspaceInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, ErrInvalidRole
	}

	db := s.db.WithContext(ctx)

	// Reject if the email already belongs to an active member (or the owner).
	var memberCount int64
	err := db.Model(&models.WorkspaceMember{}).
		Joins("JOIN users ON users.id = workspace_members.user_id").
		Where("workspace_members.workspace_id = ? AND users.email = ? AND users.deleted_at IS NULL", workspaceID, email).
		Count(&memberCount).Error
	if err != nil {
		return nil, fmt.Errorf("checking membership: %w", err)
	}
	if memberCount == 0 {
		var ownerCount int64
		err = db.Model(&models.Workspace{}).
			Joins("JOIN users ON users.id = workspaces.owner_id").
			Where("workspaces.id = ? AND users.email = ?", workspaceID, email).
			Count(&ownerCount).Error
		if err != nil {
			return nil, fmt.Errorf("checking owner: %w", err)
		}
		memberCount = ownerCount
	}
	if memberCount > 0 {
		return nil, ErrAlreadyMember
	}

	// Reject a second invite while a non-expired pending one exists.
	now := s.now()
	var pendingCount int64
	err = db.Model(&models.WorkspaceInvitation{}).
		Where("workspace_id = ? AND email = ? AND status = ? AND expires_at > ?",
			workspaceID, email, models.InvitationStatusPending, now).
		Count(&pendingCount).Error
	if err != nil {
		return nil, fmt.Errorf("checking pending invitations: %w", err)
	}
	if pendingCount > 0 {
		return nil, ErrDuplicatePending
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	invitation := models.WorkspaceInvitation{
		Token:       token,
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Status:      models.InvitationStatusPending,
		InvitedByID: invitedByID,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := db.Create(&invitation).Error; err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}

	s.logger.Info("invitation created",
		"workspace_id", workspaceID,
		"email", email,
		"role", role,
		"expires_at", invitation.ExpiresAt,
	)

	return &invitation, nil
}

// GetByToken loads a live pending invitation for the public accept/decline
// page. Failures are distinguishable so the client can render the right
// message: not-found, expired, or already processed.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.WorkspaceInvitation, error) {
	var invitation models.WorkspaceInvitation
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if invitation.Status != models.InvitationStatusPending {
		return nil, ErrAlreadyProcessed
	}
	if invitation.Expired(s.now()) {
		return nil, ErrExpired
	}
	return &invitation, nil
}

// GetByID loads an invitation scoped to a workspace, for the authenticated
// accept path and for revocation. Scoping to the workspace prevents
// cross-workspace access by id guessing.
func (s *Service) GetByID(ctx context.Context, id, workspaceID uuid.UUID) (*models.WorkspaceInvitation, error) {
	var invitation models.WorkspaceInvitation
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

// Accept turns a pending invitation into a workspace membership. The user's
// email must match the invitation's (case-insensitive). Acceptance is
// idempotent with respect to membership: a double-submit by an existing
// member marks the invitation accepted without inserting a second row.
// Membership insert and status flip happen in one transaction, and the status
// flip is guarded by WHERE status='pending' so a concurrent accept or decline
// cannot both win.
func (s *Service) Accept(ctx context.Context, invitation *models.WorkspaceInvitation, user *models.User) error {
	if invitation.Status != models.InvitationStatusPending {
		return ErrAlreadyProcessed
	}
	if invitation.Expired(s.now()) {
		return ErrExpired
	}
	if !strings.EqualFold(invitation.Email, user.Email) {
		return ErrEmailMismatch
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.WorkspaceMember{}).
			Where("workspace_id = ? AND user_id = ?", invitation.WorkspaceID, user.ID).
			Count(&existing).Error; err != nil {
			return err
		}

		if existing == 0 {
			member := models.WorkspaceMember{
				WorkspaceID: invitation.WorkspaceID,
				UserID:      user.ID,
				Role:        invitation.Role,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.WorkspaceInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		invitation.Status = models.InvitationStatusAccepted
		return nil
	})
}

// Decline flips a pending invitation to declined. The conditional WHERE is
// the concurrency control: a lost race updates zero rows.
func (s *Service) Decline(ctx context.Context, invitation *models.WorkspaceInvitation) error {
	if invitation.Status != models.InvitationStatusPending {
		return ErrAlreadyProcessed
	}
	if invitation.Expired(s.now()) {
		return ErrExpired
	}

	res := s.db.WithContext(ctx).Model(&models.WorkspaceInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusDeclined)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}

	invitation.Status = models.InvitationStatusDeclined
	return nil
}

// Revoke hard-deletes an invitation, scoped to the workspace.
func (s *Service) Revoke(ctx context.Context, id, workspaceID uuid.UUID) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		Delete(&models.WorkspaceInvitation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns live pending invitations for a workspace.
func (s *Service) ListPending(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceInvitation, error) {
	var invitations []models.WorkspaceInvitation
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND status = ? AND expires_at > ?",
			workspaceID, models.InvitationStatusPending, s.now()).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

// generateToken returns an unguessable URL-safe token, distinct from the row
// id so the public URL never exposes the primary key.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
