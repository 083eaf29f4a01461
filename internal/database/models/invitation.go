package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
)

// WorkspaceInvitation stays status=pending past ExpiresAt; expiry is computed
// by readers, never written back as a status transition.
type WorkspaceInvitation struct {
	Base
	Token       string           `gorm:"uniqueIndex;not null" json:"-"`
	WorkspaceID uuid.UUID        `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Email       string           `gorm:"not null;index" json:"email"` // stored lowercased
	Role        string           `gorm:"not null;default:'member'" json:"role"`
	Status      InvitationStatus `gorm:"not null;default:'pending'" json:"status"`
	InvitedByID uuid.UUID        `gorm:"type:uuid;not null" json:"invited_by_id"`
	ExpiresAt   time.Time        `gorm:"not null" json:"expires_at"`
}

func (WorkspaceInvitation) TableName() string {
	return "workspace_invitations"
}

// Expired reports whether the invitation is past its expiry, regardless of
// stored status.
func (i *WorkspaceInvitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
