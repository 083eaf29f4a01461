package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

// Resolver answers "what role does this user hold in this scope". It never
// mutates anything; a missing membership resolves to the empty role, not an
// error, so callers can translate it into 404 or 403 as the route requires.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// WorkspaceRole resolves the caller's role in a workspace. The owner is
// identified by Workspace.OwnerID and is never stored as a member row, so the
// OwnerID check runs first and wins over any stray membership.
func (r *Resolver) WorkspaceRole(ctx context.Context, ws *models.Workspace, userID uuid.UUID) (string, error) {
	if ws.OwnerID == userID {
		return models.RoleOwner, nil
	}

	var member models.WorkspaceMember
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", ws.ID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return member.Role, nil
}

// TeamRole resolves the caller's role inside a team, independent of any
// workspace role.
func (r *Resolver) TeamRole(ctx context.Context, teamID, userID uuid.UUID) (string, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return member.Role, nil
}
