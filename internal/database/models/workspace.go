package models

import "github.com/google/uuid"

// Workspace roles. RoleOwner is derived from Workspace.OwnerID and is never
// stored in workspace_members; only admin and member appear as rows.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Workspace struct {
	Base
	Name     string    `gorm:"not null" json:"name"`
	Slug     string    `gorm:"uniqueIndex;not null" json:"slug"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Timezone string    `gorm:"default:'UTC'" json:"timezone"`

	// Relationships
	Members     []WorkspaceMember     `gorm:"foreignKey:WorkspaceID" json:"-"`
	Teams       []Team                `gorm:"foreignKey:WorkspaceID" json:"-"`
	Projects    []Project             `gorm:"foreignKey:WorkspaceID" json:"-"`
	Invitations []WorkspaceInvitation `gorm:"foreignKey:WorkspaceID" json:"-"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

type WorkspaceMember struct {
	WorkspaceID uuid.UUID `gorm:"type:uuid;primaryKey" json:"workspace_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role        string    `gorm:"not null;default:'member'" json:"role"` // admin, member
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}
