package models

import "github.com/google/uuid"

// Team roles, independent of workspace roles.
const (
	TeamRoleLead   = "lead"
	TeamRoleMember = "member"
)

type Team struct {
	Base
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_team_identifier" json:"workspace_id"`
	Identifier  string    `gorm:"not null;uniqueIndex:idx_team_identifier" json:"identifier"`
	Name        string    `gorm:"not null" json:"name"`

	// Relationships
	Members []TeamMember `gorm:"foreignKey:TeamID" json:"-"`
}

func (Team) TableName() string {
	return "teams"
}

type TeamMember struct {
	TeamID uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	UserID uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role   string    `gorm:"not null;default:'member'" json:"role"` // lead, member
}

func (TeamMember) TableName() string {
	return "team_members"
}
