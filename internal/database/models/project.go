package models

import "github.com/google/uuid"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusArchived  ProjectStatus = "archived"
	ProjectStatusCompleted ProjectStatus = "completed"
)

type Project struct {
	Base
	WorkspaceID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_project_identifier" json:"workspace_id"`
	Identifier  string        `gorm:"not null;uniqueIndex:idx_project_identifier" json:"identifier"` // 2-6 uppercase alnum
	Name        string        `gorm:"not null" json:"name"`
	Status      ProjectStatus `gorm:"default:'active'" json:"status"`

	// Relationships
	Teams  []ProjectTeam `gorm:"foreignKey:ProjectID" json:"-"`
	Issues []Issue       `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectTeam struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	TeamID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
}

func (ProjectTeam) TableName() string {
	return "project_teams"
}
