package models

import (
	"fmt"

	"github.com/google/uuid"
)

type IssueStatus string

const (
	IssueStatusBacklog    IssueStatus = "backlog"
	IssueStatusTodo       IssueStatus = "todo"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusDone       IssueStatus = "done"
	IssueStatusCanceled   IssueStatus = "canceled"
	IssueStatusDuplicate  IssueStatus = "duplicate"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusBacklog, IssueStatusTodo, IssueStatusInProgress,
		IssueStatusDone, IssueStatusCanceled, IssueStatusDuplicate:
		return true
	}
	return false
}

// Issue numbers are unique per project and survive soft deletes, so a deleted
// issue's number is never handed out again.
type Issue struct {
	Base
	ProjectID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_issue_number" json:"project_id"`
	WorkspaceID uuid.UUID   `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Number      int         `gorm:"not null;uniqueIndex:idx_issue_number" json:"number"`
	Title       string      `gorm:"not null" json:"title"`
	Description *string     `json:"description,omitempty"`
	Status      IssueStatus `gorm:"default:'backlog'" json:"status"`
	CreatedByID uuid.UUID   `gorm:"type:uuid;not null" json:"created_by_id"`
}

func (Issue) TableName() string {
	return "issues"
}

// Identifier builds the human-facing issue key, e.g. "PROJ-42".
func (i *Issue) Identifier(projectIdentifier string) string {
	return fmt.Sprintf("%s-%d", projectIdentifier, i.Number)
}
