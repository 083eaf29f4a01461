package authz

import (
	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
)

// Capability predicates are pure functions of resolved roles. Handlers resolve
// once and evaluate whichever predicate the route needs.

// IsWorkspaceMember reports whether the resolved role grants any access at all.
func IsWorkspaceMember(workspaceRole string) bool {
	return workspaceRole != ""
}

// CanManageMembers allows inviting, removing and re-roling workspace members.
func CanManageMembers(workspaceRole string) bool {
	return workspaceRole == models.RoleOwner || workspaceRole == models.RoleAdmin
}

// CanAssignAdminRole restricts promotion to admin to the owner; admins cannot
// mint other admins.
func CanAssignAdminRole(workspaceRole string) bool {
	return workspaceRole == models.RoleOwner
}

// CanManageTeam is a dual-path policy: a team lead manages their own team, and
// workspace owner/admin manage every team. A workspace admin is not a team
// lead; the paths stay separate.
func CanManageTeam(workspaceRole, teamRole string) bool {
	if teamRole == models.TeamRoleLead {
		return true
	}
	return workspaceRole == models.RoleOwner || workspaceRole == models.RoleAdmin
}

// CanManageProject allows project creation, status changes and team links.
func CanManageProject(workspaceRole string) bool {
	return workspaceRole == models.RoleOwner || workspaceRole == models.RoleAdmin
}

// CanManageIssue allows edits and deletes by the issue creator or a workspace
// owner/admin.
func CanManageIssue(workspaceRole string, createdByID, userID uuid.UUID) bool {
	if workspaceRole == models.RoleOwner || workspaceRole == models.RoleAdmin {
		return true
	}
	return createdByID == userID
}
