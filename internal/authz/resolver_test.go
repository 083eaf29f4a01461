package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRole_Owner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	role, err := resolver.WorkspaceRole(testutil.TestContext(t), ws, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
}

func TestWorkspaceRole_OwnerWinsOverMemberRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	// A stray member row for the owner must not demote them.
	require.NoError(t, db.Create(&models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      owner.ID,
		Role:        models.RoleMember,
	}).Error)

	role, err := resolver.WorkspaceRole(testutil.TestContext(t), ws, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
}

func TestWorkspaceRole_AdminAndMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	admin := testutil.AddTestMember(t, db, ws, models.RoleAdmin)
	member := testutil.AddTestMember(t, db, ws, models.RoleMember)

	role, err := resolver.WorkspaceRole(testutil.TestContext(t), ws, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	role, err = resolver.WorkspaceRole(testutil.TestContext(t), ws, member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)
}

func TestWorkspaceRole_Outsider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	outsider := testutil.CreateTestUser(t, db)

	role, err := resolver.WorkspaceRole(testutil.TestContext(t), ws, outsider.ID)
	require.NoError(t, err)
	assert.Equal(t, "", role)
	assert.False(t, IsWorkspaceMember(role))
}

func TestWorkspaceRole_ScopedToWorkspace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws1 := testutil.CreateTestWorkspace(t, db, owner)
	ws2 := testutil.CreateTestWorkspace(t, db, owner)
	admin := testutil.AddTestMember(t, db, ws1, models.RoleAdmin)

	role, err := resolver.WorkspaceRole(testutil.TestContext(t), ws2, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "", role)
}

func TestTeamRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	resolver := NewResolver(db)

	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	lead := testutil.AddTestMember(t, db, ws, models.RoleMember)
	team := testutil.CreateTestTeam(t, db, ws, lead)

	role, err := resolver.TeamRole(testutil.TestContext(t), team.ID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamRoleLead, role)

	// Workspace membership grants no team role
	role, err = resolver.TeamRole(testutil.TestContext(t), team.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "", role)
}

func TestCapabilities(t *testing.T) {
	assert.True(t, CanManageMembers(models.RoleOwner))
	assert.True(t, CanManageMembers(models.RoleAdmin))
	assert.False(t, CanManageMembers(models.RoleMember))
	assert.False(t, CanManageMembers(""))

	assert.True(t, CanAssignAdminRole(models.RoleOwner))
	assert.False(t, CanAssignAdminRole(models.RoleAdmin))

	assert.True(t, CanManageProject(models.RoleOwner))
	assert.True(t, CanManageProject(models.RoleAdmin))
	assert.False(t, CanManageProject(models.RoleMember))
}

func TestCanManageTeam_DualPath(t *testing.T) {
	// A plain member who leads the team manages it
	assert.True(t, CanManageTeam(models.RoleMember, models.TeamRoleLead))
	// Workspace owner and admin manage any team regardless of team role
	assert.True(t, CanManageTeam(models.RoleOwner, ""))
	assert.True(t, CanManageTeam(models.RoleAdmin, models.TeamRoleMember))
	// A plain member without the lead role does not
	assert.False(t, CanManageTeam(models.RoleMember, models.TeamRoleMember))
	assert.False(t, CanManageTeam(models.RoleMember, ""))
}

func TestCanManageIssue(t *testing.T) {
	creator := uuid.New()
	other := uuid.New()

	assert.True(t, CanManageIssue(models.RoleMember, creator, creator))
	assert.False(t, CanManageIssue(models.RoleMember, creator, other))
	assert.True(t, CanManageIssue(models.RoleAdmin, creator, other))
	assert.True(t, CanManageIssue(models.RoleOwner, creator, other))
}
