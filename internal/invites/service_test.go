package invites

import (
	"log/slog"
	"testing"
	"time"

	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewService(db, slog.Default(), DefaultTTL), db
}

func TestCreate(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "Invitee@Example.com", models.RoleMember)
	require.NoError(t, err)

	assert.Equal(t, "invitee@example.com", inv.Email, "email is stored lowercased")
	assert.Equal(t, models.InvitationStatusPending, inv.Status)
	assert.NotEmpty(t, inv.Token)
	assert.NotEqual(t, inv.ID.String(), inv.Token, "token must not expose the row id")
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), inv.ExpiresAt, time.Minute)
}

func TestCreate_InvalidRole(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	_, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "x@example.com", "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "x@example.com", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCreate_ExistingMember(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	member := testutil.AddTestMember(t, db, ws, models.RoleMember)

	_, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, member.Email, models.RoleMember)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	// The owner has no member row but still counts as a member
	_, err = svc.Create(testutil.TestContext(t), ws.ID, owner.ID, owner.Email, models.RoleMember)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestCreate_DuplicatePending(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	_, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "Invitee@example.com", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrDuplicatePending)
}

func TestCreate_AfterExpiry(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	current := time.Now()
	svc.now = func() time.Time { return current }

	_, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	// Once the pending invitation has expired a fresh one may be issued
	current = current.Add(DefaultTTL + time.Hour)
	_, err = svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	assert.NoError(t, err)
}

func TestGetByToken(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	got, err := svc.GetByToken(testutil.TestContext(t), inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	_, err = svc.GetByToken(testutil.TestContext(t), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByToken_Expired(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	current := time.Now()
	svc.now = func() time.Time { return current }

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	current = current.Add(DefaultTTL + time.Hour)
	_, err = svc.GetByToken(testutil.TestContext(t), inv.Token)
	assert.ErrorIs(t, err, ErrExpired)

	// The stored status never flips on expiry; it is computed at read time
	var stored models.WorkspaceInvitation
	require.NoError(t, db.First(&stored, inv.ID).Error)
	assert.Equal(t, models.InvitationStatusPending, stored.Status)
}

func TestGetByID_ScopedToWorkspace(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	otherWs := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = svc.GetByID(testutil.TestContext(t), inv.ID, ws.ID)
	require.NoError(t, err)

	_, err = svc.GetByID(testutil.TestContext(t), inv.ID, otherWs.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccept(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	invitee := testutil.CreateTestUser(t, db)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, invitee.Email, models.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, svc.Accept(testutil.TestContext(t), inv, invitee))
	assert.Equal(t, models.InvitationStatusAccepted, inv.Status)

	var member models.WorkspaceMember
	require.NoError(t, db.Where("workspace_id = ? AND user_id = ?", ws.ID, invitee.ID).First(&member).Error)
	assert.Equal(t, models.RoleAdmin, member.Role)
}

func TestAccept_EmailMismatch(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	stranger := testutil.CreateTestUser(t, db)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "someone-else@example.com", models.RoleMember)
	require.NoError(t, err)

	err = svc.Accept(testutil.TestContext(t), inv, stranger)
	assert.ErrorIs(t, err, ErrEmailMismatch)

	var count int64
	require.NoError(t, db.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", ws.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAccept_AlreadyProcessed(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	invitee := testutil.CreateTestUser(t, db)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, invitee.Email, models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, svc.Accept(testutil.TestContext(t), inv, invitee))
	assert.ErrorIs(t, svc.Accept(testutil.TestContext(t), inv, invitee), ErrAlreadyProcessed)
}

func TestAccept_IdempotentMembership(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	invitee := testutil.CreateTestUser(t, db)

	// Invitee joined through some other path before accepting
	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, invitee.Email, models.RoleMember)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      invitee.ID,
		Role:        models.RoleMember,
	}).Error)

	require.NoError(t, svc.Accept(testutil.TestContext(t), inv, invitee))

	var count int64
	require.NoError(t, db.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", ws.ID, invitee.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "no second member row")
}

func TestAccept_Expired(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	invitee := testutil.CreateTestUser(t, db)

	current := time.Now()
	svc.now = func() time.Time { return current }

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, invitee.Email, models.RoleMember)
	require.NoError(t, err)

	current = current.Add(DefaultTTL + time.Hour)
	assert.ErrorIs(t, svc.Accept(testutil.TestContext(t), inv, invitee), ErrExpired)
}

func TestDecline(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, svc.Decline(testutil.TestContext(t), inv))
	assert.Equal(t, models.InvitationStatusDeclined, inv.Status)

	assert.ErrorIs(t, svc.Decline(testutil.TestContext(t), inv), ErrAlreadyProcessed)
}

func TestDecline_LostRace(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	// Another request processed the row between load and decline
	require.NoError(t, db.Model(&models.WorkspaceInvitation{}).
		Where("id = ?", inv.ID).
		Update("status", models.InvitationStatusAccepted).Error)

	assert.ErrorIs(t, svc.Decline(testutil.TestContext(t), inv), ErrAlreadyProcessed)
}

func TestRevoke(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)
	otherWs := testutil.CreateTestWorkspace(t, db, owner)

	inv, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	// Wrong workspace cannot revoke
	assert.ErrorIs(t, svc.Revoke(testutil.TestContext(t), inv.ID, otherWs.ID), ErrNotFound)

	require.NoError(t, svc.Revoke(testutil.TestContext(t), inv.ID, ws.ID))

	// Gone for good: a revoked token can never be accepted
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.WorkspaceInvitation{}).
		Where("id = ?", inv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListPending(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	ws := testutil.CreateTestWorkspace(t, db, owner)

	current := time.Now()
	svc.now = func() time.Time { return current }

	live, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "live@example.com", models.RoleMember)
	require.NoError(t, err)

	declined, err := svc.Create(testutil.TestContext(t), ws.ID, owner.ID, "declined@example.com", models.RoleMember)
	require.NoError(t, err)
	require.NoError(t, svc.Decline(testutil.TestContext(t), declined))

	// An expired pending invitation is excluded too
	expired := testutil.CreateTestInvitation(t, db, ws, owner, "expired@example.com", models.RoleMember)
	require.NoError(t, db.Model(expired).Update("expires_at", current.Add(-time.Hour)).Error)

	list, err := svc.ListPending(testutil.TestContext(t), ws.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)
}
