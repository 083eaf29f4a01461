package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createInvitation(t *testing.T, router *Router, setup *testutil.TestSetup, email, role string) map[string]interface{} {
	t.Helper()

	body := map[string]string{"email": email, "role": role}
	rec := do(router, testutil.AuthenticatedRequest(t, "POST",
		"/api/v1/workspaces/"+setup.Workspace.Slug+"/invitations", body, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	var resp map[string]interface{}
	testutil.ParseJSONResponse(t, rec, &resp)
	return resp
}

func TestInvitations_AcceptByTokenFlow(t *testing.T) {
	router, setup := newTestRouter(t)
	invitee := testutil.CreateTestUser(t, setup.DB)
	inviteeToken := testutil.GenerateTestToken(t, setup.JWTService, invitee)

	inv := createInvitation(t, router, setup, invitee.Email, models.RoleMember)
	token, _ := inv["token"].(string)
	require.NotEmpty(t, token)

	// Public lookup works without a session
	rec := do(router, testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/"+token, nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var lookup map[string]string
	testutil.ParseJSONResponse(t, rec, &lookup)
	assert.Equal(t, setup.Workspace.Name, lookup["workspace_name"])
	assert.Equal(t, invitee.Email, lookup["email"])

	// Accepting needs a session
	rec = do(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/accept", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)

	rec = do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/accept", nil, inviteeToken))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var accept map[string]string
	testutil.ParseJSONResponse(t, rec, &accept)
	assert.Equal(t, setup.Workspace.Slug, accept["workspace_slug"])

	// Membership exists with the invited role
	var member models.WorkspaceMember
	require.NoError(t, setup.DB.Where("workspace_id = ? AND user_id = ?", setup.Workspace.ID, invitee.ID).
		First(&member).Error)
	assert.Equal(t, models.RoleMember, member.Role)

	// The token is spent now
	rec = do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/accept", nil, inviteeToken))
	testutil.AssertStatus(t, rec, http.StatusGone)
}

func TestInvitations_AcceptEmailMismatch(t *testing.T) {
	router, setup := newTestRouter(t)
	stranger := testutil.CreateTestUser(t, setup.DB)
	strangerToken := testutil.GenerateTestToken(t, setup.JWTService, stranger)

	inv := createInvitation(t, router, setup, "addressed-elsewhere@example.com", models.RoleMember)
	token := inv["token"].(string)

	rec := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/accept", nil, strangerToken))
	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestInvitations_DeclineByToken_NoSession(t *testing.T) {
	router, setup := newTestRouter(t)

	inv := createInvitation(t, router, setup, "invitee@example.com", models.RoleMember)
	token := inv["token"].(string)

	// Possession of the token is the credential
	rec := do(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/decline", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	rec = do(router, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/"+token+"/decline", nil))
	testutil.AssertStatus(t, rec, http.StatusGone)
}

func TestInvitations_Lookup_Expired(t *testing.T) {
	router, setup := newTestRouter(t)

	inv := createInvitation(t, router, setup, "invitee@example.com", models.RoleMember)
	token := inv["token"].(string)

	require.NoError(t, setup.DB.Model(&models.WorkspaceInvitation{}).
		Where("token = ?", token).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	rec := do(router, testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/"+token, nil))
	testutil.AssertStatus(t, rec, http.StatusGone)

	rec = do(router, testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/no-such-token", nil))
	testutil.AssertStatus(t, rec, http.StatusNotFound)
}

func TestInvitations_Create_Permissions(t *testing.T) {
	router, setup := newTestRouter(t)
	_, memberTok := memberToken(t, setup, models.RoleMember)
	_, adminTok := memberToken(t, setup, models.RoleAdmin)

	path := "/api/v1/workspaces/" + setup.Workspace.Slug + "/invitations"

	// Plain members cannot invite
	rec := do(router, testutil.AuthenticatedRequest(t, "POST", path,
		map[string]string{"email": "a@example.com", "role": "member"}, memberTok))
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	// Admins invite members but not admins
	rec = do(router, testutil.AuthenticatedRequest(t, "POST", path,
		map[string]string{"email": "b@example.com", "role": "member"}, adminTok))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = do(router, testutil.AuthenticatedRequest(t, "POST", path,
		map[string]string{"email": "c@example.com", "role": "admin"}, adminTok))
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	// The owner invites admins
	rec = do(router, testutil.AuthenticatedRequest(t, "POST", path,
		map[string]string{"email": "d@example.com", "role": "admin"}, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusCreated)
}

func TestInvitations_Create_RejectsMemberEmail(t *testing.T) {
	router, setup := newTestRouter(t)
	member, _ := memberToken(t, setup, models.RoleMember)

	body := map[string]string{"email": member.Email, "role": "member"}
	rec := do(router, testutil.AuthenticatedRequest(t, "POST",
		"/api/v1/workspaces/"+setup.Workspace.Slug+"/invitations", body, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestInvitations_ListAndRevoke(t *testing.T) {
	router, setup := newTestRouter(t)

	inv := createInvitation(t, router, setup, "invitee@example.com", models.RoleMember)
	id := inv["id"].(string)

	path := "/api/v1/workspaces/" + setup.Workspace.Slug + "/invitations"
	rec := do(router, testutil.AuthenticatedRequest(t, "GET", path, nil, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var list []map[string]interface{}
	testutil.ParseJSONResponse(t, rec, &list)
	require.Len(t, list, 1)
	assert.Empty(t, list[0]["token"], "tokens never appear in the list")

	rec = do(router, testutil.AuthenticatedRequest(t, "DELETE", path+"/"+id, nil, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusOK)

	rec = do(router, testutil.AuthenticatedRequest(t, "GET", path, nil, setup.Token))
	testutil.ParseJSONResponse(t, rec, &list)
	assert.Empty(t, list)
}

func TestInvitations_RateLimited(t *testing.T) {
	router, setup := newTestRouter(t)

	path := "/api/v1/workspaces/" + setup.Workspace.Slug + "/invitations"
	body := map[string]string{"email": "bad", "role": "member"}

	// 10 per minute; validation failures consume budget too
	for i := 0; i < 10; i++ {
		rec := do(router, testutil.AuthenticatedRequest(t, "POST", path, body, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	}

	rec := do(router, testutil.AuthenticatedRequest(t, "POST", path, body, setup.Token))
	testutil.AssertStatus(t, rec, http.StatusTooManyRequests)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
}
