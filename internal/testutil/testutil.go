package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/auth"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing. The pool is
// capped at a single connection: each :memory: connection is its own database,
// and a single connection also serializes concurrent test writers the way a
// real database's row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.WorkspaceInvitation{},
		&models.Team{},
		&models.TeamMember{},
		&models.Project{},
		&models.ProjectTeam{},
		&models.Issue{},
		&models.RateLimitCounter{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// CreateTestUser creates a user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestWorkspace creates a workspace owned by the given user. The owner
// gets no member row; ownership lives on the workspace itself.
func CreateTestWorkspace(t *testing.T, db *gorm.DB, owner *models.User) *models.Workspace {
	t.Helper()

	ws := &models.Workspace{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:    "Test Workspace",
		Slug:    "test-ws-" + uuid.New().String()[:8],
		OwnerID: owner.ID,
	}

	if err := db.Create(ws).Error; err != nil {
		t.Fatalf("failed to create test workspace: %v", err)
	}

	return ws
}

// AddTestMember creates a user and joins them to the workspace with the
// given role.
func AddTestMember(t *testing.T, db *gorm.DB, ws *models.Workspace, role string) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	member := &models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        role,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test member: %v", err)
	}

	return user
}

// CreateTestTeam creates a team with the given user as lead.
func CreateTestTeam(t *testing.T, db *gorm.DB, ws *models.Workspace, lead *models.User) *models.Team {
	t.Helper()

	team := &models.Team{
		Base: models.Base{
			ID: uuid.New(),
		},
		WorkspaceID: ws.ID,
		Identifier:  "team-" + uuid.New().String()[:8],
		Name:        "Test Team",
	}
	if err := db.Create(team).Error; err != nil {
		t.Fatalf("failed to create test team: %v", err)
	}

	if lead != nil {
		member := &models.TeamMember{
			TeamID: team.ID,
			UserID: lead.ID,
			Role:   models.TeamRoleLead,
		}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("failed to create team lead: %v", err)
		}
	}

	return team
}

// CreateTestProject creates a project with the given identifier.
func CreateTestProject(t *testing.T, db *gorm.DB, ws *models.Workspace, identifier string) *models.Project {
	t.Helper()

	project := &models.Project{
		Base: models.Base{
			ID: uuid.New(),
		},
		WorkspaceID: ws.ID,
		Identifier:  identifier,
		Name:        "Test Project",
		Status:      models.ProjectStatusActive,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	return project
}

// CreateTestIssue creates an issue with an explicit number.
func CreateTestIssue(t *testing.T, db *gorm.DB, project *models.Project, createdBy *models.User, number int) *models.Issue {
	t.Helper()

	issue := &models.Issue{
		Base: models.Base{
			ID: uuid.New(),
		},
		ProjectID:   project.ID,
		WorkspaceID: project.WorkspaceID,
		Number:      number,
		Title:       "Test Issue",
		Status:      models.IssueStatusBacklog,
		CreatedByID: createdBy.ID,
	}
	if err := db.Create(issue).Error; err != nil {
		t.Fatalf("failed to create test issue: %v", err)
	}

	return issue
}

// CreateTestInvitation creates a pending invitation expiring in 7 days.
func CreateTestInvitation(t *testing.T, db *gorm.DB, ws *models.Workspace, invitedBy *models.User, email, role string) *models.WorkspaceInvitation {
	t.Helper()

	inv := &models.WorkspaceInvitation{
		Base: models.Base{
			ID: uuid.New(),
		},
		Token:       "test-token-" + uuid.New().String(),
		WorkspaceID: ws.ID,
		Email:       email,
		Role:        role,
		Status:      models.InvitationStatusPending,
		InvitedByID: invitedBy.ID,
		ExpiresAt:   time.Now().Add(7 * 24 * time.Hour),
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test invitation: %v", err)
	}

	return inv
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds the common workspace test fixture: a database, an owner
// with a valid token, and a workspace they own.
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Owner      *models.User
	Workspace  *models.Workspace
	Token      string
}

// NewTestContext creates a complete test setup with DB, owner, workspace,
// and token.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	owner := CreateTestUser(t, db)
	ws := CreateTestWorkspace(t, db, owner)
	token := GenerateTestToken(t, jwtService, owner)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Owner:      owner,
		Workspace:  ws,
		Token:      token,
	}
}
