package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("issue not found")
	ErrNumberTaken  = errors.New("issue number already taken")
	ErrTooManyRaces = errors.New("could not allocate issue number")
)

// Service owns issue persistence, most importantly number allocation. Numbers
// are unique per project, strictly from MAX+1, and never reused: the read
// includes soft-deleted rows and the (project_id, number) unique index backs
// the whole scheme. Two concurrent creates can read the same max; the loser's
// insert hits the index and is retried with a fresh read.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type CreateInput struct {
	Title       string
	Description *string
	Status      models.IssueStatus
}

const createMaxAttempts = 3

// Create inserts an issue with the next number for the project.
func (s *Service) Create(ctx context.Context, project *models.Project, createdByID uuid.UUID, input CreateInput) (*models.Issue, error) {
	status := input.Status
	if status == "" {
		status = models.IssueStatusBacklog
	}

	var issue *models.Issue
	for attempt := 0; attempt < createMaxAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Unscoped so deleted issues still reserve their numbers.
			var maxNumber int64
			if err := tx.Unscoped().Model(&models.Issue{}).
				Where("project_id = ?", project.ID).
				Select("COALESCE(MAX(number), 0)").
				Scan(&maxNumber).Error; err != nil {
				return err
			}

			issue = &models.Issue{
				ProjectID:   project.ID,
				WorkspaceID: project.WorkspaceID,
				Number:      int(maxNumber) + 1,
				Title:       input.Title,
				Description: input.Description,
				Status:      status,
				CreatedByID: createdByID,
			}
			return tx.Create(issue).Error
		})
		if err == nil {
			return issue, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("creating issue: %w", err)
		}
		s.logger.Debug("issue number collision, retrying", "project_id", project.ID)
	}

	return nil, ErrTooManyRaces
}

// UpdateInput carries partial-update semantics: nil field pointers mean
// "leave unchanged". DescriptionSet distinguishes an explicit JSON null
// (clear the description) from omission.
type UpdateInput struct {
	Title          *string
	Description    *string
	DescriptionSet bool
	Status         *models.IssueStatus
}

func (s *Service) Update(ctx context.Context, issue *models.Issue, input UpdateInput) error {
	updates := make(map[string]interface{})
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.DescriptionSet {
		updates["description"] = input.Description
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(issue).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes the issue; its number stays reserved.
func (s *Service) Delete(ctx context.Context, issue *models.Issue) error {
	res := s.db.WithContext(ctx).Delete(issue)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByNumber loads an issue by its project-scoped number.
func (s *Service) GetByNumber(ctx context.Context, projectID uuid.UUID, number int) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND number = ?", projectID, number).
		First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// List returns a project's issues, newest first.
func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]models.Issue, error) {
	var list []models.Issue
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("number DESC").
		Find(&list).Error
	return list, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
