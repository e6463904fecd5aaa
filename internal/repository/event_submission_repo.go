package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/models"
)

// EventSubmissionFilter narrows event submission queries.
type EventSubmissionFilter struct {
	StudentEmail string
	MentorEmail  string
	EventKey     string
	Status       string
}

// EventSubmissionRepository defines data operations for per-category submissions.
type EventSubmissionRepository interface {
	Create(ctx context.Context, submission *models.EventSubmission) error
	GetByID(ctx context.Context, id uint) (models.EventSubmission, error)
	List(ctx context.Context, filter EventSubmissionFilter) ([]models.EventSubmission, error)
	Update(ctx context.Context, submission *models.EventSubmission) error
}

type eventSubmissionRepository struct {
	db *gorm.DB
}

// NewEventSubmissionRepository instantiates the repository.
func NewEventSubmissionRepository(db *gorm.DB) EventSubmissionRepository {
	return &eventSubmissionRepository{db: db}
}

func (r *eventSubmissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EventSubmission{}).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

// Create inserts the submission and its attachments in one transaction.
func (r *eventSubmissionRepository) Create(ctx context.Context, submission *models.EventSubmission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(submission).Error
	})
}

func (r *eventSubmissionRepository) GetByID(ctx context.Context, id uint) (models.EventSubmission, error) {
	var submission models.EventSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.EventSubmission{}, err
	}

	return submission, nil
}

func (r *eventSubmissionRepository) List(ctx context.Context, filter EventSubmissionFilter) ([]models.EventSubmission, error) {
	query := r.baseQuery(ctx)

	if filter.StudentEmail != "" {
		query = query.Where("student_email = ?", filter.StudentEmail)
	}

	if filter.MentorEmail != "" {
		query = query.Where("mentor_email = ?", filter.MentorEmail)
	}

	if filter.EventKey != "" {
		query = query.Where("event_key = ?", filter.EventKey)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var submissions []models.EventSubmission
	if err := query.Order("created_at ASC").Order("id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// Update persists the review columns only; attachments are immutable once stored.
func (r *eventSubmissionRepository) Update(ctx context.Context, submission *models.EventSubmission) error {
	return r.db.WithContext(ctx).Model(&models.EventSubmission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{
			"status":             submission.Status,
			"mentor_marks":       submission.MentorMarks,
			"mentor_note":        submission.MentorNote,
			"mentor_decision_at": submission.MentorDecisionAt,
		}).Error
}
