package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/models"
)

// ActivitySubmissionRepository defines data operations for single-proof submissions.
type ActivitySubmissionRepository interface {
	Create(ctx context.Context, submission *models.ActivitySubmission) error
	GetByID(ctx context.Context, id uint) (models.ActivitySubmission, error)
	ListByStudent(ctx context.Context, email string) ([]models.ActivitySubmission, error)
	Update(ctx context.Context, submission *models.ActivitySubmission) error
}

type activitySubmissionRepository struct {
	db *gorm.DB
}

// NewActivitySubmissionRepository instantiates the repository.
func NewActivitySubmissionRepository(db *gorm.DB) ActivitySubmissionRepository {
	return &activitySubmissionRepository{db: db}
}

func (r *activitySubmissionRepository) Create(ctx context.Context, submission *models.ActivitySubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *activitySubmissionRepository) GetByID(ctx context.Context, id uint) (models.ActivitySubmission, error) {
	var submission models.ActivitySubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.ActivitySubmission{}, err
	}

	return submission, nil
}

// ListByStudent returns the student's submissions newest first.
func (r *activitySubmissionRepository) ListByStudent(ctx context.Context, email string) ([]models.ActivitySubmission, error) {
	var submissions []models.ActivitySubmission
	if err := r.db.WithContext(ctx).
		Where("student_email = ?", email).
		Order("created_at DESC").
		Order("id DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *activitySubmissionRepository) Update(ctx context.Context, submission *models.ActivitySubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
