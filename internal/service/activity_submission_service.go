package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/observability"
	"github.com/kec-cse/sap-points/internal/repository"
)

// ActivitySubmissionService stores legacy single-proof submissions.
type ActivitySubmissionService interface {
	Submit(ctx context.Context, payload dto.ActivitySubmissionRequest) (dto.ActivitySubmissionResponse, error)
}

type activitySubmissionService struct {
	repo      repository.ActivitySubmissionRepository
	validator *validator.Validate
	storage   ProofStorage
	publisher EventPublisher
	cache     *redis.Client
	opts      EventSubmissionOptions
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewActivitySubmissionService constructs the legacy submission service.
func NewActivitySubmissionService(
	repo repository.ActivitySubmissionRepository,
	validate *validator.Validate,
	storage ProofStorage,
	publisher EventPublisher,
	cache *redis.Client,
	opts EventSubmissionOptions,
	logger zerolog.Logger,
) ActivitySubmissionService {
	if opts.StorageName == "" {
		opts.StorageName = "default"
	}

	return &activitySubmissionService{
		repo:      repo,
		validator: validate,
		storage:   storage,
		publisher: publisher,
		cache:     cache,
		opts:      opts,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "activity_submission_service").Logger(),
	}
}

func (s *activitySubmissionService) Submit(ctx context.Context, payload dto.ActivitySubmissionRequest) (dto.ActivitySubmissionResponse, error) {
	response, err := s.submit(ctx, payload)
	result := "accepted"
	if err != nil {
		result = "rejected"
	}
	observability.Submissions().WithLabelValues("activity", result).Inc()
	return response, err
}

func (s *activitySubmissionService) submit(ctx context.Context, payload dto.ActivitySubmissionRequest) (dto.ActivitySubmissionResponse, error) {
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.MentorEmail = strings.ToLower(strings.TrimSpace(payload.MentorEmail))
	payload.Name = strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	payload.Activity = strings.TrimSpace(s.sanitizer.Sanitize(payload.Activity))

	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivitySubmissionResponse{}, err
	}
	if payload.Proof == nil {
		return dto.ActivitySubmissionResponse{}, ErrProofRequired
	}

	folder := fmt.Sprintf("%s/activities", payload.Email)
	proof, err := storeProof(ctx, s.storage, s.opts.StorageName, s.opts.UploadMaxBytes, folder, *payload.Proof)
	if err != nil {
		return dto.ActivitySubmissionResponse{}, err
	}

	submission := models.ActivitySubmission{
		StudentName:  payload.Name,
		StudentEmail: payload.Email,
		MentorEmail:  payload.MentorEmail,
		Activity:     payload.Activity,
		ProofURL:     proof.URL,
		ProofKey:     proof.Key,
		Status:       models.ActivityStatusPending,
	}

	if err := s.repo.Create(ctx, &submission); err != nil {
		discardProofs(ctx, s.storage, []storedProof{proof}, s.logger)
		return dto.ActivitySubmissionResponse{}, err
	}

	invalidateMarks(ctx, s.cache, submission.StudentEmail, s.logger)
	publishEvent(ctx, s.publisher, dto.SubmissionEvent{
		Type:         EventSubmissionCreated,
		Kind:         "activity",
		SubmissionID: submission.ID,
		StudentEmail: submission.StudentEmail,
		MentorEmail:  submission.MentorEmail,
		Status:       submission.Status,
		OccurredAt:   submission.CreatedAt,
	}, s.logger)

	s.logger.Info().Uint("submission_id", submission.ID).Msg("activity submission stored")

	return dto.ActivitySubmissionResponse{
		ID:          submission.ID,
		Activity:    submission.Activity,
		Status:      submission.Status,
		ProofURL:    submission.ProofURL,
		SubmittedAt: submission.CreatedAt,
	}, nil
}
