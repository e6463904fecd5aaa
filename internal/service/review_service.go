package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/observability"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/repository"
)

// ReviewService stores mentor decisions as sent by the reviewer.
type ReviewService interface {
	ReviewEvent(ctx context.Context, mentorEmail string, id uint, payload dto.EventReviewRequest) (dto.EventRecord, error)
	ReviewActivity(ctx context.Context, mentorEmail string, id uint, payload dto.ActivityReviewRequest) (dto.SubmissionRecord, error)
}

type reviewService struct {
	events     repository.EventSubmissionRepository
	activities repository.ActivitySubmissionRepository
	logs       repository.ReviewLogRepository
	catalog    *catalog.Catalog
	validator  *validator.Validate
	publisher  EventPublisher
	cache      *redis.Client
	sanitizer  *bluemonday.Policy
	tracer     trace.Tracer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewReviewService constructs the mentor review service.
func NewReviewService(
	events repository.EventSubmissionRepository,
	activities repository.ActivitySubmissionRepository,
	logs repository.ReviewLogRepository,
	cat *catalog.Catalog,
	validate *validator.Validate,
	publisher EventPublisher,
	cache *redis.Client,
	logger zerolog.Logger,
) ReviewService {
	if cat == nil {
		cat = catalog.Default()
	}

	return &reviewService{
		events:     events,
		activities: activities,
		logs:       logs,
		catalog:    cat,
		validator:  validate,
		publisher:  publisher,
		cache:      cache,
		sanitizer:  bluemonday.StrictPolicy(),
		tracer:     otel.Tracer("github.com/kec-cse/sap-points/internal/service/review"),
		logger:     logger.With().Str("component", "review_service").Logger(),
		now:        time.Now,
	}
}

func (s *reviewService) ReviewEvent(ctx context.Context, mentorEmail string, id uint, payload dto.EventReviewRequest) (dto.EventRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sap.review.event", trace.WithAttributes(
		attribute.Int64("sap.submission_id", int64(id)),
		attribute.String("sap.status", payload.Status),
	))
	defer span.End()

	record, err := s.reviewEvent(ctx, strings.ToLower(strings.TrimSpace(mentorEmail)), id, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review failed")
		return dto.EventRecord{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	observability.Reviews().WithLabelValues("event", record.Status).Inc()
	return record, nil
}

func (s *reviewService) reviewEvent(ctx context.Context, mentorEmail string, id uint, payload dto.EventReviewRequest) (dto.EventRecord, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EventRecord{}, err
	}

	submission, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EventRecord{}, ErrEventSubmissionNotFound
		}
		return dto.EventRecord{}, err
	}
	if submission.MentorEmail != mentorEmail {
		return dto.EventRecord{}, ErrNotAssignedMentor
	}

	// Rejections may omit marks; reviewed events must carry them.
	if payload.Status == models.EventStatusReviewed || len(payload.MentorMarks) > 0 {
		marks, err := s.checkMentorMarks(submission.EventKey, payload.MentorMarks)
		if err != nil {
			return dto.EventRecord{}, err
		}
		submission.MentorMarks = marks
	}

	if payload.MentorNote != nil {
		submission.MentorNote = strings.TrimSpace(s.sanitizer.Sanitize(*payload.MentorNote))
	}
	decidedAt := s.now().UTC()
	submission.Status = payload.Status
	submission.MentorDecisionAt = &decidedAt

	if err := s.events.Update(ctx, &submission); err != nil {
		return dto.EventRecord{}, err
	}

	s.recordDecision(ctx, mentorEmail, "event_submission", submission.ID, map[string]interface{}{
		"status":    submission.Status,
		"event_key": submission.EventKey,
		"points":    points.TotalPointsForEvent(submission.MentorMarks),
	})
	invalidateMarks(ctx, s.cache, submission.StudentEmail, s.logger)
	publishEvent(ctx, s.publisher, dto.SubmissionEvent{
		Type:         EventSubmissionReviewed,
		Kind:         "event",
		SubmissionID: submission.ID,
		StudentEmail: submission.StudentEmail,
		MentorEmail:  submission.MentorEmail,
		EventKey:     submission.EventKey,
		Status:       submission.Status,
		OccurredAt:   decidedAt,
	}, s.logger)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("status", submission.Status).
		Msg("event review stored")

	return newEventRecord(submission), nil
}

// checkMentorMarks requires every key to be a criterion of the category and every value a non-negative number.
func (s *reviewService) checkMentorMarks(eventKey string, marks map[string]interface{}) (datatypes.JSONMap, error) {
	if len(marks) == 0 {
		return nil, fmt.Errorf("%w: at least one mark is required", ErrInvalidMentorMarks)
	}

	key, err := s.catalog.Lookup(eventKey)
	if err != nil {
		return nil, err
	}
	category, err := s.catalog.Get(key)
	if err != nil {
		return nil, err
	}

	out := datatypes.JSONMap{}
	for criterion, value := range marks {
		if !category.HasCriterion(criterion) {
			return nil, fmt.Errorf("%w: unknown criterion %q", ErrInvalidMentorMarks, criterion)
		}
		mark := points.ParseMark(value)
		if math.IsNaN(mark) || math.IsInf(mark, 0) || mark < 0 {
			return nil, fmt.Errorf("%w: %q is not a valid mark", ErrInvalidMentorMarks, criterion)
		}
		out[criterion] = mark
	}
	return out, nil
}

func (s *reviewService) ReviewActivity(ctx context.Context, mentorEmail string, id uint, payload dto.ActivityReviewRequest) (dto.SubmissionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sap.review.activity", trace.WithAttributes(
		attribute.Int64("sap.submission_id", int64(id)),
		attribute.String("sap.status", payload.Status),
	))
	defer span.End()

	record, err := s.reviewActivity(ctx, strings.ToLower(strings.TrimSpace(mentorEmail)), id, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review failed")
		return dto.SubmissionRecord{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	observability.Reviews().WithLabelValues("activity", record.Status).Inc()
	return record, nil
}

func (s *reviewService) reviewActivity(ctx context.Context, mentorEmail string, id uint, payload dto.ActivityReviewRequest) (dto.SubmissionRecord, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionRecord{}, err
	}

	submission, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionRecord{}, ErrActivitySubmissionNotFound
		}
		return dto.SubmissionRecord{}, err
	}
	if submission.MentorEmail != mentorEmail {
		return dto.SubmissionRecord{}, ErrNotAssignedMentor
	}

	if payload.Status == models.ActivityStatusAccepted && payload.MarksAwarded == nil {
		return dto.SubmissionRecord{}, fmt.Errorf("%w: marksAwarded is required when accepting", ErrInvalidMentorMarks)
	}
	if payload.MarksAwarded != nil {
		awarded := *payload.MarksAwarded
		submission.MarksAwarded = &awarded
	}
	if payload.DecisionNote != nil {
		submission.DecisionNote = strings.TrimSpace(s.sanitizer.Sanitize(*payload.DecisionNote))
	}
	decidedAt := s.now().UTC()
	submission.Status = payload.Status
	submission.MentorDecisionAt = &decidedAt

	if err := s.activities.Update(ctx, &submission); err != nil {
		return dto.SubmissionRecord{}, err
	}

	metadata := map[string]interface{}{"status": submission.Status, "activity": submission.Activity}
	if submission.MarksAwarded != nil {
		metadata["marks_awarded"] = *submission.MarksAwarded
	}
	s.recordDecision(ctx, mentorEmail, "activity_submission", submission.ID, metadata)
	invalidateMarks(ctx, s.cache, submission.StudentEmail, s.logger)
	publishEvent(ctx, s.publisher, dto.SubmissionEvent{
		Type:         EventSubmissionReviewed,
		Kind:         "activity",
		SubmissionID: submission.ID,
		StudentEmail: submission.StudentEmail,
		MentorEmail:  submission.MentorEmail,
		Status:       submission.Status,
		OccurredAt:   decidedAt,
	}, s.logger)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("status", submission.Status).
		Msg("activity review stored")

	records := buildRecords(submission.StudentEmail, nil, []models.ActivitySubmission{submission})
	return records[0], nil
}

func (s *reviewService) recordDecision(ctx context.Context, mentorEmail, entityType string, entityID uint, metadata map[string]interface{}) {
	if s.logs == nil {
		return
	}
	entry := models.ReviewLog{
		MentorEmail: mentorEmail,
		Action:      "review",
		EntityType:  entityType,
		EntityID:    entityID,
		Metadata:    datatypes.JSONMap(metadata),
	}
	if err := s.logs.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("entity_type", entityType).Uint("entity_id", entityID).Msg("failed to write review log")
	}
}
