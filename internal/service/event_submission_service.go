package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/observability"
	"github.com/kec-cse/sap-points/internal/repository"
)

const eventDataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "counts": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 0}
    },
    "studentMarks": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0}
    }
  },
  "additionalProperties": false
}`

var (
	eventDataOnce   sync.Once
	eventDataSch    *jsonschema.Schema
	eventDataSchErr error
)

func eventDataValidator() (*jsonschema.Schema, error) {
	eventDataOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("event-data.schema.json", strings.NewReader(eventDataSchema)); err != nil {
			eventDataSchErr = err
			return
		}
		eventDataSch, eventDataSchErr = compiler.Compile("event-data.schema.json")
	})
	return eventDataSch, eventDataSchErr
}

// EventSubmissionOptions configures proof handling of the submission services.
type EventSubmissionOptions struct {
	StorageName    string
	UploadMaxBytes int64
}

// EventSubmissionService stores individual event submissions.
type EventSubmissionService interface {
	Submit(ctx context.Context, payload dto.EventSubmissionRequest) (dto.SubmissionAck, error)
}

type eventSubmissionService struct {
	repo      repository.EventSubmissionRepository
	catalog   *catalog.Catalog
	validator *validator.Validate
	storage   ProofStorage
	publisher EventPublisher
	cache     *redis.Client
	opts      EventSubmissionOptions
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewEventSubmissionService constructs the event submission service.
func NewEventSubmissionService(
	repo repository.EventSubmissionRepository,
	cat *catalog.Catalog,
	validate *validator.Validate,
	storage ProofStorage,
	publisher EventPublisher,
	cache *redis.Client,
	opts EventSubmissionOptions,
	logger zerolog.Logger,
) EventSubmissionService {
	if cat == nil {
		cat = catalog.Default()
	}
	if opts.StorageName == "" {
		opts.StorageName = "default"
	}

	return &eventSubmissionService{
		repo:      repo,
		catalog:   cat,
		validator: validate,
		storage:   storage,
		publisher: publisher,
		cache:     cache,
		opts:      opts,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/kec-cse/sap-points/internal/service/event_submission"),
		logger:    logger.With().Str("component", "event_submission_service").Logger(),
	}
}

func (s *eventSubmissionService) Submit(ctx context.Context, payload dto.EventSubmissionRequest) (dto.SubmissionAck, error) {
	ctx, span := s.tracer.Start(ctx, "sap.event_submission.create", trace.WithAttributes(
		attribute.String("sap.event_key", payload.EventKey),
		attribute.Int("sap.files", len(payload.Files)),
	))
	defer span.End()

	ack, err := s.submit(ctx, payload)
	result := "accepted"
	if err != nil {
		result = "rejected"
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission rejected")
	} else {
		span.SetStatus(codes.Ok, "stored")
	}
	observability.Submissions().WithLabelValues("event", result).Inc()

	return ack, err
}

func (s *eventSubmissionService) submit(ctx context.Context, payload dto.EventSubmissionRequest) (dto.SubmissionAck, error) {
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.MentorEmail = strings.ToLower(strings.TrimSpace(payload.MentorEmail))

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionAck{}, err
	}

	key, err := s.catalog.Lookup(payload.EventKey)
	if err != nil {
		return dto.SubmissionAck{}, err
	}
	category, err := s.catalog.Get(key)
	if err != nil {
		return dto.SubmissionAck{}, err
	}

	data, err := s.decodeEventData(category, payload.EventData)
	if err != nil {
		return dto.SubmissionAck{}, err
	}

	if category.RequiresAttachment && len(payload.Files) == 0 {
		return dto.SubmissionAck{}, ErrProofRequired
	}

	info := s.sanitizeInfo(payload.StudentInfo)
	info.StudentEmail = payload.Email
	info.MentorEmail = payload.MentorEmail
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return dto.SubmissionAck{}, fmt.Errorf("failed to encode student info: %w", err)
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.EventTitle))
	if title == "" {
		title = category.Title
	}

	folder := fmt.Sprintf("%s/%s", payload.Email, category.Key)
	stored := make([]storedProof, 0, len(payload.Files))
	for _, file := range payload.Files {
		file.Label = strings.TrimSpace(s.sanitizer.Sanitize(file.Label))
		if file.Label == "" {
			file.Label = file.FileName
		}
		proof, err := storeProof(ctx, s.storage, s.opts.StorageName, s.opts.UploadMaxBytes, folder, file)
		if err != nil {
			discardProofs(ctx, s.storage, stored, s.logger)
			return dto.SubmissionAck{}, err
		}
		stored = append(stored, proof)
	}

	submission := models.EventSubmission{
		StudentEmail: payload.Email,
		StudentName:  info.StudentName,
		MentorEmail:  payload.MentorEmail,
		StudentInfo:  datatypes.JSON(infoJSON),
		EventKey:     string(category.Key),
		EventTitle:   title,
		Counts:       countsToJSONMap(data.Counts),
		StudentMarks: marksToJSONMap(data.StudentMarks),
		Status:       models.EventStatusPending,
	}
	for idx, proof := range stored {
		submission.Attachments = append(submission.Attachments, models.EventAttachment{
			Position:    idx,
			Label:       proof.Label,
			FileName:    proof.FileName,
			URL:         proof.URL,
			StorageKey:  proof.Key,
			ContentType: proof.ContentType,
			Size:        proof.Size,
		})
	}

	if err := s.repo.Create(ctx, &submission); err != nil {
		discardProofs(ctx, s.storage, stored, s.logger)
		return dto.SubmissionAck{}, err
	}

	invalidateMarks(ctx, s.cache, submission.StudentEmail, s.logger)
	publishEvent(ctx, s.publisher, dto.SubmissionEvent{
		Type:         EventSubmissionCreated,
		Kind:         "event",
		SubmissionID: submission.ID,
		StudentEmail: submission.StudentEmail,
		MentorEmail:  submission.MentorEmail,
		EventKey:     submission.EventKey,
		Status:       submission.Status,
		OccurredAt:   submission.CreatedAt,
	}, s.logger)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("event_key", submission.EventKey).
		Int("attachments", len(stored)).
		Msg("event submission stored")

	return newSubmissionAck(submission), nil
}

func (s *eventSubmissionService) decodeEventData(category catalog.Category, raw string) (dto.EventData, error) {
	data := dto.EventData{Counts: map[string]int{}, StudentMarks: map[string]float64{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return data, nil
	}

	var document interface{}
	documentDecoder := json.NewDecoder(strings.NewReader(raw))
	documentDecoder.UseNumber()
	if err := documentDecoder.Decode(&document); err != nil {
		return dto.EventData{}, fmt.Errorf("%w: %v", ErrInvalidEventData, err)
	}

	schema, err := eventDataValidator()
	if err != nil {
		return dto.EventData{}, fmt.Errorf("failed to compile event data schema: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return dto.EventData{}, fmt.Errorf("%w: %v", ErrInvalidEventData, err)
	}

	decoder := json.NewDecoder(strings.NewReader(raw))
	if err := decoder.Decode(&data); err != nil {
		return dto.EventData{}, fmt.Errorf("%w: %v", ErrInvalidEventData, err)
	}
	if data.Counts == nil {
		data.Counts = map[string]int{}
	}
	if data.StudentMarks == nil {
		data.StudentMarks = map[string]float64{}
	}

	for key := range data.Counts {
		if !category.HasCriterion(key) {
			return dto.EventData{}, fmt.Errorf("%w: unknown criterion %q", ErrInvalidEventData, key)
		}
	}
	for key := range data.StudentMarks {
		if !category.HasCriterion(key) {
			return dto.EventData{}, fmt.Errorf("%w: unknown criterion %q", ErrInvalidEventData, key)
		}
	}

	return data, nil
}

func (s *eventSubmissionService) sanitizeInfo(info dto.StudentInfo) dto.StudentInfo {
	clean := func(v string) string {
		return strings.TrimSpace(s.sanitizer.Sanitize(v))
	}
	return dto.StudentInfo{
		StudentName:  clean(info.StudentName),
		RollNumber:   clean(info.RollNumber),
		Year:         clean(info.Year),
		Section:      clean(info.Section),
		Semester:     clean(info.Semester),
		AcademicYear: clean(info.AcademicYear),
		MentorName:   clean(info.MentorName),
		StudentEmail: info.StudentEmail,
		MentorEmail:  info.MentorEmail,
	}
}

func countsToJSONMap(counts map[string]int) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range counts {
		out[key] = value
	}
	return out
}

func marksToJSONMap(marks map[string]float64) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range marks {
		out[key] = value
	}
	return out
}

func newSubmissionAck(submission models.EventSubmission) dto.SubmissionAck {
	return dto.SubmissionAck{
		ID:          submission.ID,
		EventKey:    submission.EventKey,
		EventTitle:  submission.EventTitle,
		Status:      submission.Status,
		Attachments: attachmentRefs(submission.Attachments),
		SubmittedAt: submission.CreatedAt,
	}
}

func attachmentRefs(attachments []models.EventAttachment) []dto.AttachmentRef {
	refs := make([]dto.AttachmentRef, 0, len(attachments))
	for _, attachment := range attachments {
		refs = append(refs, dto.AttachmentRef{
			Label:       attachment.Label,
			FileName:    attachment.FileName,
			URL:         attachment.URL,
			ContentType: attachment.ContentType,
			Size:        attachment.Size,
		})
	}
	return refs
}
