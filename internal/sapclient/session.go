package sapclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
)

// Submitter is the backend surface a session needs.
type Submitter interface {
	Health(ctx context.Context) error
	SubmitEvent(ctx context.Context, payload Payload) (dto.SubmissionAck, error)
}

// Session holds one student's identity, the open drafts and the per-category submission status.
type Session struct {
	backend  Submitter
	catalog  *catalog.Catalog
	validate *validator.Validate
	tracer   trace.Tracer
	logger   zerolog.Logger

	mu     sync.Mutex
	info   *StudentInfo
	drafts map[catalog.Key]*Draft
	status *statusTracker
}

// NewSession starts a session for the given student. A nil catalog uses the built-in one.
func NewSession(backend Submitter, cat *catalog.Catalog, info StudentInfo, logger zerolog.Logger) *Session {
	if cat == nil {
		cat = catalog.Default()
	}
	owned := info

	return &Session{
		backend:  backend,
		catalog:  cat,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("github.com/kec-cse/sap-points/internal/sapclient"),
		logger:   logger.With().Str("component", "sap_session").Logger(),
		info:     &owned,
		drafts:   make(map[catalog.Key]*Draft),
		status:   newStatusTracker(),
	}
}

// Open returns the draft for a category, creating it on first use.
func (s *Session) Open(key catalog.Key) (*Draft, error) {
	category, err := s.catalog.Get(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if draft, ok := s.drafts[key]; ok {
		return draft, nil
	}
	draft := newDraft(category, s.info)
	s.drafts[key] = draft
	return draft, nil
}

// Draft returns the open draft for a category, if any.
func (s *Session) Draft(key catalog.Key) (*Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[key]
	return draft, ok
}

// Discard drops the draft of a category. A failed status resets to idle; success and
// a running submission are kept.
func (s *Session) Discard(key catalog.Key) {
	s.mu.Lock()
	delete(s.drafts, key)
	s.mu.Unlock()
	s.status.forget(key)
}

// StudentInfo returns a copy of the session identity.
func (s *Session) StudentInfo() StudentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.info
}

// UpdateStudentInfo sets one identity field by its wire name.
func (s *Session) UpdateStudentInfo(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value = strings.TrimSpace(value)
	switch field {
	case "studentName":
		s.info.StudentName = value
	case "rollNumber":
		s.info.RollNumber = value
	case "year":
		s.info.Year = value
	case "section":
		s.info.Section = value
	case "semester":
		s.info.Semester = value
	case "academicYear":
		s.info.AcademicYear = value
	case "mentorName":
		s.info.MentorName = value
	case "studentEmail":
		s.info.StudentEmail = value
	case "mentorEmail":
		s.info.MentorEmail = value
	default:
		return fmt.Errorf("%w: studentInfo.%s", ErrUnknownField, field)
	}
	return nil
}

// Status reports the submission state of a category.
func (s *Session) Status(key catalog.Key) Status {
	return s.status.get(key)
}

// Statuses reports every category that has left idle.
func (s *Session) Statuses() map[catalog.Key]Status {
	return s.status.snapshot()
}

// Submit validates the draft, checks backend reachability and delivers the submission.
// Validation and preflight failures leave the status untouched.
func (s *Session) Submit(ctx context.Context, key catalog.Key) (dto.SubmissionAck, error) {
	ctx, span := s.tracer.Start(ctx, "sap.submit", trace.WithAttributes(attribute.String("sap.category", string(key))))
	defer span.End()

	draft, err := s.Open(key)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionAck{}, err
	}

	if err := s.status.reserve(key); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionAck{}, err
	}
	defer s.status.release(key)

	s.mu.Lock()
	info := *s.info
	s.mu.Unlock()

	if err := s.validateDraft(draft, info); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionAck{}, err
	}

	if err := s.backend.Health(ctx); err != nil {
		s.logger.Warn().Err(err).Str("category", string(key)).Msg("backend preflight failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend unreachable")
		return dto.SubmissionAck{}, err
	}

	if strings.TrimSpace(info.MentorEmail) == "" {
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionAck{}, ErrMissingMentorEmail
	}

	payload, err := buildPayload(draft, info)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionAck{}, err
	}

	s.markStatus(key, StatusSubmitting)
	ack, err := s.backend.SubmitEvent(ctx, payload)
	if err != nil {
		s.markStatus(key, StatusError)
		s.logger.Error().Err(err).Str("category", string(key)).Msg("submission failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return dto.SubmissionAck{}, err
	}

	s.markStatus(key, StatusSuccess)
	s.logger.Info().Str("category", string(key)).Uint("submission_id", ack.ID).Int("files", payload.Files()).Msg("submission accepted")
	span.SetStatus(codes.Ok, "submitted")
	return ack, nil
}

func (s *Session) markStatus(key catalog.Key, next Status) {
	if !s.status.transition(key, next) {
		s.logger.Error().Str("category", string(key)).Str("status", string(next)).
			Str("current", string(s.status.get(key))).Msg("illegal status transition")
	}
}

func (s *Session) validateDraft(draft *Draft, info StudentInfo) error {
	if err := s.validate.Struct(info); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidStudentInfo, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidStudentInfo, err)
	}

	if draft.Category().RequiresAttachment && len(draft.Attachments()) == 0 {
		return ErrAttachmentRequired
	}
	return nil
}
