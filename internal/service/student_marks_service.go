package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/observability"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/repository"
)

// StudentMarksService assembles the records, notifications and derived points of a student.
type StudentMarksService interface {
	Records(ctx context.Context, email string) ([]dto.SubmissionRecord, error)
	Notifications(ctx context.Context, email string) ([]dto.Notification, error)
	Points(ctx context.Context, email string) (dto.StudentPointsResponse, error)
}

type studentMarksService struct {
	events     repository.EventSubmissionRepository
	activities repository.ActivitySubmissionRepository
	table      *points.Table
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewStudentMarksService builds the read side. A nil table uses the default conversion table.
func NewStudentMarksService(events repository.EventSubmissionRepository, activities repository.ActivitySubmissionRepository, table *points.Table, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentMarksService {
	if table == nil {
		table = points.DefaultTable()
	}
	return &studentMarksService{
		events:     events,
		activities: activities,
		table:      table,
		cache:      cache,
		cacheTTL:   ttl,
		logger:     logger.With().Str("component", "student_marks_service").Logger(),
	}
}

func (s *studentMarksService) Records(ctx context.Context, email string) ([]dto.SubmissionRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("student email is required")
	}
	cacheKey := marksCacheKey(email)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var records []dto.SubmissionRecord
			if unmarshalErr := json.Unmarshal([]byte(cached), &records); unmarshalErr == nil {
				observability.MarksCacheLookups().WithLabelValues("hit").Inc()
				s.logger.Debug().Str("student_email", email).Msg("marks cache hit")
				return records, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read marks cache")
		}
		observability.MarksCacheLookups().WithLabelValues("miss").Inc()
	}

	events, err := s.events.List(ctx, repository.EventSubmissionFilter{StudentEmail: email})
	if err != nil {
		return nil, err
	}
	activities, err := s.activities.ListByStudent(ctx, email)
	if err != nil {
		return nil, err
	}

	records := buildRecords(email, events, activities)

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(records)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store marks cache")
			}
		}
	}

	return records, nil
}

func (s *studentMarksService) Notifications(ctx context.Context, email string) ([]dto.Notification, error) {
	records, err := s.Records(ctx, email)
	if err != nil {
		return nil, err
	}

	notifications := make([]dto.Notification, 0, len(records))
	for _, record := range records {
		if record.IsAggregated() {
			for _, event := range record.Events {
				updated := event.SubmittedAt
				if event.MentorDecisionAt != nil {
					updated = *event.MentorDecisionAt
				}
				notifications = append(notifications, dto.Notification{
					ID:        fmt.Sprintf("event-%d", event.ID),
					Activity:  event.Title,
					Status:    event.Status,
					UpdatedAt: updated,
				})
			}
			continue
		}

		updated := record.SubmittedAt
		if record.MentorDecisionAt != nil {
			updated = *record.MentorDecisionAt
		}
		notifications = append(notifications, dto.Notification{
			ID:        record.ID,
			Activity:  record.Activity,
			Status:    record.Status,
			UpdatedAt: updated,
		})
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].UpdatedAt.After(notifications[j].UpdatedAt)
	})
	return notifications, nil
}

func (s *studentMarksService) Points(ctx context.Context, email string) (dto.StudentPointsResponse, error) {
	records, err := s.Records(ctx, email)
	if err != nil {
		return dto.StudentPointsResponse{}, err
	}

	response := dto.StudentPointsResponse{
		StudentEmail: strings.ToLower(strings.TrimSpace(email)),
		TotalPoints:  s.table.TotalForStudent(records),
		Events:       []dto.EventPoints{},
	}

	for _, record := range records {
		if !record.IsAggregated() {
			response.Activities += s.table.TotalForStudent([]dto.SubmissionRecord{record})
			continue
		}
		for _, event := range record.Events {
			entry := dto.EventPoints{
				ID:        event.ID,
				EventKey:  event.EventKey,
				Title:     event.Title,
				Status:    event.Status,
				Breakdown: s.table.Breakdown(event.MentorMarks),
			}
			if event.Status == dto.StatusReviewed {
				entry.Points = s.table.TotalForEvent(event.MentorMarks)
			}
			response.Events = append(response.Events, entry)
		}
	}

	return response, nil
}

// buildRecords returns the aggregated events record first, then single records newest first.
func buildRecords(email string, events []models.EventSubmission, activities []models.ActivitySubmission) []dto.SubmissionRecord {
	records := make([]dto.SubmissionRecord, 0, len(activities)+1)

	if len(events) > 0 {
		latest := events[len(events)-1]
		aggregated := dto.SubmissionRecord{
			ID:           "events:" + email,
			Category:     dto.RecordCategoryIndividualEvents,
			StudentEmail: email,
			StudentName:  latest.StudentName,
			MentorEmail:  latest.MentorEmail,
			Status:       dto.StatusReviewed,
			SubmittedAt:  events[0].CreatedAt,
			Events:       make([]dto.EventRecord, 0, len(events)),
		}

		for _, event := range events {
			if !event.IsDecided() {
				aggregated.Status = dto.StatusPending
			}
			if event.MentorDecisionAt != nil && (aggregated.MentorDecisionAt == nil || event.MentorDecisionAt.After(*aggregated.MentorDecisionAt)) {
				decided := *event.MentorDecisionAt
				aggregated.MentorDecisionAt = &decided
			}
			aggregated.Events = append(aggregated.Events, newEventRecord(event))
		}
		if aggregated.Status == dto.StatusPending {
			aggregated.MentorDecisionAt = nil
		}

		records = append(records, aggregated)
	}

	for _, activity := range activities {
		records = append(records, dto.SubmissionRecord{
			ID:               fmt.Sprintf("activity-%d", activity.ID),
			Activity:         activity.Activity,
			StudentEmail:     activity.StudentEmail,
			StudentName:      activity.StudentName,
			MentorEmail:      activity.MentorEmail,
			Status:           activity.Status,
			MarksAwarded:     activity.MarksAwarded,
			DecisionNote:     activity.DecisionNote,
			ProofURL:         activity.ProofURL,
			SubmittedAt:      activity.CreatedAt,
			MentorDecisionAt: activity.MentorDecisionAt,
		})
	}

	return records
}

func newEventRecord(event models.EventSubmission) dto.EventRecord {
	record := dto.EventRecord{
		ID:       event.ID,
		EventKey: event.EventKey,
		Title:    event.EventTitle,
		Status:   event.Status,
		EventData: dto.EventData{
			Counts:       make(map[string]int, len(event.Counts)),
			StudentMarks: make(map[string]float64, len(event.StudentMarks)),
		},
		Attachments:      attachmentRefs(event.Attachments),
		MentorNote:       event.MentorNote,
		SubmittedAt:      event.CreatedAt,
		MentorDecisionAt: event.MentorDecisionAt,
	}

	for key, value := range event.Counts {
		if mark := points.ParseMark(value); !math.IsNaN(mark) {
			record.EventData.Counts[key] = int(mark)
		}
	}
	for key, value := range event.StudentMarks {
		if mark := points.ParseMark(value); !math.IsNaN(mark) {
			record.EventData.StudentMarks[key] = mark
		}
	}
	if len(event.MentorMarks) > 0 {
		record.MentorMarks = make(map[string]interface{}, len(event.MentorMarks))
		for key, value := range event.MentorMarks {
			record.MentorMarks[key] = value
		}
	}

	return record
}
