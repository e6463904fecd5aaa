package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/repository"
)

type reviewFixture struct {
	db        *gorm.DB
	svc       ReviewService
	logs      repository.ReviewLogRepository
	publisher *recordingPublisher
	event     models.EventSubmission
	activity  models.ActivitySubmission
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	db := newSAPTestDB(t)
	_, cache := newSAPTestRedis(t)

	event := models.EventSubmission{
		StudentEmail: "asha@kec.edu",
		MentorEmail:  "mentor@kec.edu",
		EventKey:     "paperPresentation",
		EventTitle:   "1. Paper Presentation",
		Counts:       datatypes.JSONMap{"insidePresented": 2},
		Status:       models.EventStatusPending,
	}
	require.NoError(t, db.Create(&event).Error)

	activity := models.ActivitySubmission{
		StudentName:  "Asha",
		StudentEmail: "asha@kec.edu",
		MentorEmail:  "mentor@kec.edu",
		Activity:     "Blood donation",
		Status:       models.ActivityStatusPending,
	}
	require.NoError(t, db.Create(&activity).Error)

	logs := repository.NewReviewLogRepository(db)
	publisher := &recordingPublisher{}
	svc := NewReviewService(
		repository.NewEventSubmissionRepository(db),
		repository.NewActivitySubmissionRepository(db),
		logs, nil, newSAPValidator(), publisher, cache, zerolog.Nop(),
	)
	svc.(*reviewService).now = func() time.Time {
		return time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	}

	return &reviewFixture{db: db, svc: svc, logs: logs, publisher: publisher, event: event, activity: activity}
}

func TestReviewServiceReviewEvent(t *testing.T) {
	f := newReviewFixture(t)
	note := "Good work <b>overall</b>"

	record, err := f.svc.ReviewEvent(context.Background(), "Mentor@kec.edu", f.event.ID, dto.EventReviewRequest{
		Status:      dto.StatusReviewed,
		MentorMarks: map[string]interface{}{"insidePresented": 45.0, "outsidePrize": "88"},
		MentorNote:  &note,
	})
	require.NoError(t, err)
	require.Equal(t, dto.StatusReviewed, record.Status)
	require.Equal(t, "Good work overall", record.MentorNote)
	require.NotNil(t, record.MentorDecisionAt)

	stored, err := repository.NewEventSubmissionRepository(f.db).GetByID(context.Background(), f.event.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventStatusReviewed, stored.Status)
	require.Equal(t, 88.0, points.ParseMark(stored.MentorMarks["outsidePrize"]))

	entries, total, err := f.logs.List(context.Background(), repository.ReviewLogFilter{MentorEmail: "mentor@kec.edu"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "event_submission", entries[0].EntityType)
	require.Equal(t, 6.0, points.ParseMark(entries[0].Metadata["points"]))

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventSubmissionReviewed, events[0].Type)
}

func TestReviewServiceReviewEventRejectsBadMarks(t *testing.T) {
	f := newReviewFixture(t)

	cases := map[string]map[string]interface{}{
		"missing":           nil,
		"unknown criterion": {"nationalPrize": 10},
		"not numeric":       {"insidePresented": "lots"},
		"negative":          {"insidePresented": -4},
	}
	for name, marks := range cases {
		marks := marks
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ReviewEvent(context.Background(), "mentor@kec.edu", f.event.ID, dto.EventReviewRequest{
				Status:      dto.StatusReviewed,
				MentorMarks: marks,
			})
			require.ErrorIs(t, err, ErrInvalidMentorMarks)
		})
	}

	require.Empty(t, f.publisher.Events())
}

func TestReviewServiceRejectionWithoutMarks(t *testing.T) {
	f := newReviewFixture(t)

	record, err := f.svc.ReviewEvent(context.Background(), "mentor@kec.edu", f.event.ID, dto.EventReviewRequest{
		Status: dto.StatusRejected,
	})
	require.NoError(t, err)
	require.Equal(t, dto.StatusRejected, record.Status)
	require.Empty(t, record.MentorMarks)
}

func TestReviewServiceChecksMentorAndExistence(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.svc.ReviewEvent(context.Background(), "someone@kec.edu", f.event.ID, dto.EventReviewRequest{Status: dto.StatusRejected})
	require.ErrorIs(t, err, ErrNotAssignedMentor)

	_, err = f.svc.ReviewEvent(context.Background(), "mentor@kec.edu", 9999, dto.EventReviewRequest{Status: dto.StatusRejected})
	require.ErrorIs(t, err, ErrEventSubmissionNotFound)

	_, err = f.svc.ReviewActivity(context.Background(), "mentor@kec.edu", 9999, dto.ActivityReviewRequest{Status: dto.StatusRejected})
	require.ErrorIs(t, err, ErrActivitySubmissionNotFound)
}

func TestReviewServiceReviewActivity(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.svc.ReviewActivity(context.Background(), "mentor@kec.edu", f.activity.ID, dto.ActivityReviewRequest{
		Status: dto.StatusAccepted,
	})
	require.ErrorIs(t, err, ErrInvalidMentorMarks)

	marks := 4
	record, err := f.svc.ReviewActivity(context.Background(), "mentor@kec.edu", f.activity.ID, dto.ActivityReviewRequest{
		Status:       dto.StatusAccepted,
		MarksAwarded: &marks,
	})
	require.NoError(t, err)
	require.Equal(t, dto.StatusAccepted, record.Status)
	require.NotNil(t, record.MarksAwarded)
	require.Equal(t, 4, *record.MarksAwarded)
	require.Equal(t, time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC), record.MentorDecisionAt.UTC())
}
