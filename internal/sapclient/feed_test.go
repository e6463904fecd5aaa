package sapclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kec-cse/sap-points/internal/dto"
)

func feedRecords() []dto.SubmissionRecord {
	awarded := 3
	decided := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	return []dto.SubmissionRecord{
		{
			Category:     dto.RecordCategoryIndividualEvents,
			StudentEmail: "asha@kongu.edu",
			Status:       dto.StatusPending,
			Events: []dto.EventRecord{
				{
					EventKey:         "paperPresentation",
					Title:            "1. Paper Presentation",
					Status:           dto.StatusReviewed,
					MentorMarks:      map[string]interface{}{"insidePresented": 45.0, "outsidePrize": 150.0},
					MentorNote:       "Well done",
					MentorDecisionAt: &decided,
				},
				{
					EventKey: "leadership",
					Title:    "6. Leadership",
					Status:   dto.StatusPending,
				},
			},
		},
		{
			Activity:     "NSS Camp",
			Status:       dto.StatusAccepted,
			MarksAwarded: &awarded,
			DecisionNote: "ok",
		},
	}
}

func TestFeedRefreshKeepsSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	var requestedPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath.Store(r.URL.EscapedPath())
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(feedRecords())
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/"}, zerolog.Nop())
	feed := NewFeed(client, "asha@kongu.edu", nil)
	require.True(t, feed.FetchedAt().IsZero())

	require.NoError(t, feed.Refresh(context.Background()))
	require.Equal(t, "/api/sap/student-marks/asha@kongu.edu", requestedPath.Load())
	require.Len(t, feed.Records(), 2)
	require.Equal(t, 10, feed.TotalPoints())
	fetched := feed.FetchedAt()
	require.False(t, fetched.IsZero())

	fail.Store(true)
	err := feed.Refresh(context.Background())
	require.ErrorIs(t, err, ErrFeedUnavailable)
	require.Len(t, feed.Records(), 2)
	require.Equal(t, 10, feed.TotalPoints())
	require.Equal(t, fetched, feed.FetchedAt())
}

type staticFetcher struct {
	records []dto.SubmissionRecord
}

func (s staticFetcher) FetchStatus(context.Context, string) ([]dto.SubmissionRecord, error) {
	return s.records, nil
}

func TestFeedItems(t *testing.T) {
	feed := NewFeed(staticFetcher{records: feedRecords()}, "asha@kongu.edu", nil)
	require.Empty(t, feed.Items())
	require.Zero(t, feed.TotalPoints())

	require.NoError(t, feed.Refresh(context.Background()))
	items := feed.Items()
	require.Len(t, items, 3)

	require.Equal(t, "paperPresentation", items[0].CategoryKey)
	require.Equal(t, dto.StatusReviewed, items[0].Badge)
	require.Equal(t, 7, items[0].Points)
	require.Equal(t, "Well done", items[0].MentorNote)
	require.NotNil(t, items[0].DecidedAt)

	require.Equal(t, dto.StatusPending, items[1].Badge)
	require.Zero(t, items[1].Points)

	require.Equal(t, "NSS Camp", items[2].Title)
	require.Equal(t, dto.StatusAccepted, items[2].Badge)
	require.Equal(t, 3, items[2].Points)
}

func TestFetchNotifications(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sap/submissions/asha@kongu.edu", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]dto.Notification{{ID: "1", Activity: "NSS Camp", Status: dto.StatusAccepted}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zerolog.Nop())
	items, err := client.FetchNotifications(context.Background(), "asha@kongu.edu")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "NSS Camp", items[0].Activity)
}
