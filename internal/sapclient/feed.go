package sapclient

import (
	"context"
	"sync"
	"time"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/points"
)

// StatusFetcher reads a student's records from the backend.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, email string) ([]dto.SubmissionRecord, error)
}

// StatusItem is one display line of the status view.
type StatusItem struct {
	CategoryKey string
	Title       string
	Badge       string
	Points      int
	MentorNote  string
	SubmittedAt time.Time
	DecidedAt   *time.Time
}

// Feed keeps the last successfully fetched snapshot of a student's records.
type Feed struct {
	source StatusFetcher
	email  string
	table  *points.Table
	now    func() time.Time

	mu        sync.RWMutex
	records   []dto.SubmissionRecord
	fetchedAt time.Time
}

// NewFeed builds a feed for one student. A nil table uses the default conversion table.
func NewFeed(source StatusFetcher, email string, table *points.Table) *Feed {
	if table == nil {
		table = points.DefaultTable()
	}
	return &Feed{
		source: source,
		email:  email,
		table:  table,
		now:    time.Now,
	}
}

// Refresh replaces the snapshot. On failure the previous snapshot is kept.
func (f *Feed) Refresh(ctx context.Context) error {
	records, err := f.source.FetchStatus(ctx, f.email)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.records = records
	f.fetchedAt = f.now()
	f.mu.Unlock()
	return nil
}

// Records returns a copy of the current snapshot.
func (f *Feed) Records() []dto.SubmissionRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]dto.SubmissionRecord(nil), f.records...)
}

// FetchedAt is the time of the last successful refresh; zero before the first.
func (f *Feed) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchedAt
}

// Items flattens the snapshot: one item per aggregated event and one per single record.
func (f *Feed) Items() []StatusItem {
	records := f.Records()

	items := make([]StatusItem, 0, len(records))
	for _, record := range records {
		if record.IsAggregated() {
			for _, event := range record.Events {
				item := StatusItem{
					CategoryKey: event.EventKey,
					Title:       event.Title,
					Badge:       event.Status,
					MentorNote:  event.MentorNote,
					SubmittedAt: event.SubmittedAt,
					DecidedAt:   event.MentorDecisionAt,
				}
				if event.Status == dto.StatusReviewed {
					item.Points = f.table.TotalForEvent(event.MentorMarks)
				}
				items = append(items, item)
			}
			continue
		}

		item := StatusItem{
			CategoryKey: record.Activity,
			Title:       record.Activity,
			Badge:       record.Status,
			MentorNote:  record.DecisionNote,
			SubmittedAt: record.SubmittedAt,
			DecidedAt:   record.MentorDecisionAt,
		}
		if record.Status == dto.StatusAccepted && record.MarksAwarded != nil && *record.MarksAwarded > 0 {
			item.Points = *record.MarksAwarded
		}
		items = append(items, item)
	}
	return items
}

// TotalPoints is the student's SAP total over the snapshot.
func (f *Feed) TotalPoints() int {
	return f.table.TotalForStudent(f.Records())
}
