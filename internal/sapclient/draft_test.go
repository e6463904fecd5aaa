package sapclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kec-cse/sap-points/internal/catalog"
)

func paperDraft(t *testing.T) *Draft {
	t.Helper()
	category, err := catalog.Default().Get(catalog.PaperPresentation)
	require.NoError(t, err)
	info := testStudent()
	return newDraft(category, &info)
}

func TestDraftUpdateField(t *testing.T) {
	draft := paperDraft(t)

	require.NoError(t, draft.UpdateField(FieldCount, "insidePresented", "3"))
	require.NoError(t, draft.UpdateField(FieldStudentMark, "insidePresented", "42.5"))
	require.Equal(t, map[string]int{"insidePresented": 3}, draft.Counts())
	require.Equal(t, map[string]float64{"insidePresented": 42.5}, draft.StudentMarks())

	require.ErrorIs(t, draft.UpdateField(FieldCount, "unknown", "1"), ErrUnknownField)
	require.ErrorIs(t, draft.UpdateField("mentorMarks", "insidePresented", "1"), ErrUnknownField)
	require.ErrorIs(t, draft.UpdateField(FieldCount, "insidePresented", "-1"), ErrInvalidValue)
	require.ErrorIs(t, draft.UpdateField(FieldCount, "insidePresented", "two"), ErrInvalidValue)
	require.ErrorIs(t, draft.UpdateField(FieldStudentMark, "insidePresented", "NaN"), ErrInvalidValue)

	require.NoError(t, draft.UpdateField(FieldCount, "insidePresented", ""))
	require.Empty(t, draft.Counts())
}

func TestDraftClaimedPointsUsesWeightsAndCap(t *testing.T) {
	draft := paperDraft(t)
	require.NoError(t, draft.SetCount("insidePresented", 2))
	require.NoError(t, draft.SetCount("outsidePrize", 1))
	require.Equal(t, 34, draft.ClaimedPoints())

	require.NoError(t, draft.SetCount("premierPrize", 3))
	require.Equal(t, 75, draft.ClaimedPoints())
}

func TestDraftAttachments(t *testing.T) {
	draft := paperDraft(t)

	_, err := draft.AddAttachment(nil, "Certificate")
	require.ErrorIs(t, err, ErrInvalidAttachment)
	_, err = draft.AddAttachment(FileFromBytes("a.pdf", []byte("x")), "  ")
	require.ErrorIs(t, err, ErrInvalidAttachment)

	first, err := draft.AddAttachment(FileFromBytes("a.pdf", []byte("a")), "First")
	require.NoError(t, err)
	second, err := draft.AddAttachment(FileFromBytes("b.pdf", []byte("b")), "Second")
	require.NoError(t, err)
	third, err := draft.AddAttachment(FileFromBytes("c.pdf", []byte("c")), "Third")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.False(t, draft.RemoveAttachment("missing"))
	require.Len(t, draft.Attachments(), 3)

	require.True(t, draft.RemoveAttachment(second))
	attachments := draft.Attachments()
	require.Len(t, attachments, 2)
	require.Equal(t, first, attachments[0].ID)
	require.Equal(t, third, attachments[1].ID)
}

func TestBuildPayloadFieldOrder(t *testing.T) {
	draft := paperDraft(t)
	require.NoError(t, draft.SetCount("insidePresented", 1))
	require.NoError(t, draft.SetStudentMark("insidePresented", 60))
	_, err := draft.AddAttachment(FileFromBytes("proof.pdf", []byte("%PDF-1.7\n")), "Proof")
	require.NoError(t, err)
	_, err = draft.AddAttachment(FileFromBytes(`we"ird.txt`, []byte("plain text")), "Notes")
	require.NoError(t, err)

	payload, err := buildPayload(draft, testStudent())
	require.NoError(t, err)
	require.Equal(t, 2, payload.Files())

	mediaType, params, err := mime.ParseMediaType(payload.ContentType())
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(payload.Reader(), params["boundary"])
	type part struct {
		name, fileName, contentType, value string
	}
	var parts []part
	for {
		p, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, part{p.FormName(), p.FileName(), p.Header.Get("Content-Type"), string(data)})
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.name)
	}
	require.Equal(t, []string{
		"studentInfo", "eventKey", "eventTitle", "eventData", "mentorEmail", "email",
		"files", "fileNames", "files", "fileNames",
	}, names)

	require.Equal(t, "paperPresentation", parts[1].value)
	require.Equal(t, "mentor@kongu.edu", parts[4].value)
	require.Equal(t, "asha@kongu.edu", parts[5].value)

	var data struct {
		Counts       map[string]int     `json:"counts"`
		StudentMarks map[string]float64 `json:"studentMarks"`
	}
	require.NoError(t, json.Unmarshal([]byte(parts[3].value), &data))
	require.Equal(t, 1, data.Counts["insidePresented"])
	require.Equal(t, 60.0, data.StudentMarks["insidePresented"])

	require.Equal(t, "proof.pdf", parts[6].fileName)
	require.Equal(t, "application/pdf", parts[6].contentType)
	require.Equal(t, "Proof", parts[7].value)
	require.Equal(t, `we"ird.txt`, parts[8].fileName)
	require.Equal(t, "Notes", parts[9].value)

	first, err := io.ReadAll(payload.Reader())
	require.NoError(t, err)
	second, err := io.ReadAll(payload.Reader())
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
}

func TestBuildPayloadEmptyDraftSendsObjects(t *testing.T) {
	payload, err := buildPayload(paperDraft(t), testStudent())
	require.NoError(t, err)

	body, err := io.ReadAll(payload.Reader())
	require.NoError(t, err)
	require.Contains(t, string(body), `{"counts":{},"studentMarks":{}}`)
}

func TestRetryPolicyStopsOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	attempts, err := RetryPolicy{MaxAttempts: 5, AttemptTimeout: time.Second}.Do(ctx, noSleep, func(context.Context, int) error {
		calls++
		cancel()
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyPermanentError(t *testing.T) {
	boom := errors.New("boom")
	attempts, err := DefaultRetryPolicy().Do(context.Background(), noSleep, func(context.Context, int) error {
		return permanent(boom)
	})
	require.Equal(t, 1, attempts)
	require.Same(t, boom, err)
}

func TestRetryPolicySleepsBetweenAttempts(t *testing.T) {
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	policy := RetryPolicy{MaxAttempts: 3, AttemptTimeout: time.Second, Backoff: 250 * time.Millisecond}
	attempts, err := policy.Do(context.Background(), sleep, func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
}

func TestStatusTransitions(t *testing.T) {
	tracker := newStatusTracker()
	key := catalog.Leadership

	require.False(t, tracker.transition(key, StatusSuccess))
	require.True(t, tracker.transition(key, StatusSubmitting))
	require.False(t, tracker.transition(key, StatusSubmitting))
	require.True(t, tracker.transition(key, StatusError))
	require.True(t, tracker.transition(key, StatusSubmitting))
	require.True(t, tracker.transition(key, StatusSuccess))
	require.False(t, tracker.transition(key, StatusSubmitting))

	tracker.forget(key)
	require.Equal(t, StatusSuccess, tracker.get(key))
	require.ErrorIs(t, tracker.reserve(key), ErrAlreadySubmitted)
}
