package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/sapclient"
)

type stubBackend struct {
	submitted []sapclient.Payload
	records   []dto.SubmissionRecord
}

func (s *stubBackend) Health(context.Context) error { return nil }

func (s *stubBackend) SubmitEvent(_ context.Context, payload sapclient.Payload) (dto.SubmissionAck, error) {
	s.submitted = append(s.submitted, payload)
	return dto.SubmissionAck{ID: 7, EventKey: "membership", EventTitle: "5. Membership", Status: dto.StatusPending}, nil
}

func (s *stubBackend) FetchStatus(context.Context, string) ([]dto.SubmissionRecord, error) {
	return s.records, nil
}

func (s *stubBackend) FetchNotifications(context.Context, string) ([]dto.Notification, error) {
	return []dto.Notification{
		{ID: "a", Activity: "Older", Status: dto.StatusPending, UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Activity: "Newer", Status: dto.StatusAccepted, UpdatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (s *stubBackend) FetchPointsReference(context.Context) (dto.PointsReference, error) {
	return points.DefaultTable().Reference(), nil
}

func newTestCLI(backend *stubBackend) (*commandLine, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &commandLine{
		backend: backend,
		catalog: catalog.Default(),
		table:   points.DefaultTable(),
		email:   "asha@kec.edu",
		out:     out,
		logger:  zerolog.Nop(),
	}, out
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	cli, out := newTestCLI(&stubBackend{})
	err := cli.run(context.Background(), []string{"sapctl"})
	require.ErrorIs(t, err, errHelp)
	require.Contains(t, out.String(), "Usage:")
}

func TestSubmitCommand(t *testing.T) {
	backend := &stubBackend{}
	cli, out := newTestCLI(backend)

	err := cli.run(context.Background(), []string{
		"sapctl", "submit",
		"-category", "membership",
		"-mentor", "mentor@kec.edu",
		"-name", "Asha", "-roll", "21CS042", "-year", "III", "-section", "B",
		"-count", "clubs=2",
		"-count", "nccNss=1",
	})
	require.NoError(t, err)
	require.Len(t, backend.submitted, 1)
	require.Contains(t, out.String(), "claimed 24 points")
}

func TestSubmitCommandNeedsMentor(t *testing.T) {
	backend := &stubBackend{}
	cli, _ := newTestCLI(backend)

	err := cli.run(context.Background(), []string{"sapctl", "submit", "-category", "membership"})
	require.ErrorIs(t, err, sapclient.ErrMissingMentorEmail)
	require.Empty(t, backend.submitted)
}

func TestStatusCommandPrintsTotal(t *testing.T) {
	three := 3
	backend := &stubBackend{records: []dto.SubmissionRecord{
		{ID: "x", Activity: "Blood donation", Status: dto.StatusAccepted, MarksAwarded: &three},
	}}
	cli, out := newTestCLI(backend)

	require.NoError(t, cli.run(context.Background(), []string{"sapctl", "status"}))
	require.Contains(t, out.String(), "Blood donation")
	require.Contains(t, out.String(), "TOTAL")
}

func TestNotificationsNewestFirst(t *testing.T) {
	cli, out := newTestCLI(&stubBackend{})

	require.NoError(t, cli.run(context.Background(), []string{"sapctl", "notifications"}))
	text := out.String()
	require.Less(t, bytes.Index([]byte(text), []byte("Newer")), bytes.Index([]byte(text), []byte("Older")))
}

func TestPointsCommand(t *testing.T) {
	cli, out := newTestCLI(&stubBackend{})

	require.NoError(t, cli.run(context.Background(), []string{"sapctl", "points", "-mark", "45"}))
	require.Contains(t, out.String(), "45 -> 2 points")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"sapctl", "points", "-remote"}))
	require.Contains(t, out.String(), "MARKS")
}
