package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
	"github.com/kec-cse/sap-points/internal/repository"
)

func TestActivitySubmissionServiceSubmit(t *testing.T) {
	db := newSAPTestDB(t)
	_, cache := newSAPTestRedis(t)
	storage := &fakeProofStorage{}
	publisher := &recordingPublisher{}
	repo := repository.NewActivitySubmissionRepository(db)
	svc := NewActivitySubmissionService(repo, newSAPValidator(), storage, publisher, cache,
		EventSubmissionOptions{UploadMaxBytes: 4096}, zerolog.Nop())

	proof := proofFile("", "nss.pdf", pdfProof)
	resp, err := svc.Submit(context.Background(), dto.ActivitySubmissionRequest{
		Name:        "Ravi",
		Email:       "ravi@kec.edu",
		Activity:    "NSS camp <script>alert(1)</script>",
		MentorEmail: "mentor@kec.edu",
		Proof:       &proof,
	})
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPending, resp.Status)
	require.Equal(t, "NSS camp", resp.Activity)
	require.Equal(t, "https://files.test/ravi@kec.edu/activities/nss.pdf", resp.ProofURL)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, "ravi@kec.edu/activities/nss.pdf", stored.ProofKey)

	events := publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, "activity", events[0].Kind)
}

func TestActivitySubmissionServiceRequiresProof(t *testing.T) {
	db := newSAPTestDB(t)
	svc := NewActivitySubmissionService(repository.NewActivitySubmissionRepository(db), newSAPValidator(),
		&fakeProofStorage{}, nil, nil, EventSubmissionOptions{}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), dto.ActivitySubmissionRequest{
		Name:        "Ravi",
		Email:       "ravi@kec.edu",
		Activity:    "NSS camp",
		MentorEmail: "mentor@kec.edu",
	})
	require.ErrorIs(t, err, ErrProofRequired)
}
