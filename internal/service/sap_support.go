package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/observability"
)

var (
	// ErrEventSubmissionNotFound indicates an event submission could not be found.
	ErrEventSubmissionNotFound = errors.New("event submission not found")
	// ErrActivitySubmissionNotFound indicates a legacy submission could not be found.
	ErrActivitySubmissionNotFound = errors.New("activity submission not found")
	// ErrInvalidEventData indicates eventData is malformed or names unknown criteria.
	ErrInvalidEventData = errors.New("invalid event data")
	// ErrInvalidProofType indicates a proof file of a type that is not accepted.
	ErrInvalidProofType = errors.New("unsupported proof file type")
	// ErrProofTooLarge indicates a proof file above the upload limit.
	ErrProofTooLarge = errors.New("proof file too large")
	// ErrProofRequired indicates a submission without the proof its category requires.
	ErrProofRequired = errors.New("proof file is required")
	// ErrInvalidMentorMarks indicates mentor marks for unknown criteria or non-numeric values.
	ErrInvalidMentorMarks = errors.New("invalid mentor marks")
	// ErrNotAssignedMentor indicates a reviewer who is not the submission's mentor.
	ErrNotAssignedMentor = errors.New("submission is assigned to another mentor")
)

// ProofStorage keeps proof files and returns a public URL and a storage key.
type ProofStorage interface {
	Upload(ctx context.Context, folder, name string, reader io.Reader) (url string, key string, err error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces submission lifecycle events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.SubmissionEvent) error
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher publishes submission events on subject.<type>. A nil connection disables publishing.
func NewNATSPublisher(conn *nats.Conn, subject string) EventPublisher {
	return &natsPublisher{conn: conn, subject: strings.Trim(subject, ".")}
}

func (p *natsPublisher) Publish(_ context.Context, event dto.SubmissionEvent) error {
	if p == nil || p.conn == nil || p.subject == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject+"."+event.Type, payload)
}

// Submission event types.
const (
	EventSubmissionCreated  = "created"
	EventSubmissionReviewed = "reviewed"
)

func publishEvent(ctx context.Context, publisher EventPublisher, event dto.SubmissionEvent, logger zerolog.Logger) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		observability.BrokerPublishFailures().WithLabelValues(event.Type).Inc()
		logger.Warn().Err(err).Str("event", event.Type).Uint("submission_id", event.SubmissionID).Msg("failed to publish submission event")
	}
}

func marksCacheKey(email string) string {
	return fmt.Sprintf("sap:marks:%s", strings.ToLower(email))
}

func invalidateMarks(ctx context.Context, cache *redis.Client, email string, logger zerolog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Del(ctx, marksCacheKey(email)).Err(); err != nil {
		logger.Warn().Err(err).Str("student_email", email).Msg("failed to invalidate marks cache")
	}
}

var allowedProofTypes = []string{
	"image/jpeg",
	"image/png",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type storedProof struct {
	dto.AttachmentRef
	Key string
}

// storeProof checks size and sniffed type, then uploads the file.
func storeProof(ctx context.Context, storage ProofStorage, storageName string, maxBytes int64, folder string, proof dto.ProofFile) (storedProof, error) {
	if maxBytes > 0 && proof.Size > maxBytes {
		return storedProof{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrProofTooLarge, proof.FileName, maxBytes)
	}
	if proof.Open == nil {
		return storedProof{}, fmt.Errorf("%w: %s cannot be read", ErrProofRequired, proof.FileName)
	}

	reader, err := proof.Open()
	if err != nil {
		return storedProof{}, fmt.Errorf("failed to open proof: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return storedProof{}, fmt.Errorf("failed to read proof: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return storedProof{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrProofTooLarge, proof.FileName, maxBytes)
	}

	detected := mimetype.Detect(data)
	allowed := false
	for _, candidate := range allowedProofTypes {
		if detected.Is(candidate) {
			allowed = true
			break
		}
	}
	if !allowed {
		return storedProof{}, fmt.Errorf("%w: %s", ErrInvalidProofType, detected.String())
	}

	start := time.Now()
	url, key, err := storage.Upload(ctx, folder, proof.FileName, bytes.NewReader(data))
	observability.ProofUploadLatency().WithLabelValues(storageName).Observe(time.Since(start).Seconds())
	if err != nil {
		return storedProof{}, fmt.Errorf("failed to store proof: %w", err)
	}

	return storedProof{
		AttachmentRef: dto.AttachmentRef{
			Label:       proof.Label,
			FileName:    proof.FileName,
			URL:         url,
			ContentType: detected.String(),
			Size:        int64(len(data)),
		},
		Key: key,
	}, nil
}

func discardProofs(ctx context.Context, storage ProofStorage, proofs []storedProof, logger zerolog.Logger) {
	for _, proof := range proofs {
		if err := storage.Delete(ctx, proof.Key); err != nil {
			logger.Warn().Err(err).Str("key", proof.Key).Msg("failed to remove orphaned proof")
		}
	}
}
