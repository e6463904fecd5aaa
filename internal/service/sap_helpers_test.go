package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/models"
)

var (
	pdfProof  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	textProof = []byte("just some notes, not a proof document")
)

func newSAPTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.EventSubmission{},
		&models.EventAttachment{},
		&models.ActivitySubmission{},
		&models.ReviewLog{},
	))
	return db
}

func newSAPTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newSAPValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func proofFile(label, name string, data []byte) dto.ProofFile {
	return dto.ProofFile{
		Label:    label,
		FileName: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type fakeProofStorage struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	failAfter int
}

func (f *fakeProofStorage) Upload(_ context.Context, folder, name string, reader io.Reader) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.uploads) >= f.failAfter {
		return "", "", errors.New("storage offline")
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", "", err
	}
	key := folder + "/" + name
	f.uploads = append(f.uploads, key)
	return "https://files.test/" + key, key, nil
}

func (f *fakeProofStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.SubmissionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.SubmissionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []dto.SubmissionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.SubmissionEvent(nil), p.events...)
}
