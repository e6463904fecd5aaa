package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/config"
	"github.com/kec-cse/sap-points/internal/database"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/handler"
	"github.com/kec-cse/sap-points/internal/middleware"
	"github.com/kec-cse/sap-points/internal/repository"
	"github.com/kec-cse/sap-points/internal/service"
)

const testSecret = "router-test-secret"

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, folder, name string, reader io.Reader) (string, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := folder + "/" + name
	m.files[key] = data
	return "/uploads/" + key, key, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := config.Config{AppName: "SAP Points API", JWTSecret: testSecret, UploadMaxBytes: 1 << 20}
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	storage := &memoryStorage{files: map[string][]byte{}}

	eventRepo := repository.NewEventSubmissionRepository(db)
	activityRepo := repository.NewActivitySubmissionRepository(db)
	reviewLogRepo := repository.NewReviewLogRepository(db)
	opts := service.EventSubmissionOptions{StorageName: "memory", UploadMaxBytes: cfg.UploadMaxBytes}

	eventService := service.NewEventSubmissionService(eventRepo, nil, validate, storage, nil, nil, opts, logger)
	activityService := service.NewActivitySubmissionService(activityRepo, validate, storage, nil, nil, opts, logger)
	marksService := service.NewStudentMarksService(eventRepo, activityRepo, nil, nil, 0, logger)
	reviewService := service.NewReviewService(eventRepo, activityRepo, reviewLogRepo, nil, validate, nil, nil, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	Register(app, cfg, Dependencies{
		HealthHandler:       handler.NewHealthHandler(cfg, db, nil, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(eventService, activityService, logger),
		StudentMarksHandler: handler.NewStudentMarksHandler(marksService, nil, nil, logger),
		ReviewHandler:       handler.NewReviewHandler(reviewService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	return &testServer{app: app, db: db}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func eventSubmissionRequest(t *testing.T, eventKey string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	info, err := json.Marshal(dto.StudentInfo{StudentName: "Asha", RollNumber: "21CS042", Year: "III", Section: "B"})
	require.NoError(t, err)

	require.NoError(t, writer.WriteField("studentInfo", string(info)))
	require.NoError(t, writer.WriteField("eventKey", eventKey))
	require.NoError(t, writer.WriteField("eventTitle", "Paper Presentation"))
	require.NoError(t, writer.WriteField("eventData", `{"counts":{"insidePresented":2},"studentMarks":{"insidePresented":45}}`))
	require.NoError(t, writer.WriteField("mentorEmail", "mentor@kec.edu"))
	require.NoError(t, writer.WriteField("email", "asha@kec.edu"))

	part, err := writer.CreateFormFile("files", "cert.pdf")
	require.NoError(t, err)
	_, err = part.Write(pdfBytes)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("fileNames", "Certificate"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sap/submit-individual-event", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func mentorRequest(t *testing.T, method, target, role string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "mentor@kec.edu",
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHealthReportsOK(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	var envelope struct {
		Success bool               `json:"success"`
		Data    dto.HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success)
	require.Equal(t, "ok", envelope.Data.Status)
	require.Equal(t, "ok", envelope.Data.Checks["database"])
}

func TestSubmitEventThenReadMarks(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, eventSubmissionRequest(t, "paperPresentation"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var envelope struct {
		Success bool              `json:"success"`
		Data    dto.SubmissionAck `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data.Attachments, 1)
	require.Equal(t, "Certificate", envelope.Data.Attachments[0].Label)

	resp, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/student-marks/asha%40kec.edu", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var records []dto.SubmissionRecord
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	require.True(t, records[0].IsAggregated())
	require.Equal(t, dto.StatusPending, records[0].Status)
	require.Equal(t, 2, records[0].Events[0].EventData.Counts["insidePresented"])
}

func TestSubmitEventRejectsUnknownCategory(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, eventSubmissionRequest(t, "chessClub"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Error, "unknown activity category")
	require.Equal(t, envelope.Message, envelope.Error)
}

func TestLegacySubmitRequiresProof(t *testing.T) {
	srv := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("name", "Ravi"))
	require.NoError(t, writer.WriteField("email", "ravi@kec.edu"))
	require.NoError(t, writer.WriteField("activity", "NSS camp"))
	require.NoError(t, writer.WriteField("mentorEmail", "mentor@kec.edu"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sap/submit", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, _ := srv.do(t, req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPointsReferenceAndCatalog(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/points/reference", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var reference struct {
		Data dto.PointsReference `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &reference))
	require.Equal(t, 5, reference.Data.MaxPoints)
	require.Len(t, reference.Data.Ranges, 5)

	resp, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/catalog", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "paperPresentation")
}

func TestReviewRoutesRequireMentor(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, eventSubmissionRequest(t, "paperPresentation"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	review := dto.EventReviewRequest{
		Status:      dto.StatusReviewed,
		MentorMarks: map[string]interface{}{"insidePresented": 45, "outsidePrize": 150},
	}

	resp, _ = srv.do(t, httptest.NewRequest(http.MethodPatch, "/api/sap/review/events/1", nil))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, mentorRequest(t, http.MethodPatch, "/api/sap/review/events/1", "student", review))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := srv.do(t, mentorRequest(t, http.MethodPatch, "/api/sap/review/events/1", middleware.RoleMentor, review))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, _ = srv.do(t, mentorRequest(t, http.MethodPatch, "/api/sap/review/events/42", middleware.RoleMentor, review))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/points/asha@kec.edu", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var totals struct {
		Data dto.StudentPointsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &totals))
	require.Equal(t, 7, totals.Data.TotalPoints)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, httptest.NewRequest(http.MethodGet, "/api/sap/health", nil))
	resp, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "sap_http_requests_total")
}
