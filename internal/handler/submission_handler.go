package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/service"
	"github.com/kec-cse/sap-points/internal/utils"
)

// SubmissionHandler accepts event and legacy activity submissions.
type SubmissionHandler struct {
	events     service.EventSubmissionService
	activities service.ActivitySubmissionService
	logger     zerolog.Logger
}

// NewSubmissionHandler constructs the submission handler.
func NewSubmissionHandler(events service.EventSubmissionService, activities service.ActivitySubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		events:     events,
		activities: activities,
		logger:     logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires submission routes behind the optional guards.
func (h *SubmissionHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/submit-individual-event", append(guards, h.submitEvent)...)
	router.Post("/submit", append(guards, h.submitActivity)...)
}

func (h *SubmissionHandler) submitEvent(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	payload := dto.EventSubmissionRequest{
		EventKey:    formValue(form, "eventKey"),
		EventTitle:  formValue(form, "eventTitle"),
		MentorEmail: formValue(form, "mentorEmail"),
		Email:       formValue(form, "email"),
		EventData:   formValue(form, "eventData"),
	}

	if raw := formValue(form, "studentInfo"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.StudentInfo); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "studentInfo must be a JSON object")
		}
	}

	labels := form.Value["fileNames"]
	for idx, header := range form.File["files"] {
		label := ""
		if idx < len(labels) {
			label = labels[idx]
		}
		payload.Files = append(payload.Files, proofFromHeader(label, header))
	}

	ack, err := h.events.Submit(c.UserContext(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to store submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", ack)
}

func (h *SubmissionHandler) submitActivity(c *fiber.Ctx) error {
	payload := dto.ActivitySubmissionRequest{
		Name:        strings.TrimSpace(c.FormValue("name")),
		Email:       strings.TrimSpace(c.FormValue("email")),
		Activity:    strings.TrimSpace(c.FormValue("activity")),
		MentorEmail: strings.TrimSpace(c.FormValue("mentorEmail")),
	}

	if header, err := c.FormFile("proof"); err == nil {
		proof := proofFromHeader("", header)
		payload.Proof = &proof
	}

	resp, err := h.activities.Submit(c.UserContext(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to store submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", resp)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func proofFromHeader(label string, header *multipart.FileHeader) dto.ProofFile {
	return dto.ProofFile{
		Label:    strings.TrimSpace(label),
		FileName: header.Filename,
		Size:     header.Size,
		Open: func() (io.ReadCloser, error) {
			file, err := header.Open()
			if err != nil {
				return nil, err
			}
			return file, nil
		},
	}
}
