package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/middleware"
	"github.com/kec-cse/sap-points/internal/service"
	"github.com/kec-cse/sap-points/internal/utils"
)

// ReviewHandler lets the assigned mentor store decisions.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs the review handler.
func NewReviewHandler(svc service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires review routes. The group must already authenticate the mentor.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Patch("/events/:id", h.reviewEvent)
	router.Patch("/activities/:id", h.reviewActivity)
}

func (h *ReviewHandler) reviewEvent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.EventReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.ReviewEvent(c.UserContext(), middleware.UserEmail(c), id, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to store review")
	}

	return utils.SendSuccess(c, "review stored", record)
}

func (h *ReviewHandler) reviewActivity(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ActivityReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.ReviewActivity(c.UserContext(), middleware.UserEmail(c), id, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to store review")
	}

	return utils.SendSuccess(c, "review stored", record)
}
