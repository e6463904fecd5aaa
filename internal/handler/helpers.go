package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/middleware"
	"github.com/kec-cse/sap-points/internal/service"
	"github.com/kec-cse/sap-points/internal/utils"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// handleServiceError maps service failures onto HTTP statuses; anything unknown is logged as a 500.
func handleServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, service.ErrInvalidEventData),
		errors.Is(err, service.ErrInvalidProofType),
		errors.Is(err, service.ErrProofRequired),
		errors.Is(err, service.ErrInvalidMentorMarks):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotAssignedMentor):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEventSubmissionNotFound),
		errors.Is(err, service.ErrActivitySubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProofTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}

func emailParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return "", err
	}
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return "", errors.New("a valid student email is required")
	}
	return email, nil
}

func idParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid submission id")
	}
	return uint(id), nil
}
