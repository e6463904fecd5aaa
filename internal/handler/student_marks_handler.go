package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/service"
	"github.com/kec-cse/sap-points/internal/utils"
)

// StudentMarksHandler serves the student-facing read endpoints.
type StudentMarksHandler struct {
	service service.StudentMarksService
	catalog *catalog.Catalog
	table   *points.Table
	logger  zerolog.Logger
}

// NewStudentMarksHandler constructs the read handler.
func NewStudentMarksHandler(svc service.StudentMarksService, cat *catalog.Catalog, table *points.Table, logger zerolog.Logger) *StudentMarksHandler {
	if cat == nil {
		cat = catalog.Default()
	}
	if table == nil {
		table = points.DefaultTable()
	}
	return &StudentMarksHandler{
		service: svc,
		catalog: cat,
		table:   table,
		logger:  logger.With().Str("component", "student_marks_handler").Logger(),
	}
}

// Register wires read routes.
func (h *StudentMarksHandler) Register(router fiber.Router) {
	router.Get("/student-marks/:email", h.records)
	router.Get("/submissions/:email", h.notifications)
	router.Get("/catalog", h.catalogDefinition)
	router.Get("/points/reference", h.reference)
	router.Get("/points/:email", h.points)
}

// records and notifications answer with bare arrays.
func (h *StudentMarksHandler) records(c *fiber.Ctx) error {
	email, err := emailParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.Records(c.UserContext(), email)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load student marks")
	}

	return c.JSON(records)
}

func (h *StudentMarksHandler) notifications(c *fiber.Ctx) error {
	email, err := emailParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	notifications, err := h.service.Notifications(c.UserContext(), email)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load submissions")
	}

	return c.JSON(notifications)
}

func (h *StudentMarksHandler) points(c *fiber.Ctx) error {
	email, err := emailParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	totals, err := h.service.Points(c.UserContext(), email)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to compute points")
	}

	return utils.SendSuccess(c, "points computed", totals)
}

func (h *StudentMarksHandler) reference(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "points reference", h.table.Reference())
}

func (h *StudentMarksHandler) catalogDefinition(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "activity catalog", fiber.Map{
		"version":    h.catalog.Version(),
		"categories": h.catalog.List(),
	})
}
