package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/config"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler answers the client preflight.
type HealthHandler struct {
	cfg    config.Config
	db     *gorm.DB
	cache  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewHealthHandler constructs the health handler. Nil dependencies are reported as disabled.
func NewHealthHandler(cfg config.Config, db *gorm.DB, cache *redis.Client, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:    cfg,
		db:     db,
		cache:  cache,
		logger: logger.With().Str("component", "health_handler").Logger(),
		now:    time.Now,
	}
}

// Register wires the health route.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.health)
}

func (h *HealthHandler) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	payload := dto.HealthResponse{
		Status:    "ok",
		Checks:    map[string]string{"database": "disabled", "cache": "disabled"},
		CheckedAt: h.now().UTC(),
	}

	if h.db != nil {
		payload.Checks["database"] = "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Msg("database health check failed")
			payload.Checks["database"] = "down"
			payload.Status = "degraded"
		}
	}

	// A failing cache leaves the preflight healthy.
	if h.cache != nil {
		payload.Checks["cache"] = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Msg("cache health check failed")
			payload.Checks["cache"] = "down"
		}
	}

	if payload.Checks["database"] == "down" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
			Success: false,
			Data:    payload,
			Message: "database unavailable",
			Error:   "database unavailable",
		})
	}

	return utils.SendSuccess(c, h.cfg.AppName+" healthy", payload)
}
