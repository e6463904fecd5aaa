package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kec-cse/sap-points/internal/config"
	"github.com/kec-cse/sap-points/internal/handler"
	"github.com/kec-cse/sap-points/internal/middleware"
	"github.com/kec-cse/sap-points/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	HealthHandler       *handler.HealthHandler
	SubmissionHandler   *handler.SubmissionHandler
	StudentMarksHandler *handler.StudentMarksHandler
	ReviewHandler       *handler.ReviewHandler
	// JWTMiddleware authenticates mentors; review routes are not mounted without it.
	JWTMiddleware fiber.Handler
	// UploadsDir serves locally stored proofs under cfg.StorageBaseURL when set.
	UploadsDir string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	if deps.UploadsDir != "" && cfg.StorageBaseURL != "" && cfg.StorageBaseURL[0] == '/' {
		app.Static(cfg.StorageBaseURL, deps.UploadsDir)
	}

	api := app.Group("/api/sap", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	if deps.HealthHandler != nil {
		deps.HealthHandler.Register(api)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api, middleware.RateLimit("submit", 20, time.Minute))
	}

	if deps.StudentMarksHandler != nil {
		deps.StudentMarksHandler.Register(api)
	}

	if deps.ReviewHandler != nil && deps.JWTMiddleware != nil {
		review := api.Group("/review",
			deps.JWTMiddleware,
			middleware.RequireRole(middleware.RoleMentor),
			middleware.RateLimit("review", 60, time.Minute),
		)
		deps.ReviewHandler.Register(review)
	}
}
