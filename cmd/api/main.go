package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/config"
	"github.com/kec-cse/sap-points/internal/database"
	"github.com/kec-cse/sap-points/internal/handler"
	"github.com/kec-cse/sap-points/internal/middleware"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/repository"
	"github.com/kec-cse/sap-points/internal/router"
	"github.com/kec-cse/sap-points/internal/service"
	cloud "github.com/kec-cse/sap-points/pkg/cloudinary"
	"github.com/kec-cse/sap-points/pkg/localstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.AppEnv != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("marks cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("submission events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	storage, storageName, uploadsDir := proofStorage(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	activities := catalog.Default()
	table := points.DefaultTable()
	publisher := service.NewNATSPublisher(natsConn, cfg.NATSSubject)
	opts := service.EventSubmissionOptions{StorageName: storageName, UploadMaxBytes: cfg.UploadMaxBytes}

	eventRepo := repository.NewEventSubmissionRepository(db)
	activityRepo := repository.NewActivitySubmissionRepository(db)
	reviewLogRepo := repository.NewReviewLogRepository(db)

	eventService := service.NewEventSubmissionService(eventRepo, activities, validate, storage, publisher, redisClient, opts, logger)
	activityService := service.NewActivitySubmissionService(activityRepo, validate, storage, publisher, redisClient, opts, logger)
	marksService := service.NewStudentMarksService(eventRepo, activityRepo, table, redisClient, cfg.MarksCacheTTL, logger)
	reviewService := service.NewReviewService(eventRepo, activityRepo, reviewLogRepo, activities, validate, publisher, redisClient, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		// Room for eight proofs at the upload limit plus the form fields.
		BodyLimit: int(cfg.UploadMaxBytes)*8 + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		HealthHandler:       handler.NewHealthHandler(cfg, db, redisClient, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(eventService, activityService, logger),
		StudentMarksHandler: handler.NewStudentMarksHandler(marksService, activities, table, logger),
		ReviewHandler:       handler.NewReviewHandler(reviewService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		UploadsDir:          uploadsDir,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("storage", storageName).Msg("sap points api started")
	waitForShutdown(app)
}

func proofStorage(cfg config.Config, logger zerolog.Logger) (service.ProofStorage, string, string) {
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		return uploader, "cloudinary", ""
	}

	store, err := localstore.New(cfg.StorageLocalDir, cfg.StorageBaseURL, logger)
	if err != nil {
		log.Fatalf("failed to prepare local proof storage: %v", err)
	}
	return store, "local", store.Dir()
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
