package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/config"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/sapclient"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level := zerolog.InfoLevel
	if os.Getenv("SAP_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	client := sapclient.NewClient(sapclient.Config{
		BaseURL:       cfg.BaseURL,
		HealthTimeout: cfg.HealthTimeout,
		Retry: sapclient.RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			AttemptTimeout: cfg.AttemptTimeout,
			Backoff:        cfg.RetryBackoff,
		},
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{
		backend: client,
		catalog: catalog.Default(),
		table:   points.DefaultTable(),
		email:   cfg.StudentEmail,
		out:     os.Stdout,
		logger:  logger,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
