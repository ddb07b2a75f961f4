package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"web2desk/pkg/bus"
	"web2desk/pkg/config"
	"web2desk/pkg/db"
	"web2desk/pkg/github"
	gos3 "web2desk/pkg/s3"
	"web2desk/pkg/telemetry"
	"web2desk/services/api"
	"web2desk/services/archiver"
	"web2desk/services/generator"
	"web2desk/services/orchestrator"
)

const serviceName = "web2deskd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	shutdownOtel, httpMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	if err := db.Migrate(ctx, cfg.DBDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	database, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	blobs, err := gos3.NewClientFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("blob storage unavailable, project downloads disabled")
		blobs = nil
	}

	var publisher orchestrator.Publisher
	if cfg.NATSURL != "" {
		natsBus, err := bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer natsBus.Close()
		publisher = natsBus
	}

	strat, err := buildStrategy(cfg, database, blobs)
	if err != nil {
		log.Fatal().Err(err).Msg("configure build strategy")
	}

	orch := orchestrator.New(database, strat, publisher, cfg.DispatchTimeout, log.Logger)

	signer, err := generator.SignerFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load signing key")
	}

	var apiBlobs api.BlobStore
	if blobs != nil {
		apiBlobs = blobs
	}
	app, err := api.New(orch, apiBlobs, signer, api.Config{
		InstallerBucket: cfg.InstallerBucket,
		CallbackToken:   cfg.CallbackToken,
		AllowedOrigins:  cfg.AllowedOrigins,
		Middleware:      httpMiddleware,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("strategy", cfg.Strategy).Msg("starting web2deskd")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func buildStrategy(cfg config.Config, database *gorm.DB, blobs *gos3.Client) (orchestrator.Strategy, error) {
	switch cfg.Strategy {
	case "simulate":
		return orchestrator.NewSimulateStrategy(), nil
	case "dispatch":
	default:
		return nil, fmt.Errorf("unknown build strategy %q", cfg.Strategy)
	}

	var (
		ci   orchestrator.CI
		arch orchestrator.ArtifactArchiver
	)
	if cfg.GitHubToken != "" {
		client, err := github.NewClient(cfg.GitHubToken, cfg.BuilderRepo)
		if err != nil {
			return nil, err
		}
		ci = client
		if blobs != nil {
			arch = archiver.New(database, blobs, client, cfg.InstallerBucket, log.Logger)
		}
	}
	// With ci or arch missing the strategy stays constructed but rejects
	// submissions with a configuration error.
	return orchestrator.NewDispatchStrategy(ci, arch, cfg.BuilderRef, cfg.PropagationGrace, log.Logger), nil
}
