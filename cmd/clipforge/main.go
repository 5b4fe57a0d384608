package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/clipforge/internal/api"
	"github.com/snarg/clipforge/internal/config"
	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/media"
	"github.com/snarg/clipforge/internal/metrics"
	"github.com/snarg/clipforge/internal/pipeline"
	"github.com/snarg/clipforge/internal/storage"
	"github.com/snarg/clipforge/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("clipforge starting")

	if err := media.CheckTools(); err != nil {
		log.Fatal().Err(err).Msg("ffmpeg toolchain not available")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Storage roots
	roots := storage.NewRoots(cfg.UploadDir, cfg.AudioDir, cfg.ClipsDir)
	if err := roots.Ensure(); err != nil {
		log.Fatal().Err(err).Msg("failed to create storage directories")
	}

	// Optional S3 clip archive
	var archiver *storage.AsyncArchiver
	var clipArchive api.ClipArchive
	if cfg.S3.Enabled() {
		s3Log := log.With().Str("component", "s3").Logger()
		archive, err := storage.NewS3Archive(cfg.S3, s3Log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure s3 archive")
		}
		if err := archive.HeadBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.S3.Bucket).Msg("s3 bucket not reachable")
		}
		clipArchive = archive
		archiver = storage.NewAsyncArchiver(archive, 64, s3Log)
		archiver.Start(2)
		defer archiver.Stop()
	}

	// Transcription provider
	provider := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperAPIKey, cfg.WhisperTimeout)
	log.Info().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Msg("transcription provider configured")

	// Job pipeline
	pipeOpts := pipeline.Options{
		Store:             db,
		Roots:             roots,
		Provider:          provider,
		TranscribeTimeout: cfg.WhisperTimeout,
		AssembleTimeout:   cfg.AssembleTimeout,
		Workers:           cfg.PipelineWorkers,
		Log:               log,
	}
	if archiver != nil {
		pipeOpts.Archiver = archiver
	}
	pipe := pipeline.New(pipeOpts)

	prometheus.MustRegister(metrics.NewCollector(db.Pool, pipe))

	// Scratch audio cleanup
	janitor := storage.NewScratchJanitor(cfg.AudioDir, cfg.ScratchRetention, log)
	janitor.Start()
	defer janitor.Stop()

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	handlers := api.Handlers{
		Videos: api.NewVideosHandler(db, pipe, roots, cfg.MaxUploadBytes, httpLog),
		Clips:  api.NewClipsHandler(db, pipe, roots, clipArchive, httpLog),
		Health: api.NewHealthHandler(db, pipe, version, startTime),
	}
	srv := api.NewServer(cfg, handlers, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	pipe.Shutdown(shutdownCtx)

	log.Info().Msg("clipforge stopped")
}
