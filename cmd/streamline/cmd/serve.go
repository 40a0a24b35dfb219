package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/database"
	"github.com/sanketb-14/Streamline-sub000/internal/ffmpeg"
	internalhttp "github.com/sanketb-14/Streamline-sub000/internal/http"
	"github.com/sanketb-14/Streamline-sub000/internal/http/handlers"
	"github.com/sanketb-14/Streamline-sub000/internal/ingest"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
	"github.com/sanketb-14/Streamline-sub000/internal/query"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
	"github.com/sanketb-14/Streamline-sub000/internal/scheduler"
	"github.com/sanketb-14/Streamline-sub000/internal/service"
	"github.com/sanketb-14/Streamline-sub000/internal/startup"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
	"github.com/sanketb-14/Streamline-sub000/internal/transcoder"
	"github.com/sanketb-14/Streamline-sub000/internal/version"
)

const (
	stagingSweepJob = "staging-sweep"
	// ffmpegDetectTTL bounds how long readiness trusts a detected binary.
	ffmpegDetectTTL = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamline server",
	Long: `Start the streamline HTTP server and API.

The server provides:
- Multipart video upload into a channel
- Video catalog listing with filters, sorting and pagination
- Channel, reaction and deletion endpoints
- Range-capable media serving for stored videos and thumbnails
- Health, liveness and readiness checks, and Prometheus metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "streamline.db", "Database DSN (file path for sqlite)")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for blobs and staging")
	serveCmd.Flags().String("ffmpeg", "", "Path to the ffmpeg binary (default: auto-detect)")
	serveCmd.Flags().Int("max-transcodes", 0, "Concurrent transcode limit (0 = half the CPUs)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Server.MetricsEnabled {
		metrics = observability.NewMetrics(version.Version)
	}

	staging, err := storage.NewSandbox(cfg.Storage.StagingPath())
	if err != nil {
		return fmt.Errorf("initializing staging directory: %w", err)
	}
	sweepStaging(logger, staging, cfg, metrics)

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"), nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", slog.String("error", err.Error()))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	videoRepo := repository.NewVideoRepository(db.DB)
	channelRepo := repository.NewChannelRepository(db.DB)

	blobs, err := storage.New(ctx, cfg.Storage, observability.WithComponent(logger, "storage"))
	if err != nil {
		return fmt.Errorf("initializing blob storage: %w", err)
	}

	detector := ffmpeg.NewBinaryDetector(cfg.Transcoder.FFmpegPath).WithCacheTTL(ffmpegDetectTTL)
	tc, err := transcoder.NewFFmpeg(cfg.Transcoder, transcoder.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing transcoder: %w", err)
	}
	pool := transcoder.NewPool(cfg.Transcoder.MaxConcurrent)
	metrics.RegisterGaugeFunc("transcode_slots_in_use", "Transcode slots currently held.",
		func() float64 { return float64(pool.InUse()) })
	logger.Info("transcoder ready",
		slog.String("ffmpeg", tc.Binary()),
		slog.Int("slots", pool.Size()),
	)

	engineOpts := []query.Option{
		query.WithMetrics(metrics),
		query.WithLogger(observability.WithComponent(logger, "query")),
	}
	if cfg.Cache.RedisAddr != "" {
		client, err := query.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("page cache disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			engineOpts = append(engineOpts, query.WithCache(query.NewRedisCache(client, cfg.Cache.TTL, logger)))
		}
	}
	engine := query.NewEngine(videoRepo, cfg.Query, engineOpts...)

	videoService := service.NewVideoService(videoRepo, channelRepo, blobs).
		WithInvalidator(engine).
		WithLogger(observability.WithComponent(logger, "videos"))
	channelService := service.NewChannelService(channelRepo).
		WithLogger(observability.WithComponent(logger, "channels"))

	pipeline, err := ingest.NewPipeline(ingest.Deps{
		Transcoder: tc,
		Slots:      pool,
		Blobs:      blobs,
		Videos:     videoRepo,
		Channels:   channelRepo,
		Staging:    staging,
	}, cfg.Ingest,
		ingest.WithLogger(logger),
		ingest.WithMetrics(metrics),
		ingest.WithInvalidator(engine),
	)
	if err != nil {
		return fmt.Errorf("initializing ingest pipeline: %w", err)
	}

	sched := scheduler.New().WithLogger(logger)
	if cfg.Ingest.SweepSchedule != "" {
		if err := sched.Add(stagingSweepJob, cfg.Ingest.SweepSchedule, func(context.Context) {
			sweepStaging(logger, staging, cfg, metrics)
		}); err != nil {
			return fmt.Errorf("scheduling staging sweep: %w", err)
		}
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()
	if next, ok := sched.Next(stagingSweepJob); ok {
		logger.Info("staging sweep scheduled", slog.Time("next_run", next))
	}

	server := internalhttp.NewServer(cfg.Server, observability.WithComponent(logger, "http"), version.Short(), metrics)
	api := server.API()
	router := server.Router()

	handlers.NewHealthHandler(version.Short()).
		WithDB(db).
		WithFFmpeg(detector, transcoder.RequiredEncoders()...).
		WithPool(pool).
		Register(api)
	handlers.NewChannelHandler(channelService).Register(api)
	handlers.NewVideoHandler(engine, videoService).Register(api)
	handlers.NewUploadHandler(pipeline, cfg.Server.MaxRequestBody.Bytes()).
		WithLogger(logger).
		RegisterRoutes(router)
	handlers.NewMediaHandler(blobs).
		WithLogger(logger).
		RegisterRoutes(router)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler())
	}

	logger.Info("starting streamline",
		slog.String("version", version.Short()),
		slog.String("address", cfg.Server.Address()),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("database", db.Driver()),
	)

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// sweepStaging removes staging directories abandoned by a crash or an
// interrupted upload.
func sweepStaging(logger *slog.Logger, staging *storage.Sandbox, cfg *config.Config, metrics *observability.Metrics) {
	removed, err := startup.SweepStagingDirs(logger, staging, cfg.Ingest.SweepMaxAge)
	if err != nil {
		logger.Warn("failed to sweep staging directories", slog.String("error", err.Error()))
		return
	}
	metrics.StagingSwept(removed)
	if removed > 0 {
		logger.Info("swept stale staging directories", slog.Int("removed_count", removed))
	}
}
