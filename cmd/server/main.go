package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/civiclens/civiclens-go/internal/classifier"
	"github.com/civiclens/civiclens-go/internal/collab"
	"github.com/civiclens/civiclens-go/internal/config"
	"github.com/civiclens/civiclens-go/internal/db"
	"github.com/civiclens/civiclens-go/internal/handler"
	"github.com/civiclens/civiclens-go/internal/heuristics"
	"github.com/civiclens/civiclens-go/internal/middleware"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/repository"
	"github.com/civiclens/civiclens-go/internal/router"
	"github.com/civiclens/civiclens-go/internal/service"
	"github.com/civiclens/civiclens-go/internal/storage"
)

func main() {
	cfg := config.Load()

	middleware.InitLogger(cfg.LogLevel, "civiclens-api")
	log := middleware.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.Bootstrap(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap schema")
	}

	cache := service.NewCacheService(cfg.RedisURL)
	defer cache.Close()

	blobs, err := storage.NewFSStore(cfg.BlobDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob store")
	}

	handler.InitMetrics(pool)

	// Repositories
	reputationRepo := repository.NewReputationRepo(pool)
	abuseRepo := repository.NewAbuseRepo(pool)
	ipbanRepo := repository.NewIPBanRepo(pool)
	ratelimitRepo := repository.NewRateLimitRepo(pool)
	fingerprintRepo := repository.NewFingerprintRepo(pool)
	submissionRepo := repository.NewSubmissionRepo(pool)
	penaltyRepo := repository.NewPenaltyRepo(pool)

	// Services
	reputationSvc := service.NewReputationService(reputationRepo, abuseRepo, cache, log)
	botSvc := service.NewBotPatternService(fingerprintRepo, abuseRepo, log)
	penaltySvc := service.NewPenaltyService(penaltyRepo)
	penaltySvc.SetHook(func(penaltyType string) {
		handler.Metrics.PenaltiesApplied.WithLabelValues(penaltyType).Inc()
	})

	var nsfwDetector, screenshotDetector heuristics.Detector
	if cfg.NSFWDetectorURL != "" {
		nsfwDetector = heuristics.NewHTTPDetector(cfg.NSFWDetectorURL)
	}
	if cfg.ScreenshotDetectorURL != "" {
		screenshotDetector = heuristics.NewHTTPDetector(cfg.ScreenshotDetectorURL)
	}

	admissionSvc := service.NewAdmissionService(
		reputationSvc,
		ipbanRepo,
		ratelimitRepo,
		fingerprintRepo,
		submissionRepo,
		blobs,
		botSvc,
		heuristics.NewNSFWCheck(nsfwDetector, cfg.NSFWThreshold, cfg.NSFWFailOpen),
		heuristics.NewScreenshotCheck(screenshotDetector, cfg.ScreenshotThreshold, cfg.ScreenshotFailOpen),
		heuristics.NewQualityCheck(cfg.QualityCheckEnabled),
		heuristics.NewEXIFCheck(),
		cfg.DuplicateMaxDistance,
		log,
	)

	var notifier collab.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = collab.NewWebhookNotifier(cfg.NotifyWebhookURL, log)
	} else {
		notifier = collab.NewLogNotifier(log)
	}

	worker := service.NewVerifyWorker(
		submissionRepo,
		blobs,
		classifier.NewHTTPClient(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierTimeout),
		notifier,
		reputationSvc,
		penaltySvc,
		reputationSvc,
		cfg.WorkerPollInterval,
		cfg.WorkerBatchSize,
		log,
	)
	worker.SetStatsHook(handler.PublishQueueStats)
	worker.SetResultHook(func(result string) {
		handler.Metrics.ClassifierResults.WithLabelValues(result).Inc()
	})
	worker.AddSweep(func(ctx context.Context) error {
		_, err := fingerprintRepo.ExpireOld(ctx, model.FingerprintRetention)
		return err
	})
	worker.AddSweep(func(ctx context.Context) error {
		_, err := ipbanRepo.ExpireOld(ctx)
		return err
	})
	worker.AddSweep(func(ctx context.Context) error {
		_, err := ratelimitRepo.ExpireOld(ctx, 48*time.Hour)
		return err
	})
	go worker.Start(ctx)

	reportSvc := service.NewReportService(submissionRepo, cache, log)
	adminSvc := service.NewAdminService(reputationRepo, ipbanRepo, abuseRepo, penaltyRepo, cache, log)
	opsSvc := service.NewOpsService(submissionRepo, worker, log)

	app := fiber.New(fiber.Config{
		AppName:      "CivicLens API",
		ServerHeader: "CivicLens",
		BodyLimit:    middleware.MaxImageBytes + 1<<20,
	})

	router.Setup(app, &router.Handlers{
		Submission: handler.NewSubmissionHandler(admissionSvc, cfg.IPSalt),
		Report:     handler.NewReportHandler(reportSvc),
		Admin:      handler.NewAdminHandler(adminSvc),
		Ops:        handler.NewOpsHandler(opsSvc),
		Health:     handler.NewHealthHandler(pool, cache.Client(), worker),
	}, cfg.CORSOrigins)

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutdown signal received")
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("civiclens backend starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
