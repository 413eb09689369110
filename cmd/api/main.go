package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/transcribefree/backend/api/controllers"
	"github.com/transcribefree/backend/api/routes"
	"github.com/transcribefree/backend/internal/analytics"
	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/duration"
	"github.com/transcribefree/backend/internal/payments"
	"github.com/transcribefree/backend/internal/pricing"
	"github.com/transcribefree/backend/internal/transcription"
	"github.com/transcribefree/backend/internal/workflow"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/db"
	"github.com/transcribefree/backend/pkg/db/models"
	"github.com/transcribefree/backend/pkg/logger"
	"github.com/transcribefree/backend/pkg/metrics"
	"github.com/transcribefree/backend/pkg/openai"
	"github.com/transcribefree/backend/pkg/redis"
	"github.com/transcribefree/backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if cfg.FeatureFlags.AutoMigrate {
		if err := dbClient.DB().AutoMigrate(
			&models.WorkflowSession{},
			&models.Upload{},
			&models.ProcessingJob{},
		); err != nil {
			logg.Error(context.Background(), "failed to auto-migrate schema", err)
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotency middleware disabled")
	}

	var stripeWrapper payments.StripePaymentIntentClient
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
		stripeWrapper = payments.NewStripeClient(stripeClient)
	} else {
		logg.Warn(context.Background(), "stripe not configured; payment intents disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	transcriptionMetrics := metrics.NewTranscriptionMetrics(registry)

	analyticsStore := analytics.NewMemoryStore(cfg.Analytics.RecentActivityLimit)

	whisper := openai.NewClient(cfg.OpenAI)
	transcriptionService := transcription.NewService(
		whisper,
		analytics.NewRecorder(analyticsStore),
		transcriptionMetrics,
		logg,
		cfg.OpenAI,
	)

	blobStore, err := workflow.NewFSStore("")
	if err != nil {
		logg.Error(context.Background(), "failed to prepare upload storage", err)
		os.Exit(1)
	}

	shim := conversion.NewShim()
	workflowService, err := workflow.NewService(
		workflow.NewRepository(dbClient.DB()),
		blobStore,
		duration.NewEstimator(duration.NewContainerProber(), cfg.Media.ProbeTimeout),
		pricing.NewCalculator(cfg.Pricing),
		shim,
		transcriptionService,
		logg,
		cfg.Media,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create workflow service", err)
		os.Exit(1)
	}

	paymentsService := payments.NewService(stripeWrapper, logg, cfg.Pricing)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	var dbPinger controllers.Pinger = dbClient
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbPinger,
			Redis:          redisClient,
			Workflow:       workflowService,
			Transcriber:    transcriptionService,
			Converter:      shim,
			Payments:       paymentsService,
			AnalyticsStore: analyticsStore,
			Metrics:        registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
