package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transcribefree/backend/api/controllers"
	"github.com/transcribefree/backend/api/middleware"
	"github.com/transcribefree/backend/internal/analytics"
	"github.com/transcribefree/backend/internal/payments"
	"github.com/transcribefree/backend/internal/workflow"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/logger"
	pkgredis "github.com/transcribefree/backend/pkg/redis"
)

// RouterParams carries the wired services for the HTTP surface. Redis and
// the metrics registry are optional; routes depending on them degrade to
// pass-through when absent.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       controllers.Pinger
	Redis          *pkgredis.Client
	Workflow       workflow.Service
	Transcriber    controllers.Transcriber
	Converter      controllers.Converter
	Payments       *payments.Service
	AnalyticsStore analytics.Store
	Metrics        *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)
	if p.Redis != nil {
		r.Use(middleware.Idempotency(p.Redis, p.Logger))
	}

	var redisPinger controllers.Pinger
	if p.Redis != nil {
		redisPinger = p.Redis
	}

	transcribeLimit := passthrough
	processLimit := passthrough
	if p.Redis != nil {
		transcribePolicy := middleware.NewRateLimitPolicy(
			"transcribe",
			p.Config.RateLimit.TranscribeWindow,
			p.Config.RateLimit.TranscribeIPLimit,
		)
		processPolicy := middleware.NewRateLimitPolicy(
			"process",
			p.Config.RateLimit.ProcessWindow,
			p.Config.RateLimit.ProcessIPLimit,
		)
		transcribeLimit = middleware.RateLimit(transcribePolicy, p.Redis, p.Logger)
		processLimit = middleware.RateLimit(processPolicy, p.Redis, p.Logger)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DBPinger, redisPinger))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(transcribeLimit).Post("/transcribe", controllers.Transcribe(p.Transcriber, p.Converter, p.Logger, p.Config.Media))
		r.Post("/payment-intents", controllers.CreatePaymentIntent(p.Payments, p.Logger))

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/", controllers.AnalyticsSnapshot(p.AnalyticsStore))
			r.Post("/", controllers.AnalyticsIngest(p.AnalyticsStore, p.Logger))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.CreateSession(p.Workflow, p.Logger))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.GetSession(p.Workflow, p.Logger))
				r.With(transcribeLimit).Post("/upload", controllers.UploadSessionFile(p.Workflow, p.Logger, p.Config.Media))
				r.Post("/preview", controllers.PreviewSession(p.Workflow, p.Logger))
				r.Post("/continue", controllers.ContinueSession(p.Workflow, p.Logger))
				r.Post("/payment", controllers.ConfirmSessionPayment(p.Workflow, p.Logger))
				r.With(processLimit).Post("/process", controllers.ProcessSession(p.Workflow, p.Logger))
				r.Post("/progress", controllers.ReportSessionProgress(p.Workflow, p.Logger))
				r.Delete("/file", controllers.RemoveSessionFile(p.Workflow, p.Logger))
				r.Get("/export", controllers.ExportSession(p.Workflow, p.Logger))
			})
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
