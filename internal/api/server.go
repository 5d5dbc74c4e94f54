package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/freshtrack/internal/api/handler"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. gatherer backs /metrics; nil uses the default registry.
func NewRouter(d handler.Deps, gatherer prometheus.Gatherer) *chi.Mux {
	cfg := d.Config
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Logger != nil {
		r.Use(LoggingMiddleware(d.Logger))
	}
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins: cfg.CORSAllowOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control", handler.RecipientHeader},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(d)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RecipientMiddleware(cfg.RecipientID))

		// Recipients
		r.Post("/recipients/me", h.RegisterRecipient)
		r.Delete("/recipients/me", h.DeleteRecipient)
		r.Put("/recipients/me/push-token", h.SetPushToken)

		// Items
		r.Get("/items", h.ListItems)
		r.Post("/items", h.CreateItems)
		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Patch("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
			r.Post("/label-scan", h.ScanLabel)
			if d.History != nil {
				r.Get("/notifications", h.ItemNotifications)
			}
		})

		// Extraction
		r.Post("/receipts/scan", h.ScanReceipt)

		// Notifications
		r.Post("/notifications/run", h.RunNotifications)
		r.Get("/notifications/schedule", h.NotificationSchedule)
	})

	return r
}
