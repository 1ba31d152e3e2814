package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/objects"
)

// NewRouter creates the intake and badge HTTP router
func NewRouter(cfg *config.Config, db *gorm.DB, objectStore *objects.Store) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS: badges are meant to be embedded anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "User-Agent"},
		MaxAge:         300,
	}))

	// Ping intake. Rate-limited per remote IP so a runaway client cannot
	// starve the intake of everyone else.
	limiter := NewRateLimiter(rate.Limit(10), 30)
	go limiter.CleanupOldLimiters()

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))

		r.HandleFunc("/ping/{code}", HandlePing(db, objectStore, ""))
		r.HandleFunc("/ping/{code}/start", HandlePing(db, objectStore, "start"))
		r.HandleFunc("/ping/{code}/fail", HandlePing(db, objectStore, "fail"))
		r.HandleFunc("/ping/{code}/log", HandlePing(db, objectStore, "log"))
		r.HandleFunc("/ping/{code}/{exitStatus:[0-9]+}", HandlePingExitStatus(db, objectStore))
	})

	// Read-only surfaces (no rate limit)
	r.Get("/badge/{fingerprint}", HandleBadge(db))
	r.Get("/api/checks/{code}/flips", HandleFlipHistory(db))

	// Operator actions
	r.Post("/api/checks/{code}/resume", HandleResume(db))
	r.Post("/api/checks/{code}/pause", HandlePause(db))
	r.Delete("/api/checks/{code}", HandleDeleteCheck(db, objectStore))

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
