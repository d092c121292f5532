package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/api/handlers"
	"github.com/ggnet/ggnetd/pkg/images"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
	"github.com/ggnet/ggnetd/pkg/store"
)

// NewRouter creates and configures the chi router with all middleware and
// routes exposing the programmatic interface §6 describes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Per this system's scope, there is no authentication middleware here:
// handlers read an optional bearer token for audit attribution only
// (see pkg/api/handlers/actor.go) and never reject a request for lacking one.
//
// Routes:
//   - GET /health, /health/ready, /health/stores - unauthenticated probes
//   - POST /api/v1/sessions - start a diskless boot session
//   - POST /api/v1/sessions/{id}/stop - stop a session
//   - GET /api/v1/sessions/{id}, /api/v1/sessions, /api/v1/sessions/stats
//   - GET /api/v1/machines/{id}/boot-script, /{id}/active-session
//   - /api/v1/machines/* - machine registration CRUD
//   - /api/v1/images/* - image upload and CRUD
func NewRouter(db store.Store, orch *orchestrator.Orchestrator, imgs *images.Store, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(db)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	sessionHandler := handlers.NewSessionHandler(orch, jwtSecret)
	machineHandler := handlers.NewMachineHandler(db, orch)
	imageHandler := handlers.NewImageHandler(imgs, jwtSecret)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Start)
			r.Get("/", sessionHandler.List)
			r.Get("/stats", sessionHandler.Stats)
			r.Get("/{id}", sessionHandler.Get)
			r.Post("/{id}/stop", sessionHandler.Stop)
		})

		r.Route("/machines", func(r chi.Router) {
			r.Post("/", machineHandler.Create)
			r.Get("/", machineHandler.List)
			r.Get("/{id}", machineHandler.Get)
			r.Put("/{id}", machineHandler.Update)
			r.Delete("/{id}", machineHandler.Delete)
			r.Get("/{id}/boot-script", machineHandler.BootScript)
			r.Get("/{id}/active-session", machineHandler.ActiveSession)
		})

		r.Route("/images", func(r chi.Router) {
			r.Post("/", imageHandler.Upload)
			r.Get("/", imageHandler.List)
			r.Get("/{id}", imageHandler.Get)
			r.Put("/{id}", imageHandler.Update)
			r.Delete("/{id}", imageHandler.Delete)
		})
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyRemoteAddr, r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyDuration, duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || path == "/health/ready" || path == "/health/stores"
}
