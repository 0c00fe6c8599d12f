package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/doclearn/doclearn/internal/logging"
)

// RouterConfig configures cross-cutting concerns of the router.
type RouterConfig struct {
	Secret          []byte
	AllowedOrigins  []string
	AdminRateLimit  int
	AdminRateWindow time.Duration

	// RateCounter backs the admin rate limit; nil disables it.
	RateCounter  Counter
	RateObserver RateObserver

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter wires h into a chi router.
func NewRouter(h *Handler, cfg RouterConfig, logger logging.Logger) http.Handler {
	logger = logger.With("module", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	authn := Authenticate(cfg.Secret, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/verify-email", h.verifyEmail)
			r.Post("/resend-code", h.resendCode)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
		})

		r.Get("/specializations", h.listSpecializations)

		r.Route("/users", func(r chi.Router) {
			r.Use(authn)
			r.Get("/me", h.getMe)
			r.Put("/me", h.updateMe)
			r.Post("/me/avatar-upload-url", h.avatarUploadURL)
			r.Get("/{userId}", h.getUser)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn)
			r.Use(RequireModerator(logger))

			r.Get("/users/pending-changes", h.listPending)
			r.Get("/users/{userId}/pending-changes/diff", h.pendingDiff)

			r.Group(func(r chi.Router) {
				r.Use(RateLimit(cfg.RateCounter, "admin", cfg.AdminRateLimit, cfg.AdminRateWindow, cfg.RateObserver, logger))
				r.Post("/users/{userId}/approve-changes", h.approveChanges)
				r.Post("/users/{userId}/reject-changes", h.rejectChanges)
				r.Post("/users/{userId}/approve-specific-fields", h.approveSpecificFields)
				r.Post("/users/{userId}/ban", h.banUser)
				r.Post("/users/{userId}/unban", h.unbanUser)
				r.Post("/users/{userId}/warning", h.warnUser)
			})
		})
	})

	return r
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
