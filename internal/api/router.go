package api

import (
	"net/http"

	"github.com/dom/jober-auth/internal/api/handlers"
	"github.com/dom/jober-auth/internal/api/middleware"
	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(services *service.Services, rec *metrics.Recorder, cfg *config.Config, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", rec.Handler())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, cfg, logger)
	userHandler := handlers.NewUserHandler(services.User, logger)
	jobHandler := handlers.NewJobHandler(services.Job, logger)

	requireAuth := middleware.Auth(services.Guard, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPM)

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Post("/send-otp", authHandler.SendOTP)
			r.Post("/verify-otp", authHandler.VerifyOTP)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", userHandler.GetProfile)
				r.Get("/roles", userHandler.GetRoles)
				r.Post("/roles", userHandler.SelectRoles)
			})

			r.Route("/job", func(r chi.Router) {
				r.With(middleware.RequireAnyRole(services.Guard, logger)).Get("/", jobHandler.List)
				r.With(middleware.RequireRoles(services.Guard, logger, domain.RoleRecruiter)).Post("/", jobHandler.Create)
			})
		})
	})

	return r
}
