package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/phrazzld/digest-api/internal/api/middleware"
	"github.com/phrazzld/digest-api/internal/service/auth"
)

// RouterDeps are the services behind the HTTP surface.
type RouterDeps struct {
	Users         UserService
	Jobs          JobService
	Credits       CreditService
	Notifications NotificationService
	Tokens        auth.JWTService
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	authHandler := NewAuthHandler(deps.Users, logger)
	jobHandler := NewJobHandler(deps.Jobs)
	creditHandler := NewCreditHandler(deps.Credits)
	notificationHandler := NewNotificationHandler(deps.Notifications)
	authMiddleware := middleware.NewAuthMiddleware(deps.Tokens)

	r.Get("/health", healthCheck(logger))
	r.Get("/ping", healthCheck(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/token", authHandler.Token)
		r.Post("/auth/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/me", authHandler.Me)

			r.Get("/credits", creditHandler.Balance)
			r.Post("/credits/add", creditHandler.Add)

			r.Post("/jobs", jobHandler.Create)
			r.Get("/jobs", jobHandler.List)
			r.Get("/jobs/{id}", jobHandler.Get)

			r.Get("/notifications", notificationHandler.List)
			r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
		})
	})

	return r
}

func healthCheck(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	}
}
