package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	health http.HandlerFunc,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authHandler.Register)
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/revoke", authHandler.Revoke)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles("Admin")).Post("/role", authHandler.AddRole)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		// Role-gated demo endpoint; access tokens are validated
		// statelessly, no credential-store round trip.
		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles("Admin")).
			Get("/secured", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"success":true,"data":"Hello from the secured endpoint"}`))
			})
	})

	return r
}
