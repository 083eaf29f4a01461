package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/go-tracker/internal/api/handlers"
	"github.com/hugh/go-tracker/internal/api/middleware"
	"github.com/hugh/go-tracker/internal/auth"
	"github.com/hugh/go-tracker/internal/authz"
	"github.com/hugh/go-tracker/internal/invites"
	"github.com/hugh/go-tracker/internal/issues"
	"github.com/hugh/go-tracker/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	InviteService  *invites.Service
	IssueService   *issues.Service
	Limiter        *ratelimit.Limiter
	AllowedOrigins []string // CORS allowed origins
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	resolver := authz.NewResolver(cfg.DB)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	workspaceHandler := handlers.NewWorkspaceHandler(cfg.DB, resolver)
	memberHandler := handlers.NewMemberHandler(cfg.DB, resolver)
	invitationHandler := handlers.NewInvitationHandler(cfg.DB, resolver, cfg.InviteService, cfg.AuthService)
	teamHandler := handlers.NewTeamHandler(cfg.DB, resolver)
	projectHandler := handlers.NewProjectHandler(cfg.DB, resolver)
	issueHandler := handlers.NewIssueHandler(cfg.DB, resolver, cfg.IssueService)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Public invitation endpoints: the token is the credential.
		r.Get("/invitations/{token}", invitationHandler.Lookup)
		r.Post("/invitations/{token}/decline", invitationHandler.DeclineByToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				userID := middleware.GetUserID(r.Context())
				user, err := cfg.AuthService.GetUserByID(r.Context(), userID)
				if err != nil {
					http.Error(w, "User not found", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, user)
			})

			// Accepting needs a session so the email match can be verified.
			r.Post("/invitations/{token}/accept", invitationHandler.AcceptByToken)
			r.Post("/invitations/id/{id}/accept", invitationHandler.AcceptByID)

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", workspaceHandler.List)
				r.Post("/", workspaceHandler.Create)

				r.Route("/{slug}", func(r chi.Router) {
					r.Get("/", workspaceHandler.Get)
					r.With(middleware.RateLimitAction(cfg.Limiter, "workspace_update", middleware.LimitWorkspaceUpdate)).
						Put("/", workspaceHandler.Update)
					r.With(middleware.RateLimitAction(cfg.Limiter, "workspace_delete", middleware.LimitWorkspaceDelete)).
						Delete("/", workspaceHandler.Delete)

					r.Get("/members", memberHandler.List)
					r.Put("/members/{userID}", memberHandler.UpdateRole)
					r.Delete("/members/{userID}", memberHandler.Remove)
					r.Post("/leave", memberHandler.Leave)

					r.With(middleware.RateLimitAction(cfg.Limiter, "invite", middleware.LimitInvite)).
						Post("/invitations", invitationHandler.Create)
					r.Get("/invitations", invitationHandler.List)
					r.Delete("/invitations/{id}", invitationHandler.Revoke)

					r.Route("/teams", func(r chi.Router) {
						r.Get("/", teamHandler.List)
						r.Post("/", teamHandler.Create)
						r.Put("/{teamIdentifier}", teamHandler.Update)
						r.Delete("/{teamIdentifier}", teamHandler.Delete)
						r.Post("/{teamIdentifier}/members", teamHandler.AddMember)
						r.Delete("/{teamIdentifier}/members/{userID}", teamHandler.RemoveMember)
					})

					r.Route("/projects", func(r chi.Router) {
						r.Get("/", projectHandler.List)
						r.Post("/", projectHandler.Create)

						r.Route("/{identifier}", func(r chi.Router) {
							r.Get("/", projectHandler.Get)
							r.Put("/", projectHandler.Update)
							r.Post("/teams", projectHandler.AttachTeam)
							r.Delete("/teams/{teamIdentifier}", projectHandler.DetachTeam)

							r.Route("/issues", func(r chi.Router) {
								r.Get("/", issueHandler.List)
								r.Post("/", issueHandler.Create)
								r.Get("/{number}", issueHandler.Get)
								r.Put("/{number}", issueHandler.Update)
								r.Delete("/{number}", issueHandler.Delete)
							})
						})
					})
				})
			})
		})
	})

	return &Router{r}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
