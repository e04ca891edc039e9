package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/agency-service/internal/api/http/handlers"
	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agencies       *handlers.AgencyHandler
	Invitations    *handlers.InvitationHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/invitations/check", auth.RequireAnyRole(), cfg.Invitations.Check)

	// Company scope is decided per call by the authorization gate.
	admins := protected.Group("/companies/:companyId/agencies", auth.RequireRole(domain.RolePlatformAdmin, domain.RoleCompanyAdmin))
	admins.Post("/", cfg.Agencies.Create)
	admins.Get("/:agencyId", cfg.Agencies.Get)
	admins.Patch("/:agencyId", cfg.Agencies.Update)
	admins.Delete("/:agencyId", cfg.Agencies.Delete)
	admins.Get("/:agencyId/staff", cfg.Agencies.ListStaff)
}
