package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lgc13/gateway-service-example/internal/api/http/handlers"
	"github.com/lgc13/gateway-service-example/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Proxy          *handlers.ProxyHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/lucas", func(c *fiber.Ctx) error {
		return c.SendString("Hi lucas")
	})

	app.Post("/users", cfg.Users.Create)
	app.Post("/authenticate", cfg.Auth.Authenticate)

	// Everything under /api is forwarded to the backend, but only for
	// callers presenting a valid bearer token.
	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	api.All("/*", cfg.Proxy.Forward)
}
