package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/realtime"
)

// RegisterRoutes wires the full HTTP surface (spec.md §6) onto app.
func RegisterRoutes(app *fiber.App, h *Handlers, authenticator *authn.Authenticator, gateway *realtime.Gateway) {
	app.Get("/health", healthHandler)
	app.Get("/version", versionHandler)

	api := app.Group("/api")

	api.Get("/bootstrap/status", h.BootstrapStatus)

	api.Post("/users", OptionalAuth(authenticator), h.RegisterUser)
	api.Post("/tenants", RequireAuth(authenticator), h.CreateTenant)
	api.Post("/users/:uid/apikeys", OptionalAuth(authenticator), h.GenerateApiKey)
	api.Delete("/users/:uid/apikeys/:kid", RequireAuth(authenticator), h.RevokeApiKey)
	api.Post("/users/:uid/change-password", RequireAuth(authenticator), h.ChangePassword)

	api.Get("/tenants/list", RequireAuth(authenticator), h.ListTenants)
	api.Get("/users/list", RequireAuth(authenticator), h.ListUsers)
	api.Get("/users/self", RequireAuth(authenticator), h.Self)

	api.Get("/ws", gateway.Upgrade)
}

func healthHandler(c *fiber.Ctx) error {
	return OK(c, fiber.Map{"status": "ok"})
}

var BuildVersion = "dev"

func versionHandler(c *fiber.Ctx) error {
	return OK(c, fiber.Map{"version": BuildVersion})
}
