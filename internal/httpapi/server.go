package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/realtime"
)

// NewServer assembles the fiber app: middleware stack, the JSON API, the
// WebSocket upgrade endpoint and the Prometheus scrape endpoint.
func NewServer(h *Handlers, authenticator *authn.Authenticator, gateway *realtime.Gateway, logger mlog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "core",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(CORS())
	app.Use(RequestLogger(logger))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterRoutes(app, h, authenticator, gateway)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(ResponseError{Error: fe.Message})
	}

	return WithError(c, err)
}
