package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/mlog"
)

const localsPrincipal = "principal"

// CorrelationID attaches a request id to every response, falling back to
// uuid generation when requestid's default generator is bypassed.
func CorrelationID() fiber.Handler {
	return requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	})
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Authorization, Content-Type",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	})
}

// RequestLogger logs one line per request at completion, grounded on the
// teacher's mlog-in-middleware pattern.
func RequestLogger(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		logger.Infof("http: %s %s -> %d (request_id=%s)", c.Method(), c.Path(), c.Response().StatusCode(), c.Locals(requestid.ConfigDefault.ContextKey))

		return err
	}
}

// RequireAuth authenticates the bearer API key and stores the resolved
// Principal in locals; handlers that need Authenticated-only access rely
// on this running first.
func RequireAuth(authenticator *authn.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := extractBearer(c)

		principal, err := authenticator.Authenticate(c.Context(), key)
		if err != nil {
			return WithError(c, err)
		}

		c.Locals(localsPrincipal, principal)

		return c.Next()
	}
}

// OptionalAuth resolves a Principal when credentials are present but does
// not fail the request when they are absent, so bootstrap-exception
// handlers can tell "no credentials" apart from "bad credentials".
func OptionalAuth(authenticator *authn.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := extractBearer(c)
		if key == "" {
			return c.Next()
		}

		principal, err := authenticator.Authenticate(c.Context(), key)
		if err != nil {
			return WithError(c, err)
		}

		c.Locals(localsPrincipal, principal)

		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	hdr := c.Get("Authorization")
	const prefix = "Bearer "

	if len(hdr) > len(prefix) && hdr[:len(prefix)] == prefix {
		return hdr[len(prefix):]
	}

	return ""
}

func principalFromLocals(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(localsPrincipal).(*auth.Principal)
	return p
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	p := principalFromLocals(c)
	if p == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}

	return p, nil
}
