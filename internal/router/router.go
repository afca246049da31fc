package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/config"
	"github.com/noah-isme/gema-activity-log/internal/handler"
	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler        *handler.ActivityHandler
	ActivityStreamHandler  *handler.ActivityStreamHandler
	ActivitySummaryHandler *handler.ActivitySummaryHandler
	ProductHandler         *handler.ProductHandler
	ContactHandler         *handler.ContactHandler
	UserHandler            *handler.UserHandler
	JWTMiddleware          fiber.Handler
	OptionalJWTMiddleware  fiber.Handler
	HealthProbes           []handler.HealthProbe
	Logger                 zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.Logger))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	noop := func(c *fiber.Ctx) error { return c.Next() }
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = noop
	}
	optionalJWT := deps.OptionalJWTMiddleware
	if optionalJWT == nil {
		optionalJWT = noop
	}

	admin := []fiber.Handler{jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin)}

	if deps.ActivityHandler != nil {
		activities := api.Group("/activities", admin...)
		// Static routes must precede the parameterised record routes.
		if deps.ActivityStreamHandler != nil && cfg.RealtimeEnabled {
			deps.ActivityStreamHandler.Register(activities)
		}
		if deps.ActivitySummaryHandler != nil {
			deps.ActivitySummaryHandler.Register(activities)
		}
		deps.ActivityHandler.Register(activities)
		deps.ActivityHandler.RegisterEntityRoutes(api.Group("/entities", admin...))
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", admin...))
	}

	if deps.ProductHandler != nil {
		products := api.Group("/products", optionalJWT, middleware.RateLimit("products", 60, time.Minute))
		deps.ProductHandler.Register(products)
	}

	if deps.ContactHandler != nil {
		contact := api.Group("/contact", optionalJWT, middleware.RateLimit("contact", 5, time.Minute))
		deps.ContactHandler.Register(contact)
	}
}
