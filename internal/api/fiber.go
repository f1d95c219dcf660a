// Package api builds the Fiber application that serves the REST and GraphQL routes.
package api

import (
	"errors"
	"time"

	"github.com/ebuddy/user-admin-backend/model"
	"github.com/ebuddy/user-admin-backend/restapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Config holds the HTTP settings of the app
type Config struct {
	FrontendURL string
	// DisableRequestLog turns off the access log middleware
	DisableRequestLog bool
}

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(cfg Config, deps restapi.Dependencies, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "user-admin-backend API v1.0",
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ReadTimeout:  30 * time.Second,
		ErrorHandler: errorHandler(log),
		// Params and headers outlive the request in audit entries.
		Immutable: true,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(helmet.New())
	app.Use(noCache)

	origin := cfg.FrontendURL
	if origin == "" {
		origin = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origin,
		AllowHeaders:     "Content-Type, Authorization",
		AllowCredentials: origin != "*",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
	}))

	if !cfg.DisableRequestLog {
		app.Use(logger.New())
	}

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, deps)

	return app
}

// noCache stops browsers and proxies from caching API responses
func noCache(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set("Surrogate-Control", "no-store")
	return c.Next()
}

// errorHandler renders unhandled errors in the error envelope. Only fiber's
// own errors keep their message; everything else becomes a bare 500.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("Unhandled request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(code).JSON(model.Failure(message, code))
	}
}
