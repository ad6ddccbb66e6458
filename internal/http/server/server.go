package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"docconv/internal/artifacts"
	"docconv/internal/config"
	"docconv/internal/http/handlers"
	"docconv/internal/http/middleware"
	"docconv/internal/infra/chrome"
	"docconv/internal/infra/logging"
	"docconv/internal/tokens"
)

// Deps are the collaborators of the HTTP app.
type Deps struct {
	Config config.Config
	Store  *artifacts.Store
	Runner handlers.Runner
	// Pool is nil when every render starts its own browser.
	Pool *chrome.Pool
	// Tokens is nil when API keys are not configured.
	Tokens *tokens.Cache
	// LimiterStorage backs the rate limiters; nil keeps them in memory.
	LimiterStorage fiber.Storage
}

// New creates and configures the fiber app.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             d.Config.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          ErrorHandler,
	})

	middleware.Register(app, d.Config, middleware.Options{Tokens: d.Tokens, Storage: d.LimiterStorage})
	RegisterRoutes(app, d)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Endpoint not found")
	})

	return app
}

// RegisterRoutes mounts all route handlers.
func RegisterRoutes(app *fiber.App, d Deps) {
	h := handlers.New(d.Config, d.Store, d.Runner, d.Pool)

	app.Get("/health", h.Health)
	app.Post("/convert-docx-to-pdf", middleware.RequireScope(d.Tokens, "convert"), h.Convert)
	app.Post("/convert-batch", middleware.RequireScope(d.Tokens, "batch"), h.Batch)
	app.Get("/download/:filename", middleware.RequireScope(d.Tokens, "download"), h.Download)

	app.Get("/chrome/stats", h.ChromeStats)
	app.Get("/monitor", monitor.New())
}

// ErrorHandler renders every error as {success:false, error}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else if err != nil && err.Error() != "" {
		msg = err.Error()
	}

	if code >= fiber.StatusInternalServerError {
		logging.Error("Request failed", "path", c.Path(), "status", code, "message", msg)
	} else {
		logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
