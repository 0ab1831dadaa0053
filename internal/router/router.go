package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/latemark-go-api/internal/config"
	"github.com/noah-isme/latemark-go-api/internal/handler"
	"github.com/noah-isme/latemark-go-api/internal/middleware"
	"github.com/noah-isme/latemark-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	LedgerHandler   *handler.LedgerHandler
	ReportHandler   *handler.ReportHandler
	AuditHandler    *handler.AuditHandler
	InsightsHandler *handler.InsightsHandler
	EvidenceHandler *handler.EvidenceHandler
	FeedHandler     *handler.FeedHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	facultyOnly := middleware.RequireRole("faculty", "admin")

	// Ledger mutations
	if deps.LedgerHandler != nil {
		ledger := app.Group("/api/v2/ledger", jwtMiddleware, facultyOnly,
			middleware.RateLimit("ledger", 30, time.Minute))
		deps.LedgerHandler.Register(ledger)
	}

	// Derived reports
	if deps.ReportHandler != nil {
		reports := app.Group("/api/v2/reports", jwtMiddleware, facultyOnly)
		deps.ReportHandler.Register(reports)
	}

	// Audit trail, admin only
	if deps.AuditHandler != nil {
		audit := app.Group("/api/v2/audit", jwtMiddleware, middleware.RequireRole("admin"))
		deps.AuditHandler.Register(audit)
	}

	// Risk insights
	if deps.InsightsHandler != nil {
		insights := app.Group("/api/v2/insights", jwtMiddleware, facultyOnly)
		deps.InsightsHandler.Register(insights)
	}

	// Evidence photo uploads
	if deps.EvidenceHandler != nil {
		evidence := app.Group("/api/v2/evidence", jwtMiddleware, facultyOnly,
			middleware.RateLimit("evidence", 10, time.Minute))
		deps.EvidenceHandler.Register(evidence)
	}

	// Live websocket feed
	if deps.FeedHandler != nil {
		feed := app.Group("/ws", jwtMiddleware, facultyOnly)
		deps.FeedHandler.Register(feed)
	}
}
