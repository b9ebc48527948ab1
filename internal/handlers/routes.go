package handlers

import (
	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/raporta/internal/database"
	"github.com/seuros/raporta/internal/logging"
	"github.com/seuros/raporta/internal/middleware"
)

// RegisterRoutes mounts the reporting API on the app. Every report route sits
// behind the API key middleware; health is open.
func RegisterRoutes(app *fiber.App) {
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logging.L(),
	}))

	app.Get("/health", HandleHealth)

	api := app.Group("/api/websites/:website_id/reports", middleware.APIKeyAuth)
	api.Post("/funnel", HandleFunnelReport)
	api.Post("/attribution", HandleAttributionReport)
	api.Post("/channels", HandleChannelsReport)
	api.Post("/stats", HandleStatsReport)
	api.Post("/utm", HandleUTMReport)
	api.Post("/values", HandleValuesReport)
	api.Post("/goal", HandleGoalReport)
	api.Post("/revenue", HandleRevenueReport)
	api.Post("/events", HandleEventsExport)
	api.Get("/active", HandleActiveVisitors)
	api.Get("/daterange", HandleDateRange)
}

// HandleHealth → GET /health
func HandleHealth(c fiber.Ctx) error {
	if database.DB != nil {
		if err := database.DB.Ping(); err != nil {
			return c.Status(503).JSON(fiber.Map{"status": "degraded"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
