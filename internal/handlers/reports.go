package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/raporta/internal/logging"
	"github.com/seuros/raporta/internal/middleware"
	"github.com/seuros/raporta/internal/models"
	"github.com/seuros/raporta/internal/reports"
	"github.com/seuros/raporta/internal/store"
)

// reportTimeout bounds every report query issued on behalf of a request.
const reportTimeout = 30 * time.Second

// engine is the report engine shared by every handler. Set once at startup.
var engine *reports.Engine

// SetEngine wires the report engine used by the API handlers.
func SetEngine(e *reports.Engine) {
	engine = e
}

// authorizeWebsite resolves the website_id path param and checks it against
// the request's API key. On failure the error response is already written and
// ok is false.
func authorizeWebsite(c fiber.Ctx) (uuid.UUID, bool) {
	websiteID, err := uuid.Parse(c.Params("website_id"))
	if err != nil {
		_ = c.Status(400).JSON(fiber.Map{"error": "invalid website_id"})
		return uuid.Nil, false
	}

	apiKey := middleware.GetAPIKey(c)
	if apiKey == nil {
		_ = c.Status(401).JSON(fiber.Map{"error": "unauthorized"})
		return uuid.Nil, false
	}
	if apiKey.WebsiteID != websiteID {
		_ = c.Status(403).JSON(fiber.Map{"error": "API key not authorized for this website"})
		return uuid.Nil, false
	}

	return websiteID, true
}

// reportError maps engine errors onto HTTP status codes: invalid specs are
// the caller's fault, an unreachable store is a 503, everything else a 500.
func reportError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, reports.ErrInvalidSpec):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		logging.L().Error("report store unavailable", zap.Error(err))
		return c.Status(503).JSON(fiber.Map{"error": "event store unavailable"})
	default:
		logging.L().Error("report failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "report failed"})
	}
}

// HandleFunnelReport → POST /api/websites/:website_id/reports/funnel
func HandleFunnelReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		reports.FunnelSpec
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	steps, err := engine.RunFunnel(ctx, websiteID, req.FunnelSpec, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(steps)
}

// HandleAttributionReport → POST /api/websites/:website_id/reports/attribution
func HandleAttributionReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		reports.AttributionSpec
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	result, err := engine.RunAttribution(ctx, websiteID, req.AttributionSpec, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(result)
}

// HandleChannelsReport → POST /api/websites/:website_id/reports/channels
func HandleChannelsReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	channels, err := engine.ChannelBreakdown(ctx, websiteID, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(channels)
}

// HandleStatsReport → POST /api/websites/:website_id/reports/stats
func HandleStatsReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	stats, err := engine.Stats(ctx, websiteID, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(stats)
}

// HandleUTMReport → POST /api/websites/:website_id/reports/utm
func HandleUTMReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	report, err := engine.UTM(ctx, websiteID, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(report)
}

// HandleValuesReport → POST /api/websites/:website_id/reports/values
func HandleValuesReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Field  string             `json:"field"`
		Filter reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	values, err := engine.FieldValues(ctx, websiteID, req.Field, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(values)
}

// HandleGoalReport → POST /api/websites/:website_id/reports/goal
func HandleGoalReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Step   reports.FunnelStepSpec `json:"step"`
		Filter reports.FilterSpec     `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	goal, err := engine.Goal(ctx, websiteID, req.Step, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(goal)
}

// HandleRevenueReport → POST /api/websites/:website_id/reports/revenue
func HandleRevenueReport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	var req struct {
		Currency string             `json:"currency"`
		Filter   reports.FilterSpec `json:"filter"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	report, err := engine.Revenue(ctx, websiteID, req.Currency, req.Filter)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(report)
}

// HandleActiveVisitors → GET /api/websites/:website_id/reports/active
func HandleActiveVisitors(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	visitors, err := engine.ActiveVisitors(ctx, websiteID)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(fiber.Map{"visitors": visitors})
}

// HandleDateRange → GET /api/websites/:website_id/reports/daterange
func HandleDateRange(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	dates, err := engine.WebsiteDateRange(ctx, websiteID)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(dates)
}

// HandleEventsExport → POST /api/websites/:website_id/reports/events
// Raw event listing needs the export scope on top of stats.
func HandleEventsExport(c fiber.Ctx) error {
	websiteID, ok := authorizeWebsite(c)
	if !ok {
		return nil
	}

	apiKey := middleware.GetAPIKey(c)
	if !apiKey.HasScope(models.ScopeExport) {
		return c.Status(403).JSON(fiber.Map{"error": "API key does not have export permission"})
	}

	var req struct {
		Filter reports.FilterSpec `json:"filter"`
		Page   store.Page         `json:"page"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	rows, info, err := engine.ListEvents(ctx, websiteID, req.Filter, req.Page)
	if err != nil {
		return reportError(c, err)
	}
	return c.JSON(fiber.Map{"events": rows, "page": info})
}
