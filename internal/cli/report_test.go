package cli

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/raporta/internal/models"
	"github.com/seuros/raporta/internal/reports"
)

func stubWebsiteLookup(t *testing.T, fn func(ctx context.Context, domain string) (*models.Website, error)) {
	t.Helper()
	original := fetchWebsiteByDomain
	fetchWebsiteByDomain = fn
	t.Cleanup(func() {
		fetchWebsiteByDomain = original
	})
}

func stubFunnelFetcher(t *testing.T, fn func(context.Context, uuid.UUID, reports.FunnelSpec, reports.FilterSpec) ([]reports.FunnelStep, error)) {
	t.Helper()
	original := fetchFunnel
	fetchFunnel = fn
	t.Cleanup(func() {
		fetchFunnel = original
	})
}

func stubChannelsFetcher(t *testing.T, fn func(context.Context, uuid.UUID, reports.FilterSpec) ([]reports.ChannelMetric, error)) {
	t.Helper()
	original := fetchChannels
	fetchChannels = fn
	t.Cleanup(func() {
		fetchChannels = original
	})
}

func stubStatsFetcher(t *testing.T, fn func(context.Context, uuid.UUID, reports.FilterSpec) (*reports.WebsiteStats, error)) {
	t.Helper()
	original := fetchStats
	fetchStats = fn
	t.Cleanup(func() {
		fetchStats = original
	})
}

func stubAttributionFetcher(t *testing.T, fn func(context.Context, uuid.UUID, reports.AttributionSpec, reports.FilterSpec) (*reports.AttributionResult, error)) {
	t.Helper()
	original := fetchAttribution
	fetchAttribution = fn
	t.Cleanup(func() {
		fetchAttribution = original
	})
}

func TestParseStep(t *testing.T) {
	assert.Equal(t, reports.FunnelStepSpec{Type: "path", Value: "/pricing"}, parseStep("/pricing"))
	assert.Equal(t, reports.FunnelStepSpec{Type: "path", Value: "/pricing"}, parseStep("path:/pricing"))
	assert.Equal(t, reports.FunnelStepSpec{Type: "event", Value: "signup"}, parseStep("event:signup"))
}

func TestBuildFilterDates(t *testing.T) {
	filter, err := buildFilter("", "2026-08-01", "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), filter.StartDate)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), filter.EndDate)

	_, err = buildFilter("", "yesterday", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --from date")
}

func TestRunReportFunnelTable(t *testing.T) {
	stubDB(t)
	stubConnectClose(t)

	websiteID := uuid.New()
	stubWebsiteLookup(t, func(ctx context.Context, domain string) (*models.Website, error) {
		assert.Equal(t, "example.com", domain)
		return &models.Website{WebsiteID: websiteID, Domain: domain}, nil
	})

	stubFunnelFetcher(t, func(ctx context.Context, id uuid.UUID, spec reports.FunnelSpec, filter reports.FilterSpec) ([]reports.FunnelStep, error) {
		assert.Equal(t, websiteID, id)
		assert.Equal(t, 60, spec.Window)
		require.Len(t, spec.Steps, 2)
		assert.Equal(t, "event", spec.Steps[1].Type)
		assert.Equal(t, "30d", filter.Range)
		return []reports.FunnelStep{
			{Step: 1, Type: "path", Value: "/pricing", Visitors: 200, Remaining: 1},
			{Step: 2, Type: "event", Value: "signup", Visitors: 80, Dropped: 120, Dropoff: 0.6, Remaining: 0.4},
		}, nil
	})

	output, err := captureOutput(t, func() error {
		return runReportFunnel("example.com", []string{"/pricing", "event:signup"}, 60, "30d", "", "", "table")
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Funnel for example.com")
	assert.Contains(t, output, "/pricing")
	assert.Contains(t, output, "40.0%")
}

func TestRunReportFunnelNoSteps(t *testing.T) {
	err := runReportFunnel("example.com", nil, 60, "7d", "", "", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one --step is required")
}

func TestRunReportFunnelInvalidFormat(t *testing.T) {
	err := runReportFunnel("example.com", []string{"/a"}, 60, "7d", "", "", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRunReportChannelsCSV(t *testing.T) {
	stubDB(t)
	stubConnectClose(t)

	stubWebsiteLookup(t, func(ctx context.Context, domain string) (*models.Website, error) {
		return &models.Website{WebsiteID: uuid.New(), Domain: domain}, nil
	})

	stubChannelsFetcher(t, func(ctx context.Context, id uuid.UUID, filter reports.FilterSpec) ([]reports.ChannelMetric, error) {
		return []reports.ChannelMetric{
			{Channel: "organicSearch", Visitors: 120, Visits: 150, Pageviews: 400},
			{Channel: "direct", Visitors: 90, Visits: 95, Pageviews: 200},
		}, nil
	})

	output, err := captureOutput(t, func() error {
		return runReportChannels("example.com", "7d", "", "", "csv")
	})
	require.NoError(t, err)
	assert.Contains(t, output, "channel,visitors,visits,pageviews")
	assert.Contains(t, output, "organicSearch,120,150,400")
}

func TestRunReportStatsJSON(t *testing.T) {
	stubDB(t)
	stubConnectClose(t)

	stubWebsiteLookup(t, func(ctx context.Context, domain string) (*models.Website, error) {
		return &models.Website{WebsiteID: uuid.New(), Domain: domain}, nil
	})

	stubStatsFetcher(t, func(ctx context.Context, id uuid.UUID, filter reports.FilterSpec) (*reports.WebsiteStats, error) {
		return &reports.WebsiteStats{Pageviews: 500, Visitors: 80, Visits: 120, Bounces: 30, TotalTime: 9000}, nil
	})

	output, err := captureOutput(t, func() error {
		return runReportStats("example.com", "24h", "", "", "json")
	})
	require.NoError(t, err)
	assert.Contains(t, output, `"pageviews": 500`)
	assert.Contains(t, output, `"visitors": 80`)
}

func TestRunReportAttributionTable(t *testing.T) {
	stubDB(t)
	stubConnectClose(t)

	stubWebsiteLookup(t, func(ctx context.Context, domain string) (*models.Website, error) {
		return &models.Website{WebsiteID: uuid.New(), Domain: domain}, nil
	})

	stubAttributionFetcher(t, func(ctx context.Context, id uuid.UUID, spec reports.AttributionSpec, filter reports.FilterSpec) (*reports.AttributionResult, error) {
		assert.Equal(t, "first-click", spec.Model)
		assert.Equal(t, "purchase", spec.Step.Value)
		return &reports.AttributionResult{
			Referrer: []reports.NameValue{{Name: "google.com", Value: 40}},
			PaidAds:  []reports.NameValue{{Name: "Google Ads", Value: 12}},
			Total:    reports.AttributionTotals{Pageviews: 900, Visitors: 100, Visits: 150},
		}, nil
	})

	output, err := captureOutput(t, func() error {
		return runReportAttribution("example.com", "event:purchase", "first-click", "", "30d", "", "", "table")
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Attribution for example.com")
	assert.Contains(t, output, "google.com")
	assert.Contains(t, output, "Google Ads")
	assert.Contains(t, output, "Visitors: 100")
}

func TestRunReportAttributionMissingStep(t *testing.T) {
	err := runReportAttribution("example.com", "", "first-click", "", "30d", "", "", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--step is required")
}
