package reports

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/raporta/internal/store"
)

func TestChannelBreakdownDropsUnclassified(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("paidAds").
		WithArgs(websiteID, start, end, EventTypePageview).
		WillReturnRows(sqlmock.NewRows([]string{"name", "visitors", "visits", "pageviews"}).
			AddRow("organicSearch", 120, 150, 400).
			AddRow("", 30, 31, 60).
			AddRow("direct", 90, 95, 200))

	metrics, err := e.ChannelBreakdown(context.Background(), websiteID, FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, "organicSearch", metrics[0].Channel)
	assert.Equal(t, "direct", metrics[1].Channel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsAggregatesVisits(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("bounces").
		WithArgs(websiteID, start, end, EventTypePageview).
		WillReturnRows(sqlmock.NewRows([]string{"pageviews", "visitors", "visits", "bounces", "totaltime"}).
			AddRow(500, 80, 120, 40, 36000.0))

	stats, err := e.Stats(context.Background(), websiteID, FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, int64(500), stats.Pageviews)
	assert.Equal(t, int64(80), stats.Visitors)
	assert.Equal(t, int64(120), stats.Visits)
	assert.Equal(t, int64(40), stats.Bounces)
	assert.Equal(t, float64(36000), stats.TotalTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUTMFansOutDimensions(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("website_event.utm_source !=").
		WithArgs(websiteID, start, end, EventTypePageview).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("newsletter", 40.0))
	mock.ExpectQuery("website_event.utm_medium !=").
		WithArgs(websiteID, start, end, EventTypePageview).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("email", 40.0))
	mock.ExpectQuery("website_event.utm_campaign !=").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))
	mock.ExpectQuery("website_event.utm_content !=").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))
	mock.ExpectQuery("website_event.utm_term !=").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))

	report, err := e.UTM(context.Background(), websiteID, FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, []NameValue{{Name: "newsletter", Value: 40}}, report.Source)
	assert.Equal(t, []NameValue{{Name: "email", Value: 40}}, report.Medium)
	assert.Empty(t, report.Campaign)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldValuesRejectsUnknownField(t *testing.T) {
	e, _ := newMockEngine(t)
	start, end := testWindow()

	_, err := e.FieldValues(context.Background(), uuid.New(), "key_hash", FilterSpec{StartDate: start, EndDate: end})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestFieldValuesExcludesSelfReferrals(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("referrer_domain != session.hostname").
		WithArgs(websiteID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("github.com", 15.0))

	values, err := e.FieldValues(context.Background(), websiteID, "referrer", FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, []NameValue{{Name: "github.com", Value: 15}}, values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldValuesWithSearch(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("url_path ilike").
		WithArgs(websiteID, start, end, "%doc%").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("/docs", 9.0))

	values, err := e.FieldValues(context.Background(), websiteID, "path",
		FilterSpec{StartDate: start, EndDate: end, Search: "doc"})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "/docs", values[0].Name)
}

func TestGoalComputesRate(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("conversions").
		WithArgs("purchase", websiteID, start, end, EventTypeCustom).
		WillReturnRows(sqlmock.NewRows([]string{"conversions", "sessions"}).AddRow(9, 30))

	goal, err := e.Goal(context.Background(), websiteID,
		FunnelStepSpec{Type: StepTypeEvent, Value: "purchase"},
		FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, int64(9), goal.Conversions)
	assert.Equal(t, int64(30), goal.Sessions)
	assert.InDelta(t, 0.3, goal.Rate, 1e-9)
}

func TestGoalZeroSessionsRateIsZero(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("conversions").
		WithArgs("/thanks", websiteID, start, end, EventTypePageview).
		WillReturnRows(sqlmock.NewRows([]string{"conversions", "sessions"}).AddRow(0, 0))

	goal, err := e.Goal(context.Background(), websiteID,
		FunnelStepSpec{Type: StepTypePath, Value: "/thanks"},
		FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, float64(0), goal.Rate)
}

func TestRevenueRejectsBadCurrency(t *testing.T) {
	e, _ := newMockEngine(t)
	start, end := testWindow()

	_, err := e.Revenue(context.Background(), uuid.New(), "dollars", FilterSpec{StartDate: start, EndDate: end})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestRevenueReportAggregates(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)
	websiteID := uuid.New()
	start, end := testWindow()

	mock.ExpectQuery("unique_count").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count", "unique_count"}).AddRow(250.0, 10, 8))
	mock.ExpectQuery("revenue.event_name").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("purchase", 250.0))
	mock.ExpectQuery("session.country").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("US", 180.0).AddRow("ZZ", 70.0))

	report, err := e.Revenue(context.Background(), websiteID, "usd", FilterSpec{StartDate: start, EndDate: end})
	require.NoError(t, err)

	assert.Equal(t, "USD", report.Currency)
	assert.Equal(t, float64(250), report.Totals.Sum)
	assert.Equal(t, int64(10), report.Totals.Count)
	assert.Equal(t, int64(8), report.Totals.UniqueCount)
	assert.InDelta(t, 25.0, report.Totals.Average, 1e-9)
	assert.Contains(t, report.ByCountry[0].Name, "United States")
	// unknown ISO codes pass through unchanged
	assert.Equal(t, "ZZ", report.ByCountry[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveVisitors(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()

	mock.ExpectQuery("count\\(distinct session_id\\)").
		WillReturnRows(sqlmock.NewRows([]string{"visitors"}).AddRow(12))

	n, err := e.ActiveVisitors(context.Background(), websiteID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestWebsiteDateRangeEmpty(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()

	mock.ExpectQuery("min\\(created_at\\)").
		WillReturnRows(sqlmock.NewRows([]string{"min_date", "max_date"}).AddRow(nil, nil))

	r, err := e.WebsiteDateRange(context.Background(), websiteID)
	require.NoError(t, err)
	assert.Nil(t, r.Min)
	assert.Nil(t, r.Max)
}

func TestListEventsPages(t *testing.T) {
	e, mock := newMockEngine(t)
	websiteID := uuid.New()
	start, end := testWindow()
	eventID := uuid.New()
	sessionID := uuid.New()

	mock.ExpectQuery("order by website_event.created_at desc LIMIT").
		WithArgs(websiteID, start, end, 25, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"event_id", "session_id", "created_at", "event_type", "url_path", "referrer_domain", "event_name",
		}).AddRow(eventID, sessionID, start, 1, "/pricing", "google.com", ""))

	rows, info, err := e.ListEvents(context.Background(), websiteID,
		FilterSpec{StartDate: start, EndDate: end}, store.Page{Limit: 25, Offset: 50})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/pricing", rows[0].URLPath)
	assert.Equal(t, 25, info.Limit)
	assert.Equal(t, 50, info.Offset)
	assert.Equal(t, 1, info.Count)
	require.NoError(t, mock.ExpectationsWereMet())
}
