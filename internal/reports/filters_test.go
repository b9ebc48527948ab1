package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow() (time.Time, time.Time) {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
}

func TestComposeFiltersDateRangeOnly(t *testing.T) {
	start, end := testWindow()
	set, err := ComposeFilters(FilterSpec{StartDate: start, EndDate: end}, FilterOptions{})
	require.NoError(t, err)

	assert.Equal(t, " and website_event.created_at >= ? and website_event.created_at < ?", set.Where.SQL)
	assert.Equal(t, []interface{}{start, end}, set.Where.Args)
	assert.True(t, set.Join.Empty())
	assert.True(t, set.Cohort.Empty())
	assert.Equal(t, start, set.Start)
	assert.Equal(t, end, set.End)
}

func TestComposeFiltersIsDeterministic(t *testing.T) {
	start, end := testWindow()
	cohort := uuid.New()
	spec := FilterSpec{
		StartDate: start,
		EndDate:   end,
		CohortID:  &cohort,
		Search:    "pricing,docs",
		Filters: []FieldFilter{
			{Field: "country", Op: OpEquals, Value: "DE"},
			{Field: "path", Op: OpContains, Value: "/blog"},
		},
	}
	opts := FilterOptions{SearchColumn: "path"}

	first, err := ComposeFilters(spec, opts)
	require.NoError(t, err)
	second, err := ComposeFilters(spec, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Where.SQL, second.Where.SQL)
	assert.Equal(t, first.Where.Args, second.Where.Args)
	assert.Equal(t, first.Join, second.Join)
	assert.Equal(t, first.Cohort, second.Cohort)
}

func TestComposeFiltersBindsEveryValue(t *testing.T) {
	start, end := testWindow()
	spec := FilterSpec{
		StartDate: start,
		EndDate:   end,
		Filters: []FieldFilter{
			{Field: "path", Op: OpEquals, Value: "/pricing"},
			{Field: "browser", Op: OpContains, Value: "fire'); drop table session;--"},
		},
	}
	set, err := ComposeFilters(spec, FilterOptions{})
	require.NoError(t, err)

	assert.NotContains(t, set.Where.SQL, "/pricing")
	assert.NotContains(t, set.Where.SQL, "drop table")
	assert.Contains(t, set.Where.SQL, "website_event.url_path = ?")
	assert.Contains(t, set.Where.SQL, "session.browser ilike ?")
	assert.Equal(t, []interface{}{start, end, "/pricing", "%fire'); drop table session;--%"}, set.Where.Args)
}

func TestComposeFiltersSessionJoin(t *testing.T) {
	start, end := testWindow()

	set, err := ComposeFilters(FilterSpec{
		StartDate: start,
		EndDate:   end,
		Filters:   []FieldFilter{{Field: "country", Op: OpEquals, Value: "MA"}},
	}, FilterOptions{})
	require.NoError(t, err)
	assert.Contains(t, set.Join.SQL, "inner join session")

	set, err = ComposeFilters(FilterSpec{StartDate: start, EndDate: end}, FilterOptions{JoinSession: true})
	require.NoError(t, err)
	assert.Contains(t, set.Join.SQL, "inner join session")
}

func TestComposeFiltersCohortFragment(t *testing.T) {
	start, end := testWindow()
	cohort := uuid.New()

	set, err := ComposeFilters(FilterSpec{StartDate: start, EndDate: end, CohortID: &cohort}, FilterOptions{})
	require.NoError(t, err)
	assert.Contains(t, set.Cohort.SQL, "cohort_session.cohort_id = ?")
	assert.Equal(t, []interface{}{cohort}, set.Cohort.Args)
}

func TestComposeFiltersSearchDisjunction(t *testing.T) {
	start, end := testWindow()
	spec := FilterSpec{StartDate: start, EndDate: end, Search: "a, b,c , ,d,e,f,g"}

	set, err := ComposeFilters(spec, FilterOptions{SearchColumn: "path"})
	require.NoError(t, err)

	// capped at 5 values, blanks dropped
	assert.Contains(t, set.Where.SQL, "(website_event.url_path ilike ? or website_event.url_path ilike ? or website_event.url_path ilike ? or website_event.url_path ilike ? or website_event.url_path ilike ?)")
	assert.Equal(t, []interface{}{start, end, "%a%", "%b%", "%c%", "%d%", "%e%"}, set.Where.Args)
}

func TestComposeFiltersSingleSearchTerm(t *testing.T) {
	start, end := testWindow()
	set, err := ComposeFilters(FilterSpec{StartDate: start, EndDate: end, Search: "checkout"},
		FilterOptions{SearchColumn: "path"})
	require.NoError(t, err)

	assert.Contains(t, set.Where.SQL, "(website_event.url_path ilike ?)")
	assert.Equal(t, []interface{}{start, end, "%checkout%"}, set.Where.Args)
}

func TestComposeFiltersEventTypePredicate(t *testing.T) {
	start, end := testWindow()
	set, err := ComposeFilters(FilterSpec{StartDate: start, EndDate: end},
		FilterOptions{EventType: EventTypePageview})
	require.NoError(t, err)

	assert.Contains(t, set.Where.SQL, "website_event.event_type = ?")
	assert.Equal(t, []interface{}{start, end, EventTypePageview}, set.Where.Args)
}

func TestComposeFiltersRejectsUnknownField(t *testing.T) {
	start, end := testWindow()
	_, err := ComposeFilters(FilterSpec{
		StartDate: start,
		EndDate:   end,
		Filters:   []FieldFilter{{Field: "password", Op: OpEquals, Value: "x"}},
	}, FilterOptions{})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestComposeFiltersRejectsUnknownOperator(t *testing.T) {
	start, end := testWindow()
	_, err := ComposeFilters(FilterSpec{
		StartDate: start,
		EndDate:   end,
		Filters:   []FieldFilter{{Field: "path", Op: "regex", Value: ".*"}},
	}, FilterOptions{})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestComposeFiltersNegatedOperators(t *testing.T) {
	start, end := testWindow()
	set, err := ComposeFilters(FilterSpec{
		StartDate: start,
		EndDate:   end,
		Filters: []FieldFilter{
			{Field: "referrer", Op: OpNotEquals, Value: "example.com"},
			{Field: "path", Op: OpDoesNotContain, Value: "/admin"},
		},
	}, FilterOptions{})
	require.NoError(t, err)

	assert.Contains(t, set.Where.SQL, "website_event.referrer_domain != ?")
	assert.Contains(t, set.Where.SQL, "website_event.url_path not ilike ?")
	assert.Equal(t, []interface{}{start, end, "example.com", "%/admin%"}, set.Where.Args)
}
