package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/google/uuid"

	"github.com/seuros/raporta/internal/async"
	"github.com/seuros/raporta/internal/channels"
	"github.com/seuros/raporta/internal/store"
)

// ChannelMetric aggregates traffic for one classified channel.
type ChannelMetric struct {
	Channel   string `json:"channel" db:"name"`
	Visitors  int64  `json:"visitors" db:"visitors"`
	Visits    int64  `json:"visits" db:"visits"`
	Pageviews int64  `json:"pageviews" db:"pageviews"`
}

// ChannelBreakdown classifies every pageview in the window and aggregates per
// channel. Classification runs in SQL with the same rules and rule order as
// channels.Classify; custom events and unclassified traffic are dropped from
// the result.
func (e *Engine) ChannelBreakdown(ctx context.Context, websiteID uuid.UUID, filter FilterSpec) ([]ChannelMetric, error) {
	set, err := ComposeFilters(filter, FilterOptions{EventType: EventTypePageview})
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	b.Push("with t as (\n")
	b.Push("select " + channels.PrefixSQL("website_event.utm_medium") + " as prefix,\n")
	b.Push("website_event.referrer_domain as referrer_domain,\n")
	b.Push("website_event.url_query as url_query,\n")
	b.Push("website_event.utm_medium as utm_medium,\n")
	b.Push("website_event.utm_source as utm_source,\n")
	b.Push("website_event.session_id as session_id,\n")
	b.Push("website_event.visit_id as visit_id\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	b.Push("\n)\n")
	b.Push("select " + e.lists.CaseSQL("t.prefix", "t.referrer_domain", "t.url_query", "t.utm_medium", "t.utm_source") + " as name,\n")
	b.Push("count(distinct t.session_id) as visitors,\n")
	b.Push("count(distinct t.visit_id) as visits,\n")
	b.Push("count(*) as pageviews\n")
	b.Push("from t\ngroup by 1\norder by 2 desc")

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	var rows []ChannelMetric
	if err := e.store.Select(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if r.Channel != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// WebsiteStats is the headline traffic aggregate for one window.
type WebsiteStats struct {
	Pageviews int64   `json:"pageviews" db:"pageviews"`
	Visitors  int64   `json:"visitors" db:"visitors"`
	Visits    int64   `json:"visits" db:"visits"`
	Bounces   int64   `json:"bounces" db:"bounces"`
	TotalTime float64 `json:"totaltime" db:"totaltime"`
}

// Stats computes pageviews, visitors, visits, bounces and total time over the
// filtered window. A visit with a single pageview counts as a bounce.
func (e *Engine) Stats(ctx context.Context, websiteID uuid.UUID, filter FilterSpec) (*WebsiteStats, error) {
	set, err := ComposeFilters(filter, FilterOptions{EventType: EventTypePageview})
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	b.Push("select coalesce(sum(t.c), 0) as pageviews,\n")
	b.Push("count(distinct t.session_id) as visitors,\n")
	b.Push("count(distinct t.visit_id) as visits,\n")
	b.Push("coalesce(sum(case when t.c = 1 then 1 else 0 end), 0) as bounces,\n")
	b.Push("coalesce(sum(extract(epoch from (t.max_time - t.min_time))), 0) as totaltime\n")
	b.Push("from (\n")
	b.Push("select website_event.session_id, website_event.visit_id, count(*) as c,\n")
	b.Push("min(website_event.created_at) as min_time, max(website_event.created_at) as max_time\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	b.Push("\ngroup by 1, 2\n) t")

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	var stats WebsiteStats
	if err := e.store.Get(ctx, &stats, query, args...); err != nil {
		return nil, err
	}
	return &stats, nil
}

// utmLimit caps each UTM dimension listing.
const utmLimit = 100

// UTMReport groups pageview counts per UTM dimension.
type UTMReport struct {
	Source   []NameValue `json:"utm_source"`
	Medium   []NameValue `json:"utm_medium"`
	Campaign []NameValue `json:"utm_campaign"`
	Content  []NameValue `json:"utm_content"`
	Term     []NameValue `json:"utm_term"`
}

// UTM counts pageviews per non-empty value of every UTM dimension, fanned out
// over the worker pool.
func (e *Engine) UTM(ctx context.Context, websiteID uuid.UUID, filter FilterSpec) (*UTMReport, error) {
	set, err := ComposeFilters(filter, FilterOptions{EventType: EventTypePageview})
	if err != nil {
		return nil, err
	}

	result := &UTMReport{}
	dests := map[string]*[]NameValue{
		"utm_source":   &result.Source,
		"utm_medium":   &result.Medium,
		"utm_campaign": &result.Campaign,
		"utm_content":  &result.Content,
		"utm_term":     &result.Term,
	}
	tasks := make([]async.Task, 0, len(utmDimensions))
	for _, dim := range utmDimensions {
		dim := dim
		dest := dests[dim]
		tasks = append(tasks, async.Task{Name: dim, Run: func(ctx context.Context) error {
			b := NewBuilder()
			b.Push("select website_event." + dim + " as name, count(*) as value\n")
			b.Push("from website_event")
			b.PushFragment(set.Cohort)
			b.PushFragment(set.Join)
			b.Push("\nwhere website_event.website_id = ?", websiteID)
			b.PushFragment(set.Where)
			b.Push("\nand website_event." + dim + " != ''")
			b.Push(fmt.Sprintf("\ngroup by 1\norder by 2 desc\nlimit %d", utmLimit))
			query, args, err := b.Build()
			if err != nil {
				return err
			}
			return e.store.Select(ctx, dest, query, args...)
		}})
	}
	if err := e.pool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return result, nil
}

// valuesLimit caps the distinct-values listing used by filter pickers.
const valuesLimit = 10

// FieldValues returns the top distinct values of one allow-listed field, for
// filter pickers. The spec's Search term narrows the candidates; for the
// referrer field, self-referrals are excluded.
func (e *Engine) FieldValues(ctx context.Context, websiteID uuid.UUID, field string, filter FilterSpec) ([]NameValue, error) {
	col, fromSession, err := resolveColumn(field)
	if err != nil {
		return nil, err
	}
	opts := FilterOptions{SearchColumn: field, JoinSession: fromSession || field == "referrer"}
	set, err := ComposeFilters(filter, opts)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	b.Push("select " + col + " as name, count(*) as value\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	if field == "referrer" {
		b.Push("\nand website_event.referrer_domain != session.hostname")
	}
	b.Push("\nand " + col + " != ''")
	b.Push(fmt.Sprintf("\ngroup by 1\norder by 2 desc\nlimit %d", valuesLimit))

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	var rows []NameValue
	if err := e.store.Select(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// GoalResult reports conversion volume for one step.
type GoalResult struct {
	Type        string  `json:"type"`
	Value       string  `json:"value"`
	Conversions int64   `json:"conversions" db:"conversions"`
	Sessions    int64   `json:"sessions" db:"sessions"`
	Rate        float64 `json:"rate"`
}

// Goal counts distinct sessions converting on the step against all sessions
// in the window, both restricted to the step's event type so a custom event
// sharing a url_path with a path step never counts. Wildcard step values
// match as patterns. An empty window yields a rate of 0.
func (e *Engine) Goal(ctx context.Context, websiteID uuid.UUID, step FunnelStepSpec, filter FilterSpec) (*GoalResult, error) {
	if err := validateStep(step); err != nil {
		return nil, err
	}
	set, err := ComposeFilters(filter, FilterOptions{EventType: stepEventType(step.Type)})
	if err != nil {
		return nil, err
	}

	op, bound := stepPredicate(step.Value)
	b := NewBuilder()
	b.Push("select count(distinct website_event.session_id) filter (where website_event."+stepColumn(step.Type)+" "+op+" ?) as conversions,\n", bound)
	b.Push("count(distinct website_event.session_id) as sessions\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	result := &GoalResult{Type: step.Type, Value: step.Value}
	if err := e.store.Get(ctx, result, query, args...); err != nil {
		return nil, err
	}
	if result.Sessions > 0 {
		result.Rate = float64(result.Conversions) / float64(result.Sessions)
	}
	return result, nil
}

// RevenueTotals summarizes revenue over the window.
type RevenueTotals struct {
	Sum         float64 `json:"sum" db:"sum"`
	Count       int64   `json:"count" db:"count"`
	UniqueCount int64   `json:"unique_count" db:"unique_count"`
	Average     float64 `json:"average"`
}

// RevenueReport breaks revenue down by event name and visitor country.
type RevenueReport struct {
	Currency  string        `json:"currency"`
	ByEvent   []NameValue   `json:"by_event"`
	ByCountry []NameValue   `json:"by_country"`
	Totals    RevenueTotals `json:"totals"`
}

// Revenue aggregates revenue touches in one currency over the window: totals,
// per-event sums and per-country sums, fanned out over the worker pool.
// Country codes are expanded to display names; unknown codes pass through.
func (e *Engine) Revenue(ctx context.Context, websiteID uuid.UUID, currency string, filter FilterSpec) (*RevenueReport, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, invalidSpec("currency must be a 3-letter code, got %q", currency)
	}
	set, err := ComposeFilters(filter, FilterOptions{})
	if err != nil {
		return nil, err
	}

	result := &RevenueReport{Currency: currency}
	tasks := []async.Task{
		{Name: "totals", Run: func(ctx context.Context) error {
			b := NewBuilder()
			b.Push("select coalesce(sum(revenue.revenue), 0) as sum,\n")
			b.Push("count(*) as count,\n")
			b.Push("count(distinct revenue.session_id) as unique_count\n")
			b.Push("from revenue\n")
			b.Push("where revenue.website_id = ?", websiteID)
			b.Push("\nand revenue.currency = ?", currency)
			b.Push("\nand revenue.created_at >= ? and revenue.created_at < ?", set.Start, set.End)
			query, args, err := b.Build()
			if err != nil {
				return err
			}
			return e.store.Get(ctx, &result.Totals, query, args...)
		}},
		{Name: "by_event", Run: func(ctx context.Context) error {
			b := NewBuilder()
			b.Push("select revenue.event_name as name, sum(revenue.revenue) as value\n")
			b.Push("from revenue\n")
			b.Push("where revenue.website_id = ?", websiteID)
			b.Push("\nand revenue.currency = ?", currency)
			b.Push("\nand revenue.created_at >= ? and revenue.created_at < ?", set.Start, set.End)
			b.Push("\ngroup by 1\norder by 2 desc")
			query, args, err := b.Build()
			if err != nil {
				return err
			}
			return e.store.Select(ctx, &result.ByEvent, query, args...)
		}},
		{Name: "by_country", Run: func(ctx context.Context) error {
			b := NewBuilder()
			b.Push("select session.country as name, sum(revenue.revenue) as value\n")
			b.Push("from revenue\n")
			b.Push("join session on session.session_id = revenue.session_id\n")
			b.Push("where revenue.website_id = ?", websiteID)
			b.Push("\nand revenue.currency = ?", currency)
			b.Push("\nand revenue.created_at >= ? and revenue.created_at < ?", set.Start, set.End)
			b.Push("\nand session.country is not null and session.country != ''")
			b.Push("\ngroup by 1\norder by 2 desc")
			query, args, err := b.Build()
			if err != nil {
				return err
			}
			if err := e.store.Select(ctx, &result.ByCountry, query, args...); err != nil {
				return err
			}
			for i, row := range result.ByCountry {
				if c := countries.ByName(row.Name); c != countries.Unknown {
					result.ByCountry[i].Name = c.String()
				}
			}
			return nil
		}},
	}
	if err := e.pool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	if result.Totals.Count > 0 {
		result.Totals.Average = result.Totals.Sum / float64(result.Totals.Count)
	}
	return result, nil
}

// activeWindow is how far back a session still counts as active.
const activeWindow = 5 * time.Minute

// ActiveVisitors counts distinct sessions with an event in the last five
// minutes.
func (e *Engine) ActiveVisitors(ctx context.Context, websiteID uuid.UUID) (int64, error) {
	b := NewBuilder()
	b.Push("select count(distinct session_id) as visitors\n")
	b.Push("from website_event\n")
	b.Push("where website_id = ?", websiteID)
	b.Push("\nand created_at >= ?", time.Now().Add(-activeWindow))

	query, args, err := b.Build()
	if err != nil {
		return 0, err
	}
	var row struct {
		Visitors int64 `db:"visitors"`
	}
	if err := e.store.Get(ctx, &row, query, args...); err != nil {
		return 0, err
	}
	return row.Visitors, nil
}

// DateRange is the span of recorded events for a website.
type DateRange struct {
	Min *time.Time `json:"min_date" db:"min_date"`
	Max *time.Time `json:"max_date" db:"max_date"`
}

// WebsiteDateRange returns the first and last event timestamps, nil when the
// website has no events yet.
func (e *Engine) WebsiteDateRange(ctx context.Context, websiteID uuid.UUID) (*DateRange, error) {
	b := NewBuilder()
	b.Push("select min(created_at) as min_date, max(created_at) as max_date\n")
	b.Push("from website_event\n")
	b.Push("where website_id = ?", websiteID)

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	var r DateRange
	if err := e.store.Get(ctx, &r, query, args...); err != nil {
		return nil, err
	}
	return &r, nil
}

// EventRow is one event in the paged listing.
type EventRow struct {
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	EventType int       `json:"event_type" db:"event_type"`
	URLPath   string    `json:"url_path" db:"url_path"`
	Referrer  string    `json:"referrer_domain" db:"referrer_domain"`
	EventName string    `json:"event_name" db:"event_name"`
}

// ListEvents pages through raw events, newest first. This is the only report
// that paginates.
func (e *Engine) ListEvents(ctx context.Context, websiteID uuid.UUID, filter FilterSpec, page store.Page) ([]EventRow, store.PageInfo, error) {
	set, err := ComposeFilters(filter, FilterOptions{})
	if err != nil {
		return nil, store.PageInfo{}, err
	}

	b := NewBuilder()
	b.Push("select website_event.event_id, website_event.session_id, website_event.created_at,\n")
	b.Push("website_event.event_type, website_event.url_path, website_event.referrer_domain, website_event.event_name\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	b.Push("\norder by website_event.created_at desc")

	query, args, err := b.Build()
	if err != nil {
		return nil, store.PageInfo{}, err
	}
	var rows []EventRow
	info, err := e.store.PagedSelect(ctx, &rows, query, page, args...)
	if err != nil {
		return nil, store.PageInfo{}, err
	}
	info.Count = len(rows)
	return rows, info, nil
}
