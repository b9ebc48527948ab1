package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/seuros/raporta/internal/async"
)

// NameValue is one breakdown group: the touch attribute and either a distinct
// session count or a revenue sum, depending on the request.
type NameValue struct {
	Name  string  `json:"name" db:"name"`
	Value float64 `json:"value" db:"value"`
}

// AttributionTotals is the non-attributed aggregate over the conversion set.
type AttributionTotals struct {
	Pageviews int64 `json:"pageviews" db:"pageviews"`
	Visitors  int64 `json:"visitors" db:"visitors"`
	Visits    int64 `json:"visits" db:"visits"`
}

// AttributionResult combines every breakdown plus the totals.
type AttributionResult struct {
	Referrer    []NameValue       `json:"referrer"`
	PaidAds     []NameValue       `json:"paidAds"`
	UTMSource   []NameValue       `json:"utm_source"`
	UTMMedium   []NameValue       `json:"utm_medium"`
	UTMCampaign []NameValue       `json:"utm_campaign"`
	UTMContent  []NameValue       `json:"utm_content"`
	UTMTerm     []NameValue       `json:"utm_term"`
	Total       AttributionTotals `json:"total"`
}

// breakdownLimit caps each breakdown at the top groups by value.
const breakdownLimit = 20

// utmDimensions lists the UTM breakdown columns in output order.
var utmDimensions = []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term"}

// RunAttribution computes multi-touch attribution for the conversion step.
// It selects one touch per converting session under the requested model,
// then fans the independent breakdown queries out over the worker pool and
// joins them before returning. If any breakdown fails the whole request
// fails. The fan-out queries run on separate connections without a shared
// snapshot, so under concurrent writes the breakdowns and totals may
// disagree by the handful of sessions ingested mid-request.
func (e *Engine) RunAttribution(ctx context.Context, websiteID uuid.UUID, spec AttributionSpec, filter FilterSpec) (*AttributionResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	// The conversion set only matches events of the step's type; the
	// predicate rides in the composed filter so it reaches both the events
	// CTE and the totals query.
	set, err := ComposeFilters(filter, FilterOptions{EventType: stepEventType(spec.Step.Type)})
	if err != nil {
		return nil, err
	}

	revenue := spec.Currency != ""
	prefix := attributionPrefix(websiteID, spec, set)

	result := &AttributionResult{}
	tasks := []async.Task{
		{Name: "referrer", Run: func(ctx context.Context) error {
			q, args, err := referrerBreakdown(prefix, websiteID, revenue)
			if err != nil {
				return err
			}
			return e.store.Select(ctx, &result.Referrer, q, args...)
		}},
		{Name: "paid_ads", Run: func(ctx context.Context) error {
			q, args, err := paidAdsBreakdown(prefix, websiteID, revenue)
			if err != nil {
				return err
			}
			return e.store.Select(ctx, &result.PaidAds, q, args...)
		}},
		{Name: "total", Run: func(ctx context.Context) error {
			q, args, err := totalsQuery(websiteID, spec, set)
			if err != nil {
				return err
			}
			return e.store.Get(ctx, &result.Total, q, args...)
		}},
	}
	dests := map[string]*[]NameValue{
		"utm_source":   &result.UTMSource,
		"utm_medium":   &result.UTMMedium,
		"utm_campaign": &result.UTMCampaign,
		"utm_content":  &result.UTMContent,
		"utm_term":     &result.UTMTerm,
	}
	for _, dim := range utmDimensions {
		dim := dim
		dest := dests[dim]
		tasks = append(tasks, async.Task{Name: dim, Run: func(ctx context.Context) error {
			q, args, err := utmBreakdown(prefix, websiteID, dim, revenue)
			if err != nil {
				return err
			}
			return e.store.Select(ctx, dest, q, args...)
		}})
	}

	if err := e.pool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return result, nil
}

// attributionPrefix renders the shared events and model CTEs. The events CTE
// reduces each converting session to one reference timestamp (and, with a
// currency, the summed revenue); the model CTE picks the credited touch per
// session.
func attributionPrefix(websiteID uuid.UUID, spec AttributionSpec, set *FilterSet) Fragment {
	b := NewBuilder()
	col := stepColumn(spec.Step.Type)

	if spec.Currency != "" {
		b.Push("with events as (\n")
		b.Push("select revenue.session_id, max(revenue.created_at) as max_dt, sum(revenue.revenue) as value\n")
		b.Push("from revenue\n")
		b.Push("join website_event on website_event.website_id = revenue.website_id")
		b.Push(" and website_event.session_id = revenue.session_id")
		b.Push(" and website_event.event_id = revenue.event_id")
		b.PushFragment(set.Cohort)
		b.PushFragment(set.Join)
		b.Push("\nwhere revenue.website_id = ?", websiteID)
		b.Push("\nand revenue.created_at >= ? and revenue.created_at < ?", set.Start, set.End)
		b.Push("\nand revenue."+col+" = ?", spec.Step.Value)
		b.Push("\nand revenue.currency = ?", strings.ToUpper(spec.Currency))
		b.PushFragment(set.Where)
		b.Push("\ngroup by 1\n),\n")
	} else {
		b.Push("with events as (\n")
		b.Push("select website_event.session_id, max(website_event.created_at) as max_dt\n")
		b.Push("from website_event")
		b.PushFragment(set.Cohort)
		b.PushFragment(set.Join)
		b.Push("\nwhere website_event.website_id = ?", websiteID)
		b.PushFragment(set.Where)
		b.Push("\nand website_event."+col+" = ?", spec.Step.Value)
		b.Push("\ngroup by 1\n),\n")
	}

	b.Push("model as (\n")
	if spec.Model == ModelFirstClick {
		b.Push("select e.session_id, min(we.created_at) as created_at\n")
	} else {
		b.Push("select e.session_id, max(we.created_at) as created_at\n")
	}
	b.Push("from events e\n")
	b.Push("join website_event we on we.session_id = e.session_id\n")
	b.Push("where we.website_id = ?", websiteID)
	b.Push("\nand we.created_at >= ? and we.created_at < ?", set.Start, set.End)
	if spec.Model == ModelLastClick {
		b.Push("\nand we.created_at < e.max_dt")
	}
	b.Push("\ngroup by e.session_id\n)\n")

	return Fragment{SQL: b.Raw(), Args: b.Args()}
}

// touchSelect renders the from/join boilerplate shared by every breakdown:
// the credited touch row per session, plus the revenue join when weighting
// by value.
func touchSelect(b *Builder, websiteID uuid.UUID, revenue bool) {
	b.Push("from model m\n")
	b.Push("join website_event we on we.created_at = m.created_at and we.session_id = m.session_id")
	if revenue {
		b.Push("\njoin events e on e.session_id = m.session_id")
	}
	b.Push("\nwhere we.website_id = ?", websiteID)
}

func valueExpr(revenue bool) string {
	if revenue {
		return "sum(e.value)"
	}
	return "count(distinct we.session_id)"
}

// referrerBreakdown groups credited touches by referrer domain, excluding
// self-referrals and empty referrers.
func referrerBreakdown(prefix Fragment, websiteID uuid.UUID, revenue bool) (string, []interface{}, error) {
	b := NewBuilder()
	b.PushFragment(prefix)
	b.Push("select we.referrer_domain as name, " + valueExpr(revenue) + " as value\n")
	b.Push("from model m\n")
	b.Push("join website_event we on we.created_at = m.created_at and we.session_id = m.session_id\n")
	b.Push("join session s on s.session_id = m.session_id")
	if revenue {
		b.Push("\njoin events e on e.session_id = m.session_id")
	}
	b.Push("\nwhere we.website_id = ?", websiteID)
	b.Push("\nand we.referrer_domain != s.hostname")
	b.Push("\nand we.referrer_domain != ''")
	b.Push(fmt.Sprintf("\ngroup by 1\norder by 2 desc\nlimit %d", breakdownLimit))
	return b.Build()
}

// paidAdsBreakdown synthesizes a platform name from whichever click id is
// present, first match winning.
func paidAdsBreakdown(prefix Fragment, websiteID uuid.UUID, revenue bool) (string, []interface{}, error) {
	inner := "we.session_id"
	outer := "count(distinct t.session_id)"
	if revenue {
		inner = "e.value"
		outer = "sum(t.value)"
	}
	b := NewBuilder()
	b.PushFragment(prefix)
	b.Push("select t.name as name, " + outer + " as value\nfrom (\n")
	b.Push("select case\n")
	b.Push("when we.gclid != '' then 'Google Ads'\n")
	b.Push("when we.fbclid != '' then 'Facebook / Meta'\n")
	b.Push("when we.msclkid != '' then 'Microsoft Ads'\n")
	b.Push("when we.ttclid != '' then 'TikTok Ads'\n")
	b.Push("when we.li_fat_id != '' then 'LinkedIn Ads'\n")
	b.Push("when we.twclid != '' then 'Twitter Ads (X)'\n")
	b.Push("else ''\nend as name, " + inner + "\n")
	touchSelect(b, websiteID, revenue)
	b.Push("\n) t\nwhere t.name != ''")
	b.Push(fmt.Sprintf("\ngroup by 1\norder by 2 desc\nlimit %d", breakdownLimit))
	return b.Build()
}

// utmBreakdown groups credited touches by one UTM dimension, non-empty only.
// col comes from utmDimensions, never from the caller.
func utmBreakdown(prefix Fragment, websiteID uuid.UUID, col string, revenue bool) (string, []interface{}, error) {
	b := NewBuilder()
	b.PushFragment(prefix)
	b.Push("select we." + col + " as name, " + valueExpr(revenue) + " as value\n")
	touchSelect(b, websiteID, revenue)
	b.Push("\nand we." + col + " != ''")
	b.Push(fmt.Sprintf("\ngroup by 1\norder by 2 desc\nlimit %d", breakdownLimit))
	return b.Build()
}

// totalsQuery aggregates the conversion set independent of touch selection.
func totalsQuery(websiteID uuid.UUID, spec AttributionSpec, set *FilterSet) (string, []interface{}, error) {
	b := NewBuilder()
	b.Push("select count(*) as pageviews,")
	b.Push(" count(distinct website_event.session_id) as visitors,")
	b.Push(" count(distinct website_event.visit_id) as visits\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	b.Push("\nand website_event."+stepColumn(spec.Step.Type)+" = ?", spec.Step.Value)
	return b.Build()
}
