package reports

import (
	"strings"
	"time"
)

// Event type discriminators as stored on website_event.
const (
	EventTypeAny      = 0
	EventTypePageview = 1
	EventTypeCustom   = 2
)

// eventColumns maps filter field names to event-table columns.
var eventColumns = map[string]string{
	"path":         "website_event.url_path",
	"query":        "website_event.url_query",
	"referrer":     "website_event.referrer_domain",
	"event":        "website_event.event_name",
	"utm_source":   "website_event.utm_source",
	"utm_medium":   "website_event.utm_medium",
	"utm_campaign": "website_event.utm_campaign",
	"utm_content":  "website_event.utm_content",
	"utm_term":     "website_event.utm_term",
}

// sessionColumns maps filter field names to session-table columns. Any
// reference to one of these forces the session join.
var sessionColumns = map[string]string{
	"hostname": "session.hostname",
	"browser":  "session.browser",
	"os":       "session.os",
	"device":   "session.device",
	"screen":   "session.screen",
	"language": "session.language",
	"country":  "session.country",
	"region":   "session.region",
	"city":     "session.city",
}

// maxSearchValues caps how many comma-separated search values are OR'd.
const maxSearchValues = 5

// FilterOptions adjusts composition per report.
type FilterOptions struct {
	// EventType restricts to pageviews or custom events; EventTypeAny skips
	// the predicate.
	EventType int
	// SearchColumn names the field the free-text Search term applies to.
	SearchColumn string
	// JoinSession forces the session join even when no filter needs it.
	JoinSession bool
}

// FilterSet is the composed output: additive SQL fragments plus the resolved
// date window. Where always leads with " and" so it concatenates after a
// website-id predicate; Join and Cohort slot into the FROM clause and render
// empty when unused.
type FilterSet struct {
	Where  Fragment
	Join   Fragment
	Cohort Fragment
	Start  time.Time
	End    time.Time
}

// ComposeFilters turns a FilterSpec into bound SQL fragments. Every
// caller-supplied value travels as a bound argument; only column names from
// the fixed allow-lists are ever inlined into the text.
func ComposeFilters(spec FilterSpec, opts FilterOptions) (*FilterSet, error) {
	return composeFiltersAt(spec, opts, time.Now())
}

func composeFiltersAt(spec FilterSpec, opts FilterOptions, now time.Time) (*FilterSet, error) {
	start, end, err := spec.resolveDates(now)
	if err != nil {
		return nil, err
	}

	where := NewBuilder()
	where.Push(" and website_event.created_at >= ? and website_event.created_at < ?", start, end)
	if opts.EventType != EventTypeAny {
		where.Push(" and website_event.event_type = ?", opts.EventType)
	}

	needSession := opts.JoinSession
	for _, f := range spec.Filters {
		col, fromSession, err := resolveColumn(f.Field)
		if err != nil {
			return nil, err
		}
		needSession = needSession || fromSession
		if err := pushPredicate(where, col, f.Op, f.Value); err != nil {
			return nil, err
		}
	}

	if spec.Search != "" {
		col, fromSession, err := resolveColumn(opts.SearchColumn)
		if err != nil {
			return nil, invalidSpec("search column: %v", err)
		}
		needSession = needSession || fromSession
		pushSearch(where, col, spec.Search)
	}

	set := &FilterSet{
		Where: Fragment{SQL: where.Raw(), Args: where.Args()},
		Start: start,
		End:   end,
	}
	if needSession {
		set.Join = Fragment{SQL: " inner join session on session.session_id = website_event.session_id"}
	}
	if spec.CohortID != nil {
		set.Cohort = Fragment{
			SQL:  " inner join cohort_session on cohort_session.session_id = website_event.session_id and cohort_session.cohort_id = ?",
			Args: []interface{}{*spec.CohortID},
		}
	}
	return set, nil
}

func resolveColumn(field string) (col string, fromSession bool, err error) {
	if col, ok := eventColumns[field]; ok {
		return col, false, nil
	}
	if col, ok := sessionColumns[field]; ok {
		return col, true, nil
	}
	return "", false, invalidSpec("unknown filter field %q", field)
}

func pushPredicate(b *Builder, col, op, value string) error {
	switch op {
	case OpEquals, "":
		b.Push(" and "+col+" = ?", value)
	case OpNotEquals:
		b.Push(" and "+col+" != ?", value)
	case OpContains:
		b.Push(" and "+col+" ilike ?", "%"+value+"%")
	case OpDoesNotContain:
		b.Push(" and "+col+" not ilike ?", "%"+value+"%")
	default:
		return invalidSpec("unknown filter operator %q", op)
	}
	return nil
}

// pushSearch binds a pattern-match predicate for the search term. A comma in
// the term splits it into up to maxSearchValues OR'd patterns, each its own
// bound argument.
func pushSearch(b *Builder, col, search string) {
	values := []string{search}
	if strings.Contains(search, ",") {
		values = values[:0]
		for _, v := range strings.Split(search, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			values = append(values, v)
			if len(values) == maxSearchValues {
				break
			}
		}
		if len(values) == 0 {
			return
		}
	}
	clauses := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		clauses[i] = col + " ilike ?"
		args[i] = "%" + v + "%"
	}
	b.Push(" and ("+strings.Join(clauses, " or ")+")", args...)
}
