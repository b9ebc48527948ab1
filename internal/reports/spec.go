package reports

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter operators accepted by FieldFilter.
const (
	OpEquals         = "eq"
	OpNotEquals      = "neq"
	OpContains       = "contains"
	OpDoesNotContain = "not-contains"
)

// FieldFilter is one property predicate against an event or session column.
type FieldFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// FilterSpec is the request-scoped filter input shared by every report. Dates
// may be given explicitly or as a named relative range ("24h", "7d", "30d",
// "90d", "today"); explicit dates win when both are present.
type FilterSpec struct {
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Range     string        `json:"range"`
	CohortID  *uuid.UUID    `json:"cohort_id"`
	Search    string        `json:"search"`
	Filters   []FieldFilter `json:"filters"`
}

// Funnel step dimension types.
const (
	StepTypePath  = "path"
	StepTypeEvent = "event"
)

// FunnelStepSpec is one step of a funnel: a dimension and a value. A value
// wrapped in * markers matches as a pattern instead of exact equality.
type FunnelStepSpec struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FunnelSpec describes an ordered funnel: steps 1..N and the window, in
// minutes, a session has to reach each next step after the previous one.
type FunnelSpec struct {
	Steps  []FunnelStepSpec `json:"steps"`
	Window int              `json:"window"`
}

// Attribution model tags.
const (
	ModelFirstClick = "first-click"
	ModelLastClick  = "last-click"
)

// AttributionSpec describes an attribution request: the conversion step, the
// touch-selection model, and an optional currency. Setting Currency switches
// every breakdown from counting converting sessions to summing revenue.
type AttributionSpec struct {
	Step     FunnelStepSpec `json:"step"`
	Model    string         `json:"model"`
	Currency string         `json:"currency"`
}

// Validate checks the funnel definition before any query is issued.
func (s FunnelSpec) Validate() error {
	if len(s.Steps) == 0 {
		return invalidSpec("funnel requires at least one step")
	}
	if s.Window <= 0 {
		return invalidSpec("funnel window must be positive, got %d", s.Window)
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return invalidSpec("step %d: %v", i+1, err)
		}
	}
	return nil
}

// Validate checks the attribution definition and normalizes the model tag.
// Both first-click/first-touch and last-click/last-touch spellings are
// accepted.
func (s *AttributionSpec) Validate() error {
	switch s.Model {
	case ModelFirstClick, "first-touch", "firstClick":
		s.Model = ModelFirstClick
	case ModelLastClick, "last-touch", "lastClick":
		s.Model = ModelLastClick
	default:
		return invalidSpec("unknown attribution model %q", s.Model)
	}
	if err := validateStep(s.Step); err != nil {
		return invalidSpec("conversion step: %v", err)
	}
	return nil
}

func validateStep(step FunnelStepSpec) error {
	if step.Type != StepTypePath && step.Type != StepTypeEvent {
		return invalidSpec("unknown step type %q", step.Type)
	}
	if step.Value == "" {
		return invalidSpec("step value must not be empty")
	}
	return nil
}

// namedRanges maps relative range names to their lookback duration. "today"
// is handled separately because it snaps to local midnight.
var namedRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// resolveDates returns the effective [start, end) window for the spec.
func (f FilterSpec) resolveDates(now time.Time) (time.Time, time.Time, error) {
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() {
		if !f.EndDate.After(f.StartDate) {
			return time.Time{}, time.Time{}, invalidSpec("end date must be after start date")
		}
		return f.StartDate, f.EndDate, nil
	}
	name := strings.ToLower(strings.TrimSpace(f.Range))
	if name == "today" {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, now, nil
	}
	if d, ok := namedRanges[name]; ok {
		return now.Add(-d), now, nil
	}
	if name == "" {
		return time.Time{}, time.Time{}, invalidSpec("either explicit dates or a named range is required")
	}
	return time.Time{}, time.Time{}, invalidSpec("unknown range %q", name)
}

// stepColumn maps a step dimension to the event column it matches against.
func stepColumn(stepType string) string {
	if stepType == StepTypeEvent {
		return "event_name"
	}
	return "url_path"
}

// stepEventType maps a step dimension to the event_type rows it can match:
// path steps match pageviews, event steps match custom events.
func stepEventType(stepType string) int {
	if stepType == StepTypeEvent {
		return EventTypeCustom
	}
	return EventTypePageview
}

// stepPredicate turns a step value into an operator and bound pattern,
// expanding * wildcard markers into a LIKE pattern.
func stepPredicate(value string) (op, bound string) {
	if !strings.HasPrefix(value, "*") && !strings.HasSuffix(value, "*") {
		return "=", value
	}
	pattern := value
	if strings.HasPrefix(pattern, "*") {
		pattern = "%" + pattern[1:]
	}
	if strings.HasSuffix(pattern, "*") {
		pattern = pattern[:len(pattern)-1] + "%"
	}
	return "like", pattern
}
