package reports

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FunnelStep is one computed funnel level with its dropoff metrics.
type FunnelStep struct {
	Step      int     `json:"step"`
	Type      string  `json:"type"`
	Value     string  `json:"value"`
	Visitors  int64   `json:"visitors"`
	Previous  int64   `json:"previous"`
	Dropped   int64   `json:"dropped"`
	Dropoff   float64 `json:"dropoff"`
	Remaining float64 `json:"remaining"`
}

type funnelRow struct {
	Level int   `db:"level"`
	Count int64 `db:"count"`
}

// RunFunnel computes ordered session progression through the funnel steps.
// Level 1 holds sessions matching step 1 inside the filtered window; each
// later level keeps only sessions with a matching event strictly after the
// previous level's event and within the window, never past the end date.
func (e *Engine) RunFunnel(ctx context.Context, websiteID uuid.UUID, spec FunnelSpec, filter FilterSpec) ([]FunnelStep, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	set, err := ComposeFilters(filter, FilterOptions{})
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	first := spec.Steps[0]
	op, bound := stepPredicate(first.Value)
	b.Push("with level1 as (\n")
	b.Push("select distinct website_event.session_id, website_event.created_at\n")
	b.Push("from website_event")
	b.PushFragment(set.Cohort)
	b.PushFragment(set.Join)
	b.Push("\nwhere website_event.website_id = ?", websiteID)
	b.PushFragment(set.Where)
	b.Push("\nand website_event."+stepColumn(first.Type)+" "+op+" ?", bound)
	b.Push("\n)")

	for i := 1; i < len(spec.Steps); i++ {
		step := spec.Steps[i]
		op, bound := stepPredicate(step.Value)
		b.Push(fmt.Sprintf(",\nlevel%d as (\n", i+1))
		b.Push("select distinct we.session_id, we.created_at\n")
		b.Push(fmt.Sprintf("from level%d l\n", i))
		b.Push("join website_event we on l.session_id = we.session_id\n")
		b.Push("where we.website_id = ?", websiteID)
		b.Push("\nand we.created_at > l.created_at")
		b.Push("\nand we.created_at <= l.created_at + make_interval(mins => ?)", spec.Window)
		b.Push("\nand we.created_at < ?", set.End)
		b.Push("\nand we."+stepColumn(step.Type)+" "+op+" ?", bound)
		b.Push("\n)")
	}

	b.Push("\n")
	for i := range spec.Steps {
		if i > 0 {
			b.Push("\nunion\n")
		}
		b.Push(fmt.Sprintf("select %d as level, count(distinct session_id) as count from level%d", i+1, i+1))
	}
	b.Push("\norder by level")

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	var rows []funnelRow
	if err := e.store.Select(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.Level] = r.Count
	}
	return formatFunnel(spec.Steps, counts), nil
}

// formatFunnel derives dropoff metrics per step. Divisions by a zero
// previous or baseline count resolve to 0.
func formatFunnel(steps []FunnelStepSpec, counts map[int]int64) []FunnelStep {
	out := make([]FunnelStep, len(steps))
	base := counts[1]
	for i, step := range steps {
		visitors := counts[i+1]
		result := FunnelStep{
			Step:     i + 1,
			Type:     step.Type,
			Value:    step.Value,
			Visitors: visitors,
			Previous: visitors,
		}
		if i == 0 {
			result.Remaining = 1
		} else {
			previous := counts[i]
			result.Previous = previous
			result.Dropped = previous - visitors
			if previous > 0 {
				result.Dropoff = 1 - float64(visitors)/float64(previous)
			}
			if base > 0 {
				result.Remaining = float64(visitors) / float64(base)
			}
		}
		out[i] = result
	}
	return out
}
