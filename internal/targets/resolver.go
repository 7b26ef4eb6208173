package targets

import (
	"strings"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/types"
)

type goalKey struct {
	campaign string
	category string
	metric   string
}

// Resolver answers target lookups for one aggregation pass. The goal index
// is built once at construction.
type Resolver struct {
	goals    map[goalKey]float64
	defaults Defaults
}

// NewResolver indexes the goal rows whose deadline, when present, falls inside rng.
// Later rows overwrite earlier ones for the same key.
func NewResolver(goals *facts.Table, rng types.DateRange, defaults Defaults) *Resolver {
	r := &Resolver{
		goals:    make(map[goalKey]float64),
		defaults: defaults,
	}
	if goals == nil {
		return r
	}

	for _, row := range goals.Rows {
		campaign := goals.String(row, facts.FieldCampaign)
		category := goals.String(row, facts.FieldCategory)
		metric := goals.String(row, facts.FieldMetric)
		if campaign == "" || category == "" || metric == "" {
			continue
		}
		target, ok := goals.Number(row, facts.FieldTarget)
		if !ok {
			continue
		}
		if _, present := goals.Resolve(row, facts.FieldDeadline); present {
			deadline, ok := goals.Time(row, facts.FieldDeadline)
			if ok && !rng.Contains(deadline) {
				continue
			}
		}

		r.goals[goalKey{
			campaign: campaign,
			category: strings.ToLower(category),
			metric:   strings.ToLower(metric),
		}] = target
	}
	return r
}

// Resolve returns the explicit goal for (campaign, category, metric), or fallback
func (r *Resolver) Resolve(campaign string, category types.Category, metric string, fallback float64) float64 {
	target, ok := r.goals[goalKey{
		campaign: campaign,
		category: strings.ToLower(string(category)),
		metric:   strings.ToLower(metric),
	}]
	if !ok {
		return fallback
	}
	return target
}

// Default returns the configured fallback target
func (r *Resolver) Default(category types.Category, metric string) float64 {
	return r.defaults.Get(category, metric)
}

// Target resolves a metric with the configured default as fallback
func (r *Resolver) Target(campaign string, category types.Category, metric string) float64 {
	return r.Resolve(campaign, category, metric, r.Default(category, metric))
}

// GoalCount returns the number of indexed goals
func (r *Resolver) GoalCount() int {
	return len(r.goals)
}
