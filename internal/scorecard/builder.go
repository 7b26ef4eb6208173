package scorecard

import (
	"math"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/aggregator"
	"github.com/dennisdiepolder/monti/okr/internal/targets"
	"github.com/dennisdiepolder/monti/okr/internal/types"
)

// DefaultParticipationDeduction is the non-productive time subtracted from attendance
const DefaultParticipationDeduction = 90.0

// timestampLayout renders row timestamps as ISO-8601 in UTC with milliseconds
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Options tunes the derived-metric formulas
type Options struct {
	// ParticipationDeductionMinutes is subtracted from attendance minutes before
	// computing the participation ratio
	ParticipationDeductionMinutes float64
}

// Builder turns campaign accumulators into category rows
type Builder struct {
	deduction float64
}

// NewBuilder creates a row builder. A zero deduction uses the default.
func NewBuilder(opts Options) *Builder {
	deduction := opts.ParticipationDeductionMinutes
	if deduction <= 0 {
		deduction = DefaultParticipationDeduction
	}
	return &Builder{deduction: deduction}
}

// Build emits exactly five rows per campaign in result, ordered by campaign
// name then category.
func (b *Builder) Build(result *aggregator.Result, resolver *targets.Resolver, g types.Granularity, periodID string) []types.CategoryRow {
	names := result.CampaignNames()
	rows := make([]types.CategoryRow, 0, len(names)*len(types.AllCategories))

	for _, name := range names {
		acc := result.Campaigns[name]
		values := b.Derive(acc)
		agents := acc.Agents()

		for _, category := range types.AllCategories {
			defs := types.CategoryMetrics[category]
			metrics := make([]types.MetricValue, 0, len(defs))
			for _, def := range defs {
				metrics = append(metrics, types.MetricValue{
					Key:           def.Key,
					Current:       values[def.Key],
					Target:        resolver.Target(name, category, def.Key),
					LowerIsBetter: def.LowerIsBetter,
				})
			}

			rows = append(rows, types.CategoryRow{
				Granularity:   g,
				Period:        periodID,
				Campaign:      name,
				Department:    result.Departments[name],
				Category:      category,
				Metrics:       metrics,
				AgentCount:    len(agents),
				AgentList:     agents,
				CallsTotal:    acc.Calls,
				Records:       acc.Records,
				PeriodStart:   FormatTimestamp(result.Range.Start),
				PeriodEnd:     FormatTimestamp(result.Range.End),
				FirstActivity: FormatTimestamp(acc.FirstActivity),
				LastActivity:  FormatTimestamp(acc.LastActivity),
			})
		}
	}
	return rows
}

// Derive computes every named metric of one campaign. Divisions by zero yield 0.
func (b *Builder) Derive(acc *aggregator.CampaignAccumulator) map[string]float64 {
	calls := float64(acc.Calls)

	callsPerHour := 0.0
	switch {
	case calls > 0 && acc.AttendanceMinutes > 0:
		callsPerHour = calls / (acc.AttendanceMinutes / 60)
	case calls > 0:
		callsPerHour = calls
	}

	participation := 0.0
	if acc.AttendanceMinutes > 0 {
		participation = math.Max(0, math.Min(1, (acc.AttendanceMinutes-b.deduction)/acc.AttendanceMinutes))
	}

	resolution := ratio(float64(acc.Resolved), calls)

	return map[string]float64{
		types.MetricCallsPerHour:      callsPerHour,
		types.MetricTasksCompleted:    float64(acc.TasksCompleted),
		types.MetricCSAT:              ratio(acc.CSATSum, float64(acc.CSATCount)),
		types.MetricQAScore:           ratio(acc.QASum, float64(acc.QACount)),
		types.MetricResponseTime:      ratio(acc.TalkMinutes, calls),
		types.MetricResolutionRate:    resolution,
		types.MetricParticipationRate: participation,
		types.MetricFeedbackScore:     ratio(acc.FeedbackSum, float64(acc.FeedbackCount)),
		// no independent conversion source exists; resolution is the proxy
		types.MetricConversionRate: resolution,
		types.MetricRevenue:        0,
	}
}

// FormatTimestamp renders t for row payloads, "" for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
