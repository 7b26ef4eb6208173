package scoring

import (
	"fmt"
	"math"

	"github.com/dennisdiepolder/monti/okr/internal/types"
)

// epsilon guards lower-is-better percentages against a zero current value
const epsilon = 1e-4

// Thresholds are the status cut-offs, in percent
type Thresholds struct {
	Excellent        float64
	Good             float64
	NeedsImprovement float64
}

// DefaultThresholds returns the stock status cut-offs
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 90, Good: 70, NeedsImprovement: 60}
}

// Validate checks that the thresholds are monotonic
func (t Thresholds) Validate() error {
	if t.Excellent < t.Good || t.Good < t.NeedsImprovement {
		return fmt.Errorf("thresholds must satisfy excellent >= good >= needs_improvement, got %v/%v/%v",
			t.Excellent, t.Good, t.NeedsImprovement)
	}
	if t.NeedsImprovement < 0 || t.Excellent > 100 {
		return fmt.Errorf("thresholds must lie within 0..100, got %v/%v/%v",
			t.Excellent, t.Good, t.NeedsImprovement)
	}
	return nil
}

// GradeBand assigns Grade to scores at or above Min
type GradeBand struct {
	Min   float64
	Grade string
}

// FailingGrade is assigned below the lowest band
const FailingGrade = "F"

// DefaultGrades returns the letter grade table, highest band first
func DefaultGrades() []GradeBand {
	return []GradeBand{
		{97, "A+"},
		{93, "A"},
		{90, "A-"},
		{87, "B+"},
		{83, "B"},
		{80, "B-"},
		{77, "C+"},
		{73, "C"},
		{70, "C-"},
		{60, "D"},
	}
}

// Scorer converts metric/target pairs into percentages, statuses and grades
type Scorer struct {
	thresholds Thresholds
	grades     []GradeBand
}

// NewScorer creates a scorer. grades must be ordered highest band first;
// nil uses DefaultGrades.
func NewScorer(thresholds Thresholds, grades []GradeBand) *Scorer {
	if grades == nil {
		grades = DefaultGrades()
	}
	return &Scorer{thresholds: thresholds, grades: grades}
}

// Thresholds returns the configured status cut-offs
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Percentage returns how close current is to target as a rounded value in 0..100.
// A non-positive target yields 0.
func Percentage(current, target float64, lowerIsBetter bool) float64 {
	if !(target > 0) || math.IsNaN(current) || math.IsInf(current, 0) {
		return 0
	}

	var pct float64
	if lowerIsBetter {
		pct = target / math.Max(current, epsilon) * 100
	} else {
		pct = current / target * 100
	}
	return math.Max(0, math.Min(100, math.Round(pct)))
}

// Status buckets a percentage
func (s *Scorer) Status(pct float64) types.Status {
	switch {
	case pct >= s.thresholds.Excellent:
		return types.StatusExcellent
	case pct >= s.thresholds.Good:
		return types.StatusGood
	default:
		return types.StatusNeedsImprovement
	}
}

// Grade maps a score to a letter grade
func (s *Scorer) Grade(score float64) string {
	for _, band := range s.grades {
		if score >= band.Min {
			return band.Grade
		}
	}
	return FailingGrade
}

// ScoreMetric averages metricKey across rows and scores the averages. When
// no row carries the metric, fallbackTarget is used as the target.
func (s *Scorer) ScoreMetric(rows []types.CategoryRow, metricKey string, fallbackTarget float64, lowerIsBetter bool) types.MetricScore {
	var currentSum, targetSum float64
	var currentCount, targetCount int

	for _, row := range rows {
		m, ok := row.Metric(metricKey)
		if !ok {
			continue
		}
		if isFinite(m.Current) {
			currentSum += m.Current
			currentCount++
		}
		if isFinite(m.Target) {
			targetSum += m.Target
			targetCount++
		}
	}

	current := 0.0
	if currentCount > 0 {
		current = currentSum / float64(currentCount)
	}
	target := fallbackTarget
	if targetCount > 0 {
		target = targetSum / float64(targetCount)
	}

	// a slice without observations scores 0 even when lower is better
	pct := 0.0
	if currentCount > 0 {
		pct = Percentage(current, target, lowerIsBetter)
	}
	return types.MetricScore{
		Current:    round2(current),
		Target:     round2(target),
		Percentage: pct,
		Status:     s.Status(pct),
	}
}

// UsablePercentages returns the percentages of the row's metric/target pairs
// where both values are positive
func UsablePercentages(row types.CategoryRow) []float64 {
	var out []float64
	for _, m := range row.Metrics {
		if !(m.Current > 0) || !(m.Target > 0) || !isFinite(m.Current) || !isFinite(m.Target) {
			continue
		}
		lower := m.LowerIsBetter || types.IsLowerBetter(m.Key)
		out = append(out, Percentage(m.Current, m.Target, lower))
	}
	return out
}

// AverageScore averages the per-row scores of rows, skipping rows without
// usable metrics. ok is false when no row contributed.
func AverageScore(rows []types.CategoryRow) (score float64, ok bool) {
	var sum float64
	var n int
	for _, row := range rows {
		pcts := UsablePercentages(row)
		if len(pcts) == 0 {
			continue
		}
		sum += mean(pcts)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ScoreOverall computes the integer score, grade and status of rows
func (s *Scorer) ScoreOverall(rows []types.CategoryRow) types.OverallScore {
	avg, _ := AverageScore(rows)
	score := int(math.Round(avg))
	return types.OverallScore{
		Score:  score,
		Grade:  s.Grade(float64(score)),
		Status: s.Status(float64(score)),
	}
}

// Summarize scores every metric of category over rows
func (s *Scorer) Summarize(rows []types.CategoryRow, category types.Category, fallback func(types.Category, string) float64) types.CategorySummary {
	slice := make([]types.CategoryRow, 0, len(rows))
	for _, row := range rows {
		if row.Category == category {
			slice = append(slice, row)
		}
	}

	summary := types.CategorySummary{
		Title:   types.CategoryTitles[category],
		Metrics: make(map[string]types.MetricScore, len(types.CategoryMetrics[category])),
	}
	for _, def := range types.CategoryMetrics[category] {
		target := 0.0
		if fallback != nil {
			target = fallback(category, def.Key)
		}
		summary.Metrics[def.Label] = s.ScoreMetric(slice, def.Key, target, def.LowerIsBetter)
	}
	return summary
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
