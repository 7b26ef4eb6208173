package scoring

import (
	"testing"

	"github.com/dennisdiepolder/monti/okr/internal/types"
)

func row(category types.Category, metrics ...types.MetricValue) types.CategoryRow {
	return types.CategoryRow{Campaign: "Acme", Category: category, Metrics: metrics}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		lower   bool
		want    float64
	}{
		{"on target", 30, 30, false, 100},
		{"rounded", 22, 30, false, 73},
		{"clamped above target", 70, 30, false, 100},
		{"zero target", 5, 0, false, 0},
		{"negative target", 5, -3, false, 0},
		{"lower is better capped", 5, 10, true, 100},
		{"lower is better penalized", 12, 6, true, 50},
		{"lower is better zero current", 0, 6, true, 100},
		{"negative current floors at zero", -4, 10, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.current, tt.target, tt.lower); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPercentageStaysInRange(t *testing.T) {
	for current := 0.0; current <= 500; current += 7.5 {
		for _, target := range []float64{0, 0.5, 3, 30, 250} {
			for _, lower := range []bool{false, true} {
				pct := Percentage(current, target, lower)
				if pct < 0 || pct > 100 {
					t.Fatalf("Percentage(%v, %v, %v) = %v out of range", current, target, lower, pct)
				}
			}
		}
	}
}

func TestStatusAndGrade(t *testing.T) {
	s := NewScorer(DefaultThresholds(), nil)

	statuses := []struct {
		pct  float64
		want types.Status
	}{
		{100, types.StatusExcellent},
		{90, types.StatusExcellent},
		{89, types.StatusGood},
		{73, types.StatusGood},
		{70, types.StatusGood},
		{69, types.StatusNeedsImprovement},
		{0, types.StatusNeedsImprovement},
	}
	for _, tt := range statuses {
		if got := s.Status(tt.pct); got != tt.want {
			t.Errorf("Status(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}

	grades := []struct {
		score float64
		want  string
	}{
		{100, "A+"},
		{95, "A"},
		{90, "A-"},
		{85, "B"},
		{73, "C"},
		{61, "D"},
		{59, "F"},
		{0, "F"},
	}
	for _, tt := range grades {
		if got := s.Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestGradesAreMonotonic(t *testing.T) {
	s := NewScorer(DefaultThresholds(), nil)
	rank := map[string]int{"F": 0}
	for i, band := range DefaultGrades() {
		rank[band.Grade] = len(DefaultGrades()) - i
	}

	prev := rank[s.Grade(0)]
	for score := 1.0; score <= 100; score++ {
		cur := rank[s.Grade(score)]
		if cur < prev {
			t.Fatalf("grade got worse at score %v", score)
		}
		prev = cur
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
	if err := (Thresholds{Excellent: 70, Good: 80, NeedsImprovement: 60}).Validate(); err == nil {
		t.Error("expected non-monotonic thresholds to fail")
	}
	if err := (Thresholds{Excellent: 120, Good: 80, NeedsImprovement: 60}).Validate(); err == nil {
		t.Error("expected out-of-range thresholds to fail")
	}
}

func TestScoreMetric(t *testing.T) {
	s := NewScorer(DefaultThresholds(), nil)

	t.Run("csat above target", func(t *testing.T) {
		rows := []types.CategoryRow{row(types.CategoryQuality, types.MetricValue{Key: types.MetricCSAT, Current: 4.5, Target: 4.0})}
		got := s.ScoreMetric(rows, types.MetricCSAT, 4.0, false)
		want := types.MetricScore{Current: 4.5, Target: 4.0, Percentage: 100, Status: types.StatusExcellent}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("tasks against default target", func(t *testing.T) {
		got := s.ScoreMetric(nil, types.MetricTasksCompleted, 30, false)
		if got.Percentage != 0 || got.Target != 30 {
			t.Errorf("expected empty slice to score 0 against 30, got %+v", got)
		}

		rows := []types.CategoryRow{row(types.CategoryProductivity, types.MetricValue{Key: types.MetricTasksCompleted, Current: 22, Target: 30})}
		got = s.ScoreMetric(rows, types.MetricTasksCompleted, 30, false)
		if got.Percentage != 73 || got.Status != types.StatusGood {
			t.Errorf("expected 73/good, got %+v", got)
		}
	})

	t.Run("averages across rows", func(t *testing.T) {
		rows := []types.CategoryRow{
			row(types.CategoryEfficiency, types.MetricValue{Key: types.MetricResponseTime, Current: 4, Target: 10}),
			row(types.CategoryEfficiency, types.MetricValue{Key: types.MetricResponseTime, Current: 6, Target: 10}),
		}
		got := s.ScoreMetric(rows, types.MetricResponseTime, 6, true)
		if got.Current != 5 || got.Target != 10 || got.Percentage != 100 {
			t.Errorf("expected 5 vs 10 at 100%%, got %+v", got)
		}
	})

	t.Run("zero targets", func(t *testing.T) {
		rows := []types.CategoryRow{
			row(types.CategoryGrowth, types.MetricValue{Key: types.MetricRevenue, Current: 1200, Target: 0}),
			row(types.CategoryGrowth, types.MetricValue{Key: types.MetricRevenue, Current: 300, Target: 0}),
		}
		got := s.ScoreMetric(rows, types.MetricRevenue, 0, false)
		if got.Percentage != 0 || got.Status != types.StatusNeedsImprovement {
			t.Errorf("expected 0/needs_improvement, got %+v", got)
		}
	})
}

func TestScoreOverall(t *testing.T) {
	s := NewScorer(DefaultThresholds(), nil)

	rows := []types.CategoryRow{
		row(types.CategoryProductivity,
			types.MetricValue{Key: types.MetricCallsPerHour, Current: 12, Target: 12},
			types.MetricValue{Key: types.MetricTasksCompleted, Current: 15, Target: 30},
		),
		row(types.CategoryEfficiency,
			types.MetricValue{Key: types.MetricResponseTime, Current: 12, Target: 6, LowerIsBetter: true},
			types.MetricValue{Key: types.MetricResolutionRate, Current: 0, Target: 0.7},
		),
		row(types.CategoryGrowth,
			types.MetricValue{Key: types.MetricConversionRate, Current: 0, Target: 0.25},
			types.MetricValue{Key: types.MetricRevenue, Current: 0, Target: 0},
		),
	}

	// productivity (100+50)/2 = 75, efficiency 50, growth skipped
	got := s.ScoreOverall(rows)
	want := types.OverallScore{Score: 63, Grade: "D", Status: types.StatusNeedsImprovement}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	empty := s.ScoreOverall(nil)
	if empty.Score != 0 || empty.Grade != "F" {
		t.Errorf("expected 0/F for no rows, got %+v", empty)
	}
}

func TestSummarize(t *testing.T) {
	s := NewScorer(DefaultThresholds(), nil)
	rows := []types.CategoryRow{
		row(types.CategoryQuality,
			types.MetricValue{Key: types.MetricCSAT, Current: 4.5, Target: 4.0},
			types.MetricValue{Key: types.MetricQAScore, Current: 68, Target: 85},
		),
		row(types.CategoryProductivity, types.MetricValue{Key: types.MetricTasksCompleted, Current: 99, Target: 1}),
	}

	summary := s.Summarize(rows, types.CategoryQuality, func(types.Category, string) float64 { return 1 })
	if summary.Title != "Quality" || len(summary.Metrics) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := summary.Metrics["Customer Satisfaction"]; got.Percentage != 100 {
		t.Errorf("expected csat 100%%, got %+v", got)
	}
	if got := summary.Metrics["QA Score"]; got.Percentage != 80 || got.Status != types.StatusGood {
		t.Errorf("expected qa 80/good, got %+v", got)
	}
}
