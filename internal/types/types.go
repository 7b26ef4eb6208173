package types

import "time"

// Granularity is the time-bucket unit a scorecard is computed over
type Granularity string

const (
	GranularityHour    Granularity = "Hour"
	GranularityDay     Granularity = "Day"
	GranularityWeek    Granularity = "Week"
	GranularityBiWeek  Granularity = "BiWeek"
	GranularityMonth   Granularity = "Month"
	GranularityQuarter Granularity = "Quarter"
	GranularityYear    Granularity = "Year"
)

// AllGranularities lists every supported granularity, finest first
var AllGranularities = []Granularity{
	GranularityHour,
	GranularityDay,
	GranularityWeek,
	GranularityBiWeek,
	GranularityMonth,
	GranularityQuarter,
	GranularityYear,
}

// DefaultGranularity is used when a request omits or misspells the granularity
const DefaultGranularity = GranularityWeek

// ParseGranularity matches s case-sensitively against the known granularities
func ParseGranularity(s string) (Granularity, bool) {
	for _, g := range AllGranularities {
		if string(g) == s {
			return g, true
		}
	}
	return "", false
}

// DateRange is an inclusive [Start, End] interval in UTC
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, bounds included
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Filter narrows an aggregation. Empty fields match everything.
type Filter struct {
	Agent      string `json:"agent,omitempty"`
	Campaign   string `json:"campaign,omitempty"`
	Department string `json:"department,omitempty"`
}

// Category is one of the five fixed OKR categories
type Category string

const (
	CategoryProductivity Category = "productivity"
	CategoryQuality      Category = "quality"
	CategoryEfficiency   Category = "efficiency"
	CategoryEngagement   Category = "engagement"
	CategoryGrowth       Category = "growth"
)

// AllCategories returns the categories in presentation order
var AllCategories = []Category{
	CategoryProductivity,
	CategoryQuality,
	CategoryEfficiency,
	CategoryEngagement,
	CategoryGrowth,
}

// CategoryTitles maps categories to their display titles
var CategoryTitles = map[Category]string{
	CategoryProductivity: "Productivity",
	CategoryQuality:      "Quality",
	CategoryEfficiency:   "Efficiency",
	CategoryEngagement:   "Engagement",
	CategoryGrowth:       "Growth",
}

// Metric keys
const (
	MetricCallsPerHour      = "calls_per_hour"
	MetricTasksCompleted    = "tasks_completed"
	MetricCSAT              = "csat"
	MetricQAScore           = "qa_score"
	MetricResponseTime      = "response_time"
	MetricResolutionRate    = "resolution_rate"
	MetricParticipationRate = "participation_rate"
	MetricFeedbackScore     = "feedback_score"
	MetricConversionRate    = "conversion_rate"
	MetricRevenue           = "revenue"
)

// MetricDef describes one metric slot of a category
type MetricDef struct {
	Key           string
	Label         string
	LowerIsBetter bool
}

// CategoryMetrics is the fixed metric layout of each category
var CategoryMetrics = map[Category][]MetricDef{
	CategoryProductivity: {
		{Key: MetricCallsPerHour, Label: "Calls per Hour"},
		{Key: MetricTasksCompleted, Label: "Tasks Completed"},
	},
	CategoryQuality: {
		{Key: MetricCSAT, Label: "Customer Satisfaction"},
		{Key: MetricQAScore, Label: "QA Score"},
	},
	CategoryEfficiency: {
		{Key: MetricResponseTime, Label: "Response Time", LowerIsBetter: true},
		{Key: MetricResolutionRate, Label: "Resolution Rate"},
	},
	CategoryEngagement: {
		{Key: MetricParticipationRate, Label: "Participation Rate"},
		{Key: MetricFeedbackScore, Label: "Feedback Score"},
	},
	CategoryGrowth: {
		{Key: MetricConversionRate, Label: "Conversion Rate"},
		{Key: MetricRevenue, Label: "Revenue"},
	},
}

// IsLowerBetter reports whether a smaller value of the metric is an improvement
func IsLowerBetter(metricKey string) bool {
	return metricKey == MetricResponseTime
}
