package types

import "time"

// MetricValue is one metric/target pair on a category row
type MetricValue struct {
	Key           string  `json:"key"`
	Current       float64 `json:"current"`
	Target        float64 `json:"target"`
	LowerIsBetter bool    `json:"lowerIsBetter,omitempty"`
}

// CategoryRow is one campaign's metric/target snapshot for one category in one period
type CategoryRow struct {
	Granularity   Granularity   `json:"granularity"`
	Period        string        `json:"period"`
	Campaign      string        `json:"campaign"`
	Department    string        `json:"department"`
	Category      Category      `json:"category"`
	Metrics       []MetricValue `json:"metrics"`
	AgentCount    int           `json:"agentCount"`
	AgentList     []string      `json:"agentList"`
	CallsTotal    int           `json:"callsTotal"`
	Records       int           `json:"records"`
	PeriodStart   string        `json:"periodStart"`
	PeriodEnd     string        `json:"periodEnd"`
	FirstActivity string        `json:"firstActivity,omitempty"`
	LastActivity  string        `json:"lastActivity,omitempty"`
}

// Metric returns the metric with the given key, if the row carries it
func (r CategoryRow) Metric(key string) (MetricValue, bool) {
	for _, m := range r.Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return MetricValue{}, false
}

// Status is a performance bucket derived from a percentage
type Status string

const (
	StatusExcellent        Status = "excellent"
	StatusGood             Status = "good"
	StatusNeedsImprovement Status = "needs_improvement"
)

// MetricScore is a scored metric/target pair
type MetricScore struct {
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Percentage float64 `json:"percentage"` // 0-100
	Status     Status  `json:"status"`
}

// OverallScore summarizes a set of rows
type OverallScore struct {
	Score  int    `json:"score"` // 0-100
	Grade  string `json:"grade"`
	Status Status `json:"status"`
}

// AlertSeverity labels how far below expectations a score is
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
)

// Alert flags an underperforming category or agent
type Alert struct {
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	Severity  AlertSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
	Campaign  string        `json:"campaign,omitempty"`
	Agent     string        `json:"agent,omitempty"`
}

// TrendSeries maps period ids to overall scores
type TrendSeries map[string]int
