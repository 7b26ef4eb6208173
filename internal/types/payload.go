package types

import "time"

// CategorySummary is the per-category block of the dashboard payload
type CategorySummary struct {
	Title   string                 `json:"title"`
	Metrics map[string]MetricScore `json:"metrics"`
}

// AggregatedSummary holds dataset-wide totals
type AggregatedSummary struct {
	TotalUsers     int       `json:"totalUsers"`
	TotalCampaigns int       `json:"totalCampaigns"`
	TotalRecords   int       `json:"totalRecords"`
	DateRange      DateRange `json:"dateRange"`
}

// CampaignSummary is one entry of the campaign leaderboard
type CampaignSummary struct {
	Name       string `json:"name"`
	Overall    int    `json:"overall"`
	Agents     int    `json:"agents"`
	Calls      int    `json:"calls"`
	Department string `json:"department"`
	Records    int    `json:"records"`
}

// OKRData is the dashboard payload returned to presentation layers
type OKRData struct {
	Period       string            `json:"period"`
	Granularity  Granularity       `json:"granularity"`
	LastUpdated  time.Time         `json:"lastUpdated"`
	Overall      OverallScore      `json:"overall"`
	Productivity CategorySummary   `json:"productivity"`
	Quality      CategorySummary   `json:"quality"`
	Efficiency   CategorySummary   `json:"efficiency"`
	Engagement   CategorySummary   `json:"engagement"`
	Growth       CategorySummary   `json:"growth"`
	Aggregated   AggregatedSummary `json:"aggregated"`
	Alerts       []Alert           `json:"alerts"`
	Campaigns    []CampaignSummary `json:"campaigns"`
	Trends       TrendSeries       `json:"trends"`
}

// SetCategory stores summary under the payload field for c
func (d *OKRData) SetCategory(c Category, summary CategorySummary) {
	switch c {
	case CategoryProductivity:
		d.Productivity = summary
	case CategoryQuality:
		d.Quality = summary
	case CategoryEfficiency:
		d.Efficiency = summary
	case CategoryEngagement:
		d.Engagement = summary
	case CategoryGrowth:
		d.Growth = summary
	}
}

// EmptyOKRData is the canonical payload returned when nothing could be computed
func EmptyOKRData(g Granularity, period string, rng DateRange, now time.Time) OKRData {
	data := OKRData{
		Period:      period,
		Granularity: g,
		LastUpdated: now,
		Overall:     OverallScore{Score: 0, Grade: "F", Status: StatusNeedsImprovement},
		Aggregated:  AggregatedSummary{DateRange: rng},
		Alerts:      []Alert{},
		Campaigns:   []CampaignSummary{},
		Trends:      TrendSeries{},
	}
	for _, c := range AllCategories {
		data.SetCategory(c, CategorySummary{Title: CategoryTitles[c], Metrics: map[string]MetricScore{}})
	}
	return data
}
