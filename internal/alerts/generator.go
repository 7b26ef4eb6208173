package alerts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/scoring"
	"github.com/dennisdiepolder/monti/okr/internal/types"
)

// MaxAlerts caps the alerts returned per payload
const MaxAlerts = 10

// highGap is how far below the needs-improvement threshold a score must fall to be high severity
const highGap = 20.0

// AgentCategory labels per-agent alerts
const AgentCategory = "agent"

// Generator scans scored rows for underperforming categories and agents
type Generator struct {
	thresholds scoring.Thresholds
	now        func() time.Time
}

// NewGenerator creates a generator using the wall clock
func NewGenerator(thresholds scoring.Thresholds) *Generator {
	return NewGeneratorWithClock(thresholds, time.Now)
}

// NewGeneratorWithClock creates a generator with an injectable clock
func NewGeneratorWithClock(thresholds scoring.Thresholds, now func() time.Time) *Generator {
	return &Generator{thresholds: thresholds, now: now}
}

// Generate returns category alerts then agent alerts, high severity first,
// capped at MaxAlerts. Categories without rows and agents without usable
// metrics produce nothing.
func (g *Generator) Generate(rows []types.CategoryRow) []types.Alert {
	now := g.now().UTC()
	var high, medium []types.Alert

	emit := func(alert types.Alert, score float64) {
		severity, ok := g.severity(score)
		if !ok {
			return
		}
		alert.Severity = severity
		alert.Timestamp = now
		if severity == types.SeverityHigh {
			high = append(high, alert)
		} else {
			medium = append(medium, alert)
		}
	}

	byCategory := make(map[types.Category][]types.CategoryRow)
	for _, row := range rows {
		byCategory[row.Category] = append(byCategory[row.Category], row)
	}
	for _, category := range types.AllCategories {
		slice := byCategory[category]
		score, ok := scoring.AverageScore(slice)
		if !ok {
			continue
		}
		pct := int(math.Round(score))
		emit(types.Alert{
			Category: string(category),
			Message:  fmt.Sprintf("%s score at %d%%, below the %.0f%% goal", types.CategoryTitles[category], pct, g.thresholds.Good),
			Campaign: singleCampaign(slice),
		}, score)
	}

	byAgent := make(map[string][]types.CategoryRow)
	for _, row := range rows {
		for _, agent := range row.AgentList {
			byAgent[agent] = append(byAgent[agent], row)
		}
	}
	agents := make([]string, 0, len(byAgent))
	for agent := range byAgent {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	for _, agent := range agents {
		var pcts []float64
		for _, row := range byAgent[agent] {
			pcts = append(pcts, scoring.UsablePercentages(row)...)
		}
		if len(pcts) == 0 {
			continue
		}
		var sum float64
		for _, p := range pcts {
			sum += p
		}
		score := sum / float64(len(pcts))
		emit(types.Alert{
			Category: AgentCategory,
			Message:  fmt.Sprintf("%s is at %d%% across %d metrics", agent, int(math.Round(score)), len(pcts)),
			Campaign: singleCampaign(byAgent[agent]),
			Agent:    agent,
		}, score)
	}

	out := append(high, medium...)
	if len(out) > MaxAlerts {
		out = out[:MaxAlerts]
	}
	if out == nil {
		out = []types.Alert{}
	}
	return out
}

// severity classifies a score; ok is false when the score needs no alert
func (g *Generator) severity(score float64) (types.AlertSeverity, bool) {
	switch {
	case score < g.thresholds.NeedsImprovement-highGap:
		return types.SeverityHigh, true
	case score < g.thresholds.Good:
		return types.SeverityMedium, true
	default:
		return "", false
	}
}

// singleCampaign returns the campaign shared by all rows, or ""
func singleCampaign(rows []types.CategoryRow) string {
	if len(rows) == 0 {
		return ""
	}
	campaign := rows[0].Campaign
	for _, row := range rows[1:] {
		if row.Campaign != campaign {
			return ""
		}
	}
	return campaign
}
