package aggregator

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/metrics"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

// DefaultResolvedKeywords mark a call as resolved when found in its wrap-up label
var DefaultResolvedKeywords = []string{"resolved", "sale", "converted"}

// Options tunes how rows are classified
type Options struct {
	// ResolvedKeywords are matched case-insensitively as substrings of the wrap-up label
	ResolvedKeywords []string
}

// Result is the outcome of one aggregation pass
type Result struct {
	Granularity types.Granularity
	Period      string
	Range       types.DateRange
	Filter      types.Filter

	// Campaigns holds one accumulator per campaign with at least one admitted row
	Campaigns map[string]*CampaignAccumulator
	// Departments is the campaign directory
	Departments map[string]string
	// Considered is the sorted union of campaigns seen in event rows and the directory
	Considered []string
	// Admitted counts admitted rows per event category
	Admitted map[facts.EventCategory]int
	// Goals are the raw goal rows, read in the same pass
	Goals *facts.Table
}

// CampaignNames returns the campaigns with admitted rows, sorted
func (r *Result) CampaignNames() []string {
	names := make([]string, 0, len(r.Campaigns))
	for name := range r.Campaigns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregator folds raw event rows into per-campaign accumulators
type Aggregator struct {
	reader   *facts.Reader
	periods  *period.Resolver
	keywords []string
	logger   zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(reader *facts.Reader, periods *period.Resolver, opts Options, logger zerolog.Logger) *Aggregator {
	keywords := opts.ResolvedKeywords
	if len(keywords) == 0 {
		keywords = DefaultResolvedKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	return &Aggregator{
		reader:   reader,
		periods:  periods,
		keywords: lowered,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate resolves the period range once, reads every source once and
// folds the rows that pass the filter into a fresh accumulator map.
func (a *Aggregator) Aggregate(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (*Result, error) {
	rng := a.periods.ResolveRange(g, periodID)

	departments, err := a.reader.CampaignToDepartment(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Granularity: g,
		Period:      periodID,
		Range:       rng,
		Filter:      filter,
		Campaigns:   make(map[string]*CampaignAccumulator),
		Departments: departments,
		Admitted:    make(map[facts.EventCategory]int, len(facts.ActivityCategories)),
	}

	considered := make(map[string]struct{}, len(departments))
	for campaign := range departments {
		considered[campaign] = struct{}{}
	}

	m := metrics.Get()
	for _, category := range facts.ActivityCategories {
		table, err := a.reader.ReadEventRows(ctx, category)
		if err != nil {
			return nil, err
		}

		admitted := 0
		for _, row := range table.Rows {
			campaign := table.String(row, facts.FieldCampaign)
			if campaign == "" {
				continue
			}
			considered[campaign] = struct{}{}

			at, ok := table.Time(row, facts.DateFields[category])
			if !ok || !rng.Contains(at) {
				continue
			}
			if filter.Campaign != "" && filter.Campaign != campaign {
				continue
			}
			agent := table.String(row, facts.FieldAgent)
			if filter.Agent != "" && filter.Agent != agent {
				continue
			}
			if filter.Department != "" && filter.Department != departments[campaign] {
				continue
			}

			acc := result.Campaigns[campaign]
			if acc == nil {
				acc = NewCampaignAccumulator(campaign)
				result.Campaigns[campaign] = acc
			}
			a.fold(acc, category, table, row)
			acc.Observe(agent, at)
			admitted++
		}

		result.Admitted[category] = admitted
		m.RecordRowsAdmitted(string(category), admitted)
	}

	goals, err := a.reader.ReadEventRows(ctx, facts.CategoryGoals)
	if err != nil {
		return nil, err
	}
	result.Goals = goals

	for campaign := range considered {
		if filter.Campaign != "" && filter.Campaign != campaign {
			continue
		}
		result.Considered = append(result.Considered, campaign)
	}
	sort.Strings(result.Considered)

	a.logger.Debug().
		Str("granularity", string(g)).
		Str("period", periodID).
		Int("campaigns_considered", len(result.Considered)).
		Int("campaigns_active", len(result.Campaigns)).
		Msg("aggregation complete")

	return result, nil
}

// fold applies one admitted row of category to acc
func (a *Aggregator) fold(acc *CampaignAccumulator, category facts.EventCategory, table *facts.Table, row facts.Record) {
	acc.Records++

	switch category {
	case facts.CategoryCalls:
		acc.Calls++
		if talk, ok := table.Number(row, facts.FieldTalkTime); ok {
			acc.TalkMinutes += talk
		}
		if csat, ok := table.Number(row, facts.FieldCSAT); ok {
			acc.CSATSum += csat
			acc.CSATCount++
		}
		if a.isResolved(table.String(row, facts.FieldWrapup)) {
			acc.Resolved++
		}

	case facts.CategoryAttendance:
		if minutes, ok := table.Number(row, facts.FieldDuration); ok {
			acc.AttendanceMinutes += minutes
		}

	case facts.CategoryQuality:
		if pct, ok := table.Number(row, facts.FieldQAPercent); ok {
			acc.QASum += pct
			acc.QACount++
		}

	case facts.CategoryTasks:
		acc.TasksTotal++
		if isCompleted(table.String(row, facts.FieldTaskStatus)) {
			acc.TasksCompleted++
		}

	case facts.CategoryCoaching:
		if rating, ok := table.Number(row, facts.FieldRating); ok {
			acc.FeedbackSum += rating
			acc.FeedbackCount++
		}
	}
}

func (a *Aggregator) isResolved(label string) bool {
	if label == "" {
		return false
	}
	label = strings.ToLower(label)
	for _, k := range a.keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

// isCompleted treats a missing status as done
func isCompleted(status string) bool {
	if status == "" {
		return true
	}
	status = strings.ToLower(status)
	return strings.Contains(status, "done") || strings.Contains(status, "complete")
}

// CampaignAccumulator holds the running statistics of one campaign
type CampaignAccumulator struct {
	Campaign string

	Calls             int
	TalkMinutes       float64
	CSATSum           float64
	CSATCount         int
	Resolved          int
	AttendanceMinutes float64
	QASum             float64
	QACount           int
	TasksCompleted    int
	TasksTotal        int
	FeedbackSum       float64
	FeedbackCount     int

	// Records counts admitted rows across all sources
	Records int

	FirstActivity time.Time
	LastActivity  time.Time

	agents map[string]struct{}
}

// NewCampaignAccumulator creates an empty accumulator for campaign
func NewCampaignAccumulator(campaign string) *CampaignAccumulator {
	return &CampaignAccumulator{
		Campaign: campaign,
		agents:   make(map[string]struct{}),
	}
}

// Observe records agent as active and extends the activity window to at
func (c *CampaignAccumulator) Observe(agent string, at time.Time) {
	if agent != "" {
		c.agents[agent] = struct{}{}
	}
	if c.FirstActivity.IsZero() || at.Before(c.FirstActivity) {
		c.FirstActivity = at
	}
	if c.LastActivity.IsZero() || at.After(c.LastActivity) {
		c.LastActivity = at
	}
}

// Agents returns the distinct agent identities seen, sorted
func (c *CampaignAccumulator) Agents() []string {
	out := make([]string, 0, len(c.agents))
	for agent := range c.agents {
		out = append(out, agent)
	}
	sort.Strings(out)
	return out
}

// AgentCount returns the number of distinct agents seen
func (c *CampaignAccumulator) AgentCount() int {
	return len(c.agents)
}
