package okr

import (
	"context"
	"errors"
	"strings"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/scorecard"
	"github.com/dennisdiepolder/monti/okr/internal/types"
)

// errLegacyEmpty is returned when the legacy sheet has no row for the request
var errLegacyEmpty = errors.New("legacy sheet has no matching rows")

// Legacy sheet columns. Metric values live in metric_<key> and target_<key>.
var (
	legacyAgentList  = facts.Field{"AgentList", "Agents"}
	legacyAgentCount = facts.Field{"AgentCount"}
	legacyCalls      = facts.Field{"CallsTotal", "Calls"}
	legacyRecords    = facts.Field{"Records", "RecordCount"}
	legacyFirst      = facts.Field{"FirstActivity"}
	legacyLast       = facts.Field{"LastActivity"}
)

// legacy builds the payload from the flat pre-aggregated sheet
func (s *Service) legacy(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (types.OKRData, error) {
	table, err := s.reader.ReadEventRows(ctx, facts.CategoryLegacy)
	if err != nil {
		return types.OKRData{}, err
	}

	rng := s.periods.ResolveRange(g, periodID)
	var rows []types.CategoryRow
	for _, raw := range table.Rows {
		if table.String(raw, facts.FieldPeriod) != periodID || table.String(raw, facts.FieldGranularity) != string(g) {
			continue
		}
		if !matches(filter.Agent, table.String(raw, facts.FieldAgent)) ||
			!matches(filter.Campaign, table.String(raw, facts.FieldCampaign)) ||
			!matches(filter.Department, table.String(raw, facts.FieldDepartment)) {
			continue
		}

		category := types.Category(strings.ToLower(table.String(raw, facts.FieldCategory)))
		defs, ok := types.CategoryMetrics[category]
		if !ok {
			continue
		}

		row := types.CategoryRow{
			Granularity:   g,
			Period:        periodID,
			Campaign:      table.String(raw, facts.FieldCampaign),
			Department:    table.String(raw, facts.FieldDepartment),
			Category:      category,
			AgentList:     splitList(table.String(raw, legacyAgentList)),
			PeriodStart:   scorecard.FormatTimestamp(rng.Start),
			PeriodEnd:     scorecard.FormatTimestamp(rng.End),
			FirstActivity: table.String(raw, legacyFirst),
			LastActivity:  table.String(raw, legacyLast),
		}
		if agent := table.String(raw, facts.FieldAgent); agent != "" && len(row.AgentList) == 0 {
			row.AgentList = []string{agent}
		}
		row.AgentCount = len(row.AgentList)
		if n, ok := table.Number(raw, legacyAgentCount); ok {
			row.AgentCount = int(n)
		}
		if n, ok := table.Number(raw, legacyCalls); ok {
			row.CallsTotal = int(n)
		}
		if n, ok := table.Number(raw, legacyRecords); ok {
			row.Records = int(n)
		}

		for _, def := range defs {
			current, ok := table.Number(raw, facts.Field{"metric_" + def.Key})
			if !ok {
				continue
			}
			target, ok := table.Number(raw, facts.Field{"target_" + def.Key})
			if !ok {
				target = s.defaults.Get(category, def.Key)
			}
			row.Metrics = append(row.Metrics, types.MetricValue{
				Key:           def.Key,
				Current:       current,
				Target:        target,
				LowerIsBetter: def.LowerIsBetter,
			})
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return types.OKRData{}, errLegacyEmpty
	}
	return s.assemble(ctx, g, periodID, filter, rng, rows), nil
}

func matches(filter, value string) bool {
	return filter == "" || filter == value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
