package okr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/aggregator"
	"github.com/dennisdiepolder/monti/okr/internal/alerts"
	"github.com/dennisdiepolder/monti/okr/internal/cache"
	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/metrics"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/scorecard"
	"github.com/dennisdiepolder/monti/okr/internal/scoring"
	"github.com/dennisdiepolder/monti/okr/internal/targets"
	"github.com/dennisdiepolder/monti/okr/internal/trend"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a computed payload is reused
const DefaultCacheTTL = 5 * time.Minute

// Request selects one scorecard. Granularity is the raw request value.
type Request struct {
	Granularity string
	Period      string
	Filter      types.Filter
}

// Components are the pipeline stages the service orchestrates
type Components struct {
	Reader     *facts.Reader
	Periods    *period.Resolver
	Aggregator *aggregator.Aggregator
	Builder    *scorecard.Builder
	Scorer     *scoring.Scorer
	Alerts     *alerts.Generator
	Cache      *cache.Facade
}

// Options tunes the service
type Options struct {
	Defaults      targets.Defaults
	CacheTTL      time.Duration
	TrendLookback int
	// Now overrides the wall clock, used for LastUpdated
	Now func() time.Time
}

// Service computes scorecards. Get never fails; the worst case is the
// canonical empty payload.
type Service struct {
	reader     *facts.Reader
	periods    *period.Resolver
	aggregator *aggregator.Aggregator
	builder    *scorecard.Builder
	scorer     *scoring.Scorer
	alerts     *alerts.Generator
	cache      *cache.Facade
	trends     *trend.Engine

	defaults targets.Defaults
	ttl      time.Duration
	lookback int
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService wires the pipeline. The trend engine re-runs Score per period.
func NewService(c Components, opts Options, logger zerolog.Logger) *Service {
	if opts.Defaults == nil {
		opts.Defaults = targets.DefaultTargets()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.TrendLookback <= 0 {
		opts.TrendLookback = trend.DefaultLookback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if c.Cache == nil {
		c.Cache = cache.NewFacade(nil, logger)
	}

	s := &Service{
		reader:     c.Reader,
		periods:    c.Periods,
		aggregator: c.Aggregator,
		builder:    c.Builder,
		scorer:     c.Scorer,
		alerts:     c.Alerts,
		cache:      c.Cache,
		defaults:   opts.Defaults,
		ttl:        opts.CacheTTL,
		lookback:   opts.TrendLookback,
		now:        opts.Now,
		logger:     logger.With().Str("component", "okr_service").Logger(),
	}
	s.trends = trend.NewEngine(c.Periods, s.Score, opts.TrendLookback, logger)
	return s
}

// Normalize applies the request defaults: Week for an empty or unknown
// granularity, the current period for an empty or malformed id.
func (s *Service) Normalize(req Request) (types.Granularity, string) {
	g, ok := types.ParseGranularity(req.Granularity)
	if !ok {
		if req.Granularity != "" {
			s.logger.Warn().Str("granularity", req.Granularity).Msg("unknown granularity, using default")
		}
		g = types.DefaultGranularity
	}
	return g, s.periods.Normalize(g, req.Period)
}

// Get returns the scorecard for req, from cache when possible
func (s *Service) Get(ctx context.Context, req Request) types.OKRData {
	metrics.Get().RecordOKRRequest()
	g, periodID := s.Normalize(req)
	key := cache.Key(g, periodID, req.Filter)

	var data types.OKRData
	hit, err := s.cache.GetOrCompute(ctx, key, s.ttl, &data, func(ctx context.Context) error {
		computed, err := s.compute(ctx, g, periodID, req.Filter)
		if err != nil {
			return err
		}
		data = computed
		return nil
	})
	if err != nil {
		metrics.Get().RecordEmptyResponse()
		s.logger.Error().
			Err(err).
			Str("granularity", string(g)).
			Str("period", periodID).
			Msg("scorecard unavailable, returning empty payload")
		return types.EmptyOKRData(g, periodID, s.periods.ResolveRange(g, periodID), s.now().UTC())
	}

	s.logger.Debug().
		Str("cache_key", key).
		Bool("cache_hit", hit).
		Msg("scorecard served")
	return data
}

// Trend returns the scores of the periods preceding the requested one, oldest first
func (s *Service) Trend(ctx context.Context, req Request, lookback int) []trend.Point {
	metrics.Get().RecordTrendRequest()
	g, periodID := s.Normalize(req)
	if lookback <= 0 {
		lookback = s.lookback
	}
	return s.trends.Points(ctx, g, periodID, req.Filter, lookback)
}

// Score runs aggregation, row building and overall scoring for one period
func (s *Service) Score(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (types.OverallScore, error) {
	rows, _, err := s.buildRows(ctx, g, periodID, filter)
	if err != nil {
		return types.OverallScore{}, err
	}
	return s.scorer.ScoreOverall(rows), nil
}

// Invalidate removes the cached payload of req
func (s *Service) Invalidate(ctx context.Context, req Request) error {
	g, periodID := s.Normalize(req)
	return s.cache.Remove(ctx, cache.Key(g, periodID, req.Filter))
}

// InvalidateGranularity removes every cached payload of g
func (s *Service) InvalidateGranularity(ctx context.Context, g types.Granularity) (int, error) {
	return s.cache.RemovePrefix(ctx, cache.GranularityPrefix(g))
}

// compute runs the primary pipeline, then the legacy sheet. It errors only
// when both fail.
func (s *Service) compute(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (types.OKRData, error) {
	runID := uuid.NewString()
	logger := s.logger.With().
		Str("run_id", runID).
		Str("granularity", string(g)).
		Str("period", periodID).
		Logger()
	start := time.Now()
	m := metrics.Get()

	data, err := guard(func() (types.OKRData, error) {
		rows, rng, err := s.buildRows(ctx, g, periodID, filter)
		if err != nil {
			return types.OKRData{}, err
		}
		return s.assemble(ctx, g, periodID, filter, rng, rows), nil
	})
	if err == nil {
		m.RecordPipelineRun(time.Since(start))
		logger.Info().
			Int("campaigns", len(data.Campaigns)).
			Int("score", data.Overall.Score).
			Dur("duration", time.Since(start)).
			Msg("scorecard computed")
		return data, nil
	}

	m.RecordPipelineError()
	logger.Error().Err(err).Msg("primary aggregation failed, trying legacy sheet")

	m.RecordLegacyFallback()
	data, legacyErr := guard(func() (types.OKRData, error) {
		return s.legacy(ctx, g, periodID, filter)
	})
	if legacyErr != nil {
		return types.OKRData{}, fmt.Errorf("primary: %w; legacy: %v", err, legacyErr)
	}

	logger.Info().
		Int("campaigns", len(data.Campaigns)).
		Msg("scorecard served from legacy sheet")
	return data, nil
}

// buildRows aggregates one period into category rows
func (s *Service) buildRows(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) ([]types.CategoryRow, types.DateRange, error) {
	result, err := s.aggregator.Aggregate(ctx, g, periodID, filter)
	if err != nil {
		return nil, types.DateRange{}, err
	}
	resolver := targets.NewResolver(result.Goals, result.Range, s.defaults)
	return s.builder.Build(result, resolver, g, periodID), result.Range, nil
}

// assemble scores rows into the dashboard payload
func (s *Service) assemble(ctx context.Context, g types.Granularity, periodID string, filter types.Filter, rng types.DateRange, rows []types.CategoryRow) types.OKRData {
	data := types.OKRData{
		Period:      periodID,
		Granularity: g,
		LastUpdated: s.now().UTC(),
		Overall:     s.scorer.ScoreOverall(rows),
		Alerts:      s.alerts.Generate(rows),
		Campaigns:   s.campaignSummaries(rows),
	}
	for _, c := range types.AllCategories {
		data.SetCategory(c, s.scorer.Summarize(rows, c, s.defaults.Get))
	}

	users := make(map[string]struct{})
	records := 0
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, agent := range row.AgentList {
			users[agent] = struct{}{}
		}
		if !seen[row.Campaign] {
			seen[row.Campaign] = true
			records += row.Records
		}
	}
	data.Aggregated = types.AggregatedSummary{
		TotalUsers:     len(users),
		TotalCampaigns: len(data.Campaigns),
		TotalRecords:   records,
		DateRange:      rng,
	}

	data.Trends = s.trends.Compute(ctx, g, periodID, filter, s.lookback)
	return data
}

// campaignSummaries builds the leaderboard, best score first
func (s *Service) campaignSummaries(rows []types.CategoryRow) []types.CampaignSummary {
	byCampaign := make(map[string][]types.CategoryRow)
	var order []string
	for _, row := range rows {
		if _, ok := byCampaign[row.Campaign]; !ok {
			order = append(order, row.Campaign)
		}
		byCampaign[row.Campaign] = append(byCampaign[row.Campaign], row)
	}

	out := make([]types.CampaignSummary, 0, len(order))
	for _, name := range order {
		campaignRows := byCampaign[name]
		first := campaignRows[0]
		out = append(out, types.CampaignSummary{
			Name:       name,
			Overall:    s.scorer.ScoreOverall(campaignRows).Score,
			Agents:     first.AgentCount,
			Calls:      first.CallsTotal,
			Department: first.Department,
			Records:    first.Records,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// guard converts a panic in fn into an error
func guard(fn func() (types.OKRData, error)) (data types.OKRData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return fn()
}
