package trend

import (
	"context"
	"fmt"

	"github.com/dennisdiepolder/monti/okr/internal/metrics"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

// DefaultLookback is the number of preceding periods scored when none is requested
const DefaultLookback = 4

// ScoreFunc runs the full pipeline for one period and returns its overall score
type ScoreFunc func(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (types.OverallScore, error)

// Point is one period of a trend, in chronological order
type Point struct {
	Period string `json:"period"`
	Score  int    `json:"score"`
}

// Engine recomputes the pipeline across preceding periods
type Engine struct {
	periods  *period.Resolver
	score    ScoreFunc
	lookback int
	logger   zerolog.Logger
}

// NewEngine creates a trend engine. A non-positive lookback uses DefaultLookback.
func NewEngine(periods *period.Resolver, score ScoreFunc, lookback int, logger zerolog.Logger) *Engine {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Engine{
		periods:  periods,
		score:    score,
		lookback: lookback,
		logger:   logger.With().Str("component", "trend_engine").Logger(),
	}
}

// Compute returns the overall score of each of the lookback periods preceding periodID
func (e *Engine) Compute(ctx context.Context, g types.Granularity, periodID string, filter types.Filter, lookback int) types.TrendSeries {
	points := e.Points(ctx, g, periodID, filter, lookback)
	series := make(types.TrendSeries, len(points))
	for _, p := range points {
		series[p.Period] = p.Score
	}
	return series
}

// Points is Compute with the periods kept in chronological order.
// A period whose pipeline fails is scored 0.
func (e *Engine) Points(ctx context.Context, g types.Granularity, periodID string, filter types.Filter, lookback int) []Point {
	if lookback <= 0 {
		lookback = e.lookback
	}

	ids := e.periods.PreviousPeriods(g, periodID, lookback)
	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		score, err := e.scorePeriod(ctx, g, id, filter)
		if err != nil {
			metrics.Get().RecordTrendPeriodFailure()
			e.logger.Warn().
				Err(err).
				Str("granularity", string(g)).
				Str("period", id).
				Msg("trend period failed, scoring 0")
			score = 0
		}
		points = append(points, Point{Period: id, Score: score})
	}
	return points
}

// scorePeriod runs the score function, converting a panic into an error
func (e *Engine) scorePeriod(ctx context.Context, g types.Granularity, periodID string, filter types.Filter) (score int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scoring %s: %v", periodID, r)
		}
	}()

	overall, err := e.score(ctx, g, periodID, filter)
	if err != nil {
		return 0, err
	}
	return overall.Score, nil
}
