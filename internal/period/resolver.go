package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	hourLayout  = "2006-01-02T15:00:00Z"
)

// TrailingWindow is the range used for granularities the resolver does not know
const TrailingWindow = 7 * 24 * time.Hour

// Resolver maps (granularity, period id) pairs to date ranges and back.
// All computations are done in UTC.
type Resolver struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewResolver creates a resolver using the wall clock
func NewResolver(logger zerolog.Logger) *Resolver {
	return NewResolverWithClock(time.Now, logger)
}

// NewResolverWithClock creates a resolver with an injectable clock
func NewResolverWithClock(now func() time.Time, logger zerolog.Logger) *Resolver {
	return &Resolver{
		now:    now,
		logger: logger.With().Str("component", "period_resolver").Logger(),
	}
}

// CurrentPeriod returns the id of the period containing now
func (r *Resolver) CurrentPeriod(g types.Granularity) string {
	return r.KeyFromDate(g, r.now())
}

// KeyFromDate derives the period id containing t.
// Unknown granularities fall back to the day key.
func (r *Resolver) KeyFromDate(g types.Granularity, t time.Time) string {
	t = t.UTC()
	switch g {
	case types.GranularityYear:
		return strconv.Itoa(t.Year())
	case types.GranularityQuarter:
		return fmt.Sprintf("Q%d-%d", (int(t.Month())-1)/3+1, t.Year())
	case types.GranularityMonth:
		return t.Format(monthLayout)
	case types.GranularityWeek:
		// ISOWeek places the date on its week's Thursday before picking the year
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case types.GranularityBiWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-BW%02d", year, (week+1)/2)
	case types.GranularityHour:
		return t.Truncate(time.Hour).Format(hourLayout)
	default:
		return t.Format(dayLayout)
	}
}

// ResolveRange converts a period id into its inclusive date range.
// Malformed or empty ids resolve to the current period; unknown
// granularities resolve to the trailing week ending now.
func (r *Resolver) ResolveRange(g types.Granularity, periodID string) types.DateRange {
	if _, ok := types.ParseGranularity(string(g)); !ok {
		now := r.now().UTC()
		r.logger.Warn().
			Str("granularity", string(g)).
			Msg("unknown granularity, using trailing 7-day window")
		return types.DateRange{Start: now.Add(-TrailingWindow), End: now}
	}

	if periodID != "" {
		if start, ok := parseStart(g, periodID); ok {
			return types.DateRange{Start: start, End: endOf(g, start)}
		}
		r.logger.Warn().
			Str("granularity", string(g)).
			Str("period", periodID).
			Msg("malformed period id, using current period")
	}

	start, _ := parseStart(g, r.CurrentPeriod(g))
	return types.DateRange{Start: start, End: endOf(g, start)}
}

// Normalize returns periodID if it is well formed for g, otherwise the current period id
func (r *Resolver) Normalize(g types.Granularity, periodID string) string {
	if periodID != "" {
		if _, ok := parseStart(g, periodID); ok {
			return periodID
		}
	}
	return r.CurrentPeriod(g)
}

// PreviousPeriods returns the count period ids immediately preceding periodID, oldest first.
// Each id is re-derived from the current range start minus i units.
func (r *Resolver) PreviousPeriods(g types.Granularity, periodID string, count int) []string {
	if count <= 0 {
		return []string{}
	}

	start := r.ResolveRange(g, periodID).Start
	out := make([]string, 0, count)
	for i := count; i >= 1; i-- {
		out = append(out, r.KeyFromDate(g, stepBack(g, start, i)))
	}
	return out
}

func stepBack(g types.Granularity, t time.Time, n int) time.Time {
	switch g {
	case types.GranularityYear:
		return t.AddDate(-n, 0, 0)
	case types.GranularityQuarter:
		return t.AddDate(0, -3*n, 0)
	case types.GranularityMonth:
		return t.AddDate(0, -n, 0)
	case types.GranularityWeek:
		return t.AddDate(0, 0, -7*n)
	case types.GranularityBiWeek:
		return t.AddDate(0, 0, -14*n)
	case types.GranularityHour:
		return t.Add(-time.Duration(n) * time.Hour)
	default:
		return t.AddDate(0, 0, -n)
	}
}

// endOf returns the last instant (millisecond precision) of the unit starting at start
func endOf(g types.Granularity, start time.Time) time.Time {
	var next time.Time
	switch g {
	case types.GranularityYear:
		next = start.AddDate(1, 0, 0)
	case types.GranularityQuarter:
		next = start.AddDate(0, 3, 0)
	case types.GranularityMonth:
		next = start.AddDate(0, 1, 0)
	case types.GranularityWeek:
		next = start.AddDate(0, 0, 7)
	case types.GranularityBiWeek:
		next = start.AddDate(0, 0, 14)
	case types.GranularityHour:
		next = start.Add(time.Hour)
	default:
		next = start.AddDate(0, 0, 1)
	}
	return next.Add(-time.Millisecond)
}

// parseStart parses periodID for g and returns the first instant of the period
func parseStart(g types.Granularity, periodID string) (time.Time, bool) {
	id := strings.TrimSpace(periodID)
	switch g {
	case types.GranularityYear:
		if len(id) != 4 || !allDigits(id) {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(id)
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true

	case types.GranularityQuarter:
		if len(id) != 7 || id[0] != 'Q' || id[2] != '-' || !allDigits(id[1:2]) || !allDigits(id[3:]) {
			return time.Time{}, false
		}
		q := int(id[1] - '0')
		year, _ := strconv.Atoi(id[3:])
		if q < 1 || q > 4 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true

	case types.GranularityMonth:
		t, err := time.Parse(monthLayout, id)
		if err != nil {
			return time.Time{}, false
		}
		return t, true

	case types.GranularityWeek:
		year, week, ok := splitWeekID(id, "-W")
		if !ok || week < 1 || week > isoWeeksInYear(year) {
			return time.Time{}, false
		}
		return isoWeekStart(year, week), true

	case types.GranularityBiWeek:
		year, biWeek, ok := splitWeekID(id, "-BW")
		if !ok || biWeek < 1 || biWeek > (isoWeeksInYear(year)+1)/2 {
			return time.Time{}, false
		}
		return isoWeekStart(year, 2*(biWeek-1)+1), true

	case types.GranularityDay:
		t, err := time.Parse(dayLayout, id)
		if err != nil {
			return time.Time{}, false
		}
		return t, true

	case types.GranularityHour:
		t, err := time.Parse(hourLayout, id)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func splitWeekID(id, sep string) (year, n int, ok bool) {
	idx := strings.Index(id, sep)
	if idx != 4 {
		return 0, 0, false
	}
	num := id[idx+len(sep):]
	if len(num) != 2 || !allDigits(num) || !allDigits(id[:idx]) {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(id[:idx])
	n, _ = strconv.Atoi(num)
	return year, n, true
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// isoWeekStart returns the Monday of ISO week `week` of `year`.
// Week 1 always contains January 4th.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // 0 for Monday
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// isoWeeksInYear returns 52 or 53. December 28th always lies in the last ISO week.
func isoWeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}
