package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

// defaultPreviousCount is the number of earlier periods listed by default
const defaultPreviousCount = 4

// PeriodsHandler serves period pickers
type PeriodsHandler struct {
	periods *period.Resolver
	logger  zerolog.Logger
}

// NewPeriodsHandler creates a new PeriodsHandler
func NewPeriodsHandler(periods *period.Resolver, logger zerolog.Logger) *PeriodsHandler {
	return &PeriodsHandler{
		periods: periods,
		logger:  logger.With().Str("component", "periods_handler").Logger(),
	}
}

// PeriodsResponse is the body of GET /api/periods
type PeriodsResponse struct {
	Granularity types.Granularity `json:"granularity"`
	Current     string            `json:"current"`
	Period      string            `json:"period"`
	Range       types.DateRange   `json:"range"`
	Previous    []string          `json:"previous"`
}

// GetPeriods describes a period and the ones preceding it
// GET /api/periods?granularity=Month&period=2024-03&count=3
func (h *PeriodsHandler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, ok := types.ParseGranularity(q.Get("granularity"))
	if !ok {
		if q.Get("granularity") != "" {
			http.Error(w, `{"error":"unknown granularity"}`, http.StatusBadRequest)
			return
		}
		g = types.DefaultGranularity
	}

	count, err := boundedInt(q.Get("count"), defaultPreviousCount)
	if err != nil {
		http.Error(w, `{"error":"count must be an integer between 1 and 52"}`, http.StatusBadRequest)
		return
	}

	periodID := h.periods.Normalize(g, q.Get("period"))
	writeJSON(w, http.StatusOK, PeriodsResponse{
		Granularity: g,
		Current:     h.periods.CurrentPeriod(g),
		Period:      periodID,
		Range:       h.periods.ResolveRange(g, periodID),
		Previous:    h.periods.PreviousPeriods(g, periodID, count),
	})
}
