package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dennisdiepolder/monti/okr/internal/auth"
	"github.com/dennisdiepolder/monti/okr/internal/okr"
	"github.com/dennisdiepolder/monti/okr/internal/trend"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

// MaxLookback bounds the lookback and count query parameters
const MaxLookback = 52

// OKRHandler serves scorecards and trends
type OKRHandler struct {
	service *okr.Service
	logger  zerolog.Logger
}

// NewOKRHandler creates a new OKRHandler
func NewOKRHandler(service *okr.Service, logger zerolog.Logger) *OKRHandler {
	return &OKRHandler{
		service: service,
		logger:  logger.With().Str("component", "okr_handler").Logger(),
	}
}

// TrendResponse is the body of GET /api/okr/trend
type TrendResponse struct {
	Granularity types.Granularity `json:"granularity"`
	Period      string            `json:"period"`
	Points      []trend.Point     `json:"points"`
}

// GetOKR returns the scorecard for the requested period
// GET /api/okr?granularity=Week&period=2024-W10&agent=&campaign=&department=
func (h *OKRHandler) GetOKR(w http.ResponseWriter, r *http.Request) {
	req, ok := scopedRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Get(r.Context(), req))
}

// GetTrend returns the scores of the periods preceding the requested one
// GET /api/okr/trend?granularity=Month&period=2024-03&lookback=6
func (h *OKRHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	req, ok := scopedRequest(w, r)
	if !ok {
		return
	}
	lookback, err := boundedInt(r.URL.Query().Get("lookback"), 0)
	if err != nil {
		http.Error(w, `{"error":"lookback must be an integer between 1 and 52"}`, http.StatusBadRequest)
		return
	}

	g, periodID := h.service.Normalize(req)
	writeJSON(w, http.StatusOK, TrendResponse{
		Granularity: g,
		Period:      periodID,
		Points:      h.service.Trend(r.Context(), req, lookback),
	})
}

// scopedRequest reads the query into a Request and applies the caller's
// department scope. It writes the error response itself.
func scopedRequest(w http.ResponseWriter, r *http.Request) (okr.Request, bool) {
	q := r.URL.Query()
	req := okr.Request{
		Granularity: q.Get("granularity"),
		Period:      q.Get("period"),
		Filter: types.Filter{
			Agent:      q.Get("agent"),
			Campaign:   q.Get("campaign"),
			Department: q.Get("department"),
		},
	}

	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		return req, true
	}
	department, err := claims.ScopeDepartment(req.Filter.Department)
	if err != nil {
		if errors.Is(err, auth.ErrDepartmentForbidden) {
			http.Error(w, `{"error":"department not allowed"}`, http.StatusForbidden)
			return okr.Request{}, false
		}
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return okr.Request{}, false
	}
	req.Filter.Department = department
	return req, true
}

// boundedInt parses an optional positive integer up to MaxLookback
func boundedInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > MaxLookback {
		return 0, errors.New("out of range")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
