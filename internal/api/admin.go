package api

import (
	"errors"
	"net/http"

	"github.com/dennisdiepolder/monti/okr/internal/cache"
	"github.com/dennisdiepolder/monti/okr/internal/okr"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

// AdminHandler exposes cache maintenance to admins
type AdminHandler struct {
	service *okr.Service
	logger  zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service *okr.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// InvalidateCache drops cached scorecards. With a period it removes the one
// payload matching the query; without it every payload of the granularity.
// DELETE /api/okr/cache?granularity=Week[&period=2024-W10&campaign=...]
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, ok := types.ParseGranularity(q.Get("granularity"))
	if !ok {
		http.Error(w, `{"error":"granularity is required"}`, http.StatusBadRequest)
		return
	}

	if q.Get("period") == "" {
		removed, err := h.service.InvalidateGranularity(r.Context(), g)
		if errors.Is(err, cache.ErrPrefixUnsupported) {
			http.Error(w, `{"error":"cache backend cannot purge by granularity, pass a period"}`, http.StatusNotImplemented)
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Str("granularity", string(g)).Msg("failed to invalidate cache")
			http.Error(w, `{"error":"failed to invalidate cache"}`, http.StatusInternalServerError)
			return
		}
		h.logger.Info().Str("granularity", string(g)).Int("removed", removed).Msg("cache invalidated")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "cache invalidated",
			"removed": removed,
		})
		return
	}

	req := okr.Request{
		Granularity: string(g),
		Period:      q.Get("period"),
		Filter: types.Filter{
			Agent:      q.Get("agent"),
			Campaign:   q.Get("campaign"),
			Department: q.Get("department"),
		},
	}
	if err := h.service.Invalidate(r.Context(), req); err != nil {
		h.logger.Error().Err(err).Str("period", req.Period).Msg("failed to invalidate cache entry")
		http.Error(w, `{"error":"failed to invalidate cache"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info().Str("granularity", string(g)).Str("period", req.Period).Msg("cache entry invalidated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "cache entry invalidated",
		"removed": 1,
	})
}
