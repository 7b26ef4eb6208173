package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/aggregator"
	"github.com/dennisdiepolder/monti/okr/internal/alerts"
	"github.com/dennisdiepolder/monti/okr/internal/auth"
	"github.com/dennisdiepolder/monti/okr/internal/cache"
	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/okr"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/scorecard"
	"github.com/dennisdiepolder/monti/okr/internal/scoring"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, store cache.Store) (*okr.Service, *period.Resolver) {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})
	clock := func() time.Time { return fixedNow }

	src := facts.NewMemorySource()
	src.Set(facts.CategoryCampaigns, []facts.Record{{"Campaign": "Acme", "Department": "Sales"}})
	src.Set(facts.CategoryCalls, []facts.Record{
		{"Campaign": "Acme", "Agent": "alice", "CallDate": "2024-03-05T10:00:00Z", "CSAT": 5, "TalkTime": 6},
		{"Campaign": "Acme", "Agent": "bob", "CallDate": "2024-03-05T11:00:00Z", "CSAT": 4, "TalkTime": 4},
	})

	reader := facts.NewReader(src, logger)
	periods := period.NewResolverWithClock(clock, logger)
	thresholds := scoring.DefaultThresholds()

	svc := okr.NewService(okr.Components{
		Reader:     reader,
		Periods:    periods,
		Aggregator: aggregator.NewAggregator(reader, periods, aggregator.Options{}, logger),
		Builder:    scorecard.NewBuilder(scorecard.Options{}),
		Scorer:     scoring.NewScorer(thresholds, nil),
		Alerts:     alerts.NewGeneratorWithClock(thresholds, clock),
		Cache:      cache.NewFacade(store, logger),
	}, okr.Options{Now: clock}, logger)
	return svc, periods
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), auth.UserContextKey, claims))
}

func TestGetOKR(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	h.GetOKR(rec, httptest.NewRequest(http.MethodGet, "/api/okr?granularity=Week&period=2024-W10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var data types.OKRData
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
	assert.Equal(t, "2024-W10", data.Period)
	assert.Equal(t, types.GranularityWeek, data.Granularity)
	require.Len(t, data.Campaigns, 1)
	assert.Equal(t, "Acme", data.Campaigns[0].Name)
	assert.Equal(t, 2, data.Aggregated.TotalUsers)
}

func TestGetOKRDefaultsRequest(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	h.GetOKR(rec, httptest.NewRequest(http.MethodGet, "/api/okr?granularity=Fortnight", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var data types.OKRData
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
	assert.Equal(t, types.GranularityWeek, data.Granularity)
	assert.Equal(t, "2024-W10", data.Period)
}

func TestGetOKRDepartmentScope(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	tests := []struct {
		name       string
		claims     *auth.Claims
		query      string
		wantStatus int
	}{
		{"own department", &auth.Claims{Role: auth.RoleAgent, AllowedDepartments: []string{"Sales"}}, "department=Sales", http.StatusOK},
		{"narrowed to single department", &auth.Claims{Role: auth.RoleAgent, AllowedDepartments: []string{"Sales"}}, "", http.StatusOK},
		{"foreign department", &auth.Claims{Role: auth.RoleAgent, AllowedDepartments: []string{"Sales"}}, "department=Support", http.StatusForbidden},
		{"several departments without choice", &auth.Claims{Role: auth.RoleViewer, AllowedDepartments: []string{"Sales", "Support"}}, "", http.StatusForbidden},
		{"supervisor sees all", &auth.Claims{Role: auth.RoleSupervisor, AllDepartments: true}, "department=Support", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withClaims(httptest.NewRequest(http.MethodGet, "/api/okr?period=2024-W10&"+tt.query, nil), tt.claims)
			rec := httptest.NewRecorder()
			h.GetOKR(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetOKRScopedPayloadFiltersDepartment(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/okr?period=2024-W10", nil),
		&auth.Claims{Role: auth.RoleAgent, AllowedDepartments: []string{"Support"}})
	rec := httptest.NewRecorder()
	h.GetOKR(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data types.OKRData
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
	assert.Empty(t, data.Campaigns)
}

func TestGetTrend(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	h.GetTrend(rec, httptest.NewRequest(http.MethodGet, "/api/okr/trend?granularity=Week&period=2024-W11&lookback=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TrendResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2024-W11", resp.Period)
	require.Len(t, resp.Points, 3)
	assert.Equal(t, "2024-W08", resp.Points[0].Period)
	assert.Equal(t, "2024-W10", resp.Points[2].Period)
	assert.Positive(t, resp.Points[2].Score)
	assert.Equal(t, 0, resp.Points[0].Score)
}

func TestGetTrendRejectsBadLookback(t *testing.T) {
	svc, _ := newFixture(t, nil)
	h := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))

	for _, lookback := range []string{"abc", "0", "53"} {
		rec := httptest.NewRecorder()
		h.GetTrend(rec, httptest.NewRequest(http.MethodGet, "/api/okr/trend?lookback="+lookback, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "lookback=%s", lookback)
	}
}

func TestGetPeriods(t *testing.T) {
	_, periods := newFixture(t, nil)
	h := NewPeriodsHandler(periods, zerolog.New(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	h.GetPeriods(rec, httptest.NewRequest(http.MethodGet, "/api/periods?granularity=Month&period=2024-03&count=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PeriodsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, types.GranularityMonth, resp.Granularity)
	assert.Equal(t, "2024-03", resp.Current)
	assert.Equal(t, []string{"2023-12", "2024-01", "2024-02"}, resp.Previous)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), resp.Range.Start)
}

func TestGetPeriodsRejectsUnknownGranularity(t *testing.T) {
	_, periods := newFixture(t, nil)
	h := NewPeriodsHandler(periods, zerolog.New(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	h.GetPeriods(rec, httptest.NewRequest(http.MethodGet, "/api/periods?granularity=Decade", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidateCache(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, _ := newFixture(t, store)
	okrHandler := NewOKRHandler(svc, zerolog.New(&bytes.Buffer{}))
	admin := NewAdminHandler(svc, zerolog.New(&bytes.Buffer{}))

	for _, p := range []string{"2024-W09", "2024-W10"} {
		okrHandler.GetOKR(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/okr?period="+p, nil))
	}
	okrHandler.GetOKR(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/okr?granularity=Month&period=2024-03", nil))
	require.Equal(t, 3, store.Len())

	rec := httptest.NewRecorder()
	admin.InvalidateCache(rec, httptest.NewRequest(http.MethodDelete, "/api/okr/cache?granularity=Week&period=2024-W10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, store.Len())

	rec = httptest.NewRecorder()
	admin.InvalidateCache(rec, httptest.NewRequest(http.MethodDelete, "/api/okr/cache?granularity=Week", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.Len())

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(1), body["removed"])

	rec = httptest.NewRecorder()
	admin.InvalidateCache(rec, httptest.NewRequest(http.MethodDelete, "/api/okr/cache", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
