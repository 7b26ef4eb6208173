package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	OKRRequestsTotal   int64
	TrendRequestsTotal int64

	// Pipeline metrics
	PipelineRunsTotal        int64
	PipelineErrorsTotal      int64
	LegacyFallbacksTotal     int64
	EmptyResponsesTotal      int64
	TrendPeriodFailuresTotal int64
	lastPipelineDuration     time.Duration
	rowsAdmitted             map[string]int64 // event category -> rows

	// Cache metrics
	CacheHitsTotal        int64
	CacheMissesTotal      int64
	CacheWriteErrorsTotal int64
	CacheDecodeErrors     int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an isolated metrics instance
func New() *Metrics {
	return &Metrics{
		rowsAdmitted:         make(map[string]int64),
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		startTime:            time.Now(),
	}
}

// RecordOKRRequest increments the scorecard request counter
func (m *Metrics) RecordOKRRequest() {
	m.mu.Lock()
	m.OKRRequestsTotal++
	m.mu.Unlock()
}

// RecordTrendRequest increments the trend request counter
func (m *Metrics) RecordTrendRequest() {
	m.mu.Lock()
	m.TrendRequestsTotal++
	m.mu.Unlock()
}

// RecordPipelineRun records a completed pipeline run
func (m *Metrics) RecordPipelineRun(duration time.Duration) {
	m.mu.Lock()
	m.PipelineRunsTotal++
	m.lastPipelineDuration = duration
	m.mu.Unlock()
}

// RecordPipelineError increments the primary pipeline failure counter
func (m *Metrics) RecordPipelineError() {
	m.mu.Lock()
	m.PipelineErrorsTotal++
	m.mu.Unlock()
}

// RecordLegacyFallback increments the legacy fallback counter
func (m *Metrics) RecordLegacyFallback() {
	m.mu.Lock()
	m.LegacyFallbacksTotal++
	m.mu.Unlock()
}

// RecordEmptyResponse increments the counter of canonical empty payloads served
func (m *Metrics) RecordEmptyResponse() {
	m.mu.Lock()
	m.EmptyResponsesTotal++
	m.mu.Unlock()
}

// RecordTrendPeriodFailure increments the counter of trend periods scored 0 after an error
func (m *Metrics) RecordTrendPeriodFailure() {
	m.mu.Lock()
	m.TrendPeriodFailuresTotal++
	m.mu.Unlock()
}

// RecordRowsAdmitted adds n admitted rows for an event category
func (m *Metrics) RecordRowsAdmitted(category string, n int) {
	m.mu.Lock()
	m.rowsAdmitted[category] += int64(n)
	m.mu.Unlock()
}

// RowsAdmitted returns the admitted row count of an event category
func (m *Metrics) RowsAdmitted(category string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rowsAdmitted[category]
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	m.CacheHitsTotal++
	m.mu.Unlock()
}

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	m.CacheMissesTotal++
	m.mu.Unlock()
}

// RecordCacheWriteError increments the cache write failure counter
func (m *Metrics) RecordCacheWriteError() {
	m.mu.Lock()
	m.CacheWriteErrorsTotal++
	m.mu.Unlock()
}

// RecordCacheDecodeError increments the counter of cached values that failed to decode
func (m *Metrics) RecordCacheDecodeError() {
	m.mu.Lock()
	m.CacheDecodeErrors++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("okr_uptime_seconds", time.Since(m.startTime).Seconds())

		// Request metrics
		write("okr_requests_total", m.OKRRequestsTotal)
		write("okr_trend_requests_total", m.TrendRequestsTotal)

		// Pipeline metrics
		write("okr_pipeline_runs_total", m.PipelineRunsTotal)
		write("okr_pipeline_errors_total", m.PipelineErrorsTotal)
		write("okr_legacy_fallbacks_total", m.LegacyFallbacksTotal)
		write("okr_empty_responses_total", m.EmptyResponsesTotal)
		write("okr_trend_period_failures_total", m.TrendPeriodFailuresTotal)
		write("okr_pipeline_duration_seconds", m.lastPipelineDuration.Seconds())

		categories := make([]string, 0, len(m.rowsAdmitted))
		for category := range m.rowsAdmitted {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			write("okr_rows_admitted_total", m.rowsAdmitted[category], "category", category)
		}

		// Cache metrics
		write("okr_cache_hits_total", m.CacheHitsTotal)
		write("okr_cache_misses_total", m.CacheMissesTotal)
		write("okr_cache_write_errors_total", m.CacheWriteErrorsTotal)
		write("okr_cache_decode_errors_total", m.CacheDecodeErrors)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("okr_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
