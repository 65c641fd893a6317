package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

const namespace = "progress"

type MetricsConfig struct {
	Enabled bool
	// SLOLatencyThreshold is the API latency, in seconds, a request must
	// stay under to count as good.
	SLOLatencyThreshold float64
	ScrapeInterval      time.Duration
}

// Metrics owns a private prometheus registry. Every method is safe on a nil
// receiver so callers never branch on whether metrics are enabled.
type Metrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	writeOutcomes    *prometheus.CounterVec
	writeBatch       *prometheus.HistogramVec
	suppressionTrips prometheus.Counter
	journalAppends   *prometheus.CounterVec
	backfillRuns     *prometheus.CounterVec
	backfillSkipped  *prometheus.CounterVec

	storeOps       *prometheus.HistogramVec
	storeConflicts *prometheus.CounterVec
	storeRetries   *prometheus.CounterVec

	pgStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge

	sloCompliance *prometheus.GaugeVec
	sloBudget     *prometheus.GaugeVec
	sloBurn       *prometheus.GaugeVec

	sloLatencyThreshold float64
	scrapeInterval      time.Duration

	// Plain totals read back by the SLO evaluator.
	apiTotal    atomic.Uint64
	apiErrors   atomic.Uint64
	apiGood     atomic.Uint64
	writeTotal  atomic.Uint64
	writeFailed atomic.Uint64
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide Metrics once. It returns nil when disabled.
func Init(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(cfg)
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// NewMetrics builds an independent Metrics on a fresh registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	threshold := cfg.SLOLatencyThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	interval := cfg.ScrapeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m := &Metrics{
		reg: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		writeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_outcomes_total",
			Help: "Aggregate write outcomes.",
		}, []string{"outcome"}),
		writeBatch: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "write_batch_seconds",
			Help:    "Time spent writing one batch to the aggregate and mirror.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		suppressionTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "suppression_trips_total",
			Help: "Times quota exhaustion opened the write suppression window.",
		}),
		journalAppends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "journal_appends_total",
			Help: "Journal and activity appends by result.",
		}, []string{"result"}),
		backfillRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backfill_runs_total",
			Help: "Backfill reconciliations by result.",
		}, []string{"result"}),
		backfillSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backfill_skipped_total",
			Help: "History inputs skipped by backfill because they were unreadable or malformed.",
		}, []string{"source"}),
		storeOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "store_operation_seconds",
			Help:    "Document store operation latency by operation/status.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op", "status"}),
		storeConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_conflicts_total",
			Help: "Optimistic transaction conflicts by operation.",
		}, []string{"op"}),
		storeRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_retries_total",
			Help: "Transaction retries by operation.",
		}, []string{"op"}),
		pgStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "postgres_pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_up",
			Help: "1 when the mirror redis answered the last ping.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_ping_seconds",
			Help: "Latency of the last mirror redis ping.",
		}),
		sloCompliance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "slo_compliance_ratio",
			Help: "Rolling SLI by slo/window.",
		}, []string{"slo", "window"}),
		sloBudget: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "slo_error_budget_remaining",
			Help: "Remaining error budget by slo/window.",
		}, []string{"slo", "window"}),
		sloBurn: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "slo_burn_rate",
			Help: "Error budget burn rate by slo/window.",
		}, []string{"slo", "window"}),
		sloLatencyThreshold: threshold,
		scrapeInterval:      interval,
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
	m.apiTotal.Add(1)
	if status >= 500 {
		m.apiErrors.Add(1)
	}
	if dur.Seconds() <= m.sloLatencyThreshold {
		m.apiGood.Add(1)
	}
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveBatch implements throttle.Hooks.
func (m *Metrics) ObserveBatch(outcome progress.Outcome, dur time.Duration) {
	if m == nil {
		return
	}
	label := outcomeLabel(outcome)
	m.writeOutcomes.WithLabelValues(label).Inc()
	m.writeBatch.WithLabelValues(label).Observe(dur.Seconds())
	m.writeTotal.Add(1)
	if outcome == progress.OutcomeFailed {
		m.writeFailed.Add(1)
	}
}

// IncSuppressionTrip implements throttle.Hooks.
func (m *Metrics) IncSuppressionTrip() {
	if m == nil {
		return
	}
	m.suppressionTrips.Inc()
}

// IncAppend implements journal.Hooks.
func (m *Metrics) IncAppend(outcome progress.Outcome) {
	if m == nil {
		return
	}
	m.journalAppends.WithLabelValues(outcomeLabel(outcome)).Inc()
}

// IncRun implements backfill.Hooks.
func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.backfillRuns.WithLabelValues(status).Inc()
}

// IncSkipped implements backfill.Hooks.
func (m *Metrics) IncSkipped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.backfillSkipped.WithLabelValues(source).Add(float64(n))
}

// ObserveOperation implements docstore.Hooks.
func (m *Metrics) ObserveOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(name, status).Observe(dur.Seconds())
}

// IncConflict implements docstore.Hooks.
func (m *Metrics) IncConflict(name string) {
	if m == nil {
		return
	}
	m.storeConflicts.WithLabelValues(name).Inc()
}

// IncRetry implements docstore.Hooks.
func (m *Metrics) IncRetry(name string) {
	if m == nil {
		return
	}
	m.storeRetries.WithLabelValues(name).Inc()
}

func outcomeLabel(o progress.Outcome) string {
	s := strings.TrimSpace(string(o))
	if s == "" {
		return "unknown"
	}
	return s
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.pgStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

// StartRedisCollector pings the mirror's client. The client is owned by the
// caller.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
