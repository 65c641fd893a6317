package observability

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/progressfacts/internal/platform/logger"
)

type rollingSum struct {
	values []float64
	idx    int
	total  float64
}

func newRollingSum(size int) *rollingSum {
	if size < 1 {
		size = 1
	}
	return &rollingSum{values: make([]float64, size)}
}

func (r *rollingSum) add(v float64) {
	r.total += v - r.values[r.idx]
	r.values[r.idx] = v
	r.idx++
	if r.idx >= len(r.values) {
		r.idx = 0
	}
}

type SLOConfig struct {
	Enabled  bool
	Interval time.Duration
	Window   time.Duration

	APIAvailabilityTarget float64
	APILatencyTarget      float64
	WriteSuccessTarget    float64

	AlertWebhook     string
	AlertOwner       string
	AlertMinInterval time.Duration
	AlertBurnWarn    float64
	AlertBurnCrit    float64
}

func DefaultSLOConfig() SLOConfig {
	return SLOConfig{
		Interval:              time.Minute,
		Window:                30 * 24 * time.Hour,
		APIAvailabilityTarget: 0.995,
		APILatencyTarget:      0.95,
		WriteSuccessTarget:    0.99,
		AlertMinInterval:      15 * time.Minute,
		AlertBurnWarn:         2,
		AlertBurnCrit:         10,
	}
}

// SLOEvaluator turns the API and write totals into rolling compliance,
// budget and burn gauges, optionally posting burn alerts to a webhook.
type SLOEvaluator struct {
	metrics *Metrics
	log     *logger.Logger
	cfg     SLOConfig
	client  *http.Client

	windowLabel string

	apiTotal    *rollingSum
	apiError    *rollingSum
	apiGood     *rollingSum
	writeTotal  *rollingSum
	writeFailed *rollingSum

	prevAPITotal    float64
	prevAPIError    float64
	prevAPIGood     float64
	prevWriteTotal  float64
	prevWriteFailed float64

	alertMu    sync.Mutex
	lastAlerts map[string]time.Time
}

func (m *Metrics) StartSLOEvaluator(ctx context.Context, log *logger.Logger, cfg SLOConfig) {
	if m == nil || !cfg.Enabled {
		return
	}
	eval := NewSLOEvaluator(m, log, cfg)
	go eval.run(ctx)
	if log != nil {
		log.Info("SLO evaluator started", "window", eval.windowLabel, "interval", eval.cfg.Interval.String())
	}
}

func NewSLOEvaluator(m *Metrics, log *logger.Logger, cfg SLOConfig) *SLOEvaluator {
	def := DefaultSLOConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window < time.Hour {
		cfg.Window = 24 * time.Hour
	}
	if cfg.AlertMinInterval <= 0 {
		cfg.AlertMinInterval = def.AlertMinInterval
	}
	if cfg.AlertBurnWarn <= 0 {
		cfg.AlertBurnWarn = def.AlertBurnWarn
	}
	if cfg.AlertBurnCrit <= 0 {
		cfg.AlertBurnCrit = def.AlertBurnCrit
	}
	cfg.APIAvailabilityTarget = clamp01(cfg.APIAvailabilityTarget)
	cfg.APILatencyTarget = clamp01(cfg.APILatencyTarget)
	cfg.WriteSuccessTarget = clamp01(cfg.WriteSuccessTarget)

	size := int(cfg.Window / cfg.Interval)
	return &SLOEvaluator{
		metrics:     m,
		log:         log,
		cfg:         cfg,
		client:      &http.Client{Timeout: 5 * time.Second},
		windowLabel: formatWindowLabel(cfg.Window),
		apiTotal:    newRollingSum(size),
		apiError:    newRollingSum(size),
		apiGood:     newRollingSum(size),
		writeTotal:  newRollingSum(size),
		writeFailed: newRollingSum(size),
		lastAlerts:  map[string]time.Time{},
	}
}

func (e *SLOEvaluator) run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate()
		}
	}
}

func (e *SLOEvaluator) evaluate() {
	if e.metrics == nil {
		return
	}
	apiTotal := float64(e.metrics.apiTotal.Load())
	apiError := float64(e.metrics.apiErrors.Load())
	apiGood := float64(e.metrics.apiGood.Load())
	writeTotal := float64(e.metrics.writeTotal.Load())
	writeFailed := float64(e.metrics.writeFailed.Load())

	e.apiTotal.add(delta(apiTotal, e.prevAPITotal))
	e.apiError.add(delta(apiError, e.prevAPIError))
	e.apiGood.add(delta(apiGood, e.prevAPIGood))
	e.writeTotal.add(delta(writeTotal, e.prevWriteTotal))
	e.writeFailed.add(delta(writeFailed, e.prevWriteFailed))

	e.prevAPITotal = apiTotal
	e.prevAPIError = apiError
	e.prevAPIGood = apiGood
	e.prevWriteTotal = writeTotal
	e.prevWriteFailed = writeFailed

	e.evalSLO("api_availability", e.apiTotal.total, e.apiError.total, e.cfg.APIAvailabilityTarget)
	e.evalSLO("api_latency", e.apiTotal.total, e.apiTotal.total-e.apiGood.total, e.cfg.APILatencyTarget)
	e.evalSLO("write_success", e.writeTotal.total, e.writeFailed.total, e.cfg.WriteSuccessTarget)
}

// evalSLO publishes the gauges for one objective and returns the burn rate.
func (e *SLOEvaluator) evalSLO(name string, total, bad, target float64) float64 {
	m := e.metrics
	if total <= 0 {
		m.sloCompliance.WithLabelValues(name, e.windowLabel).Set(1)
		m.sloBudget.WithLabelValues(name, e.windowLabel).Set(1)
		m.sloBurn.WithLabelValues(name, e.windowLabel).Set(0)
		return 0
	}
	sli := clamp01(1 - bad/total)
	burn := 0.0
	if target < 1 {
		burn = (1 - sli) / (1 - target)
	}
	budget := clamp01(1 - burn)
	m.sloCompliance.WithLabelValues(name, e.windowLabel).Set(sli)
	m.sloBudget.WithLabelValues(name, e.windowLabel).Set(budget)
	m.sloBurn.WithLabelValues(name, e.windowLabel).Set(burn)

	if e.cfg.AlertWebhook == "" || e.cfg.AlertOwner == "" {
		return burn
	}
	severity := ""
	if burn >= e.cfg.AlertBurnCrit {
		severity = "critical"
	} else if burn >= e.cfg.AlertBurnWarn {
		severity = "warning"
	}
	if severity == "" {
		return burn
	}
	key := name + ":" + severity
	e.alertMu.Lock()
	last := e.lastAlerts[key]
	if !last.IsZero() && time.Since(last) < e.cfg.AlertMinInterval {
		e.alertMu.Unlock()
		return burn
	}
	e.lastAlerts[key] = time.Now()
	e.alertMu.Unlock()
	e.sendAlert(name, severity, sli, target, burn, budget)
	return burn
}

func (e *SLOEvaluator) sendAlert(name, severity string, sli, target, burn, budget float64) {
	body, _ := json.Marshal(map[string]any{
		"title":                  "SLO burn rate alert",
		"severity":               severity,
		"owner":                  e.cfg.AlertOwner,
		"slo":                    name,
		"window":                 e.windowLabel,
		"sli":                    sli,
		"target":                 target,
		"burn_rate":              burn,
		"error_budget_remaining": budget,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequest(http.MethodPost, e.cfg.AlertWebhook, bytes.NewReader(body))
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert request build failed", "error", err, "slo", name)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert post failed", "error", err, "slo", name)
		}
		return
	}
	_ = resp.Body.Close()
	if e.log != nil {
		e.log.Info("slo alert sent", "slo", name, "severity", severity, "status", resp.StatusCode)
	}
}

func delta(current, prev float64) float64 {
	if current < prev {
		return current
	}
	return current - prev
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatWindowLabel(window time.Duration) string {
	hours := int(window.Hours())
	if hours >= 24 && hours%24 == 0 {
		return strconv.Itoa(hours/24) + "d"
	}
	if hours >= 1 {
		return strconv.Itoa(hours) + "h"
	}
	return strconv.Itoa(int(window.Minutes())) + "m"
}
