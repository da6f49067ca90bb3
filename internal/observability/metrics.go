package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
)

// Metrics is the process-wide meter for the suggestion pipeline. Exporter
// setup (OTLP, stdout, ...) is wired by the deployment, not here; we only
// record against the global meter provider.
type Metrics struct {
	llmRequests    metric.Int64Counter
	llmLatency     metric.Float64Histogram
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	rateLimitDrops metric.Int64Counter
}

var (
	mu      sync.RWMutex
	current *Metrics
)

func Init(log *logger.Logger) *Metrics {
	meter := otel.Meter("adcraft/suggestions")

	m := &Metrics{}
	var err error
	if m.llmRequests, err = meter.Int64Counter("llm_requests_total"); err != nil && log != nil {
		log.Warn("metrics init", "counter", "llm_requests_total", "error", err)
	}
	if m.llmLatency, err = meter.Float64Histogram("llm_request_seconds"); err != nil && log != nil {
		log.Warn("metrics init", "histogram", "llm_request_seconds", "error", err)
	}
	if m.cacheHits, err = meter.Int64Counter("suggestion_cache_hits_total"); err != nil && log != nil {
		log.Warn("metrics init", "counter", "suggestion_cache_hits_total", "error", err)
	}
	if m.cacheMisses, err = meter.Int64Counter("suggestion_cache_misses_total"); err != nil && log != nil {
		log.Warn("metrics init", "counter", "suggestion_cache_misses_total", "error", err)
	}
	if m.rateLimitDrops, err = meter.Int64Counter("rate_limit_rejections_total"); err != nil && log != nil {
		log.Warn("metrics init", "counter", "rate_limit_rejections_total", "error", err)
	}

	mu.Lock()
	current = m
	mu.Unlock()
	return m
}

// Current returns the installed metrics, or nil before Init. Callers must
// nil-check; recording is always optional.
func Current() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func (m *Metrics) ObserveLLMRequest(model, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	if m.llmRequests != nil {
		m.llmRequests.Add(context.Background(), 1, attrs)
	}
	if m.llmLatency != nil {
		m.llmLatency.Record(context.Background(), elapsed.Seconds(), attrs)
	}
}

func (m *Metrics) ObserveCacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tier", tier))
	if hit && m.cacheHits != nil {
		m.cacheHits.Add(context.Background(), 1, attrs)
		return
	}
	if !hit && m.cacheMisses != nil {
		m.cacheMisses.Add(context.Background(), 1, attrs)
	}
}

func (m *Metrics) ObserveRateLimitRejection(scope string) {
	if m == nil || m.rateLimitDrops == nil {
		return
	}
	m.rateLimitDrops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scope", scope)))
}
