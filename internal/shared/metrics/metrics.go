package metrics

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64

	gatewayErrorTotal       atomic.Uint64
	gatewayUnavailableTotal atomic.Uint64
	cacheEvictedTotal       atomic.Uint64

	rateLimitedTotal    = newLabeledCounter()
	panicRecoveredTotal = newLabeledCounter()

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	gatewayDuration  = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// IncGatewayError counts analysis service responses that were rejected or malformed.
func IncGatewayError() {
	gatewayErrorTotal.Add(1)
}

// IncGatewayUnavailable counts analysis service calls that got no response.
func IncGatewayUnavailable() {
	gatewayUnavailableTotal.Add(1)
}

// ObserveGatewayDurationMs records an analysis service round trip in milliseconds.
func ObserveGatewayDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	gatewayDuration.Observe(value)
}

// IncRateLimited counts requests rejected by the rate guard for group.
func IncRateLimited(group string) {
	rateLimitedTotal.Inc(group)
}

// IncPanicRecovered counts panics caught at a recovery boundary such as "http" or "analysis".
func IncPanicRecovered(scope string) {
	panicRecoveredTotal.Inc(scope)
}

// AddCacheEvicted counts expired store entries removed by lazy reads or sweeps.
func AddCacheEvicted(n int) {
	if n <= 0 {
		return
	}
	cacheEvictedTotal.Add(uint64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "gateway_error_total", "Analysis service responses rejected or malformed", gatewayErrorTotal.Load())
	writeCounter(&buf, "gateway_unavailable_total", "Analysis service calls without a response", gatewayUnavailableTotal.Load())
	writeLabeledCounter(&buf, "rate_limited_total", "Requests rejected by the rate guard", "group", rateLimitedTotal.Snapshot())
	writeLabeledCounter(&buf, "panic_recovered_total", "Panics recovered at a boundary", "scope", panicRecoveredTotal.Snapshot())
	writeCounter(&buf, "cache_evicted_total", "Expired job store entries evicted", cacheEvictedTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "gateway_duration_ms", "Analysis service round trip in milliseconds", gatewayDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.values)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, key := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// Observe already counts each value in every bucket whose bound it fits under.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMs returns the elapsed time since start in milliseconds.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
