package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	scansStartedTotal   atomic.Uint64
	modelFailedTotal    atomic.Uint64
	persistFailedTotal  atomic.Uint64
	scansPersistedTotal atomic.Uint64
	archiveFailedTotal  atomic.Uint64

	scanOutcomes  = newLabeledCounter()
	modelDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 20000, 30000, 60000, 120000})
)

// IncScanStarted increments the started counter.
func IncScanStarted() {
	scansStartedTotal.Add(1)
}

// IncScanOutcome counts one classified scan for the given outcome state.
func IncScanOutcome(status string) {
	scanOutcomes.Inc(status)
}

// IncModelFailed counts model transport failures.
func IncModelFailed() {
	modelFailedTotal.Add(1)
}

// IncScanPersisted counts scans written to storage.
func IncScanPersisted() {
	scansPersistedTotal.Add(1)
}

// IncPersistFailed counts storage failures on the persistence gate.
func IncPersistFailed() {
	persistFailedTotal.Add(1)
}

// IncArchiveFailed counts photo archive failures.
func IncArchiveFailed() {
	archiveFailedTotal.Add(1)
}

// ObserveModelDurationMs records a model call duration in milliseconds.
func ObserveModelDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	modelDuration.Observe(value)
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
	writeCounter(&buf, "scan_started_total", "Total scans sent to the vision model", scansStartedTotal.Load())
	writeLabeledCounter(&buf, "scan_outcome_total", "Classified scans by outcome state", "status", scanOutcomes.Snapshot())
	writeCounter(&buf, "scan_model_failed_total", "Vision model transport failures", modelFailedTotal.Load())
	writeCounter(&buf, "scan_persisted_total", "Scans written to storage", scansPersistedTotal.Load())
	writeCounter(&buf, "scan_persist_failed_total", "Scan storage failures", persistFailedTotal.Load())
	writeCounter(&buf, "scan_archive_failed_total", "Scan photo archive failures", archiveFailedTotal.Load())
	writeHistogram(&buf, "scan_model_duration_ms", "Vision model call duration in milliseconds", modelDuration.Snapshot())
	return buf.String()
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
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
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
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
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

// SinceMs returns the elapsed milliseconds since start.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
