package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	parseSucceededTotal atomic.Uint64
	parseFailedTotal    atomic.Uint64
	parseErrorTotal     atomic.Uint64

	notificationsSentTotal   atomic.Uint64
	notificationsFailedTotal atomic.Uint64

	remindersSentTotal atomic.Uint64

	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsUnrecoverableTotal atomic.Uint64

	transitions = newCounterVec()

	parseDuration = newHistogram([]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// IncParseSucceeded counts a workbook that parsed into a draft.
func IncParseSucceeded() { parseSucceededTotal.Add(1) }

// IncParseFailed counts a workbook rejected for its content.
func IncParseFailed() { parseFailedTotal.Add(1) }

// IncParseInternalError counts a parse job that hit a system fault.
func IncParseInternalError() { parseErrorTotal.Add(1) }

// IncNotificationSent counts a delivered notification.
func IncNotificationSent() { notificationsSentTotal.Add(1) }

// IncNotificationFailed counts a notification the transport rejected.
func IncNotificationFailed() { notificationsFailedTotal.Add(1) }

// IncReminderSent counts one reminder delivered to one recipient.
func IncReminderSent() { remindersSentTotal.Add(1) }

// IncJobsReceived counts a queue message picked up by a worker.
func IncJobsReceived() { jobsReceivedTotal.Add(1) }

// IncJobsCompleted counts a job processed and removed from the queue.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed counts a job left on the queue for redelivery.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncJobsDeletedUnrecoverable counts a malformed job dropped from the queue.
func IncJobsDeletedUnrecoverable() { jobsUnrecoverableTotal.Add(1) }

// IncTransition counts a committed status change.
func IncTransition(from, to string) {
	transitions.Inc(from + "->" + to)
}

// ObserveParseDurationMs records a parse duration in milliseconds.
func ObserveParseDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	parseDuration.Observe(value)
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
	writeCounter(&buf, "submission_parse_succeeded_total", "Workbooks parsed into drafts", parseSucceededTotal.Load())
	writeCounter(&buf, "submission_parse_failed_total", "Workbooks rejected for content problems", parseFailedTotal.Load())
	writeCounter(&buf, "submission_parse_internal_error_total", "Parse jobs that failed on a system fault", parseErrorTotal.Load())
	writeCounter(&buf, "notification_sent_total", "Notifications delivered", notificationsSentTotal.Load())
	writeCounter(&buf, "notification_failed_total", "Notifications that failed to deliver", notificationsFailedTotal.Load())
	writeCounter(&buf, "reminder_sent_total", "Reminder notifications delivered", remindersSentTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue jobs left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Malformed queue jobs dropped", jobsUnrecoverableTotal.Load())
	writeCounterVec(&buf, "submission_transition_total", "Committed submission status changes", "transition", transitions.Snapshot())
	writeHistogram(&buf, "submission_parse_duration_ms", "Parse job duration in milliseconds", parseDuration.Snapshot())
	return buf.String()
}

type counterVec struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newCounterVec() *counterVec {
	return &counterVec{values: make(map[string]uint64)}
}

func (v *counterVec) Inc(label string) {
	v.mu.Lock()
	v.values[label]++
	v.mu.Unlock()
}

func (v *counterVec) Snapshot() map[string]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]uint64, len(v.values))
	for k, n := range v.values {
		out[k] = n
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

// Observe places the value in the first bucket that holds it; Render
// accumulates buckets when writing.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
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

func writeCounterVec(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
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
