// File: internal/netlog/recorder.go

// Package netlog records request and response events from both the direct
// fetch path and the browser, keeps a bounded in-memory trace, and exports
// it as HAR.
package netlog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webbridge/webbridge-cli/internal/config"
)

// RequestEvent is one observed outgoing request.
type RequestEvent struct {
	// ID correlates a request with its response. Fetch attempts use a fresh
	// UUID per attempt; browser traffic uses the DevTools request ID.
	ID           string            `json:"id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
}

// ResponseEvent is one observed response.
type ResponseEvent struct {
	ID        string            `json:"id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	// OK mirrors Status < 400. Derived at record time so consumers never
	// recompute it.
	OK bool `json:"ok"`
}

// Summary is a point-in-time view of recorded traffic. Totals count every
// event ever recorded since the last Clear, independent of the retention
// cap; the event slices hold only the most recent entries.
type Summary struct {
	TotalRequests   int             `json:"total_requests"`
	TotalResponses  int             `json:"total_responses"`
	FailedResponses int             `json:"failed_responses"`
	Requests        []RequestEvent  `json:"requests"`
	Responses       []ResponseEvent `json:"responses"`
}

// Recorder accumulates traffic events. Recording is cheap and safe from any
// goroutine; when disabled every record call is a no-op.
type Recorder struct {
	mu      sync.Mutex
	enabled bool

	maxEvents int
	recent    int

	requests  []RequestEvent
	responses []ResponseEvent

	// Running totals survive ring eviction.
	totalRequests   int
	totalResponses  int
	failedResponses int

	log *zap.Logger
}

// NewRecorder builds a recorder from configuration.
func NewRecorder(cfg config.RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		enabled:   cfg.Enabled,
		maxEvents: cfg.MaxEvents,
		recent:    cfg.SummaryRecent,
		log:       logger.Named("netlog"),
	}
}

// SetEnabled toggles recording. Disabling keeps what was already captured.
func (r *Recorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	r.log.Info("Network recording toggled", zap.Bool("enabled", enabled))
}

// Enabled reports whether events are currently being captured.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// RecordRequest captures an outgoing request event.
func (r *Recorder) RecordRequest(evt RequestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	r.totalRequests++
	r.requests = append(r.requests, evt)
	if r.maxEvents > 0 && len(r.requests) > r.maxEvents {
		r.requests = r.requests[len(r.requests)-r.maxEvents:]
	}
}

// RecordResponse captures a response event. OK is derived from the status;
// a zero status (no answer at all) is never OK.
func (r *Recorder) RecordResponse(evt ResponseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.OK = evt.Status != 0 && evt.Status < 400

	r.totalResponses++
	if !evt.OK {
		r.failedResponses++
	}
	r.responses = append(r.responses, evt)
	if r.maxEvents > 0 && len(r.responses) > r.maxEvents {
		r.responses = r.responses[len(r.responses)-r.maxEvents:]
	}
}

// Summary returns totals plus copies of the most recent events. The copies
// are detached; mutating them never affects the recorder.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Summary{
		TotalRequests:   r.totalRequests,
		TotalResponses:  r.totalResponses,
		FailedResponses: r.failedResponses,
		Requests:        lastN(r.requests, r.recent),
		Responses:       lastN(r.responses, r.recent),
	}
}

// Clear drops all captured events and resets the running totals.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = nil
	r.responses = nil
	r.totalRequests = 0
	r.totalResponses = 0
	r.failedResponses = 0
	r.log.Info("Network trace cleared")
}

// lastN copies the trailing n elements, or all of them when n <= 0.
func lastN[T any](events []T, n int) []T {
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	out := make([]T, len(events))
	copy(out, events)
	return out
}
