// File: internal/netlog/export.go
package netlog

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/webbridge/webbridge-cli/api/schemas"
)

// ExportHAR builds a HAR archive from the captured trace. Entries follow
// recorded request order. Responses pair with requests by correlation ID
// when one matches; leftover requests and responses then pair positionally,
// which keeps mixed traffic exportable even when one side was evicted.
// Export reads a snapshot and never mutates the trace, so repeated exports
// of an unchanged trace produce identical bytes.
func (r *Recorder) ExportHAR() *schemas.HAR {
	r.mu.Lock()
	requests := make([]RequestEvent, len(r.requests))
	copy(requests, r.requests)
	responses := make([]ResponseEvent, len(r.responses))
	copy(responses, r.responses)
	r.mu.Unlock()

	// First pass: index responses by correlation ID.
	byID := make(map[string]*ResponseEvent, len(responses))
	claimed := make([]bool, len(responses))
	for i := range responses {
		if id := responses[i].ID; id != "" {
			if _, dup := byID[id]; !dup {
				byID[id] = &responses[i]
			}
		}
	}

	har := schemas.NewHAR()
	positional := 0
	for _, req := range requests {
		var resp *ResponseEvent
		matched := false
		if req.ID != "" {
			if m, ok := byID[req.ID]; ok {
				resp = m
				matched = true
				for i := range responses {
					if &responses[i] == m {
						claimed[i] = true
						break
					}
				}
			}
		}
		if resp == nil {
			// Fall back to the next unclaimed response in arrival order.
			for positional < len(responses) && claimed[positional] {
				positional++
			}
			if positional < len(responses) {
				resp = &responses[positional]
				claimed[positional] = true
				positional++
			}
		}

		entry := schemas.Entry{
			StartedDateTime: req.Timestamp.UTC(),
			Request: schemas.Request{
				Method:      req.Method,
				URL:         req.URL,
				HTTPVersion: "HTTP/1.1",
				Headers:     headerPairs(req.Headers),
				HeadersSize: -1,
				BodySize:    -1,
			},
			Response: schemas.Response{
				HTTPVersion: "HTTP/1.1",
				Headers:     []schemas.NVPair{},
				HeadersSize: -1,
				BodySize:    -1,
			},
		}
		if matched {
			entry.RequestID = req.ID
		}
		if resp != nil {
			entry.Response.Status = resp.Status
			entry.Response.StatusText = http.StatusText(resp.Status)
			entry.Response.Headers = headerPairs(resp.Headers)
			if d := resp.Timestamp.Sub(req.Timestamp); d > 0 {
				entry.Time = float64(d.Milliseconds())
			}
		}
		har.Log.Entries = append(har.Log.Entries, entry)
	}

	return har
}

// ExportTrace serializes the current trace as indented HAR JSON.
func (r *Recorder) ExportTrace() ([]byte, error) {
	return json.MarshalIndent(r.ExportHAR(), "", "  ")
}

// headerPairs converts a header map into a name-sorted pair list so exports
// are deterministic.
func headerPairs(headers map[string]string) []schemas.NVPair {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]schemas.NVPair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, schemas.NVPair{Name: name, Value: headers[name]})
	}
	return pairs
}
