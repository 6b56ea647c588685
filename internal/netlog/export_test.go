// File: internal/netlog/export_test.go
package netlog

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webbridge/webbridge-cli/api/schemas"
)

func TestExportHARPairsByCorrelationID(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	rec.RecordRequest(RequestEvent{ID: "req-1", Timestamp: base, Method: "GET", URL: "https://a.test/"})
	rec.RecordRequest(RequestEvent{ID: "req-2", Timestamp: base.Add(time.Second), Method: "GET", URL: "https://b.test/"})
	// Responses arrive out of order; ID pairing must still match them up.
	rec.RecordResponse(ResponseEvent{ID: "req-2", Timestamp: base.Add(1200 * time.Millisecond), URL: "https://b.test/", Status: 404})
	rec.RecordResponse(ResponseEvent{ID: "req-1", Timestamp: base.Add(250 * time.Millisecond), URL: "https://a.test/", Status: 200})

	har := rec.ExportHAR()
	require.Len(t, har.Log.Entries, 2)
	assert.Equal(t, "1.2", har.Log.Version)
	assert.Equal(t, "webbridge", har.Log.Creator.Name)

	first := har.Log.Entries[0]
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, "https://a.test/", first.Request.URL)
	assert.Equal(t, 200, first.Response.Status)
	assert.Equal(t, "OK", first.Response.StatusText)
	assert.Equal(t, float64(250), first.Time)

	second := har.Log.Entries[1]
	assert.Equal(t, "req-2", second.RequestID)
	assert.Equal(t, 404, second.Response.Status)
	assert.Equal(t, "Not Found", second.Response.StatusText)
	assert.Equal(t, float64(200), second.Time)
}

func TestExportHARPositionalFallback(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	// No IDs at all, as with events captured from a source that does not
	// correlate. Pairing falls back to arrival order.
	rec.RecordRequest(RequestEvent{Timestamp: base, Method: "GET", URL: "https://a.test/"})
	rec.RecordRequest(RequestEvent{Timestamp: base, Method: "GET", URL: "https://b.test/"})
	rec.RecordResponse(ResponseEvent{Timestamp: base, URL: "https://a.test/", Status: 200})
	rec.RecordResponse(ResponseEvent{Timestamp: base, URL: "https://b.test/", Status: 302})

	har := rec.ExportHAR()
	require.Len(t, har.Log.Entries, 2)
	assert.Empty(t, har.Log.Entries[0].RequestID, "positional pairing is approximate and must not claim an ID")
	assert.Equal(t, 200, har.Log.Entries[0].Response.Status)
	assert.Equal(t, 302, har.Log.Entries[1].Response.Status)
}

func TestExportHARRequestWithoutResponse(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	rec.RecordRequest(RequestEvent{ID: "lonely", Method: "GET", URL: "https://a.test/"})

	har := rec.ExportHAR()
	require.Len(t, har.Log.Entries, 1)
	entry := har.Log.Entries[0]
	assert.Empty(t, entry.RequestID)
	assert.Zero(t, entry.Response.Status)
	assert.Zero(t, entry.Time)
}

func TestExportHARNegativeDurationClamped(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	rec.RecordRequest(RequestEvent{ID: "r", Timestamp: base, Method: "GET", URL: "https://a.test/"})
	rec.RecordResponse(ResponseEvent{ID: "r", Timestamp: base.Add(-time.Second), URL: "https://a.test/", Status: 200})

	har := rec.ExportHAR()
	require.Len(t, har.Log.Entries, 1)
	assert.Zero(t, har.Log.Entries[0].Time)
}

func TestExportHARHeadersSorted(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	rec.RecordRequest(RequestEvent{
		ID:     "r",
		Method: "GET",
		URL:    "https://a.test/",
		Headers: map[string]string{
			"Zeta":   "z",
			"Accept": "*/*",
			"Host":   "a.test",
		},
	})

	har := rec.ExportHAR()
	require.Len(t, har.Log.Entries, 1)
	want := []schemas.NVPair{
		{Name: "Accept", Value: "*/*"},
		{Name: "Host", Value: "a.test"},
		{Name: "Zeta", Value: "z"},
	}
	if diff := cmp.Diff(want, har.Log.Entries[0].Request.Headers); diff != "" {
		t.Errorf("header pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestExportTraceIsIdempotent(t *testing.T) {
	rec := NewRecorder(testRecorderConfig(), nil)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	rec.RecordRequest(RequestEvent{
		ID:        "r1",
		Timestamp: base,
		Method:    "GET",
		URL:       "https://a.test/",
		Headers:   map[string]string{"Accept": "*/*", "User-Agent": "webbridge"},
	})
	rec.RecordResponse(ResponseEvent{
		ID:        "r1",
		Timestamp: base.Add(100 * time.Millisecond),
		URL:       "https://a.test/",
		Status:    200,
		Headers:   map[string]string{"Content-Type": "text/html", "Server": "test"},
	})

	first, err := rec.ExportTrace()
	require.NoError(t, err)
	second, err := rec.ExportTrace()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "unchanged trace must export byte-identical HAR")
	assert.Contains(t, string(first), `"_requestId": "r1"`)
}
