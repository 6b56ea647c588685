package schemas

import (
	"time"
)

// -- HAR (HTTP Archive) schemas --
//
// The network recorder exports its trace in HAR 1.2 so the output can be
// loaded into browser devtools and other trace-analysis tooling. Field names
// below are an external contract and must stay stable. See
// http://www.softwareishard.com/blog/har-1-2-spec/ for the format.

// HAR is the root object of an exported trace.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog holds the creator stamp and the ordered list of entries.
type HARLog struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

// Creator identifies the application that generated the archive.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry is a single request/response pair.
//
// The _requestId field is a non-standard extension carrying the correlation
// id assigned at request time. When it is empty the entry was paired
// positionally and the pairing is approximate.
type Entry struct {
	StartedDateTime time.Time `json:"startedDateTime"`
	Time            float64   `json:"time"` // Total request/response time in milliseconds.
	Request         Request   `json:"request"`
	Response        Response  `json:"response"`
	RequestID       string    `json:"_requestId,omitempty"`
}

// Request describes the HTTP request half of an entry.
type Request struct {
	Method      string   `json:"method"`
	URL         string   `json:"url"`
	HTTPVersion string   `json:"httpVersion"`
	Headers     []NVPair `json:"headers"`
	HeadersSize int64    `json:"headersSize"`
	BodySize    int64    `json:"bodySize"`
}

// Response describes the HTTP response half of an entry.
type Response struct {
	Status      int      `json:"status"`
	StatusText  string   `json:"statusText"`
	HTTPVersion string   `json:"httpVersion"`
	Headers     []NVPair `json:"headers"`
	HeadersSize int64    `json:"headersSize"`
	BodySize    int64    `json:"bodySize"`
}

// NVPair is a simple name/value pair used for header lists.
type NVPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewHAR creates an empty archive carrying the webbridge creator stamp.
func NewHAR() *HAR {
	return &HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: Creator{
				Name:    "webbridge",
				Version: "1.0",
			},
			Entries: make([]Entry, 0),
		},
	}
}
