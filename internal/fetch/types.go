// File: internal/fetch/types.go
package fetch

import (
	"time"
)

// Request describes a single logical fetch. Values are copied into the
// engine; a Request is never mutated after construction.
type Request struct {
	// URL is the target to fetch.
	URL string `json:"url"`
	// Headers are extra request headers, overriding engine defaults per name.
	Headers map[string]string `json:"headers,omitempty"`
	// Proxy overrides the engine's proxy endpoint for this request.
	Proxy string `json:"proxy,omitempty"`
	// Timeout overrides the engine's per-attempt timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
	// VerifyTLS overrides the engine's TLS verification setting when non-nil.
	VerifyTLS *bool `json:"verify_tls,omitempty"`
}

// Result is the tagged outcome of a fetch. Success carries the response;
// failure carries the classified error. Exactly one of the two shapes is
// populated, discriminated by Success.
type Result struct {
	Success bool `json:"success"`

	// Success fields.
	URL         string            `json:"url"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Content     string            `json:"content,omitempty"`
	Size        int64             `json:"size,omitempty"`
	TLSVerified bool              `json:"tls_verified"`
	// JSON holds the parsed body, set by FetchJSON only.
	JSON any `json:"json,omitempty"`

	// Failure fields. Status is additionally set for HTTPStatusFailure, and
	// FetchJSON keeps the successful fetch's Status and Content alongside a
	// ParseFailure so callers can tell the two failure modes apart.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// ProgressFunc receives streaming progress during a download. It is called
// after each chunk with the bytes written so far and the total declared by
// the server.
type ProgressFunc func(written, total int64)

// DownloadRequest is a fetch that streams its body to a destination path.
type DownloadRequest struct {
	Request
	// Dest is the destination file path.
	Dest string `json:"dest"`
	// Progress, when non-nil, is invoked per chunk if the server declared a
	// content length.
	Progress ProgressFunc `json:"-"`
}

// DownloadResult is the tagged outcome of a download.
type DownloadResult struct {
	Success bool `json:"success"`

	URL          string `json:"url"`
	Dest         string `json:"dest,omitempty"`
	BytesWritten int64  `json:"bytes_written,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// failureResult builds the failure shape of a Result.
func failureResult(url string, ferr *FetchError, elapsed time.Duration) Result {
	res := Result{
		Success:   false,
		URL:       url,
		ErrorKind: ferr.Kind.String(),
		Error:     ferr.Message,
		Elapsed:   elapsed,
	}
	if ferr.Kind == KindHTTPStatus {
		res.Status = ferr.Status
	}
	return res
}
