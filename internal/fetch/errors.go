// File: internal/fetch/errors.go
package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// Kind classifies a failed fetch attempt. Every transport failure maps onto
// exactly one kind before it is reported; the kind decides retryability.
type Kind int

const (
	// KindSSL covers certificate and TLS handshake failures.
	KindSSL Kind = iota + 1
	// KindTimeout covers deadline and timeout failures at any layer.
	KindTimeout
	// KindConnection covers DNS, dial and broken-connection failures.
	KindConnection
	// KindClientProtocol is the catch-all for client-side protocol errors and
	// unexpected faults inside the fetch pipeline.
	KindClientProtocol
	// KindHTTPStatus means the server answered with a status >= 400. The
	// status is a definitive answer, not a transient fault.
	KindHTTPStatus
	// KindParse means the body was fetched but could not be parsed.
	KindParse
)

// String returns the caller-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSSL:
		return "SSLFailure"
	case KindTimeout:
		return "Timeout"
	case KindConnection:
		return "ConnectionFailure"
	case KindClientProtocol:
		return "ClientProtocolFailure"
	case KindHTTPStatus:
		return "HTTPStatusFailure"
	case KindParse:
		return "ParseFailure"
	default:
		return "Unknown"
	}
}

// Retryable reports whether another attempt may succeed. HTTP statuses are
// definitive server answers and parsing is a pure function of bytes already
// in hand, so neither earns a retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindSSL, KindTimeout, KindConnection, KindClientProtocol:
		return true
	default:
		return false
	}
}

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind    Kind
	Status  int // HTTP status code, set for KindHTTPStatus only.
	Message string
	cause   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.cause }

// Classify maps an arbitrary transport error onto exactly one FetchError.
// Already-classified errors pass through unchanged.
func Classify(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	kind := KindClientProtocol
	switch {
	case isTLSError(err):
		kind = KindSSL
	case isTimeout(err):
		kind = KindTimeout
	case isConnectionError(err):
		kind = KindConnection
	}

	return &FetchError{Kind: kind, Message: err.Error(), cause: err}
}

// isTLSError matches certificate validation and TLS protocol failures.
func isTLSError(err error) bool {
	var (
		certVerify   *tls.CertificateVerificationError
		recordHeader tls.RecordHeaderError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		certInvalid  x509.CertificateInvalidError
	)
	if errors.As(err, &certVerify) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) {
		return true
	}
	// Remote alerts surface as opaque "tls:" errors; catch those too.
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}

// isTimeout matches deadline expiry at the context, socket or protocol layer.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isConnectionError matches DNS, dial and mid-stream connection failures.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// truncate shortens a body snippet for failure messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
