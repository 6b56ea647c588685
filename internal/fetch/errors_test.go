// File: internal/fetch/errors_test.go
package fetch

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeoutErr implements net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "unknown authority is an ssl failure",
			err:  x509.UnknownAuthorityError{},
			want: KindSSL,
		},
		{
			name: "hostname mismatch is an ssl failure",
			err:  x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.com"},
			want: KindSSL,
		},
		{
			name: "opaque tls alert string is an ssl failure",
			err:  errors.New("remote error: tls: handshake failure"),
			want: KindSSL,
		},
		{
			name: "context deadline is a timeout",
			err:  fmt.Errorf("request failed: %w", context.DeadlineExceeded),
			want: KindTimeout,
		},
		{
			name: "net timeout is a timeout",
			err:  timeoutErr{},
			want: KindTimeout,
		},
		{
			name: "connection refused is a connection failure",
			err:  fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
			want: KindConnection,
		},
		{
			name: "connection reset is a connection failure",
			err:  fmt.Errorf("read: %w", syscall.ECONNRESET),
			want: KindConnection,
		},
		{
			name: "eof is a connection failure",
			err:  io.EOF,
			want: KindConnection,
		},
		{
			name: "dns failure is a connection failure",
			err:  &net.DNSError{Err: "no such host", Name: "nope.invalid"},
			want: KindConnection,
		},
		{
			name: "anything else is a client protocol failure",
			err:  errors.New("malformed HTTP response"),
			want: KindClientProtocol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fe := Classify(tc.err)
			require.NotNil(t, fe)
			assert.Equal(t, tc.want, fe.Kind)
			assert.NotEmpty(t, fe.Message)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	orig := &FetchError{Kind: KindHTTPStatus, Status: 503, Message: "HTTP 503"}
	wrapped := fmt.Errorf("attempt failed: %w", orig)

	fe := Classify(wrapped)
	assert.Same(t, orig, fe)
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindSSL.Retryable())
	assert.True(t, KindTimeout.Retryable())
	assert.True(t, KindConnection.Retryable())
	assert.True(t, KindClientProtocol.Retryable())
	assert.False(t, KindHTTPStatus.Retryable())
	assert.False(t, KindParse.Retryable())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "SSLFailure", KindSSL.String())
	assert.Equal(t, "Timeout", KindTimeout.String())
	assert.Equal(t, "ConnectionFailure", KindConnection.String())
	assert.Equal(t, "ClientProtocolFailure", KindClientProtocol.String())
	assert.Equal(t, "HTTPStatusFailure", KindHTTPStatus.String())
	assert.Equal(t, "ParseFailure", KindParse.String())
}

func TestFetchErrorUnwrap(t *testing.T) {
	fe := Classify(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED))
	assert.ErrorIs(t, fe, syscall.ECONNREFUSED)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 200))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncate(string(long), 200), 200)
}
