// File: internal/network/httpclient_test.go
package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAcceptsSelfSignedCertWhenVerificationOff(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("untrusted but reachable"))
	}))
	defer srv.Close()

	cfg := NewDefaultClientConfig()
	require.False(t, cfg.VerifyTLS, "verification must be off by default")

	client := NewClient(cfg)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err, "self-signed endpoint must be reachable with verification off")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "untrusted but reachable", string(body))
}

func TestClientRejectsSelfSignedCertWhenVerificationOn(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should not arrive"))
	}))
	defer srv.Close()

	cfg := NewDefaultClientConfig()
	cfg.VerifyTLS = true

	client := NewClient(cfg)
	resp, err := client.Get(srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
}

func TestNewHTTPTransportDefaults(t *testing.T) {
	transport := NewHTTPTransport(nil)

	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	assert.True(t, transport.DisableCompression, "decompression belongs to the middleware layer")
	assert.Equal(t, DefaultMaxIdleConns, transport.MaxIdleConns)
	assert.Equal(t, DefaultMaxConnsPerHost, transport.MaxConnsPerHost)
}

func TestBuildTLSConfigPreservesCallerBase(t *testing.T) {
	caller := &tls.Config{ServerName: "pinned.test"}
	base := NewDefaultClientConfig()
	base.TLSConfig = caller

	got := buildTLSConfig(base)
	assert.Equal(t, "pinned.test", got.ServerName)
	assert.True(t, got.InsecureSkipVerify)
	// The caller's config must not be mutated.
	assert.False(t, caller.InsecureSkipVerify)
}
