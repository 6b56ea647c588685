// File: internal/network/httpclient.go
package network

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Default TCP/TLS/HTTP tuning for fetch workloads.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 10 * time.Second

	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 20
	DefaultMaxConnsPerHost     = 50
	DefaultIdleConnTimeout     = 30 * time.Second
)

// ClientConfig holds the knobs for building the HTTP client and transport.
type ClientConfig struct {
	// VerifyTLS enables certificate validation. When false the transport
	// accepts any certificate, which is the tool's default operating mode.
	VerifyTLS bool
	// TLSConfig allows full TLS customization; VerifyTLS still applies on top.
	TLSConfig *tls.Config

	DialTimeout           time.Duration
	KeepAliveInterval     time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	ForceHTTP2        bool
	DisableKeepAlives bool

	ProxyURL *url.URL

	Logger *zap.Logger
}

// NewDefaultClientConfig returns a configuration suitable for general fetch
// and download traffic.
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		VerifyTLS:             false,
		DialTimeout:           DefaultDialTimeout,
		KeepAliveInterval:     DefaultKeepAliveInterval,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		MaxConnsPerHost:       DefaultMaxConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ForceHTTP2:            true,
		Logger:                zap.NewNop(),
	}
}

// NewHTTPTransport builds an http.Transport from the configuration.
func NewHTTPTransport(config *ClientConfig) *http.Transport {
	if config == nil {
		config = NewDefaultClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   config.DialTimeout,
		KeepAlive: config.KeepAliveInterval,
		// Dual-stack with Happy Eyeballs (RFC 8305).
		FallbackDelay: 300 * time.Millisecond,
	}

	tlsConfig := buildTLSConfig(config)

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,

		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableKeepAlives:   config.DisableKeepAlives,

		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		// Decompression is handled by the transparent middleware wrapper so
		// brotli is covered too.
		DisableCompression: true,

		ForceAttemptHTTP2: config.ForceHTTP2,
	}

	if config.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(config.ProxyURL)
	}

	if config.ForceHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			// Graceful fallback to HTTP/1.1.
			logger(config).Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	} else if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"http/1.1"}
	}

	return transport
}

// NewClient builds an http.Client with a decompressing transport. Redirects
// are followed (default policy, at most 10 hops); the fetch result reports
// the final post-redirect URL.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = NewDefaultClientConfig()
	}

	return &http.Client{
		Transport: NewDecompressingTransport(NewHTTPTransport(config)),
		// No client-level timeout: per-request deadlines come from the
		// caller's context so one slow download can't be cut short by a
		// global setting.
	}
}

// buildTLSConfig assembles the TLS configuration, applying the verification
// switch on top of any caller-provided base.
func buildTLSConfig(config *ClientConfig) *tls.Config {
	var tlsConfig *tls.Config
	if config.TLSConfig != nil {
		tlsConfig = config.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(64),
		}
	}
	tlsConfig.InsecureSkipVerify = !config.VerifyTLS
	return tlsConfig
}

func logger(config *ClientConfig) *zap.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	return zap.NewNop()
}
