// File: internal/fetch/engine.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"

	"github.com/webbridge/webbridge-cli/internal/config"
	"github.com/webbridge/webbridge-cli/internal/netlog"
	"github.com/webbridge/webbridge-cli/internal/network"
)

// downloadChunkSize is the fixed streaming chunk for downloads.
const downloadChunkSize = 8192

// statusSnippetLen bounds the response body excerpt captured into an
// HTTPStatusFailure message.
const statusSnippetLen = 200

// Recorder receives one request and one response event per attempt. The
// engine treats it as fire-and-forget: a panicking recorder never changes a
// fetch outcome. Satisfied by *netlog.Recorder.
type Recorder interface {
	RecordRequest(evt netlog.RequestEvent)
	RecordResponse(evt netlog.ResponseEvent)
}

// Engine performs fetches and downloads with bounded retries and exponential
// backoff. One engine owns one transport/connection pool and is safe for
// concurrent use; construct it explicitly and pass it where needed instead of
// holding a process-wide instance.
type Engine struct {
	cfg      config.FetcherConfig
	client   *http.Client
	baseConf *network.ClientConfig
	limiter  *rate.Limiter
	recorder Recorder
	log      *zap.Logger
}

// NewEngine builds an engine from configuration. recorder may be nil.
func NewEngine(cfg config.FetcherConfig, logger *zap.Logger, recorder Recorder) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("fetcher")

	baseConf := network.NewDefaultClientConfig()
	baseConf.VerifyTLS = cfg.VerifyTLS
	baseConf.Logger = log
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy endpoint %q: %w", cfg.Proxy, err)
		}
		baseConf.ProxyURL = proxyURL
	}

	e := &Engine{
		cfg:      cfg,
		client:   network.NewClient(baseConf),
		baseConf: baseConf,
		recorder: recorder,
		log:      log,
	}
	if cfg.RatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	if !cfg.VerifyTLS {
		log.Warn("TLS certificate verification is DISABLED")
	}
	log.Info("Fetch engine initialized",
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("retry_delay", cfg.RetryDelay),
		zap.Bool("verify_tls", cfg.VerifyTLS))
	return e, nil
}

// Fetch retrieves a URL, retrying retryable failures with exponential
// backoff. The returned Result is always populated; no error escapes
// unclassified.
func (e *Engine) Fetch(ctx context.Context, req Request) Result {
	start := time.Now()
	e.log.Info("Fetching", zap.String("url", req.URL))

	var res Result
	ferr := e.runAttempts(ctx, req.URL, func(ctx context.Context) *FetchError {
		r, fe := e.attemptFetch(ctx, req)
		if fe != nil {
			return fe
		}
		res = r
		return nil
	})
	if ferr != nil {
		return failureResult(req.URL, ferr, time.Since(start))
	}

	res.Elapsed = time.Since(start)
	e.log.Info("Fetch succeeded",
		zap.String("url", res.URL),
		zap.Int("status", res.Status),
		zap.Int64("bytes", res.Size),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// FetchJSON fetches a URL and parses the body as JSON into Result.JSON. A
// body that is not valid JSON yields a ParseFailure that keeps the
// underlying status and content, so callers can distinguish "fetch failed"
// from "fetch succeeded but the body was not JSON".
func (e *Engine) FetchJSON(ctx context.Context, req Request) Result {
	res := e.Fetch(ctx, req)
	if !res.Success {
		return res
	}

	var parsed any
	if err := jsoniter.UnmarshalFromString(res.Content, &parsed); err != nil {
		e.log.Error("JSON parse failed", zap.String("url", res.URL), zap.Error(err))
		res.Success = false
		res.ErrorKind = KindParse.String()
		res.Error = fmt.Sprintf("JSON parse error: %v", err)
		return res
	}
	res.JSON = parsed
	return res
}

// Download streams a URL's body to req.Dest in fixed-size chunks, under the
// same retry policy as Fetch. A failure mid-stream leaves the partial file
// on disk; callers that need atomicity should download to a temp path and
// rename.
func (e *Engine) Download(ctx context.Context, req DownloadRequest) DownloadResult {
	start := time.Now()
	e.log.Info("Downloading", zap.String("url", req.URL), zap.String("dest", req.Dest))

	var written int64
	ferr := e.runAttempts(ctx, req.URL, func(ctx context.Context) *FetchError {
		n, fe := e.attemptDownload(ctx, req)
		written = n
		return fe
	})
	if ferr != nil {
		return DownloadResult{
			Success:   false,
			URL:       req.URL,
			Dest:      req.Dest,
			ErrorKind: ferr.Kind.String(),
			Error:     ferr.Message,
			Elapsed:   time.Since(start),
		}
	}

	elapsed := time.Since(start)
	e.log.Info("Download complete",
		zap.String("dest", req.Dest),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", elapsed))
	return DownloadResult{
		Success:      true,
		URL:          req.URL,
		Dest:         req.Dest,
		BytesWritten: written,
		Elapsed:      elapsed,
	}
}

// attemptFn runs one attempt and returns nil on success or the classified
// failure. Attempts within one logical operation are strictly sequential.
type attemptFn func(ctx context.Context) *FetchError

// runAttempts is the single retry loop shared by Fetch and Download. The
// loop is an explicit state machine over result values: a retryable failure
// schedules a backoff and another attempt, a non-retryable failure or
// cancellation ends the loop, and exhaustion surfaces the last classified
// error. No panics or sentinel unwinding between attempts.
func (e *Engine) runAttempts(ctx context.Context, target string, attempt attemptFn) *FetchError {
	var last *FetchError

	for i := 0; i < e.cfg.MaxRetries; i++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return Classify(err)
			}
		}

		e.log.Debug("Attempt", zap.Int("n", i+1), zap.Int("of", e.cfg.MaxRetries), zap.String("url", target))
		last = attempt(ctx)
		if last == nil {
			return nil
		}

		e.log.Warn("Attempt failed",
			zap.String("url", target),
			zap.Int("attempt", i+1),
			zap.String("kind", last.Kind.String()),
			zap.String("error", last.Message))

		if !last.Kind.Retryable() {
			return last
		}
		// A cancelled attempt is never retried.
		if ctx.Err() != nil {
			return last
		}
		if i == e.cfg.MaxRetries-1 {
			break
		}

		delay := e.cfg.RetryDelay * (1 << i)
		e.log.Info("Retrying", zap.Duration("delay", delay), zap.String("url", target))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return last
		}
	}

	e.log.Error("All attempts failed",
		zap.String("url", target),
		zap.Int("attempts", e.cfg.MaxRetries),
		zap.String("error", last.Message))
	return last
}

// attemptFetch performs one fetch attempt. Unexpected faults inside the
// pipeline are caught here and reported as ClientProtocolFailure with the
// original message preserved.
func (e *Engine) attemptFetch(ctx context.Context, req Request) (res Result, ferr *FetchError) {
	defer func() {
		if r := recover(); r != nil {
			ferr = &FetchError{
				Kind:    KindClientProtocol,
				Message: fmt.Sprintf("unexpected fault in fetch pipeline: %v", r),
			}
		}
	}()

	client, verified, fe := e.clientFor(req)
	if fe != nil {
		return Result{}, fe
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(req))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, &FetchError{Kind: KindClientProtocol, Message: err.Error(), cause: err}
	}
	e.applyHeaders(httpReq, req.Headers)

	correlationID := uuid.NewString()
	e.record(func() {
		e.recorder.RecordRequest(netlog.RequestEvent{
			ID:           correlationID,
			Timestamp:    time.Now(),
			Method:       httpReq.Method,
			URL:          req.URL,
			Headers:      flattenHeaders(httpReq.Header),
			ResourceType: "fetch",
		})
	})

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{}, Classify(err)
	}
	defer resp.Body.Close()

	e.record(func() {
		e.recorder.RecordResponse(netlog.ResponseEvent{
			ID:        correlationID,
			Timestamp: time.Now(),
			URL:       resp.Request.URL.String(),
			Status:    resp.StatusCode,
			Headers:   flattenHeaders(resp.Header),
		})
	})

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &FetchError{
			Kind:    KindHTTPStatus,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(snippet), statusSnippetLen)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, Classify(err)
	}

	return Result{
		Success:     true,
		URL:         resp.Request.URL.String(),
		Status:      resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		Content:     decodeText(body),
		Size:        int64(len(body)),
		TLSVerified: verified,
	}, nil
}

// attemptDownload performs one download attempt, streaming to req.Dest. The
// destination handle is closed on every exit path; a mid-stream failure
// leaves the partial file in place.
func (e *Engine) attemptDownload(ctx context.Context, req DownloadRequest) (written int64, ferr *FetchError) {
	defer func() {
		if r := recover(); r != nil {
			ferr = &FetchError{
				Kind:    KindClientProtocol,
				Message: fmt.Sprintf("unexpected fault in download pipeline: %v", r),
			}
		}
	}()

	client, _, fe := e.clientFor(req.Request)
	if fe != nil {
		return 0, fe
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(req.Request))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, &FetchError{Kind: KindClientProtocol, Message: err.Error(), cause: err}
	}
	e.applyHeaders(httpReq, req.Headers)

	correlationID := uuid.NewString()
	e.record(func() {
		e.recorder.RecordRequest(netlog.RequestEvent{
			ID:           correlationID,
			Timestamp:    time.Now(),
			Method:       httpReq.Method,
			URL:          req.URL,
			Headers:      flattenHeaders(httpReq.Header),
			ResourceType: "download",
		})
	})

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, Classify(err)
	}
	defer resp.Body.Close()

	e.record(func() {
		e.recorder.RecordResponse(netlog.ResponseEvent{
			ID:        correlationID,
			Timestamp: time.Now(),
			URL:       resp.Request.URL.String(),
			Status:    resp.StatusCode,
			Headers:   flattenHeaders(resp.Header),
		})
	})

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &FetchError{
			Kind:    KindHTTPStatus,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(snippet), statusSnippetLen)),
		}
	}

	f, err := os.Create(req.Dest)
	if err != nil {
		return 0, &FetchError{Kind: KindClientProtocol, Message: err.Error(), cause: err}
	}
	defer f.Close()

	total := resp.ContentLength
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return written, &FetchError{Kind: KindClientProtocol, Message: writeErr.Error(), cause: writeErr}
			}
			written += int64(n)
			if req.Progress != nil && total > 0 {
				req.Progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, Classify(readErr)
		}
	}
}

// clientFor returns the shared client, or a derived one when the request
// overrides the proxy or TLS verification. The second return is the
// effective TLS verification setting.
func (e *Engine) clientFor(req Request) (*http.Client, bool, *FetchError) {
	verify := e.cfg.VerifyTLS
	if req.VerifyTLS != nil {
		verify = *req.VerifyTLS
	}

	if req.Proxy == "" && verify == e.cfg.VerifyTLS {
		return e.client, verify, nil
	}

	conf := *e.baseConf
	conf.VerifyTLS = verify
	if req.Proxy != "" {
		proxyURL, err := url.Parse(req.Proxy)
		if err != nil {
			return nil, false, &FetchError{
				Kind:    KindClientProtocol,
				Message: fmt.Sprintf("invalid proxy endpoint %q: %v", req.Proxy, err),
				cause:   err,
			}
		}
		conf.ProxyURL = proxyURL
	}
	return network.NewClient(&conf), verify, nil
}

func (e *Engine) timeoutFor(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return e.cfg.Timeout
}

// applyHeaders sets the default User-Agent and then the request's own
// headers, which win per name.
func (e *Engine) applyHeaders(httpReq *http.Request, headers map[string]string) {
	if e.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
}

// record runs a recorder callback behind a panic guard so tracing can never
// change a fetch outcome.
func (e *Engine) record(fn func()) {
	if e.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("Recorder callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// flattenHeaders collapses an http.Header into a single-valued map, joining
// repeated names.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// decodeText decodes a body as UTF-8, falling back to Latin-1 with
// substitution. It always yields text; decoding never fails.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// Latin-1 maps every byte, so this is unreachable; substitute
		// invalid sequences as a last resort.
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}
