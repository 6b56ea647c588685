// File: internal/browser/browser.go

// Package browser drives a headless Chrome instance over the DevTools
// protocol: navigation, page interaction, screenshots, cookie transfer and
// network event capture.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/webbridge/webbridge-cli/internal/config"
	"github.com/webbridge/webbridge-cli/internal/netlog"
)

// Manager owns one browser process and one tab. It is not safe for
// concurrent use; drive it from a single goroutine.
type Manager struct {
	cfg      config.BrowserConfig
	log      *zap.Logger
	recorder *netlog.Recorder

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NavigateResult reports the outcome of a page navigation.
type NavigateResult struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status int    `json:"status,omitempty"`
}

// NewManager launches the browser process and opens a tab. recorder may be
// nil to skip traffic capture. Close must be called to release the process.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, recorder *netlog.Recorder) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		log:      logger.Named("browser"),
		recorder: recorder,
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, m.allocatorOptions()...)
	m.ctx, m.cancel = chromedp.NewContext(m.allocCtx)

	if recorder != nil {
		m.listenNetwork()
	}

	// Starting the tab eagerly surfaces launch failures here instead of on
	// the first navigation.
	startCtx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		m.Close()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	m.log.Info("Browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.Bool("ignore_tls_errors", cfg.IgnoreTLSErrors))
	return m, nil
}

// allocatorOptions assembles the Chrome launch flags, dropping the
// enable-automation default so pages cannot trivially detect the driver.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	// Overriding with false removes the flag from the command line entirely:
	// chromedp omits boolean flags whose value is false.
	opts = append(opts, chromedp.Flag("enable-automation", false))

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	if m.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(m.cfg.Proxy))
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// listenNetwork forwards DevTools network events into the recorder. The
// protocol's request ID serves as the correlation ID, so browser entries
// pair exactly in HAR exports.
func (m *Manager) listenNetwork() {
	chromedp.ListenTarget(m.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			evt := netlog.RequestEvent{
				ID:           string(e.RequestID),
				Method:       e.Request.Method,
				URL:          e.Request.URL,
				Headers:      stringifyHeaders(e.Request.Headers),
				ResourceType: string(e.Type),
			}
			if e.WallTime != nil {
				evt.Timestamp = e.WallTime.Time()
			}
			m.recorder.RecordRequest(evt)
		case *network.EventResponseReceived:
			m.recorder.RecordResponse(netlog.ResponseEvent{
				ID:        string(e.RequestID),
				Timestamp: time.Now(),
				URL:       e.Response.URL,
				Status:    int(e.Response.Status),
				Headers:   stringifyHeaders(e.Response.Headers),
			})
		}
	})
}

// Navigate loads a URL and waits for the main document response.
func (m *Manager) Navigate(ctx context.Context, url string) (NavigateResult, error) {
	navCtx, cancel := m.opContext(ctx)
	defer cancel()

	res := NavigateResult{}
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return res, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if resp != nil {
		res.Status = int(resp.Status)
	}

	if err := chromedp.Run(navCtx,
		chromedp.Location(&res.URL),
		chromedp.Title(&res.Title),
	); err != nil {
		return res, fmt.Errorf("reading page state after navigation: %w", err)
	}

	m.log.Info("Navigated",
		zap.String("url", res.URL),
		zap.String("title", res.Title),
		zap.Int("status", res.Status))
	return res, nil
}

// Click clicks the first element matching the CSS selector.
func (m *Manager) Click(ctx context.Context, selector string) error {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	m.log.Debug("Clicked", zap.String("selector", selector))
	return nil
}

// Fill sets the value of the first element matching the CSS selector.
func (m *Manager) Fill(ctx context.Context, selector, value string) error {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("filling %q: %w", selector, err)
	}
	m.log.Debug("Filled", zap.String("selector", selector))
	return nil
}

// Screenshot captures the full page and writes it under the configured
// screenshot directory. It returns the written path.
func (m *Manager) Screenshot(ctx context.Context, name string) (string, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(opCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(m.cfg.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	path := filepath.Join(m.cfg.ScreenshotDir, name)
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}

	m.log.Info("Screenshot saved", zap.String("path", path), zap.Int("bytes", len(buf)))
	return path, nil
}

// CurrentURL returns the tab's current location.
func (m *Manager) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var url string
	if err := chromedp.Run(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading current location: %w", err)
	}
	return url, nil
}

// Close shuts the tab and the browser process down. Safe to call more than
// once.
func (m *Manager) Close() {
	if m.ctx != nil {
		if err := chromedp.Cancel(m.ctx); err != nil {
			m.log.Debug("Browser shutdown", zap.Error(err))
		}
		m.ctx = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCancel = nil
	}
}

// opContext derives a per-operation context bounded by the navigation
// timeout.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx := m.ctx
	if ctx != nil {
		// Bind the operation to the caller's cancellation as well.
		var stop context.CancelFunc
		opCtx, stop = mergeCancel(m.ctx, ctx)
		if m.cfg.NavigationTimeout <= 0 {
			return opCtx, stop
		}
		tctx, cancel := context.WithTimeout(opCtx, m.cfg.NavigationTimeout)
		return tctx, func() { cancel(); stop() }
	}
	if m.cfg.NavigationTimeout <= 0 {
		return opCtx, func() {}
	}
	return context.WithTimeout(opCtx, m.cfg.NavigationTimeout)
}

// mergeCancel returns a child of primary that is additionally cancelled when
// secondary is done. chromedp operations must run on the tab's context
// chain, so the caller's context cannot be used directly.
func mergeCancel(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() { stop(); cancel() }
}

// stringifyHeaders converts DevTools header maps to plain strings.
func stringifyHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}
