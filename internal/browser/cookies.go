// File: internal/browser/cookies.go
package browser

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/webbridge/webbridge-cli/internal/session"
)

// Cookies harvests every cookie known to the browser, across all domains.
func (m *Manager) Cookies(ctx context.Context) ([]session.Cookie, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("harvesting cookies: %w", err)
	}

	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	m.log.Debug("Cookies harvested", zap.Int("count", len(cookies)))
	return cookies, nil
}

// SetCookies installs stored cookies into the browser. Cookies that the
// browser rejects are skipped individually so one bad record does not block
// the rest of a session restore.
func (m *Manager) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	skipped := 0
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			setter := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(epochTime(c.Expires))
				setter = setter.WithExpires(&expires)
			}
			if err := setter.Do(ctx); err != nil {
				skipped++
				m.log.Warn("Skipping cookie the browser rejected",
					zap.String("name", c.Name),
					zap.String("domain", c.Domain),
					zap.Error(err))
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("restoring cookies: %w", err)
	}

	m.log.Info("Cookies restored",
		zap.Int("installed", len(cookies)-skipped),
		zap.Int("skipped", skipped))
	return nil
}

// epochTime converts fractional Unix seconds to a time.Time.
func epochTime(seconds float64) time.Time {
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
