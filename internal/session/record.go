// File: internal/session/record.go

// Package session persists named browser sessions (cookies plus page
// location) as JSON files so an authenticated state can be restored in a
// later run.
package session

import (
	"sort"
	"time"
)

// Cookie is the stored form of a browser cookie. Expires is seconds since
// the Unix epoch; zero means a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Record is one saved session. CookieCount and Domains are computed once at
// save time and stored; loading trusts the file rather than recomputing.
type Record struct {
	Name        string    `json:"name"`
	SavedAt     time.Time `json:"saved_at"`
	Cookies     []Cookie  `json:"cookies"`
	CookieCount int       `json:"cookie_count"`
	Domains     []string  `json:"domains"`
	CurrentURL  string    `json:"current_url,omitempty"`
}

// newRecord assembles a Record from live browser state, deriving the
// metadata fields.
func newRecord(name string, cookies []Cookie, currentURL string, savedAt time.Time) Record {
	copied := make([]Cookie, len(cookies))
	copy(copied, cookies)

	seen := make(map[string]struct{}, len(copied))
	domains := make([]string, 0, len(copied))
	for _, c := range copied {
		if c.Domain == "" {
			continue
		}
		if _, dup := seen[c.Domain]; dup {
			continue
		}
		seen[c.Domain] = struct{}{}
		domains = append(domains, c.Domain)
	}
	sort.Strings(domains)

	return Record{
		Name:        name,
		SavedAt:     savedAt,
		Cookies:     copied,
		CookieCount: len(copied),
		Domains:     domains,
		CurrentURL:  currentURL,
	}
}
