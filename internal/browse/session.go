// Package browse drives the rostering website through a real browser.
//
// Session is the minimal surface the shift workflow needs: navigate, wait,
// fill, click, read. The production implementation runs headless Chrome via
// chromedp; tests substitute a scripted fake. Authentication, TOTP handling,
// and on-disk cookie caching live here too, so the workflow deals only in
// "give me an authenticated session".
package browse

import (
	"context"
	"time"
)

// DefaultActionTimeout bounds each individual browser action.
const DefaultActionTimeout = 10 * time.Second

// Session is one live browser page.
//
// Every method honors ctx and additionally applies the driver's per-action
// timeout. A timed-out action returns an error wrapping
// context.DeadlineExceeded.
type Session interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error

	// Fill clears the matched input and types value into it.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first node matching the selector.
	Click(ctx context.Context, selector string) error

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Close releases the page and its browser resources.
	Close() error
}

// Cookie is one browser cookie in driver-neutral form, as cached on disk
// between runs.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
}

// CookieSession is implemented by drivers that can export and import their
// cookie jar. The login flow uses it to cache authenticated sessions.
type CookieSession interface {
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
}
