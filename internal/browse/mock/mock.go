// Package mock provides a scripted test double for the browse.Session
// interface.
//
// Pages maps URLs to HTML documents; Navigate switches the current page and
// records the visit. Redirects lets a test simulate a bounce to the login
// page. FillValues and Clicks record form interaction for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/helpathands/shiftline/internal/browse"
)

// Session is a mock implementation of browse.Session and
// browse.CookieSession.
type Session struct {
	mu sync.Mutex

	// Pages maps a URL to the HTML served there.
	Pages map[string]string

	// Redirects maps a navigated URL to the URL the "browser" ends up on
	// instead. Unlisted URLs stay where they are.
	Redirects map[string]string

	// NavigateErr, when non-nil, fails every Navigate call.
	NavigateErr error

	// WaitErr, when non-nil, fails every WaitVisible call.
	WaitErr error

	// Visited records every Navigate target in order.
	Visited []string

	// FillValues records selector -> last filled value.
	FillValues map[string]string

	// Clicks records every clicked selector in order.
	Clicks []string

	// Jar holds the cookies imported via SetCookies or scripted by the
	// test; Cookies returns it.
	Jar []browse.Cookie

	current string
	closed  bool
}

var (
	_ browse.Session       = (*Session)(nil)
	_ browse.CookieSession = (*Session)(nil)
)

// Navigate implements browse.Session.
func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.Visited = append(s.Visited, url)
	s.current = url
	if target, ok := s.Redirects[url]; ok {
		s.current = target
	}
	return nil
}

// WaitVisible implements browse.Session.
func (s *Session) WaitVisible(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.WaitErr
}

// Fill implements browse.Session.
func (s *Session) Fill(_ context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FillValues == nil {
		s.FillValues = make(map[string]string)
	}
	s.FillValues[selector] = value
	return nil
}

// Click implements browse.Session.
func (s *Session) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clicks = append(s.Clicks, selector)
	return nil
}

// HTML implements browse.Session, serving the scripted page for the
// current URL.
func (s *Session) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Pages[s.current], nil
}

// CurrentURL implements browse.Session.
func (s *Session) CurrentURL(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// Close implements browse.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Cookies implements browse.CookieSession.
func (s *Session) Cookies(_ context.Context) ([]browse.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browse.Cookie, len(s.Jar))
	copy(out, s.Jar)
	return out, nil
}

// SetCookies implements browse.CookieSession.
func (s *Session) SetCookies(_ context.Context, cookies []browse.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jar = append([]browse.Cookie{}, cookies...)
	return nil
}

// SetCurrentURL scripts the page the session is currently on.
func (s *Session) SetCurrentURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = url
}

// SetPage scripts the HTML served at url.
func (s *Session) SetPage(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Pages == nil {
		s.Pages = make(map[string]string)
	}
	s.Pages[url] = html
}
