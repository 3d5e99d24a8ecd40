package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrLoginFailed means the site did not land on the expected page after the
// credential and 2FA steps.
var ErrLoginFailed = errors.New("browse: login failed")

// SiteConfig describes one rostering site: where to log in, where a logged
// in session lands, and the selectors of the login form.
type SiteConfig struct {
	// Service keys the on-disk cookie jar, e.g. "hahs_vic3495_admin".
	Service string

	// LoginURL is the login form page.
	LoginURL string

	// LandingURL is where an authenticated session lands. Cached cookie
	// jars are probed by navigating here; a redirect back to the login
	// page invalidates the jar.
	LandingURL string

	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	// TwoFASelector is the one-time-password input. Empty disables the
	// 2FA step.
	TwoFASelector       string
	TwoFASubmitSelector string
}

// Credentials is one service's admin login.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string
}

// Authenticate brings sess to an authenticated state against cfg.
//
// A cached cookie jar is tried first: the cookies are imported and probed
// with a navigation to the landing URL; on redirect to the login page the
// jar is discarded and a full credential login runs instead, including the
// TOTP challenge when configured. On success the fresh jar is saved back.
//
// store may be nil to disable cookie caching entirely.
func Authenticate(ctx context.Context, sess Session, cfg SiteConfig, creds Credentials, store *CookieStore, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	if tryResume(ctx, sess, cfg, store, log) {
		return nil
	}

	log.Info("logging in", "service", cfg.Service, "url", cfg.LoginURL)

	if err := sess.Navigate(ctx, cfg.LoginURL); err != nil {
		return fmt.Errorf("browse: open login page: %w", err)
	}
	if err := sess.Fill(ctx, cfg.UsernameSelector, creds.Username); err != nil {
		return fmt.Errorf("browse: enter username: %w", err)
	}
	if err := sess.Fill(ctx, cfg.PasswordSelector, creds.Password); err != nil {
		return fmt.Errorf("browse: enter password: %w", err)
	}
	if err := sess.Click(ctx, cfg.SubmitSelector); err != nil {
		return fmt.Errorf("browse: submit login form: %w", err)
	}

	if cfg.TwoFASelector != "" {
		code, err := TOTPCode(creds.TOTPSecret)
		if err != nil {
			return err
		}
		if err := sess.Fill(ctx, cfg.TwoFASelector, code); err != nil {
			return fmt.Errorf("browse: enter 2FA code: %w", err)
		}
		if err := sess.Click(ctx, cfg.TwoFASubmitSelector); err != nil {
			return fmt.Errorf("browse: submit 2FA form: %w", err)
		}
	}

	if err := verifyLanding(ctx, sess, cfg); err != nil {
		return err
	}

	saveJar(ctx, sess, cfg, store, log)
	log.Info("login succeeded", "service", cfg.Service)
	return nil
}

// tryResume probes a cached cookie jar. True means the session is already
// authenticated.
func tryResume(ctx context.Context, sess Session, cfg SiteConfig, store *CookieStore, log *slog.Logger) bool {
	if store == nil {
		return false
	}
	cs, ok := sess.(CookieSession)
	if !ok {
		return false
	}

	cookies, err := store.Load(cfg.Service)
	if err != nil {
		if !errors.Is(err, ErrNoCachedSession) {
			log.Warn("cached session unreadable", "service", cfg.Service, "error", err)
		}
		return false
	}
	if err := cs.SetCookies(ctx, cookies); err != nil {
		log.Warn("cached session import failed", "service", cfg.Service, "error", err)
		return false
	}

	if err := verifyLanding(ctx, sess, cfg); err != nil {
		log.Info("cached session expired, discarding", "service", cfg.Service)
		if derr := store.Discard(cfg.Service); derr != nil {
			log.Warn("discard cookie jar failed", "service", cfg.Service, "error", derr)
		}
		return false
	}

	log.Info("resumed cached session", "service", cfg.Service)
	return true
}

// verifyLanding navigates to the landing URL and confirms the site did not
// bounce back to a login page.
func verifyLanding(ctx context.Context, sess Session, cfg SiteConfig) error {
	if err := sess.Navigate(ctx, cfg.LandingURL); err != nil {
		return fmt.Errorf("browse: probe landing page: %w", err)
	}
	current, err := sess.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("browse: read landing location: %w", err)
	}

	want := strings.TrimRight(cfg.LandingURL, "/")
	got := strings.TrimRight(current, "/")
	if !strings.HasPrefix(got, want) {
		return fmt.Errorf("%w: expected %s, landed on %s", ErrLoginFailed, want, got)
	}
	return nil
}

func saveJar(ctx context.Context, sess Session, cfg SiteConfig, store *CookieStore, log *slog.Logger) {
	if store == nil {
		return
	}
	cs, ok := sess.(CookieSession)
	if !ok {
		return
	}
	cookies, err := cs.Cookies(ctx)
	if err != nil {
		log.Warn("cookie export failed", "service", cfg.Service, "error", err)
		return
	}
	if err := store.Save(cfg.Service, cookies); err != nil {
		log.Warn("cookie jar save failed", "service", cfg.Service, "error", err)
	}
}
