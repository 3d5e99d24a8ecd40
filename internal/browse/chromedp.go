package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Compile-time interface assertions.
var (
	_ Session       = (*Driver)(nil)
	_ CookieSession = (*Driver)(nil)
)

// DriverOption is a functional option for configuring a Driver.
type DriverOption func(*driverConfig)

type driverConfig struct {
	headless      bool
	userAgent     string
	actionTimeout time.Duration
}

// WithHeadless toggles headless mode. Defaults to true.
func WithHeadless(headless bool) DriverOption {
	return func(c *driverConfig) {
		c.headless = headless
	}
}

// WithUserAgent overrides the browser's user agent string.
func WithUserAgent(ua string) DriverOption {
	return func(c *driverConfig) {
		c.userAgent = ua
	}
}

// WithActionTimeout sets the per-action deadline. Defaults to 10 s.
func WithActionTimeout(d time.Duration) DriverOption {
	return func(c *driverConfig) {
		c.actionTimeout = d
	}
}

// Driver implements Session on headless Chrome via chromedp. One Driver
// owns one browser tab; it is not safe for concurrent use, matching the
// workflow's exclusive ownership during a lookup.
type Driver struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
}

// NewDriver launches a browser tab. ctx bounds the whole browser lifetime;
// cancelling it is equivalent to Close.
func NewDriver(ctx context.Context, opts ...DriverOption) (*Driver, error) {
	cfg := &driverConfig{
		headless:      true,
		actionTimeout: DefaultActionTimeout,
	}
	for _, o := range opts {
		o(cfg)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if cfg.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(cfg.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing Chrome binary fails here,
	// not on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browse: launch browser: %w", err)
	}

	return &Driver{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		actionTimeout: cfg.actionTimeout,
	}, nil
}

// Navigate implements Session.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browse: navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible implements Session.
func (d *Driver) WaitVisible(ctx context.Context, selector string) error {
	if err := d.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browse: wait for %q: %w", selector, err)
	}
	return nil
}

// Fill implements Session.
func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	err := d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browse: fill %q: %w", selector, err)
	}
	return nil
}

// Click implements Session.
func (d *Driver) Click(ctx context.Context, selector string) error {
	err := d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browse: click %q: %w", selector, err)
	}
	return nil
}

// HTML implements Session.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browse: read page: %w", err)
	}
	return html, nil
}

// CurrentURL implements Session.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("browse: read location: %w", err)
	}
	return url, nil
}

// Cookies implements CookieSession.
func (d *Driver) Cookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			out = append(out, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("browse: export cookies: %w", err)
	}
	return out, nil
}

// SetCookies implements CookieSession.
func (d *Driver) SetCookies(ctx context.Context, cookies []Cookie) error {
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&expires)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %q: %w", c.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("browse: import cookies: %w", err)
	}
	return nil
}

// Close implements Session. Safe to call more than once.
func (d *Driver) Close() error {
	d.cancelBrowser()
	d.cancelAlloc()
	return nil
}

// run executes actions against the browser tab under the per-action
// timeout, aborting early when the caller's ctx is already done.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(d.browserCtx, d.actionTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("action timed out after %s: %w", d.actionTimeout, err)
	}
	return err
}
