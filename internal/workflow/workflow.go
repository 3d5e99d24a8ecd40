// Package workflow composes the ordered shift pipeline: authenticate
// against the rostering site, look the caller up by phone, reason the date
// interval, search shifts with the site's server-side date filter, and
// re-filter locally. Cancellation submission is a separate operation that
// delivers the notification email; the site itself is never mutated.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helpathands/shiftline/internal/browse"
	"github.com/helpathands/shiftline/internal/datereason"
	"github.com/helpathands/shiftline/internal/notify"
)

// Default grid selectors. The rostering site renders both search pages as
// DataTables grids, so these rarely need overriding.
const (
	defaultStaffSearchSelector = "input[type='search'].form-control"
	defaultResultsRowSelector  = "table tbody tr"
	defaultDateFilterSelector  = "input[name='date_range']"
)

// SessionFactory opens a fresh browser session. The workflow owns the
// session for the duration of one lookup and closes it afterwards.
type SessionFactory func(ctx context.Context) (browse.Session, error)

// Config wires one Workflow.
type Config struct {
	// BaseURL is the site root, e.g. "https://hahs-vic3495.ezaango.app".
	BaseURL string

	// StaffSearchURL is the staff-search page. Defaults to
	// BaseURL + "/staff".
	StaffSearchURL string

	// Site and Credentials drive authentication.
	Site        browse.SiteConfig
	Credentials browse.Credentials

	// Selector overrides; zero values select the DataTables defaults.
	StaffSearchSelector string
	ResultsRowSelector  string
	DateFilterSelector  string

	// EmailSubject overrides the cancellation email subject.
	EmailSubject string
}

// Option is a functional option for configuring a Workflow.
type Option func(*Workflow)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(w *Workflow) {
		w.log = log
	}
}

// WithCookieStore enables on-disk session caching between lookups.
func WithCookieStore(store *browse.CookieStore) Option {
	return func(w *Workflow) {
		w.cookies = store
	}
}

// Workflow is the single entry point the conversation core calls. Safe for
// concurrent use across sessions: each Lookup runs on its own browser
// session and the cookie store is file-locked.
type Workflow struct {
	cfg        Config
	newSession SessionFactory
	reasoner   *datereason.Reasoner
	mailer     notify.Mailer
	cookies    *browse.CookieStore
	log        *slog.Logger
}

// New creates a Workflow.
func New(cfg Config, newSession SessionFactory, reasoner *datereason.Reasoner, mailer notify.Mailer, opts ...Option) (*Workflow, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("workflow: BaseURL must not be empty")
	}
	if newSession == nil {
		return nil, errors.New("workflow: session factory must not be nil")
	}
	if reasoner == nil {
		return nil, errors.New("workflow: date reasoner must not be nil")
	}
	if mailer == nil {
		return nil, errors.New("workflow: mailer must not be nil")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.StaffSearchURL == "" {
		cfg.StaffSearchURL = cfg.BaseURL + "/staff"
	}
	if cfg.StaffSearchSelector == "" {
		cfg.StaffSearchSelector = defaultStaffSearchSelector
	}
	if cfg.ResultsRowSelector == "" {
		cfg.ResultsRowSelector = defaultResultsRowSelector
	}
	if cfg.DateFilterSelector == "" {
		cfg.DateFilterSelector = defaultDateFilterSelector
	}

	w := &Workflow{
		cfg:        cfg,
		newSession: newSession,
		reasoner:   reasoner,
		mailer:     mailer,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Lookup runs the full pipeline for one caller utterance.
func (w *Workflow) Lookup(ctx context.Context, callerPhone, utterance string) (*Result, error) {
	sess, err := w.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open browser: %w", ErrAuthFailed, err)
	}
	defer sess.Close()

	if err := browse.Authenticate(ctx, sess, w.cfg.Site, w.cfg.Credentials, w.cookies, w.log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	staff, err := w.lookupStaff(ctx, sess, callerPhone)
	if err != nil {
		return nil, err
	}
	w.log.Info("staff resolved", "staff_id", staff.ID, "name", staff.FullName)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reasoned := w.reasoner.Reason(ctx, utterance)
	interval := Interval{Start: reasoned.Start, End: reasoned.End}
	intent := Intent(reasoned.Intent)
	w.log.Info("dates reasoned",
		"start", reasoned.Start.Format(ISODate),
		"end", reasoned.End.Format(ISODate),
		"intent", intent)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allShifts, err := w.searchShifts(ctx, sess, staff.FullName, interval)
	if err != nil {
		return nil, err
	}

	filtered := filterByInterval(allShifts, interval)
	w.log.Info("shifts found", "total", len(allShifts), "in_range", len(filtered))

	return &Result{
		Staff:          staff,
		Interval:       interval,
		Intent:         intent,
		AllShifts:      allShifts,
		FilteredShifts: filtered,
	}, nil
}

// SubmitCancellation delivers the cancellation notification email. The
// email is the authoritative submission; persistence at the site happens
// in a separate manual workflow downstream.
func (w *Workflow) SubmitCancellation(ctx context.Context, staff Staff, shift Shift, reason string) error {
	displayDate := shift.Date
	if d, ok := shift.ParsedDate(); ok {
		displayDate = FormatSiteDate(d)
	}

	body := notify.FormatCancellation(
		notify.StaffInfo{Name: staff.FullName, ID: staff.ID, Email: staff.Email},
		[]notify.ShiftLine{{Client: shift.ClientName, Time: shift.Time, Date: displayDate}},
		reason,
	)

	if err := w.mailer.Send(ctx, w.cfg.EmailSubject, body); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	w.log.Info("cancellation submitted", "staff_id", staff.ID, "shift_id", shift.ShiftID)
	return nil
}

// lookupStaff enters the phone into the staff grid's search control and
// reads the first result row.
func (w *Workflow) lookupStaff(ctx context.Context, sess browse.Session, phone string) (Staff, error) {
	if err := sess.Navigate(ctx, w.cfg.StaffSearchURL); err != nil {
		return Staff{}, navErr("open staff search", err)
	}
	if err := sess.WaitVisible(ctx, w.cfg.StaffSearchSelector); err != nil {
		return Staff{}, navErr("wait for staff search input", err)
	}
	if err := sess.Fill(ctx, w.cfg.StaffSearchSelector, phone); err != nil {
		return Staff{}, navErr("enter phone", err)
	}

	// The grid filters asynchronously; a row failing to render within
	// the action timeout means no match.
	if err := sess.WaitVisible(ctx, w.cfg.ResultsRowSelector); err != nil {
		return Staff{}, fmt.Errorf("%w: no result row for %s", ErrStaffNotFound, phone)
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return Staff{}, navErr("read staff results", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Staff{}, fmt.Errorf("workflow: parse staff results: %w", err)
	}

	staff, ok := parseStaffRow(doc)
	if !ok {
		return Staff{}, fmt.Errorf("%w: empty result grid for %s", ErrStaffNotFound, phone)
	}
	if staff.Mobile != "" && !PhonesMatch(staff.Mobile, phone) {
		return Staff{}, fmt.Errorf("%w: first row mobile %s does not match %s", ErrStaffNotFound, staff.Mobile, phone)
	}
	return staff, nil
}

// searchShifts opens the shift grid keyed by the staff name, submits the
// interval into the server-side date filter, and parses the rows.
func (w *Workflow) searchShifts(ctx context.Context, sess browse.Session, staffName string, interval Interval) ([]Shift, error) {
	searchURL := w.cfg.BaseURL + "/search?keyword=" + url.QueryEscape(staffName)

	if err := sess.Navigate(ctx, searchURL); err != nil {
		return nil, navErr("open shift search", err)
	}
	if err := sess.WaitVisible(ctx, w.cfg.ResultsRowSelector); err != nil {
		// No rows at all: the staff has no shifts, which is a valid
		// empty result, not a failure.
		return nil, nil
	}

	filter := fmt.Sprintf("%s to %s", FormatSiteDate(interval.Start), FormatSiteDate(interval.End))
	if err := sess.Fill(ctx, w.cfg.DateFilterSelector, filter); err != nil {
		return nil, navErr("submit date filter", err)
	}
	if err := sess.WaitVisible(ctx, w.cfg.ResultsRowSelector); err != nil {
		return nil, nil
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, navErr("read shift results", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("workflow: parse shift results: %w", err)
	}
	return parseShiftRows(doc), nil
}

// filterByInterval drops shifts whose date is missing or outside the
// interval. The server-side filter is trusted but not trusted completely.
func filterByInterval(shifts []Shift, interval Interval) []Shift {
	var out []Shift
	for _, s := range shifts {
		d, ok := s.ParsedDate()
		if !ok {
			continue
		}
		if interval.Contains(d) {
			out = append(out, s)
		}
	}
	return out
}

// navErr wraps a browser step failure, classifying deadline expiry as a
// navigation timeout.
func navErr(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrNavigationTimeout, step, err)
	}
	return fmt.Errorf("workflow: %s: %w", step, err)
}
