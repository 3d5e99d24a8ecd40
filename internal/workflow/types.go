package workflow

import (
	"errors"
	"time"
)

// Typed failures of the shift workflow. The conversation core maps each to
// a distinct spoken apology.
var (
	// ErrAuthFailed means the browser session could not authenticate
	// against the rostering site.
	ErrAuthFailed = errors.New("workflow: authentication failed")

	// ErrStaffNotFound means the phone lookup produced no staff row
	// within the timeout.
	ErrStaffNotFound = errors.New("workflow: staff not found")

	// ErrNavigationTimeout means a site navigation or wait exceeded its
	// deadline.
	ErrNavigationTimeout = errors.New("workflow: navigation timed out")

	// ErrSubmissionFailed means the cancellation notification could not
	// be delivered.
	ErrSubmissionFailed = errors.New("workflow: cancellation submission failed")
)

// ISODate is the internal calendar date layout. The site filter and the
// notification email use the display layout instead; see FormatSiteDate.
const ISODate = "2006-01-02"

// SiteDate is the display layout used by the site's date filter and the
// notification email.
const SiteDate = "02-01-2006"

// Staff is the identity payload returned by the staff-by-phone lookup.
type Staff struct {
	ID       string
	FullName string
	Email    string
	Team     string
	Mobile   string
}

// Shift is one parsed row of the site's shift grid. Date is the internal
// ISO layout (YYYY-MM-DD); it is empty when the row's date could not be
// parsed, in which case the shift is retained but excluded from date-range
// filtering.
type Shift struct {
	ShiftID    string
	ClientName string
	Date       string
	Time       string
	Type       string
}

// ParsedDate returns the shift's calendar date. ok is false for a missing
// or unparseable date.
func (s Shift) ParsedDate() (time.Time, bool) {
	if s.Date == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(ISODate, s.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FormatSiteDate renders d in the site's DD-MM-YYYY display layout.
func FormatSiteDate(d time.Time) string {
	return d.Format(SiteDate)
}

// Result is the aggregate produced by one Lookup.
type Result struct {
	Staff          Staff
	Interval       Interval
	Intent         Intent
	AllShifts      []Shift
	FilteredShifts []Shift
}

// Intent is the user's classified goal for the shift query.
type Intent string

const (
	IntentCancel  Intent = "cancel"
	IntentView    Intent = "view"
	IntentUnknown Intent = "unknown"
)

// Interval is a closed calendar date range, start <= end.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the interval, comparing calendar
// dates only. Comparison is by calendar components, not Truncate: Truncate
// works in absolute time against the UTC epoch, so a local midnight east of
// UTC would land on the previous day.
func (iv Interval) Contains(d time.Time) bool {
	day := dateOnly(d)
	return !day.Before(dateOnly(iv.Start)) && !day.After(dateOnly(iv.End))
}

// dateOnly strips the time of day and the zone, keeping only the calendar
// date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
