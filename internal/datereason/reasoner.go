// Package datereason converts a natural-language time expression into a
// concrete closed date interval plus an intent classification.
//
// Simple keywords ("tomorrow", "this week", a weekday name) are computed
// directly without a model call. Everything else goes to a small model with
// a JSON-only protocol: up to two attempts, then a documented default of
// today through today+7.
//
// The reasoner owns its own chat instance; its history is never shared with
// the conversation core's, and it is cleared between inferences so one
// caller's phrasing cannot contaminate the next reasoning.
package datereason

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/helpathands/shiftline/internal/chat"
	"github.com/helpathands/shiftline/pkg/provider/llm"
)

// Intent is the user's classified goal for a shift query.
type Intent string

const (
	IntentCancel  Intent = "cancel"
	IntentView    Intent = "view"
	IntentUnknown Intent = "unknown"
)

// Intent markers the model embeds in its rationale.
const (
	markerCancel = "<CNCL>"
	markerView   = "<SHOW>"
)

// ISODate is the date layout used in results and in the model protocol.
const ISODate = "2006-01-02"

// DefaultSpanDays is the length in days of the fallback interval when
// reasoning fails.
const DefaultSpanDays = 7

// Result is one reasoned date interval.
type Result struct {
	// IsShiftQuery reports whether the utterance was about shifts at all.
	// False when the default was returned after two failed attempts.
	IsShiftQuery bool

	// Intent is cancel, view, or unknown.
	Intent Intent

	// Start and End bound the closed interval, Start <= End, both
	// calendar dates at midnight local time.
	Start time.Time
	End   time.Time

	// Rationale is the model's explanation, or "default" for the
	// fallback, or a note that the interval was computed directly.
	Rationale string
}

const systemPromptTemplate = `You are a shift scheduling assistant. Your job is to interpret shift queries and determine what dates the user is interested in.

TASK: Given a user's query about their shifts, output ONLY a JSON object (no other text) with these fields:
{
    "is_shift_query": true/false,
    "date_range_type": "today" | "tomorrow" | "week" | "month" | "specific",
    "start_date": "YYYY-MM-DD",
    "end_date": "YYYY-MM-DD",
    "reasoning": "<CNCL>" if cancellation, "<SHOW>" if viewing shifts, followed by brief explanation
}

DATE INTERPRETATION RULES:
- "When is my shift?" or "What shifts do I have?" → today + next 7 days
- "Tomorrow" → get the date today and add one day
- "Next week" → 7 days from today
- "This week" → from TODAY until %[1]s
- "Next month" → entire next calendar month
- Specific date mentioned → that date only
- Default (no date mentioned) → today + next 7 days

IMPORTANT: Always use today's date as reference. Output ONLY the JSON object, no explanation.
This Sunday is: %[1]s

Today's date: %[2]s (%[3]s)
`

// Option is a functional option for configuring a Reasoner.
type Option func(*config)

type config struct {
	today   time.Time
	timeout time.Duration
	log     *slog.Logger
}

// WithToday pins the reference "today", making reasoning deterministic.
// Defaults to the system clock.
func WithToday(today time.Time) Option {
	return func(c *config) {
		c.today = today
	}
}

// WithTimeout sets the per-inference deadline. Defaults to chat.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// Reasoner turns time expressions into date intervals. Safe for use from a
// single session; each session constructs its own.
type Reasoner struct {
	chat   *chat.Chat
	today  time.Time
	sunday time.Time
	log    *slog.Logger
}

// New creates a Reasoner on top of the given model provider. The current
// day-of-week and the date of the coming Sunday are resolved now and baked
// into the system prompt, so two reasoners built with the same "today"
// produce identical outputs.
func New(provider llm.Provider, opts ...Option) *Reasoner {
	cfg := &config{
		today:   time.Now(),
		timeout: chat.DefaultTimeout,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(cfg)
	}

	today := midnight(cfg.today)
	sunday := comingSunday(today)

	prompt := fmt.Sprintf(systemPromptTemplate,
		sunday.Format(ISODate),
		today.Format(ISODate),
		today.Weekday().String(),
	)

	return &Reasoner{
		chat:   chat.New(provider, prompt, chat.WithTimeout(cfg.timeout)),
		today:  today,
		sunday: sunday,
		log:    cfg.log,
	}
}

// Today returns the resolved reference date.
func (r *Reasoner) Today() time.Time { return r.today }

// Reason converts utterance into a date interval. It never returns an
// error: when both model attempts fail it returns the documented default.
func (r *Reasoner) Reason(ctx context.Context, utterance string) Result {
	if res, ok := r.fastPath(utterance); ok {
		r.log.Debug("date interval computed directly",
			"start", res.Start.Format(ISODate), "end", res.End.Format(ISODate))
		return res
	}

	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := r.infer(ctx, utterance)
		if err == nil {
			r.chat.ClearHistory(true)
			return res
		}
		r.log.Warn("date reasoning attempt failed",
			"attempt", attempt, "error", err)
		r.chat.ClearHistory(true)
	}

	r.log.Warn("date reasoning failed, using default interval")
	return r.defaultResult()
}

// rawResult is the JSON object the model must emit.
type rawResult struct {
	IsShiftQuery  bool   `json:"is_shift_query"`
	DateRangeType string `json:"date_range_type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Reasoning     string `json:"reasoning"`
}

func (r *Reasoner) infer(ctx context.Context, utterance string) (Result, error) {
	reply, err := r.chat.Ask(ctx, utterance)
	if err != nil {
		return Result{}, err
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		return Result{}, fmt.Errorf("no JSON object in reply %q", truncate(reply, 200))
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Result{}, fmt.Errorf("parse JSON %q: %w", truncate(obj, 200), err)
	}
	if raw.DateRangeType == "" || raw.StartDate == "" || raw.EndDate == "" {
		return Result{}, fmt.Errorf("missing required fields in %q", truncate(obj, 200))
	}

	start, err := parseDate(raw.StartDate)
	if err != nil {
		return Result{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDate(raw.EndDate)
	if err != nil {
		return Result{}, fmt.Errorf("end_date: %w", err)
	}
	if start.After(end) {
		return Result{}, fmt.Errorf("start %s after end %s", raw.StartDate, raw.EndDate)
	}

	// Small models regularly misplace the end of "this week"; pin it to
	// the precomputed Sunday.
	if raw.DateRangeType == "week" || raw.DateRangeType == "this week" {
		if !end.Equal(r.sunday) && !strings.Contains(strings.ToLower(utterance), "next week") {
			r.log.Debug("correcting week end date",
				"from", end.Format(ISODate), "to", r.sunday.Format(ISODate))
			end = r.sunday
			if start.After(end) {
				start = r.today
			}
		}
	}

	return Result{
		IsShiftQuery: raw.IsShiftQuery,
		Intent:       intentFromRationale(raw.Reasoning),
		Start:        start,
		End:          end,
		Rationale:    raw.Reasoning,
	}, nil
}

func (r *Reasoner) defaultResult() Result {
	return Result{
		IsShiftQuery: false,
		Intent:       IntentUnknown,
		Start:        r.today,
		End:          r.today.AddDate(0, 0, DefaultSpanDays),
		Rationale:    "default",
	}
}

// fastPath computes intervals for trivial keywords without a model call.
// The intent comes from a keyword scan rather than the model's marker, so
// "cancel my shifts next week" still classifies as a cancellation.
func (r *Reasoner) fastPath(utterance string) (Result, bool) {
	q := strings.ToLower(strings.TrimSpace(utterance))
	intent := spokenIntent(q)

	single := func(d time.Time, why string) (Result, bool) {
		return Result{
			IsShiftQuery: true,
			Intent:       intent,
			Start:        d,
			End:          d,
			Rationale:    why,
		}, true
	}

	switch q {
	case "today", "tonight":
		return single(r.today, "today, computed directly")
	case "tomorrow", "tmr", "tmrw":
		return single(r.today.AddDate(0, 0, 1), "tomorrow, computed directly")
	case "yesterday":
		return single(r.today.AddDate(0, 0, -1), "yesterday, computed directly")
	}

	if wd, ok := weekdayAliases[strings.TrimPrefix(q, "next ")]; ok {
		daysAhead := (int(wd) - int(r.today.Weekday()) + 7) % 7
		if daysAhead == 0 {
			daysAhead = 7
		}
		return single(r.today.AddDate(0, 0, daysAhead), "weekday, computed directly")
	}

	if strings.Contains(q, "next week") {
		daysUntilNextMonday := (8 - int(r.today.Weekday())) % 7
		if daysUntilNextMonday == 0 {
			daysUntilNextMonday = 7
		}
		monday := r.today.AddDate(0, 0, daysUntilNextMonday)
		return Result{
			IsShiftQuery: true,
			Intent:       intent,
			Start:        monday,
			End:          monday.AddDate(0, 0, 6),
			Rationale:    "next week, computed directly",
		}, true
	}

	if strings.Contains(q, "this week") || q == "week" {
		return Result{
			IsShiftQuery: true,
			Intent:       intent,
			Start:        r.today,
			End:          r.sunday,
			Rationale:    "this week, computed directly",
		}, true
	}

	return Result{}, false
}

var weekdayAliases = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// spokenIntent classifies an utterance by cancellation keywords. The model
// path carries its intent in the rationale marker instead.
func spokenIntent(q string) Intent {
	for _, kw := range []string{"cancel", "can't make", "cannot make", "call in sick", "calling in sick"} {
		if strings.Contains(q, kw) {
			return IntentCancel
		}
	}
	return IntentView
}

// intentFromRationale reads the intent marker out of the model's rationale.
func intentFromRationale(rationale string) Intent {
	switch {
	case strings.Contains(rationale, markerCancel):
		return IntentCancel
	case strings.Contains(rationale, markerView):
		return IntentView
	default:
		return IntentUnknown
	}
}

// parseDate accepts the protocol's YYYY-MM-DD layout and, leniently, the
// site's DD-MM-YYYY; small models mix the two up.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(ISODate, s); err == nil {
		return d, nil
	}
	if d, err := time.Parse("02-01-2006", s); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// extractJSONObject returns the first balanced {...} substring of s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// comingSunday returns today when today is Sunday, otherwise the next one.
func comingSunday(today time.Time) time.Time {
	wd := int(today.Weekday())
	if wd == 0 {
		return today
	}
	return today.AddDate(0, 0, 7-wd)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
