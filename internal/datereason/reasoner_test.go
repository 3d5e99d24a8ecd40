package datereason

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/helpathands/shiftline/pkg/provider/llm"
	llmmock "github.com/helpathands/shiftline/pkg/provider/llm/mock"
)

// today is a Tuesday; the coming Sunday is 2025-12-21.
var today = time.Date(2025, time.December, 16, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReason_ModelJSON(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`{"is_shift_query": true, "date_range_type": "tomorrow",
		  "start_date": "2025-12-17", "end_date": "2025-12-17",
		  "reasoning": "<CNCL> Cancellation of shift tomorrow."}`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "hi, I would like to cancel my shift for the day after my birthday")

	if !res.IsShiftQuery {
		t.Error("IsShiftQuery = false, want true")
	}
	if res.Intent != IntentCancel {
		t.Errorf("intent = %q, want cancel", res.Intent)
	}
	if !res.Start.Equal(date(2025, time.December, 17)) || !res.End.Equal(date(2025, time.December, 17)) {
		t.Errorf("interval = [%s, %s], want [2025-12-17, 2025-12-17]",
			res.Start.Format(ISODate), res.End.Format(ISODate))
	}
}

func TestReason_ExtractsJSONFromProse(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`Sure! Here is the result:
{"is_shift_query": true, "date_range_type": "specific",
 "start_date": "2025-12-20", "end_date": "2025-12-20",
 "reasoning": "<SHOW> Saturday shift."}
Hope that helps!`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "do I work on the twentieth")
	if res.Intent != IntentView {
		t.Errorf("intent = %q, want view", res.Intent)
	}
	if !res.Start.Equal(date(2025, time.December, 20)) {
		t.Errorf("start = %s, want 2025-12-20", res.Start.Format(ISODate))
	}
}

func TestReason_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		"I think you mean next Thursday.", // no JSON: attempt 1 fails
		`{"is_shift_query": true, "date_range_type": "specific",
		  "start_date": "2025-12-18", "end_date": "2025-12-18",
		  "reasoning": "<CNCL> Thursday."}`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "the day after the day after tomorrow")
	if p.CallCount() != 2 {
		t.Errorf("chat calls = %d, want 2", p.CallCount())
	}
	if !res.Start.Equal(date(2025, time.December, 18)) {
		t.Errorf("start = %s, want 2025-12-18", res.Start.Format(ISODate))
	}
}

func TestReason_DefaultAfterTwoFailures(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{"no json here", "still no json"}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "uh, whenever I guess")

	if res.IsShiftQuery {
		t.Error("IsShiftQuery = true, want false for the default")
	}
	if res.Intent != IntentUnknown {
		t.Errorf("intent = %q, want unknown", res.Intent)
	}
	if !res.Start.Equal(today) || !res.End.Equal(today.AddDate(0, 0, 7)) {
		t.Errorf("interval = [%s, %s], want [today, today+7]",
			res.Start.Format(ISODate), res.End.Format(ISODate))
	}
	if res.Rationale != "default" {
		t.Errorf("rationale = %q, want %q", res.Rationale, "default")
	}
	if p.CallCount() != 2 {
		t.Errorf("chat calls = %d, want 2", p.CallCount())
	}
}

func TestReason_DefaultWhenChatErrors(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Err: errors.New("model unreachable")}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "something complicated")
	if res.Rationale != "default" {
		t.Errorf("rationale = %q, want default", res.Rationale)
	}
}

func TestReason_StartAfterEndRetries(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`{"is_shift_query": true, "date_range_type": "specific",
		  "start_date": "2025-12-20", "end_date": "2025-12-18",
		  "reasoning": "<SHOW> inverted"}`,
		`{"is_shift_query": true, "date_range_type": "specific",
		  "start_date": "2025-12-18", "end_date": "2025-12-20",
		  "reasoning": "<SHOW> fixed"}`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "between the eighteenth and the twentieth")
	if res.Start.After(res.End) {
		t.Errorf("interval = [%s, %s], start after end",
			res.Start.Format(ISODate), res.End.Format(ISODate))
	}
	if p.CallCount() != 2 {
		t.Errorf("chat calls = %d, want 2", p.CallCount())
	}
}

func TestReason_WeekEndDateCorrectedToSunday(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`{"is_shift_query": true, "date_range_type": "week",
		  "start_date": "2025-12-16", "end_date": "2025-12-25",
		  "reasoning": "<SHOW> the rest of this working week"}`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "shifts for the rest of the working week please")
	if !res.End.Equal(date(2025, time.December, 21)) {
		t.Errorf("end = %s, want the coming Sunday 2025-12-21", res.End.Format(ISODate))
	}
}

func TestReason_AcceptsSiteDateLayout(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`{"is_shift_query": true, "date_range_type": "tomorrow",
		  "start_date": "17-12-2025", "end_date": "17-12-2025",
		  "reasoning": "<SHOW> tomorrow"}`,
	}}
	r := New(p, WithToday(today))

	res := r.Reason(context.Background(), "the day after my last shift")
	if !res.Start.Equal(date(2025, time.December, 17)) {
		t.Errorf("start = %s, want 2025-12-17 from DD-MM-YYYY input", res.Start.Format(ISODate))
	}
}

func TestReason_FastPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		start time.Time
		end   time.Time
	}{
		{"tomorrow", date(2025, time.December, 17), date(2025, time.December, 17)},
		{"Today", today, today},
		{"yesterday", date(2025, time.December, 15), date(2025, time.December, 15)},
		{"friday", date(2025, time.December, 19), date(2025, time.December, 19)},
		// Tuesday asked on a Tuesday means next Tuesday.
		{"tuesday", date(2025, time.December, 23), date(2025, time.December, 23)},
		{"next monday", date(2025, time.December, 22), date(2025, time.December, 22)},
		{"what about next week", date(2025, time.December, 22), date(2025, time.December, 28)},
		{"this week", today, date(2025, time.December, 21)},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			t.Parallel()

			p := &llmmock.Provider{} // any model call would error
			r := New(p, WithToday(today))

			res := r.Reason(context.Background(), tc.query)
			if !res.IsShiftQuery {
				t.Error("IsShiftQuery = false, want true")
			}
			if !res.Start.Equal(tc.start) || !res.End.Equal(tc.end) {
				t.Errorf("interval = [%s, %s], want [%s, %s]",
					res.Start.Format(ISODate), res.End.Format(ISODate),
					tc.start.Format(ISODate), tc.end.Format(ISODate))
			}
			if p.CallCount() != 0 {
				t.Errorf("chat calls = %d, want 0 on the fast path", p.CallCount())
			}
		})
	}
}

func TestReason_FastPathCancellationIntent(t *testing.T) {
	t.Parallel()

	cases := map[string]Intent{
		"cancel my shifts next week":        IntentCancel,
		"I need to cancel this week":        IntentCancel,
		"can't make it next week":           IntentCancel,
		"calling in sick, cancel next week": IntentCancel,
		"what are my shifts this week":      IntentView,
		"show me next week":                 IntentView,
	}

	for query, want := range cases {
		t.Run(query, func(t *testing.T) {
			t.Parallel()

			p := &llmmock.Provider{} // any model call would error
			r := New(p, WithToday(today))

			res := r.Reason(context.Background(), query)
			if p.CallCount() != 0 {
				t.Fatalf("chat calls = %d, want 0 on the fast path", p.CallCount())
			}
			if res.Intent != want {
				t.Errorf("intent = %q, want %q", res.Intent, want)
			}
		})
	}
}

func TestReason_SystemMessageFirstOnEveryCall(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{"junk", "junk"}}
	r := New(p, WithToday(today))
	r.Reason(context.Background(), "something the fast path cannot handle")

	for i, call := range p.Calls {
		if len(call.Messages) == 0 || call.Messages[0].Role != llm.RoleSystem {
			t.Errorf("call %d: first message is not the system prompt", i)
		}
	}
}

func TestReason_HistoryClearedBetweenInferences(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Replies: []string{
		`{"is_shift_query": true, "date_range_type": "specific",
		  "start_date": "2025-12-18", "end_date": "2025-12-18", "reasoning": "<SHOW> a"}`,
		`{"is_shift_query": true, "date_range_type": "specific",
		  "start_date": "2025-12-19", "end_date": "2025-12-19", "reasoning": "<SHOW> b"}`,
	}}
	r := New(p, WithToday(today))

	r.Reason(context.Background(), "first complicated query")
	r.Reason(context.Background(), "second complicated query")

	// The second inference must not see the first one's exchange.
	second := p.Calls[1].Messages
	if len(second) != 2 {
		t.Fatalf("second call history length = %d, want 2 (system + user)", len(second))
	}
	if second[1].Content != "second complicated query" {
		t.Errorf("second call user message = %q", second[1].Content)
	}
}

func TestComingSunday(t *testing.T) {
	t.Parallel()

	// 2025-12-21 is a Sunday.
	if got := comingSunday(date(2025, time.December, 21)); !got.Equal(date(2025, time.December, 21)) {
		t.Errorf("comingSunday(Sunday) = %s, want the same day", got.Format(ISODate))
	}
	if got := comingSunday(date(2025, time.December, 22)); !got.Equal(date(2025, time.December, 28)) {
		t.Errorf("comingSunday(Monday) = %s, want 2025-12-28", got.Format(ISODate))
	}
}
