package notify

import (
	"strings"
	"testing"
)

func TestFormatCancellation_WithReason(t *testing.T) {
	t.Parallel()

	got := FormatCancellation(
		StaffInfo{Name: "Alannah Courtnay", ID: "4821", Email: "alannah@example.com"},
		[]ShiftLine{{Client: "ABC", Time: "14:00", Date: "17-12-2025"}},
		"I'm sick",
	)

	want := `Requested cancellation of shift.

    STAFF:
        · Name: Alannah Courtnay
        · ID: 4821
        · Email: alannah@example.com

    SHIFT(S):
        · ABC at 14:00 17-12-2025

    REASON:
        I'm sick

This is an auto-generated email. Please do not reply.`

	if got != want {
		t.Errorf("body mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatCancellation_NoReasonOmitsBlock(t *testing.T) {
	t.Parallel()

	got := FormatCancellation(
		StaffInfo{Name: "Alannah Courtnay", ID: "4821", Email: "alannah@example.com"},
		[]ShiftLine{{Client: "ABC", Time: "14:00", Date: "17-12-2025"}},
		"",
	)

	if strings.Contains(got, "REASON") {
		t.Errorf("body contains a REASON block without a reason:\n%s", got)
	}
	if !strings.Contains(got, "SHIFT(S):") {
		t.Errorf("body is missing the SHIFT(S) block:\n%s", got)
	}
}

func TestFormatCancellation_MultipleShifts(t *testing.T) {
	t.Parallel()

	got := FormatCancellation(
		StaffInfo{Name: "A", ID: "1", Email: "a@example.com"},
		[]ShiftLine{
			{Client: "ABC", Time: "14:00", Date: "17-12-2025"},
			{Client: "Northside Clinic", Time: "09:00", Date: "18-12-2025"},
		},
		"moving house",
	)

	if !strings.Contains(got, "        · ABC at 14:00 17-12-2025\n        · Northside Clinic at 09:00 18-12-2025") {
		t.Errorf("shift lines not rendered in order:\n%s", got)
	}
}

func TestNewSMTP_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewSMTP(SMTPConfig{}); err == nil {
		t.Error("NewSMTP with empty config succeeded, want error")
	}
	if _, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Sender: "a@b.c"}); err == nil {
		t.Error("NewSMTP without collector succeeded, want error")
	}
	m, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Sender: "a@b.c", Collector: "ops@b.c"})
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	if m.cfg.Port != 587 {
		t.Errorf("default port = %d, want 587", m.cfg.Port)
	}
	if m.cfg.Timeout != DefaultTimeout {
		t.Errorf("default timeout = %s, want %s", m.cfg.Timeout, DefaultTimeout)
	}
}
