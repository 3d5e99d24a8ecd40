package phonetic

import "testing"

var roster = []string{"Northside Clinic", "ABC", "Harbour House", "Greenfields Respite"}

func TestMatch_PhoneticMisspelling(t *testing.T) {
	t.Parallel()

	m := New()
	cases := map[string]string{
		"north side clinic": "Northside Clinic",
		"northsyde":         "Northside Clinic",
		"harber house":      "Harbour House",
		"greenfeelds":       "Greenfields Respite",
	}
	for input, want := range cases {
		got, score, ok := m.Match(input, roster)
		if !ok {
			t.Errorf("Match(%q) found nothing", input)
			continue
		}
		if got != want {
			t.Errorf("Match(%q) = %q (score %.2f), want %q", input, got, score, want)
		}
		if score <= 0 {
			t.Errorf("Match(%q) score = %.2f, want > 0", input, score)
		}
	}
}

func TestMatch_SingleTokenAgainstMultiWordEntry(t *testing.T) {
	t.Parallel()

	got, _, ok := New().Match("northside", roster)
	if !ok || got != "Northside Clinic" {
		t.Errorf("Match(northside) = %q, %v", got, ok)
	}
}

func TestMatch_NoPlausibleCandidate(t *testing.T) {
	t.Parallel()

	got, score, ok := New().Match("xylophone", roster)
	if ok {
		t.Fatalf("Match(xylophone) = %q (score %.2f), want no match", got, score)
	}
	if got != "xylophone" {
		t.Errorf("unmatched input mutated to %q", got)
	}
	if score != 0 {
		t.Errorf("unmatched score = %.2f, want 0", score)
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := New()
	if _, _, ok := m.Match("", roster); ok {
		t.Error("empty input matched")
	}
	if _, _, ok := m.Match("   ", roster); ok {
		t.Error("blank input matched")
	}
	if _, _, ok := m.Match("northside", nil); ok {
		t.Error("empty vocabulary matched")
	}
	if _, _, ok := m.Match("northside", []string{"", "  "}); ok {
		t.Error("blank vocabulary entries matched")
	}
}

func TestMatch_PhoneticCandidatePreferredOverFuzzy(t *testing.T) {
	t.Parallel()

	// "klinik" shares metaphone codes with "Clinic" but has modest string
	// similarity; the phonetic stage should still surface it.
	got, _, ok := New().Match("klinik", []string{"Clinic", "Klimt"})
	if !ok || got != "Clinic" {
		t.Errorf("Match(klinik) = %q, %v, want Clinic", got, ok)
	}
}

func TestMatch_ThresholdOptions(t *testing.T) {
	t.Parallel()

	// An impossible phonetic threshold suppresses all phonetic matches,
	// and the fuzzy fallback only fires at its own (higher) bar.
	strict := New(WithPhoneticThreshold(1.01), WithFuzzyThreshold(1.01))
	if got, _, ok := strict.Match("northsyde", roster); ok {
		t.Errorf("strict matcher accepted %q", got)
	}

	lax := New(WithPhoneticThreshold(0.1))
	if _, _, ok := lax.Match("northsyde", roster); !ok {
		t.Error("lax matcher rejected a close phonetic match")
	}
}
