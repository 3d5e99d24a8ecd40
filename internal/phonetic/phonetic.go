// Package phonetic matches spoken, possibly garbled references against a
// known vocabulary. The conversation layer uses it to resolve what a caller
// said ("north side clinic", "ess one two three") against the client names
// and shift ids of the current roster results, where transcription rarely
// reproduces the exact spelling.
//
// Matching runs in two stages:
//
//  1. Phonetic filtering: Double Metaphone codes are computed per word for
//     the input and for each vocabulary entry; any code overlap makes the
//     entry a phonetic candidate.
//
//  2. Jaro-Winkler ranking: phonetic candidates are ranked by string
//     similarity on the original text and accepted above the phonetic
//     threshold. When no phonetic candidate exists, a stricter pure
//     similarity pass runs against the whole vocabulary.
//
// Multi-word entries work: codes are computed per word, and ranking
// considers full-string, space-stripped, and best pairwise word scores.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for accepting a
// phonetically-matched entry. Default 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the pure
// similarity fallback. Default 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher resolves noisy spoken input against a vocabulary. Read-only after
// construction, so safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary entry most phonetically similar to input, which
// may be a single word or a space-separated phrase. When matched is false,
// corrected equals input unchanged and confidence is 0.
func (m *Matcher) Match(input string, vocabulary []string) (corrected string, confidence float64, matched bool) {
	if len(vocabulary) == 0 || strings.TrimSpace(input) == "" {
		return input, 0, false
	}

	inputLower := strings.ToLower(strings.TrimSpace(input))
	inputTokens := strings.Fields(inputLower)
	inputCodes := codesForTokens(inputTokens)

	type candidate struct {
		entry    string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, entry := range vocabulary {
		entryLower := strings.ToLower(strings.TrimSpace(entry))
		if entryLower == "" {
			continue
		}
		entryTokens := strings.Fields(entryLower)

		phoneticMatch := codesOverlap(inputCodes, codesForTokens(entryTokens))
		score := bestSimilarity(inputTokens, entryTokens, inputLower, entryLower)

		if phoneticMatch {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{entry: entry, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= m.fuzzyThreshold && score > best.score {
			best = candidate{entry: entry, score: score, phonetic: false}
		}
	}

	if best.entry != "" {
		return best.entry, best.score, true
	}
	return input, 0, false
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
// Words too short to produce a code contribute nothing.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity is the highest Jaro-Winkler score across full strings,
// space-stripped strings, and all token pairs. The pairwise pass catches a
// single spoken word landing on one word of a multi-word client name.
func bestSimilarity(inputTokens, entryTokens []string, inputFull, entryFull string) float64 {
	score := matchr.JaroWinkler(inputFull, entryFull, false)

	if len(inputTokens) > 1 || len(entryTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(entryTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, et := range entryTokens {
			if s := matchr.JaroWinkler(it, et, false); s > score {
				score = s
			}
		}
	}
	return score
}
