// Package verify proves that the only differences between the original
// article body and the post-edit body are the expected URL substitutions.
// This check is the sole gate before any irreversible action; its failure is
// always a hard abort, never a warning.
package verify

import (
	"strings"

	"github.com/pressfit/pressfit/internal/markup"
)

// Reason classifies a verification outcome.
type Reason string

const (
	ReasonOnlyURLChanges Reason = "only_url_changes"
	ReasonNonURLChange   Reason = "non_url_change_detected"
)

// contextWindow is the number of characters of context captured on each side
// of a divergence point.
const contextWindow = 120

// Result is the outcome of one verification attempt.
type Result struct {
	OK              bool   `json:"ok"`
	Reason          Reason `json:"reason"`
	FirstDiffIndex  int    `json:"first_diff_index,omitempty"`
	ExpectedContext string `json:"expected_context,omitempty"`
	CurrentContext  string `json:"current_context,omitempty"`
	ExpectedLength  int    `json:"expected_length"`
	CurrentLength   int    `json:"current_length"`
}

// OnlyExpectedChanges applies subs to original and compares the result with
// current. Both sides are normalized identically first, tolerating only
// editor-induced formatting noise: line-ending conversion, trailing
// whitespace trimming, and trailing blank lines at end of document. That
// tolerance must never be broadened — catching unintended content drift is
// the entire point.
func OnlyExpectedChanges(original, current string, subs *markup.SubstitutionMap) Result {
	expected := Normalize(subs.Apply(original))
	got := Normalize(current)

	if expected == got {
		return Result{
			OK:             true,
			Reason:         ReasonOnlyURLChanges,
			ExpectedLength: len(expected),
			CurrentLength:  len(got),
		}
	}

	expectedRunes := []rune(expected)
	gotRunes := []rune(got)
	index := firstDivergence(expectedRunes, gotRunes)

	return Result{
		OK:              false,
		Reason:          ReasonNonURLChange,
		FirstDiffIndex:  index,
		ExpectedContext: window(expectedRunes, index),
		CurrentContext:  window(gotRunes, index),
		ExpectedLength:  len(expected),
		CurrentLength:   len(got),
	}
}

// Normalize unifies line endings to LF, strips trailing whitespace from each
// line, and drops trailing blank lines at end of document.
func Normalize(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.ReplaceAll(doc, "\r", "\n")

	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// firstDivergence returns the index of the first differing rune. If one
// string is a strict prefix of the other, the divergence index is the
// shorter length.
func firstDivergence(a, b []rune) int {
	limit := min(len(a), len(b))
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return limit
}

// window returns up to contextWindow runes on each side of index, clipped to
// the string bounds.
func window(runes []rune, index int) string {
	start := max(0, index-contextWindow)
	end := min(len(runes), index+contextWindow)
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}
