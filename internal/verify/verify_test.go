package verify

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressfit/pressfit/internal/markup"
)

func subsMap(t *testing.T, pairs ...string) *markup.SubstitutionMap {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	m := markup.NewSubstitutionMap()
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, m.Set(pairs[i], pairs[i+1]))
	}
	return m
}

func TestSoundness(t *testing.T) {
	m := subsMap(t, "https://old", "https://new")
	doc := "a\n![x](https://old)\n"

	result := OnlyExpectedChanges(doc, m.Apply(doc), m)
	assert.True(t, result.OK)
	assert.Equal(t, ReasonOnlyURLChanges, result.Reason)
}

func TestExpectedSubstitutionAccepted(t *testing.T) {
	m := subsMap(t, "https://old", "https://new")

	result := OnlyExpectedChanges("a\n![x](https://old)\n", "a\n![x](https://new)\n", m)
	assert.True(t, result.OK)
}

func TestMissingLineDetected(t *testing.T) {
	m := subsMap(t, "https://old", "https://new")

	result := OnlyExpectedChanges("a\n![x](https://old)\n", "a\n", m)
	assert.False(t, result.OK)
	assert.Equal(t, ReasonNonURLChange, result.Reason)
}

func TestCompleteness(t *testing.T) {
	m := subsMap(t, "https://old.example.com/img.png", "https://new.example.com/img.jpg")
	doc := "intro paragraph\n![shot](https://old.example.com/img.png)\nclosing words\n"
	substituted := m.Apply(doc)

	// Any single-character mutation outside the substituted span must be
	// caught, with the divergence index at or before the mutation.
	mutated := strings.Replace(substituted, "closing", "cl0sing", 1)
	require.NotEqual(t, substituted, mutated)

	result := OnlyExpectedChanges(doc, mutated, m)
	require.False(t, result.OK)
	assert.Equal(t, ReasonNonURLChange, result.Reason)

	mutationIndex := strings.IndexRune(Normalize(mutated), '0')
	assert.LessOrEqual(t, result.FirstDiffIndex, mutationIndex)
	assert.NotEmpty(t, result.ExpectedContext)
	assert.NotEmpty(t, result.CurrentContext)
}

func TestNormalizationToleranceBoundary(t *testing.T) {
	m := subsMap(t, "https://old", "https://new")
	doc := "line one\n![x](https://old)\nline three\n"
	substituted := m.Apply(doc)

	tolerated := []struct {
		name    string
		current string
	}{
		{"crlf line endings", strings.ReplaceAll(substituted, "\n", "\r\n")},
		{"trailing whitespace", strings.ReplaceAll(substituted, "one", "one  \t")},
		{"extra trailing blank lines", substituted + "\n\n\n"},
		{"missing final newline", strings.TrimSuffix(substituted, "\n")},
	}
	for _, tt := range tolerated {
		t.Run("tolerates "+tt.name, func(t *testing.T) {
			assert.True(t, OnlyExpectedChanges(doc, tt.current, m).OK)
		})
	}

	rejected := []struct {
		name    string
		current string
	}{
		{"letter case change", strings.Replace(substituted, "line one", "Line one", 1)},
		{"word content change", strings.Replace(substituted, "three", "tree", 1)},
		{"interior blank line", strings.Replace(substituted, "\nline three", "\n\nline three", 1)},
	}
	for _, tt := range rejected {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			result := OnlyExpectedChanges(doc, tt.current, m)
			assert.False(t, result.OK)
			assert.Equal(t, ReasonNonURLChange, result.Reason)
		})
	}
}

func TestStrictPrefixDivergenceIndex(t *testing.T) {
	m := markup.NewSubstitutionMap()
	result := OnlyExpectedChanges("abc\ndef", "abc\ndefgh", m)
	require.False(t, result.OK)
	assert.Equal(t, len("abc\ndef"), result.FirstDiffIndex)
}

func TestContextWindowClipped(t *testing.T) {
	m := markup.NewSubstitutionMap()
	long := strings.Repeat("x", 500)

	result := OnlyExpectedChanges(long+"a", long+"b", m)
	require.False(t, result.OK)
	assert.Equal(t, 500, result.FirstDiffIndex)
	// ±120 characters clipped to bounds: 120 before + the differing rune.
	assert.Len(t, result.ExpectedContext, 121)
	assert.Len(t, result.CurrentContext, 121)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"bare cr", "a\rb", "a\nb"},
		{"trailing spaces and tabs", "a  \t\nb\n", "a\nb"},
		{"trailing blank lines", "a\nb\n\n\n", "a\nb"},
		{"interior blank line kept", "a\n\nb", "a\n\nb"},
		{"empty", "", ""},
		{"only blank lines", "\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	m := subsMap(t, "https://old", "https://new")
	result := OnlyExpectedChanges("a\n![x](https://old)\n", "corrupted", m)
	require.False(t, result.OK)

	artifacts, err := WriteArtifacts(dir, "expected text", "current text", result)
	require.NoError(t, err)

	expected, err := os.ReadFile(artifacts.ExpectedPath)
	require.NoError(t, err)
	assert.Equal(t, "expected text", string(expected))

	current, err := os.ReadFile(artifacts.CurrentPath)
	require.NoError(t, err)
	assert.Equal(t, "current text", string(current))

	raw, err := os.ReadFile(artifacts.DiagnosticPath)
	require.NoError(t, err)
	var diagnostic Result
	require.NoError(t, json.Unmarshal(raw, &diagnostic))
	assert.False(t, diagnostic.OK)
	assert.Equal(t, ReasonNonURLChange, diagnostic.Reason)

	// The three files share one timestamp prefix.
	prefix := strings.TrimSuffix(artifacts.ExpectedPath, "-expected.txt")
	assert.Equal(t, prefix+"-current.txt", artifacts.CurrentPath)
	assert.Equal(t, prefix+"-diagnostic.json", artifacts.DiagnosticPath)
}
