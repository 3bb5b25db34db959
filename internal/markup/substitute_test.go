package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReplacesAllOccurrences(t *testing.T) {
	m := NewSubstitutionMap()
	require.NoError(t, m.Set("https://old.example.com/a.png", "https://new.example.com/a.jpg"))

	doc := "![x](https://old.example.com/a.png) and again https://old.example.com/a.png"
	got := m.Apply(doc)
	assert.Equal(t, "![x](https://new.example.com/a.jpg) and again https://new.example.com/a.jpg", got)
}

func TestApplyTreatsMetacharactersLiterally(t *testing.T) {
	m := NewSubstitutionMap()
	require.NoError(t, m.Set("https://old.example.com/img?a=1&b=(2)", "https://new.example.com/x"))

	doc := "see https://old.example.com/img?a=1&b=(2) here, but not https://old.example.com/imgXa=1"
	got := m.Apply(doc)
	assert.Equal(t, "see https://new.example.com/x here, but not https://old.example.com/imgXa=1", got)
}

func TestApplyEmptyMapIsNoOp(t *testing.T) {
	m := NewSubstitutionMap()
	assert.Equal(t, "unchanged", m.Apply("unchanged"))
}

func TestSetRejectsBadEntries(t *testing.T) {
	m := NewSubstitutionMap()
	assert.Error(t, m.Set("", "https://new.example.com"))
	assert.Error(t, m.Set("https://same.example.com", "https://same.example.com"))

	require.NoError(t, m.Set("https://a.example.com", "https://b.example.com"))
	assert.Error(t, m.Set("https://a.example.com", "https://c.example.com"))
}

func TestRoundTripWithInverse(t *testing.T) {
	m := NewSubstitutionMap()
	require.NoError(t, m.Set("https://old.example.com/1.png", "https://new.example.com/1.jpg"))
	require.NoError(t, m.Set("https://old.example.com/2.png", "https://new.example.com/2.jpg"))

	doc := "a ![x](https://old.example.com/1.png) b ![y](https://old.example.com/2.png) c"

	inverse, err := m.Invert()
	require.NoError(t, err)
	assert.Equal(t, doc, inverse.Apply(m.Apply(doc)))
}

func TestInvertRejectsCollidingValues(t *testing.T) {
	m := NewSubstitutionMap()
	require.NoError(t, m.Set("https://a.example.com", "https://dup.example.com"))
	require.NoError(t, m.Set("https://b.example.com", "https://dup.example.com"))

	_, err := m.Invert()
	assert.Error(t, err)
}

func TestEntriesPreserveInsertionOrder(t *testing.T) {
	m := NewSubstitutionMap()
	require.NoError(t, m.Set("https://z.example.com", "https://z2.example.com"))
	require.NoError(t, m.Set("https://a.example.com", "https://a2.example.com"))

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "https://z.example.com", entries[0].Old)
	assert.Equal(t, "https://a.example.com", entries[1].Old)
}
