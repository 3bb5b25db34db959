package markup

import (
	"fmt"
	"strings"
)

// Substitution is one old-URL to new-URL rewrite.
type Substitution struct {
	Old string
	New string
}

// SubstitutionMap is an ordered old-URL to new-URL mapping with unique keys.
// Application is exact literal substring replacement in insertion order —
// never pattern matching, since URLs routinely contain regex metacharacters.
type SubstitutionMap struct {
	order []string
	repl  map[string]string
}

// NewSubstitutionMap returns an empty map.
func NewSubstitutionMap() *SubstitutionMap {
	return &SubstitutionMap{repl: make(map[string]string)}
}

// Set appends an entry. Identity mappings and duplicate keys are rejected.
func (m *SubstitutionMap) Set(oldURL, newURL string) error {
	if oldURL == "" {
		return fmt.Errorf("substitution key must not be empty")
	}
	if oldURL == newURL {
		return fmt.Errorf("substitution maps %q to itself", oldURL)
	}
	if _, ok := m.repl[oldURL]; ok {
		return fmt.Errorf("duplicate substitution key %q", oldURL)
	}
	m.order = append(m.order, oldURL)
	m.repl[oldURL] = newURL
	return nil
}

// Len returns the number of entries.
func (m *SubstitutionMap) Len() int {
	return len(m.order)
}

// Entries returns the substitutions in insertion order.
func (m *SubstitutionMap) Entries() []Substitution {
	entries := make([]Substitution, 0, len(m.order))
	for _, old := range m.order {
		entries = append(entries, Substitution{Old: old, New: m.repl[old]})
	}
	return entries
}

// Apply replaces every occurrence of each old URL with its new URL, entry by
// entry in insertion order. An empty map returns doc unchanged.
func (m *SubstitutionMap) Apply(doc string) string {
	for _, old := range m.order {
		doc = strings.ReplaceAll(doc, old, m.repl[old])
	}
	return doc
}

// Invert returns the new-to-old mapping. It fails if any new URL is empty or
// collides with another entry, since the inverse would not be well defined.
func (m *SubstitutionMap) Invert() (*SubstitutionMap, error) {
	inverse := NewSubstitutionMap()
	for _, old := range m.order {
		if err := inverse.Set(m.repl[old], old); err != nil {
			return nil, fmt.Errorf("map is not invertible: %w", err)
		}
	}
	return inverse, nil
}
