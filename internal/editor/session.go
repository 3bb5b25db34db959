// Package editor abstracts the document editing surface the pipeline mutates
// through. The real production surface is a third-party web editor driven by
// browser automation; the pipeline only ever sees this contract.
package editor

import (
	"context"

	"github.com/pressfit/pressfit/internal/markup"
)

// Kind tags the editor widget capability backing a session. Implementations
// are selected dynamically by kind rather than by inheritance.
type Kind string

const (
	KindTextarea    Kind = "textarea"
	KindRichText    Kind = "richtext"
	KindVirtualized Kind = "virtualizedEditor"
)

// PatchResult reports a best-effort in-place patch attempt. OK false means
// the caller must fall back to a full document Write; the diff verifier is
// what makes either path safe.
type PatchResult struct {
	OK            bool
	ReplacedCount int
}

// Session is one live editing session over a single document. The document
// is a single-writer resource: all calls must come from one goroutine.
type Session interface {
	// Kind identifies the widget capability backing this session.
	Kind() Kind

	// ReadSnapshot returns the document as currently rendered by the edit
	// surface. May be stale on virtualized editors.
	ReadSnapshot(ctx context.Context) (string, error)

	// ReadLive returns the authoritative full document, bypassing any
	// rendering-layer virtualization or staleness.
	ReadLive(ctx context.Context) (string, error)

	// Write replaces the whole document body.
	Write(ctx context.Context, text string) error

	// ApplySubstitutions attempts a minimal in-place patch of the given URL
	// rewrites. Best effort: a false OK is not an error.
	ApplySubstitutions(ctx context.Context, subs *markup.SubstitutionMap) (PatchResult, error)

	// Submit publishes the document. The returned bool reports whether a
	// state change indicating success was observed; publication must still
	// be confirmed independently through the published rendering.
	Submit(ctx context.Context) (bool, error)
}

// PublishedReader fetches the publicly visible rendering of the document,
// independent of the edit surface.
type PublishedReader interface {
	ReadPublished(ctx context.Context) (string, error)
}
