// Package assetstore uploads optimized assets and deletes superseded
// originals. The store hands back a public reference URL per upload; those
// URLs become the substitution map.
package assetstore

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned when the store's ingestion policy rejects a
// file for capacity reasons. It is fatal to a run, unlike transient upload
// errors, because it blocks every remaining upload.
var ErrQuotaExceeded = errors.New("asset store quota exceeded")

// Store is the external asset storage collaborator.
type Store interface {
	// Upload stores the file at localPath and returns its public URL.
	Upload(ctx context.Context, localPath string) (string, error)

	// Delete removes assets by identifier, best effort: it returns the ids
	// that could not be deleted rather than failing the batch.
	Delete(ctx context.Context, ids []string) (failed []string)
}
