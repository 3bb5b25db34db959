package workflows

import (
	"context"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/pressfit/pressfit/internal/markup"
)

// deleteOriginals removes the superseded source assets, best effort, within
// the configured retry budget: the first pass is free, then up to
// DeleteRetryPasses extra passes in which each asset spends
// DeleteRetryCredits retries. Returns true only when every original is gone.
func (w *ArticleWorkflow) deleteOriginals(ctx context.Context, log *zap.Logger, subs *markup.SubstitutionMap) bool {
	var ids []string
	for _, entry := range subs.Entries() {
		if id := assetID(entry.Old); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return true
	}

	credits := make(map[string]int, len(ids))
	for _, id := range ids {
		credits[id] = w.opts.DeleteRetryCredits
	}

	remaining := ids
	var gaveUp []string
	for pass := 0; pass <= w.opts.DeleteRetryPasses && len(remaining) > 0; pass++ {
		if pass > 0 {
			log.Info("delete.retry_pass", zap.Int("pass", pass), zap.Int("remaining", len(remaining)))
		}
		failed := w.store.Delete(ctx, remaining)

		var next []string
		for _, id := range failed {
			if credits[id] > 0 {
				credits[id]--
				next = append(next, id)
			} else {
				log.Warn("delete.gave_up", zap.String("id", id))
				gaveUp = append(gaveUp, id)
			}
		}
		remaining = next
	}

	if len(remaining)+len(gaveUp) > 0 {
		log.Warn("delete.incomplete", zap.Strings("ids", append(remaining, gaveUp...)))
		return false
	}
	log.Info("delete.originals_removed", zap.Int("count", len(ids)))
	return true
}

// assetID derives the store identifier from a source URL: its last path
// segment.
func assetID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
