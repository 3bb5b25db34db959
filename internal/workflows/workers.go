package workflows

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pressfit/pressfit/internal/fetch"
	"github.com/pressfit/pressfit/internal/optimize"
	"github.com/pressfit/pressfit/pkg/pipeline"
)

// processImages evaluates every extracted URL against the byte budget and
// optimizes/re-uploads the oversized ones. In "all" scope the per-URL work
// runs on a bounded worker pool; "single" scope scans sequentially and stops
// at the first oversized image.
func (w *ArticleWorkflow) processImages(wctx *WorkflowContext, log *zap.Logger, urls []string) ([]pipeline.ImageResult, error) {
	req := wctx.Request
	maxBytes := req.MaxBytes()

	// Per-run asset directory, partitioned per URL index: workers never
	// contend on a path.
	runDir := filepath.Join(w.opts.AssetDir, wctx.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}

	if req.Scope == pipeline.ScopeSingle {
		return w.processSingle(wctx.Ctx, log, runDir, urls, maxBytes)
	}

	results := make([]*pipeline.ImageResult, len(urls))
	g, ctx := errgroup.WithContext(wctx.Ctx)
	g.SetLimit(req.Concurrency)

	for i, sourceURL := range urls {
		g.Go(func() error {
			res, err := w.processOne(ctx, log, runDir, i, sourceURL, maxBytes)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]pipeline.ImageResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (w *ArticleWorkflow) processSingle(ctx context.Context, log *zap.Logger, runDir string, urls []string, maxBytes int) ([]pipeline.ImageResult, error) {
	var out []pipeline.ImageResult
	for i, sourceURL := range urls {
		res, err := w.processOne(ctx, log, runDir, i, sourceURL, maxBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
		if res.Action == pipeline.ActionOptimized || res.Action == pipeline.ActionFallback {
			// First oversized image handled; single scope stops here.
			break
		}
	}
	return out, nil
}

// processOne runs the download → evaluate → optimize → upload pipeline for
// one URL. Access-denied downloads skip the URL rather than failing the run;
// every other failure is fatal.
func (w *ArticleWorkflow) processOne(ctx context.Context, log *zap.Logger, runDir string, index int, sourceURL string, maxBytes int) (*pipeline.ImageResult, error) {
	w.metrics.ImagesExamined.Inc()

	download, err := w.downloader.Fetch(ctx, sourceURL)
	if errors.Is(err, fetch.ErrAccessDenied) {
		log.Warn("image.skipped_access_denied", zap.String("url", sourceURL))
		w.metrics.ImagesSkipped.Inc()
		w.metrics.DownloadErrors.WithLabelValues("access_denied").Inc()
		return &pipeline.ImageResult{SourceURL: sourceURL, Action: pipeline.ActionSkippedDenied}, nil
	}
	if err != nil {
		w.metrics.DownloadErrors.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("download %s: %w", sourceURL, err)
	}

	originalSize := len(download.Bytes)
	if originalSize <= maxBytes {
		log.Debug("image.under_budget",
			zap.String("url", sourceURL),
			zap.Int("size", originalSize),
			zap.Int("max_bytes", maxBytes),
		)
		w.metrics.ImagesSkipped.Inc()
		return &pipeline.ImageResult{
			SourceURL:    sourceURL,
			Action:       pipeline.ActionSkippedSmall,
			OriginalSize: originalSize,
		}, nil
	}

	format := outputFormatFor(sourceURL, download.ContentType)

	// Keep the original beside the optimized output for postmortems.
	originalPath := filepath.Join(runDir, fmt.Sprintf("img-%d-original%s", index, format.Ext()))
	if err := os.WriteFile(originalPath, download.Bytes, 0o644); err != nil {
		return nil, fmt.Errorf("write original asset: %w", err)
	}

	asset, err := w.optimizer.Optimize(download.Bytes, format, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("optimize %s: %w", sourceURL, err)
	}
	w.metrics.EncodeProbes.Observe(float64(asset.Probes))

	optimizedPath := filepath.Join(runDir, fmt.Sprintf("img-%d-optimized%s", index, format.Ext()))
	if err := os.WriteFile(optimizedPath, asset.Bytes, 0o644); err != nil {
		return nil, fmt.Errorf("write optimized asset: %w", err)
	}

	newURL, err := w.store.Upload(ctx, optimizedPath)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", sourceURL, err)
	}
	if newURL == sourceURL {
		// A self-mapping can never enter the substitution map.
		log.Warn("image.upload_returned_source_url", zap.String("url", sourceURL))
		w.metrics.ImagesSkipped.Inc()
		return &pipeline.ImageResult{
			SourceURL:    sourceURL,
			Action:       pipeline.ActionSkippedSmall,
			OriginalSize: originalSize,
		}, nil
	}

	action := pipeline.ActionOptimized
	if asset.Fallback {
		action = pipeline.ActionFallback
		w.metrics.Fallbacks.Inc()
	}
	w.metrics.ImagesOptimized.Inc()
	if saved := originalSize - asset.ByteSize(); saved > 0 {
		w.metrics.BytesSaved.Add(float64(saved))
	}

	log.Info("image.optimized",
		zap.String("url", sourceURL),
		zap.String("new_url", newURL),
		zap.Int("original_size", originalSize),
		zap.Int("final_size", asset.ByteSize()),
		zap.Int("quality", asset.Quality),
		zap.Float64("scale", asset.Scale),
		zap.Bool("fallback", asset.Fallback),
	)

	return &pipeline.ImageResult{
		SourceURL:    sourceURL,
		NewURL:       newURL,
		Action:       action,
		OriginalSize: originalSize,
		FinalSize:    asset.ByteSize(),
		PercentSaved: 100 * float64(originalSize-asset.ByteSize()) / float64(originalSize),
	}, nil
}

// outputFormatFor keeps PNG sources as PNG and encodes everything else as
// JPEG.
func outputFormatFor(sourceURL, contentType string) optimize.Format {
	if strings.Contains(contentType, "png") {
		return optimize.FormatPNG
	}
	if u, err := url.Parse(sourceURL); err == nil {
		if strings.EqualFold(path.Ext(u.Path), ".png") {
			return optimize.FormatPNG
		}
	}
	return optimize.FormatJPEG
}
