// Package workflows sequences one resize/re-upload run: read the article
// body, collect oversized images, optimize and re-upload them, rewrite the
// URLs, verify that nothing else changed, and commit. Everything that
// touches the live document runs on one goroutine; only the per-image
// download/optimize/upload work is pooled.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pressfit/pressfit/internal/assetstore"
	"github.com/pressfit/pressfit/internal/editor"
	"github.com/pressfit/pressfit/internal/fetch"
	"github.com/pressfit/pressfit/internal/markup"
	"github.com/pressfit/pressfit/internal/metrics"
	"github.com/pressfit/pressfit/internal/optimize"
	"github.com/pressfit/pressfit/internal/poll"
	"github.com/pressfit/pressfit/internal/verify"
	"github.com/pressfit/pressfit/pkg/pipeline"
)

// ArticleWorkflow runs the resize/re-upload pipeline against one article.
type ArticleWorkflow struct {
	session    editor.Session
	published  editor.PublishedReader
	store      assetstore.Store
	downloader fetch.Downloader
	optimizer  *optimize.Optimizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	opts       Options
}

// NewArticleWorkflow wires the workflow's collaborators. metrics and logger
// may be nil.
func NewArticleWorkflow(
	session editor.Session,
	published editor.PublishedReader,
	store assetstore.Store,
	downloader fetch.Downloader,
	optimizer *optimize.Optimizer,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) *ArticleWorkflow {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleWorkflow{
		session:    session,
		published:  published,
		store:      store,
		downloader: downloader,
		optimizer:  optimizer,
		metrics:    m,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

// Name returns the workflow name.
func (w *ArticleWorkflow) Name() string {
	return "ArticleImageWorkflow"
}

// Execute runs the state machine to completion. The live document is only
// ever mutated after its original body has been persisted to the backup
// directory, and only committed after verification passes.
func (w *ArticleWorkflow) Execute(wctx *WorkflowContext) (*pipeline.RunResult, error) {
	ctx := wctx.Ctx
	req := wctx.Request
	log := w.logger.With(zap.String("run_id", wctx.RunID))

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	// BodyRead: snapshot and back up before any mutation. The backup is the
	// sole recovery point if automation corrupts the live document.
	body, err := w.session.ReadLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("read article body: %w", err)
	}
	backupPath, err := w.writeBackup(wctx.RunID, body)
	if err != nil {
		return nil, err
	}
	log.Info("run.body_read", zap.Int("length", len(body)), zap.String("backup", backupPath))

	result := &pipeline.RunResult{
		RunID:      wctx.RunID,
		DryRun:     req.DryRun,
		BackupPath: backupPath,
	}

	// ImagesCollected.
	urls := markup.ExtractImageURLs(body)
	if len(urls) == 0 {
		log.Info("run.no_images")
		result.NoOp = true
		return result, nil
	}
	log.Info("run.images_collected", zap.Int("count", len(urls)), zap.String("scope", string(req.Scope)))

	// Per-image pipeline: download, evaluate, optimize, upload.
	results, err := w.processImages(wctx, log, urls)
	if err != nil {
		return nil, err
	}
	result.Images = results

	// Substitution map in extraction order; assembled only after every
	// worker has finished.
	subs := markup.NewSubstitutionMap()
	for _, r := range results {
		if r.NewURL == "" {
			continue
		}
		if err := subs.Set(r.SourceURL, r.NewURL); err != nil {
			return nil, fmt.Errorf("build substitution map: %w", err)
		}
	}
	if subs.Len() == 0 {
		log.Info("run.nothing_to_replace")
		result.NoOp = true
		return result, nil
	}

	// UrlsSubstituted.
	if err := w.applySubstitutions(ctx, log, body, subs); err != nil {
		return nil, err
	}

	// Verified: the sole gate before anything irreversible.
	if err := w.awaitVerified(ctx, log, body, subs); err != nil {
		return nil, err
	}
	log.Info("run.verified")

	if req.DryRun {
		if err := w.session.Write(ctx, body); err != nil {
			return nil, fmt.Errorf("restore original body after dry run: %w", err)
		}
		log.Info("run.dry_run_restored")
		return result, nil
	}

	// Committed.
	ok, err := w.session.Submit(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if !ok {
		return nil, ErrSubmitRejected
	}
	result.Committed = true
	log.Info("run.committed")

	// The edit surface can report success while the published artifact has
	// not actually updated; confirm independently.
	result.PublishVerified = w.confirmPublished(ctx, log, subs)

	if req.DeleteOriginals {
		if !result.PublishVerified {
			log.Warn("run.delete_skipped_publish_unverified")
		} else {
			result.OriginalsDeleted = w.deleteOriginals(ctx, log, subs)
		}
	}

	return result, nil
}

func validateRequest(req *pipeline.RunRequest) error {
	if !req.Scope.Valid() {
		return fmt.Errorf("%w: scope %q", ErrInvalidRequest, req.Scope)
	}
	if req.TargetBytes <= 0 {
		return fmt.Errorf("%w: target bytes must be positive, got %d", ErrInvalidRequest, req.TargetBytes)
	}
	if req.Concurrency == 0 {
		req.Concurrency = 4
	}
	if req.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidRequest, req.Concurrency)
	}
	return nil
}

// writeBackup persists the original body under a fresh timestamped name.
// O_EXCL keeps the backup location append-only.
func (w *ArticleWorkflow) writeBackup(runID, body string) (string, error) {
	if err := os.MkdirAll(w.opts.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", time.Now().UTC().Format("20060102T150405"), runID)
	path := filepath.Join(w.opts.BackupDir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(body); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// applySubstitutions tries the minimal in-place patch first and falls back
// to a full-document rewrite on any failure indicator. The diff verifier
// makes either path safe.
func (w *ArticleWorkflow) applySubstitutions(ctx context.Context, log *zap.Logger, original string, subs *markup.SubstitutionMap) error {
	patch, err := w.session.ApplySubstitutions(ctx, subs)
	if err == nil && patch.OK {
		log.Info("substitute.patched", zap.Int("replaced", patch.ReplacedCount))
		return nil
	}
	if err != nil {
		log.Warn("substitute.patch_failed_falling_back", zap.Error(err))
	} else {
		log.Info("substitute.patch_unsupported_falling_back")
	}

	if err := w.session.Write(ctx, subs.Apply(original)); err != nil {
		return fmt.Errorf("full rewrite fallback: %w", err)
	}
	log.Info("substitute.rewritten")
	return nil
}

// awaitVerified gives the external document a bounded window to settle on
// the expected text, then treats any remaining divergence as corruption:
// artifacts are written and the run aborts. No automatic rollback — the
// rollback path itself may be unreliable on a corrupted state.
func (w *ArticleWorkflow) awaitVerified(ctx context.Context, log *zap.Logger, original string, subs *markup.SubstitutionMap) error {
	var (
		lastResult  verify.Result
		lastCurrent string
	)

	err := poll.Until(ctx, w.opts.SettleInterval, w.opts.SettleTimeout, func(ctx context.Context) (bool, error) {
		current, err := w.session.ReadLive(ctx)
		if err != nil {
			return false, fmt.Errorf("read live body for verification: %w", err)
		}
		lastCurrent = current
		lastResult = verify.OnlyExpectedChanges(original, current, subs)
		if !lastResult.OK {
			log.Debug("verify.waiting_for_settle", zap.Int("first_diff_index", lastResult.FirstDiffIndex))
		}
		return lastResult.OK, nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, poll.ErrTimeout) {
		return err
	}

	expected := subs.Apply(original)
	artifacts, artifactErr := verify.WriteArtifacts(w.opts.AuditDir, expected, lastCurrent, lastResult)
	if artifactErr != nil {
		log.Error("verify.artifact_write_failed", zap.Error(artifactErr))
	} else {
		log.Error("verify.failed",
			zap.String("reason", string(lastResult.Reason)),
			zap.Int("first_diff_index", lastResult.FirstDiffIndex),
			zap.String("expected_artifact", artifacts.ExpectedPath),
			zap.String("current_artifact", artifacts.CurrentPath),
			zap.String("diagnostic_artifact", artifacts.DiagnosticPath),
		)
	}
	return fmt.Errorf("%w: %s at index %d", ErrVerificationFailed, lastResult.Reason, lastResult.FirstDiffIndex)
}

// confirmPublished polls the public rendering until it carries every new
// URL and none of the old ones. An unconfirmed publish is not fatal to the
// run, but it gates deletion.
func (w *ArticleWorkflow) confirmPublished(ctx context.Context, log *zap.Logger, subs *markup.SubstitutionMap) bool {
	err := poll.Until(ctx, w.opts.PublishPollInterval, w.opts.PublishPollTimeout, func(ctx context.Context) (bool, error) {
		doc, err := w.published.ReadPublished(ctx)
		if err != nil {
			// Transient while the platform propagates the publish.
			log.Debug("publish.poll_read_failed", zap.Error(err))
			return false, nil
		}
		for _, entry := range subs.Entries() {
			if !strings.Contains(doc, entry.New) || strings.Contains(doc, entry.Old) {
				log.Debug("publish.waiting", zap.String("url", entry.New))
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		log.Warn("publish.unconfirmed", zap.Error(err))
		return false
	}
	log.Info("publish.confirmed")
	return true
}
