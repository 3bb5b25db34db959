// pressfit resizes and re-uploads oversized images referenced by a blog
// article, rewrites the article to point at the new assets, and verifies the
// rewrite before committing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pressfit/pressfit/internal/assetstore"
	"github.com/pressfit/pressfit/internal/config"
	"github.com/pressfit/pressfit/internal/editor"
	"github.com/pressfit/pressfit/internal/fetch"
	"github.com/pressfit/pressfit/internal/logging"
	"github.com/pressfit/pressfit/internal/metrics"
	"github.com/pressfit/pressfit/internal/optimize"
	"github.com/pressfit/pressfit/internal/workflows"
	"github.com/pressfit/pressfit/pkg/pipeline"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pressfit",
		Short:         "Resize and re-upload oversized article images",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		flags      runFlags
	)

	cmd := &cobra.Command{
		Use:   "run <article-url>",
		Short: "Run the resize/re-upload pipeline against one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&flags.scope, "scope", "", `how many oversized images to process: "all" or "single"`)
	cmd.Flags().IntVar(&flags.targetKB, "target-kb", 0, "byte budget per image, in KB")
	cmd.Flags().Float64Var(&flags.tolerance, "tolerance", 0, "budget tolerance ratio (0.2 accepts up to 120% of target)")
	cmd.Flags().StringVar(&flags.outDir, "out-dir", "", "directory for backups, audit artifacts and asset files")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "parallel image workers")
	cmd.Flags().StringVar(&flags.session, "session", "", "local article file to edit instead of a remote editor")
	cmd.Flags().StringVar(&flags.editorAPI, "editor-api", "", "base URL of the editor API")
	cmd.Flags().StringVar(&flags.assetAPI, "asset-api", "", "base URL of the asset store API")
	cmd.Flags().BoolVar(&flags.headless, "headless", true, "run any browser-driven editing surface headless")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "run the full pipeline, then restore the original body instead of submitting")
	cmd.Flags().BoolVar(&flags.deleteOriginals, "delete-originals", false, "delete superseded source assets after a verified publish")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", `"console" or "json"`)

	return cmd
}

// runFlags overrides the loaded config with explicitly set flags. Unset flags
// leave the config (defaults, file, environment) alone.
type runFlags struct {
	scope           string
	targetKB        int
	tolerance       float64
	outDir          string
	concurrency     int
	session         string
	editorAPI       string
	assetAPI        string
	headless        bool
	dryRun          bool
	deleteOriginals bool
	metricsAddr     string
	logLevel        string
	logFormat       string
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("scope") {
		cfg.Scope = f.scope
	}
	if set("target-kb") {
		cfg.TargetKB = f.targetKB
	}
	if set("tolerance") {
		cfg.ToleranceRatio = f.tolerance
	}
	if set("out-dir") {
		cfg.OutputDir = f.outDir
	}
	if set("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if set("session") {
		cfg.SessionPath = f.session
	}
	if set("editor-api") {
		cfg.EditorAPI = f.editorAPI
	}
	if set("asset-api") {
		cfg.AssetAPI = f.assetAPI
	}
	if set("headless") {
		cfg.Headless = f.headless
	}
	if set("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if set("delete-originals") {
		cfg.DeleteOriginals = f.deleteOriginals
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("log-format") {
		cfg.LogFormat = f.logFormat
	}
}

func run(parent context.Context, cfg *config.Config, articleURL string) error {
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics.listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.server_failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	session, err := buildSession(cfg, articleURL)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}

	opts := workflows.Options{
		BackupDir:          filepath.Join(cfg.OutputDir, "backups"),
		AuditDir:           filepath.Join(cfg.OutputDir, "audit"),
		AssetDir:           filepath.Join(cfg.OutputDir, "assets"),
		DeleteRetryPasses:  cfg.DeleteRetryPasses,
		DeleteRetryCredits: cfg.DeleteRetryCredits,
	}
	if opts.PublishPollInterval, err = parseDuration("publish_poll_interval", cfg.PublishPollInterval); err != nil {
		return err
	}
	if opts.PublishPollTimeout, err = parseDuration("publish_poll_timeout", cfg.PublishPollTimeout); err != nil {
		return err
	}

	workflow := workflows.NewArticleWorkflow(
		session,
		session,
		store,
		fetch.NewHTTPDownloader(),
		optimize.New(logger),
		m,
		logger,
		opts,
	)

	req := pipeline.RunRequest{
		ArticleURL:      articleURL,
		Scope:           pipeline.Scope(cfg.Scope),
		TargetBytes:     cfg.TargetKB * 1024,
		ToleranceRatio:  cfg.ToleranceRatio,
		OutputDir:       cfg.OutputDir,
		Concurrency:     cfg.Concurrency,
		DryRun:          cfg.DryRun,
		DeleteOriginals: cfg.DeleteOriginals,
	}

	runID := uuid.New().String()
	logger.Info("run.starting",
		zap.String("run_id", runID),
		zap.String("article", articleURL),
		zap.String("scope", cfg.Scope),
		zap.Int("target_kb", cfg.TargetKB),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("headless", cfg.Headless),
	)

	result, err := workflow.Execute(&workflows.WorkflowContext{
		Ctx:     ctx,
		Request: req,
		RunID:   runID,
	})
	if err != nil {
		return err
	}

	// The run summary goes to stdout; all logging goes to stderr.
	summary, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	fmt.Println(string(summary))
	return nil
}

// buildSession picks the editing surface: a remote editor API when configured,
// otherwise a local article file.
func buildSession(cfg *config.Config, articleURL string) (interface {
	editor.Session
	editor.PublishedReader
}, error) {
	if cfg.EditorAPI != "" {
		id, err := articleID(articleURL)
		if err != nil {
			return nil, err
		}
		return editor.NewHTTPSession(cfg.EditorAPI, id, editor.KindVirtualized), nil
	}
	if cfg.SessionPath != "" {
		return editor.NewFileSession(cfg.SessionPath), nil
	}
	return nil, fmt.Errorf("no editing surface configured: set editor_api or session_path")
}

func buildStore(cfg *config.Config, logger *zap.Logger) (assetstore.Store, error) {
	if cfg.AssetAPI != "" {
		return assetstore.NewHTTPStore(cfg.AssetAPI, logger), nil
	}
	dir := filepath.Join(cfg.OutputDir, "store")
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store dir: %w", err)
	}
	return assetstore.NewFilesystemStore(dir, "file://"+abs, logger)
}

// articleID is the last path segment of the article URL.
func articleID(articleURL string) (string, error) {
	u, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("parse article url: %w", err)
	}
	id := path.Base(u.Path)
	if id == "." || id == "/" || id == "" {
		return "", fmt.Errorf("article url %q has no identifiable article id", articleURL)
	}
	return id, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}
