package workflows

import (
	"context"
	"time"

	"github.com/pressfit/pressfit/pkg/pipeline"
)

// WorkflowContext carries one run through the pipeline stages. All run state
// lives here or in stage-local values; nothing is ambient.
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.RunRequest
	RunID   string
}

// Options configures an ArticleWorkflow beyond the per-run request.
type Options struct {
	// BackupDir receives one timestamped snapshot file per run before any
	// mutation. Append-only: files are never overwritten.
	BackupDir string

	// AuditDir receives verification-failure artifacts.
	AuditDir string

	// AssetDir receives the downloaded/optimized file pair per image,
	// partitioned per URL index so workers never contend on a path.
	AssetDir string

	// SettleInterval/SettleTimeout bound how long the live document gets to
	// converge on the expected text after substitution.
	SettleInterval time.Duration
	SettleTimeout  time.Duration

	// PublishPollInterval/PublishPollTimeout bound the independent
	// confirmation of the published rendering after submit.
	PublishPollInterval time.Duration
	PublishPollTimeout  time.Duration

	// DeleteRetryPasses grants extra full deletion passes;
	// DeleteRetryCredits grants retries per asset within them.
	DeleteRetryPasses  int
	DeleteRetryCredits int
}

// withDefaults fills in the zero-value fields.
func (o Options) withDefaults() Options {
	if o.BackupDir == "" {
		o.BackupDir = "backups"
	}
	if o.AuditDir == "" {
		o.AuditDir = "audit"
	}
	if o.AssetDir == "" {
		o.AssetDir = "assets"
	}
	if o.SettleInterval == 0 {
		o.SettleInterval = 500 * time.Millisecond
	}
	if o.SettleTimeout == 0 {
		o.SettleTimeout = 15 * time.Second
	}
	if o.PublishPollInterval == 0 {
		o.PublishPollInterval = 2 * time.Second
	}
	if o.PublishPollTimeout == 0 {
		o.PublishPollTimeout = 90 * time.Second
	}
	return o
}
