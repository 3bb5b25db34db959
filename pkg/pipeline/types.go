package pipeline

// Scope selects how many oversized images in one article get processed per run.
type Scope string

const (
	// ScopeAll evaluates every extracted image URL independently.
	ScopeAll Scope = "all"
	// ScopeSingle stops at the first oversized image in document order.
	ScopeSingle Scope = "single"
)

// Valid reports whether s is a recognized scope value.
func (s Scope) Valid() bool {
	return s == ScopeAll || s == ScopeSingle
}

// DefaultToleranceRatio widens the byte budget for the "already small enough"
// and "optimize until under" checks.
const DefaultToleranceRatio = 0.2

// RunRequest describes one resize/re-upload run against an article.
type RunRequest struct {
	ArticleURL      string  `json:"article_url"`
	Scope           Scope   `json:"scope"`
	TargetBytes     int     `json:"target_bytes"`
	ToleranceRatio  float64 `json:"tolerance_ratio"`
	OutputDir       string  `json:"output_dir"`
	Concurrency     int     `json:"concurrency"`
	DryRun          bool    `json:"dry_run"`
	DeleteOriginals bool    `json:"delete_originals"`
}

// MaxBytes returns the acceptance threshold for a downloaded or optimized
// asset: targetBytes scaled up by the tolerance ratio.
func (r RunRequest) MaxBytes() int {
	tolerance := r.ToleranceRatio
	if tolerance == 0 {
		tolerance = DefaultToleranceRatio
	}
	return int(float64(r.TargetBytes)*(1+tolerance) + 0.5)
}

// ImageAction records what happened to one extracted URL during a run.
type ImageAction string

const (
	ActionSkippedSmall  ImageAction = "skipped_small"
	ActionSkippedDenied ImageAction = "skipped_access_denied"
	ActionOptimized     ImageAction = "optimized"
	ActionFallback      ImageAction = "optimized_fallback"
)

// ImageResult is the per-URL outcome record included in the run summary.
type ImageResult struct {
	SourceURL    string      `json:"source_url"`
	NewURL       string      `json:"new_url,omitempty"`
	Action       ImageAction `json:"action"`
	OriginalSize int         `json:"original_size"`
	FinalSize    int         `json:"final_size,omitempty"`
	PercentSaved float64     `json:"percent_saved,omitempty"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Committed bool          `json:"committed"`
	// PublishVerified reports that the publicly visible rendering was
	// independently confirmed to carry the new URLs. Deletion of originals
	// is gated on this, never on Committed alone.
	PublishVerified  bool          `json:"publish_verified"`
	OriginalsDeleted bool          `json:"originals_deleted"`
	DryRun           bool          `json:"dry_run"`
	NoOp             bool          `json:"no_op"`
	Images           []ImageResult `json:"images"`
	BackupPath       string        `json:"backup_path,omitempty"`
}
