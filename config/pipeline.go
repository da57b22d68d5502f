package config

import (
	"fmt"
	"strings"
	"time"
)

// TrainingProfile names a fixed hyperparameter preset for the boosted
// ensemble. The set is closed: unknown names are rejected at config load and
// at the train entry points, never silently defaulted. The presets themselves
// live with the trainer so the mapping can be switched exhaustively.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TrainingProfile string

const (
	// ProfileBalanced is the production default: moderate depth and tree count.
	ProfileBalanced TrainingProfile = "balanced"
	// ProfileDeep trades training time for accuracy: more, deeper trees with
	// stronger regularization.
	ProfileDeep TrainingProfile = "deep"
	// ProfileFast is for interactive experimentation: few shallow trees.
	ProfileFast TrainingProfile = "fast"
)

// Valid returns true if the TrainingProfile is one of the known presets.
func (p TrainingProfile) Valid() bool {
	return p == ProfileBalanced || p == ProfileDeep || p == ProfileFast
}

// UnmarshalText implements encoding.TextUnmarshaler for TrainingProfile.
func (p *TrainingProfile) UnmarshalText(text []byte) error {
	v := TrainingProfile(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid TrainingProfile: %q (valid options: balanced, deep, fast)", string(text))
	}
	*p = v
	return nil
}

// TrainingConfig contains trainer and dataset-loader tuning.
//
// RecencyScale and OutlierSigma are deliberately configuration, not constants:
// both have been revised after production drift before, and neither should be
// assumed final.
type TrainingConfig struct {
	// DefaultProfile is used by the scheduled retrain entry point.
	DefaultProfile TrainingProfile `env:"DEFAULT_PROFILE" envDefault:"balanced"`

	// MinRows is the minimum viable completed-order count; below it a training
	// run fails with ErrInsufficientData instead of fitting an unreliable model.
	MinRows int `env:"MIN_ROWS" envDefault:"100"`

	// RecencyScale controls exponential recency weighting:
	// weight = exp(fraction * scale) with fraction in [0,1]. A scale of 2.0
	// weights the newest row ~7.4x the oldest; beyond ~2.3 (ratio ~10x) the
	// fit chases short-term noise, so Sanitize clamps it.
	RecencyScale float64 `env:"RECENCY_SCALE" envDefault:"2.0"`

	// OutlierSigma is the k in the mean+k*stddev completion-days cutoff
	// applied to the candidate training set.
	OutlierSigma float64 `env:"OUTLIER_SIGMA" envDefault:"3.0"`

	// MaxPlausibleDays drops rows whose elapsed days are negative or absurd
	// before the statistical outlier pass.
	MaxPlausibleDays float64 `env:"MAX_PLAUSIBLE_DAYS" envDefault:"365"`

	// HoldoutFraction is the chronological evaluation split used by
	// interactive training runs.
	HoldoutFraction float64 `env:"HOLDOUT_FRACTION" envDefault:"0.2"`

	// CVFolds is the cross-validation fold count used by unattended retrains,
	// which keep no holdout.
	CVFolds int `env:"CV_FOLDS" envDefault:"5"`

	// Budget is the overall wall-clock limit for one training run. A run that
	// overruns fails loudly rather than hanging its scheduled slot.
	Budget time.Duration `env:"BUDGET" envDefault:"2m"`

	// Retries bounds retry attempts around scheduled-run I/O: the dataset load
	// and the artifact save. Interactive runs never retry; the caller sees the
	// error at once.
	Retries int `env:"RETRIES" envDefault:"3"`
}

// Sanitize applies guardrails to training configuration values.
func (t *TrainingConfig) Sanitize() {
	if t.MinRows < 10 {
		t.MinRows = 10
	}
	if t.RecencyScale < 0 {
		t.RecencyScale = 0
	}
	// exp(2.3) ~ 10: anything past that overweights the newest rows.
	if t.RecencyScale > 2.3 {
		t.RecencyScale = 2.3
	}
	if t.OutlierSigma <= 0 {
		t.OutlierSigma = 3.0
	}
	if t.MaxPlausibleDays <= 0 {
		t.MaxPlausibleDays = 365
	}
	if t.HoldoutFraction <= 0 || t.HoldoutFraction >= 0.5 {
		t.HoldoutFraction = 0.2
	}
	if t.CVFolds < 2 {
		t.CVFolds = 5
	}
	if t.Budget <= 0 {
		t.Budget = 2 * time.Minute
	}
	if t.Retries < 1 {
		t.Retries = 1
	}
}

// PredictionConfig contains serving-path tuning.
type PredictionConfig struct {
	// IntervalHalfWidthDays is the fixed half-width of the confidence band
	// around a point estimate. A quantile-based band is a known follow-up; the
	// evaluator's per-date coverage is the signal for revisiting this.
	IntervalHalfWidthDays float64 `env:"INTERVAL_HALF_WIDTH_DAYS" envDefault:"1.5"`

	// MaxBatchSize caps orders per batch prediction call to bound latency.
	MaxBatchSize int `env:"MAX_BATCH_SIZE" envDefault:"50"`
}

// Sanitize applies guardrails to prediction configuration values.
func (p *PredictionConfig) Sanitize() {
	if p.IntervalHalfWidthDays <= 0 {
		p.IntervalHalfWidthDays = 1.5
	}
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = 50
	}
}

// SnapshotConfig contains daily snapshot recorder tuning.
type SnapshotConfig struct {
	// RunLockTTL is how long the Redis run lock shields a scheduled job from
	// an accidental same-day double fire.
	RunLockTTL time.Duration `env:"RUN_LOCK_TTL" envDefault:"1h"`

	// Retries bounds retry attempts around the recorder's I/O: the open-order
	// load and the batch append. A transient fault must not cost a day's
	// monitoring rows.
	Retries int `env:"RETRIES" envDefault:"3"`
}

// Sanitize applies guardrails to snapshot configuration values.
func (s *SnapshotConfig) Sanitize() {
	if s.RunLockTTL <= 0 {
		s.RunLockTTL = time.Hour
	}
	if s.Retries < 1 {
		s.Retries = 1
	}
}

// ModelConfig contains model store and cache tuning.
type ModelConfig struct {
	// Name identifies the model line this deployment trains and serves.
	Name string `env:"NAME" envDefault:"completion-days"`

	// Keep is how many most-recent artifacts the store retains per name;
	// older ones are pruned on each save.
	Keep int `env:"KEEP" envDefault:"5"`

	// CacheTTL is the per-worker in-process cache lifetime. It trades
	// staleness against store load: short enough that the daily retrain is
	// visible within one window, long enough that the interactive path almost
	// never touches the store.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to model configuration values.
func (m *ModelConfig) Sanitize() {
	if m.Name == "" {
		m.Name = "completion-days"
	}
	if m.Keep < 1 {
		m.Keep = 5
	}
	if m.CacheTTL <= 0 {
		m.CacheTTL = 5 * time.Minute
	}
}
