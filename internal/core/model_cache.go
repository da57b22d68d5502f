package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
)

// CachedModel is the process-local binding of a deserialized artifact, its
// metadata, and the load time that drives expiry.
type CachedModel struct {
	Artifact *ModelArtifact
	Meta     *model.ModelMetadata
	LoadedAt time.Time
}

// ModelCacheConfig holds configuration for the model cache.
type ModelCacheConfig struct {
	// ModelName is the model line this cache serves.
	ModelName string
	// TTL bounds how long a loaded model may be reused before the store is
	// consulted again. The trade-off: every request inside the window skips
	// the store entirely, and a freshly retrained model becomes visible to
	// this worker at most one TTL after its save.
	TTL time.Duration
}

// ModelCacheOptions bundles dependencies for NewModelCache.
type ModelCacheOptions struct {
	Store        ModelRepository
	Config       ModelCacheConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// ModelCache holds at most one cached model per worker process. It is an
// explicit injectable object rather than package state so tests can swap the
// store and drive the clock; it is safe for concurrent use by request
// goroutines.
type ModelCache struct {
	store ModelRepository
	cfg   ModelCacheConfig
	clock data.TimeProvider
	log   *slog.Logger

	mu      sync.Mutex
	current *CachedModel
}

// NewModelCache creates a new ModelCache.
func NewModelCache(opts ModelCacheOptions) *ModelCache {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config.TTL <= 0 {
		opts.Config.TTL = 5 * time.Minute
	}
	return &ModelCache{
		store: opts.Store,
		cfg:   opts.Config,
		clock: opts.TimeProvider,
		log:   opts.Logger,
	}
}

// Get returns the cached model, refreshing from the store when the entry is
// absent or past its TTL. Within the TTL window the store is never touched,
// including when a newer version exists: workers converge on a new model
// within one TTL, which is the design's staleness contract.
//
// model.ErrNoModelAvailable passes through untouched so callers can tell an
// empty store from a failing one.
func (c *ModelCache) Get(ctx context.Context) (*CachedModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.current != nil && now.Sub(c.current.LoadedAt) < c.cfg.TTL {
		return c.current, nil
	}

	raw, meta, err := c.store.LoadLatest(ctx, c.cfg.ModelName)
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(raw)
	if err != nil {
		return nil, fmt.Errorf("deserialize model %q: %w", meta.Version, err)
	}

	refreshed := c.current == nil || c.current.Meta.Version != meta.Version
	c.current = &CachedModel{Artifact: artifact, Meta: meta, LoadedAt: now}
	if refreshed {
		c.log.InfoContext(ctx, "model cache loaded new version",
			"version", meta.Version, "trained_at", meta.TrainedAt, "mae", meta.MAE)
	}
	return c.current, nil
}

// Peek returns the current entry without refreshing, or nil when none is
// cached. Used by the status endpoint, which must not force a store load.
func (c *ModelCache) Peek() *CachedModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Invalidate drops the cached entry so the next Get hits the store.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}
