package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLockRepo implements scheduled-run locking and the cross-worker model
// version hint on Redis. The external scheduler is responsible for not
// double-firing a job; the lock is the backstop that turns an accidental
// double fire into a logged no-op instead of a duplicate training run or a
// duplicate snapshot batch.
type RunLockRepo struct {
	client redis.UniversalClient
}

// NewRunLockRepo creates a new RunLockRepo with the given Redis client.
func NewRunLockRepo(client redis.UniversalClient) *RunLockRepo {
	return &RunLockRepo{client: client}
}

// Acquire atomically claims the named lock for ttl. Returns false when
// another invocation already holds it.
func (r *RunLockRepo) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if name == "" {
		return false, errors.New("lock name cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	// SET with NX + TTL is atomic; SETNX followed by EXPIRE is not, and the
	// gap is exactly where a double fire would slip through.
	cmd := r.client.SetArgs(ctx, lockKey(name), time.Now().UTC().Format(time.RFC3339), redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	})
	status, err := cmd.Result()
	if err != nil {
		// NX miss comes back as redis.Nil: the lock is held, not broken.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis SET NX: %w", err)
	}
	return status == "OK", nil
}

// Release drops the named lock. Safe to call on an expired or absent lock.
func (r *RunLockRepo) Release(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("lock name cannot be empty")
	}
	if err := r.client.Del(ctx, lockKey(name)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PublishModelVersion records the latest saved version for a model name.
// Best effort: workers converge through their cache TTL regardless; the hint
// only makes the status endpoint and operators see the flip sooner.
func (r *RunLockRepo) PublishModelVersion(ctx context.Context, name, version string) error {
	if name == "" || version == "" {
		return errors.New("model name and version cannot be empty")
	}
	if err := r.client.Set(ctx, versionKey(name), version, 0).Err(); err != nil {
		return fmt.Errorf("redis set model version: %w", err)
	}
	return nil
}

// CurrentModelVersion returns the last published version for a model name,
// or empty when none has been published.
func (r *RunLockRepo) CurrentModelVersion(ctx context.Context, name string) (string, error) {
	v, err := r.client.Get(ctx, versionKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get model version: %w", err)
	}
	return v, nil
}

// Health checks the health of the Redis connection.
func (r *RunLockRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func lockKey(name string) string {
	return "runlock:" + name
}

func versionKey(name string) string {
	return "model:version:" + name
}
