// Package core provides the business-logic layer of the prediction pipeline
// and the repository interfaces it depends on.
package core

import (
	"context"
	"time"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations should depend on these interfaces, not concrete implementations.

// OrderRepository defines read access to the collaborator-owned order store.
type OrderRepository interface {
	// CompletedOrders returns the historical dataset: completed orders
	// annotated with elapsed days, already plausibility- and outlier-filtered.
	CompletedOrders(ctx context.Context) ([]model.CompletedOrder, error)
	// OpenOrders returns every order without a completion date.
	OpenOrders(ctx context.Context) ([]model.Order, error)
	// GetByID returns one order or model.ErrOrderNotFound.
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
}

// ModelRepository defines durable artifact storage keyed by model name.
type ModelRepository interface {
	// Save persists the artifact and metadata atomically as a pair and prunes
	// older versions beyond the store's retention.
	Save(ctx context.Context, artifact []byte, meta *model.ModelMetadata) error
	// LoadLatest returns the newest stored version for a name, or
	// model.ErrNoModelAvailable when the store holds none.
	LoadLatest(ctx context.Context, name string) ([]byte, *model.ModelMetadata, error)
	// List returns metadata for every stored version of a name, newest first.
	List(ctx context.Context, name string) ([]model.ModelMetadata, error)
	// Delete removes one stored version.
	Delete(ctx context.Context, version string) error
}

// SnapshotRepository defines append-only snapshot persistence.
type SnapshotRepository interface {
	// AppendBatch writes one day's rows as a single immutable batch and
	// returns the batch ID.
	AppendBatch(ctx context.Context, rows []model.SnapshotRow) (string, error)
	// MaturedRows returns snapshot rows whose orders have since completed.
	MaturedRows(ctx context.Context) ([]model.MaturedSnapshotRow, error)
}

// RunLocker guards scheduled jobs against accidental double fire.
type RunLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
	PublishModelVersion(ctx context.Context, name, version string) error
	CurrentModelVersion(ctx context.Context, name string) (string, error)
}
