package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Model store sentinels.
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrVersionRequired  = errors.New("model version is required")
	ErrNameRequired     = errors.New("model name is required")

	// Snapshot repository sentinels.
	ErrEmptySnapshotBatch = errors.New("snapshot batch is empty")
)
