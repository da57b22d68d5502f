package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// errTransient stands in for a momentary backend fault in the *Failures
// counters below: the stub fails that many calls, then answers normally.
var errTransient = errors.New("transient backend failure")

// StubOrderRepo is an in-memory core.OrderRepository. Errors, when set, take
// precedence over data.
type StubOrderRepo struct {
	Completed []model.CompletedOrder
	Open      []model.Order

	CompletedErr error
	OpenErr      error
	GetErr       error

	// CompletedFailures and OpenFailures fail that many leading calls before
	// the stub starts answering, for exercising retry paths.
	CompletedFailures int
	OpenFailures      int
}

// CompletedOrders returns the stubbed historical dataset.
func (s *StubOrderRepo) CompletedOrders(_ context.Context) ([]model.CompletedOrder, error) {
	if s.CompletedFailures > 0 {
		s.CompletedFailures--
		return nil, errTransient
	}
	if s.CompletedErr != nil {
		return nil, s.CompletedErr
	}
	return append([]model.CompletedOrder(nil), s.Completed...), nil
}

// OpenOrders returns the stubbed open orders.
func (s *StubOrderRepo) OpenOrders(_ context.Context) ([]model.Order, error) {
	if s.OpenFailures > 0 {
		s.OpenFailures--
		return nil, errTransient
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	return append([]model.Order(nil), s.Open...), nil
}

// GetByID looks the order up in either stubbed slice.
func (s *StubOrderRepo) GetByID(_ context.Context, orderID string) (*model.Order, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	for i := range s.Open {
		if s.Open[i].ID == orderID {
			o := s.Open[i]
			return &o, nil
		}
	}
	for i := range s.Completed {
		if s.Completed[i].ID == orderID {
			o := s.Completed[i].Order
			return &o, nil
		}
	}
	return nil, model.ErrOrderNotFound
}

type storedArtifact struct {
	artifact []byte
	meta     model.ModelMetadata
}

// StubModelStore is an in-memory core.ModelRepository that keeps versions in
// save order.
type StubModelStore struct {
	mu      sync.Mutex
	stored  []storedArtifact
	SaveErr error
	LoadErr error

	// SaveFailures fails that many leading Save calls before the stub starts
	// persisting, for exercising retry paths.
	SaveFailures int
}

// Save appends the artifact/metadata pair.
func (s *StubModelStore) Save(_ context.Context, artifact []byte, meta *model.ModelMetadata) error {
	if s.SaveFailures > 0 {
		s.SaveFailures--
		return errTransient
	}
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, storedArtifact{
		artifact: append([]byte(nil), artifact...),
		meta:     *meta,
	})
	return nil
}

// LoadLatest returns the most recently saved version.
func (s *StubModelStore) LoadLatest(_ context.Context, name string) ([]byte, *model.ModelMetadata, error) {
	if s.LoadErr != nil {
		return nil, nil, s.LoadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.stored) - 1; i >= 0; i-- {
		if s.stored[i].meta.Name == name {
			meta := s.stored[i].meta
			return append([]byte(nil), s.stored[i].artifact...), &meta, nil
		}
	}
	return nil, nil, model.ErrNoModelAvailable
}

// List returns metadata for every stored version of a name, newest first.
func (s *StubModelStore) List(_ context.Context, name string) ([]model.ModelMetadata, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ModelMetadata
	for i := len(s.stored) - 1; i >= 0; i-- {
		if s.stored[i].meta.Name == name {
			out = append(out, s.stored[i].meta)
		}
	}
	return out, nil
}

// Delete removes the named version.
func (s *StubModelStore) Delete(_ context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stored {
		if s.stored[i].meta.Version == version {
			s.stored = append(s.stored[:i], s.stored[i+1:]...)
			return nil
		}
	}
	return nil
}

// Count returns how many versions the stub holds.
func (s *StubModelStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

// StubSnapshotRepo is an in-memory core.SnapshotRepository.
type StubSnapshotRepo struct {
	mu      sync.Mutex
	Batches [][]model.SnapshotRow
	Matured []model.MaturedSnapshotRow

	AppendErr  error
	MaturedErr error

	// AppendFailures fails that many leading AppendBatch calls before the
	// stub starts recording, for exercising retry paths.
	AppendFailures int
}

// AppendBatch records the batch and returns a synthetic batch ID.
func (s *StubSnapshotRepo) AppendBatch(_ context.Context, rows []model.SnapshotRow) (string, error) {
	if s.AppendFailures > 0 {
		s.AppendFailures--
		return "", errTransient
	}
	if s.AppendErr != nil {
		return "", s.AppendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Batches = append(s.Batches, append([]model.SnapshotRow(nil), rows...))
	return fmt.Sprintf("batch-%d", len(s.Batches)), nil
}

// MaturedRows returns the stubbed matured rows.
func (s *StubSnapshotRepo) MaturedRows(_ context.Context) ([]model.MaturedSnapshotRow, error) {
	if s.MaturedErr != nil {
		return nil, s.MaturedErr
	}
	return append([]model.MaturedSnapshotRow(nil), s.Matured...), nil
}

// StubRunLocker is an in-memory core.RunLocker.
type StubRunLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	versions map[string]string

	AcquireErr error
	// Held pre-marks locks as taken, simulating a concurrent run.
	Held []string
}

func (s *StubRunLocker) init() {
	if s.held == nil {
		s.held = map[string]bool{}
		for _, name := range s.Held {
			s.held[name] = true
		}
	}
	if s.versions == nil {
		s.versions = map[string]string{}
	}
}

// Acquire claims the named lock unless it is already held.
func (s *StubRunLocker) Acquire(_ context.Context, name string, _ time.Duration) (bool, error) {
	if s.AcquireErr != nil {
		return false, s.AcquireErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	if s.held[name] {
		return false, nil
	}
	s.held[name] = true
	return true, nil
}

// Release frees the named lock.
func (s *StubRunLocker) Release(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	delete(s.held, name)
	return nil
}

// PublishModelVersion records the version hint.
func (s *StubRunLocker) PublishModelVersion(_ context.Context, name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.versions[name] = version
	return nil
}

// CurrentModelVersion returns the recorded version hint.
func (s *StubRunLocker) CurrentModelVersion(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return s.versions[name], nil
}
