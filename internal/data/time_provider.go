package data

import "time"

// TimeProvider provides time-related functionality that can be mocked for
// testing. The model cache TTL, recency weighting, and snapshot dating all
// read the clock through this interface so tests control it deterministically.
type TimeProvider interface {
	// Now returns the current time
	Now() time.Time
	// Today returns the current UTC calendar date (midnight-truncated)
	Today() time.Time
}

// RealTimeProvider implements TimeProvider using real system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Today returns the current UTC calendar date.
func (r *RealTimeProvider) Today() time.Time {
	return r.Now().UTC().Truncate(24 * time.Hour)
}

// FixedTimeProvider implements TimeProvider with a fixed time for testing.
type FixedTimeProvider struct {
	fixedTime time.Time
}

// NewFixedTimeProvider creates a new FixedTimeProvider with the given time.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: t}
}

// Now returns the fixed time.
func (f *FixedTimeProvider) Now() time.Time {
	return f.fixedTime
}

// Today returns the fixed time's UTC calendar date.
func (f *FixedTimeProvider) Today() time.Time {
	return f.fixedTime.UTC().Truncate(24 * time.Hour)
}

// SetTime updates the fixed time (useful for testing time progression).
func (f *FixedTimeProvider) SetTime(t time.Time) {
	f.fixedTime = t
}

// AddTime adds a duration to the current fixed time.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.fixedTime = f.fixedTime.Add(d)
}
