// Package boost implements weighted gradient-boosted regression trees for the
// squared-error objective: each round fits a depth-limited tree to the current
// residuals and shrinks its contribution by the learning rate. Leaf values
// carry L2 shrinkage in the denominator and L1 soft-thresholding on top, and
// each round can subsample rows for variance reduction.
//
// The ensemble is deliberately self-contained and deterministic for a fixed
// seed: identical inputs produce an identical artifact, and a JSON round trip
// reproduces predictions bit for bit.
package boost

import (
	"errors"
	"fmt"
)

// Params is one fixed hyperparameter preset. Presets are named at the config
// layer; nothing searches these at request time.
type Params struct {
	Trees         int     `json:"trees"`
	MaxDepth      int     `json:"max_depth"`
	MinLeafSize   int     `json:"min_leaf_size"`
	LearningRate  float64 `json:"learning_rate"`
	L1            float64 `json:"l1"`
	L2            float64 `json:"l2"`
	SubsampleFrac float64 `json:"subsample_frac"`
	Seed          int64   `json:"seed"`
}

// Validate rejects parameter sets the trainer cannot honor.
func (p Params) Validate() error {
	switch {
	case p.Trees <= 0:
		return errors.New("trees must be positive")
	case p.MaxDepth <= 0:
		return errors.New("max depth must be positive")
	case p.MinLeafSize <= 0:
		return errors.New("min leaf size must be positive")
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("learning rate must be in (0,1], got %v", p.LearningRate)
	case p.L1 < 0 || p.L2 < 0:
		return errors.New("regularization terms must be non-negative")
	case p.SubsampleFrac <= 0 || p.SubsampleFrac > 1:
		return fmt.Errorf("subsample fraction must be in (0,1], got %v", p.SubsampleFrac)
	}
	return nil
}

// Sample is one weighted training row.
type Sample struct {
	Features []float64
	Target   float64
	Weight   float64
}
