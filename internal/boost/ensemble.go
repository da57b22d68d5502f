package boost

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Ensemble is a trained boosted model. Leaf values are stored already scaled
// by the learning rate, so prediction is base + plain sum over trees, and a
// serialized copy predicts identically to the in-memory original.
type Ensemble struct {
	Base   float64   `json:"base"`
	Roots  []*node   `json:"trees"`
	Gains  []float64 `json:"gains"`
	Params Params    `json:"params"`
}

// ErrNoSamples is returned when Train is called with an empty sample set.
var ErrNoSamples = errors.New("no training samples")

// ErrFeatureWidthMismatch is returned when samples disagree on feature width.
var ErrFeatureWidthMismatch = errors.New("inconsistent feature width across samples")

// Train fits a boosted ensemble to the weighted samples.
func Train(samples []Sample, params Params) (*Ensemble, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	width := len(samples[0].Features)
	for i := range samples {
		if len(samples[i].Features) != width {
			return nil, ErrFeatureWidthMismatch
		}
		if samples[i].Weight <= 0 {
			samples[i].Weight = 1
		}
	}

	ens := &Ensemble{
		Base:   weightedMean(samples),
		Gains:  make([]float64, width),
		Params: params,
	}

	residuals := make([]float64, len(samples))
	preds := make([]float64, len(samples))
	for i := range samples {
		preds[i] = ens.Base
		residuals[i] = samples[i].Target - preds[i]
	}

	rng := rand.New(rand.NewSource(params.Seed))
	all := make([]int, len(samples))
	for i := range all {
		all[i] = i
	}

	for t := 0; t < params.Trees; t++ {
		indices := all
		if params.SubsampleFrac < 1 {
			indices = subsample(rng, len(samples), params.SubsampleFrac)
			if len(indices) < 2*params.MinLeafSize {
				indices = all
			}
		}

		builder := &treeBuilder{
			samples:   samples,
			residuals: residuals,
			params:    params,
			gains:     make([]float64, width),
		}
		root := builder.build(indices, 0)

		// A pure-leaf tree with zero output adds nothing; residuals are flat.
		if root.Leaf && root.Value == 0 {
			break
		}

		ens.Roots = append(ens.Roots, root)
		for i := range ens.Gains {
			ens.Gains[i] += builder.gains[i]
		}
		for i := range samples {
			preds[i] += root.predict(samples[i].Features)
			residuals[i] = samples[i].Target - preds[i]
		}
	}

	return ens, nil
}

// Predict returns the ensemble output for one feature vector.
func (e *Ensemble) Predict(features []float64) float64 {
	out := e.Base
	for _, root := range e.Roots {
		out += root.predict(features)
	}
	return out
}

// FeatureImportance returns per-feature split gain normalized to sum to 1.
// All-zero when the ensemble never split (constant target).
func (e *Ensemble) FeatureImportance() []float64 {
	out := make([]float64, len(e.Gains))
	var total float64
	for _, g := range e.Gains {
		total += g
	}
	if total <= 0 {
		return out
	}
	for i, g := range e.Gains {
		out[i] = g / total
	}
	return out
}

// MeanAbsoluteError evaluates the ensemble against labeled samples.
func (e *Ensemble) MeanAbsoluteError(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for i := range samples {
		sum += math.Abs(samples[i].Target - e.Predict(samples[i].Features))
	}
	return sum / float64(len(samples))
}

func weightedMean(samples []Sample) float64 {
	var sumW, sumWY float64
	for i := range samples {
		sumW += samples[i].Weight
		sumWY += samples[i].Weight * samples[i].Target
	}
	if sumW <= 0 {
		return 0
	}
	return sumWY / sumW
}

// subsample draws a sorted fraction of row indices without replacement.
func subsample(rng *rand.Rand, n int, frac float64) []int {
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}
