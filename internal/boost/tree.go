package boost

import (
	"math"
	"sort"
)

// node is one regression tree node. Leaf nodes carry the (already
// learning-rate-scaled) output value; internal nodes route on
// feature <= threshold.
type node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      *node   `json:"l,omitempty"`
	Right     *node   `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

func (n *node) predict(features []float64) float64 {
	cur := n
	for !cur.Leaf {
		if features[cur.Feature] <= cur.Threshold {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}
	return cur.Value
}

// treeBuilder grows one residual tree over a subset of rows.
type treeBuilder struct {
	samples   []Sample
	residuals []float64
	params    Params
	// gains accumulates weighted squared-error reduction per feature across
	// every split, feeding ensemble feature importance.
	gains []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) build(indices []int, depth int) *node {
	if depth >= b.params.MaxDepth || len(indices) < 2*b.params.MinLeafSize {
		return b.leaf(indices)
	}
	best := b.bestSplit(indices)
	if best == nil {
		return b.leaf(indices)
	}
	b.gains[best.feature] += best.gain
	return &node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      b.build(best.left, depth+1),
		Right:     b.build(best.right, depth+1),
	}
}

// leaf computes the regularized leaf value:
// softThreshold(sum(w*r), L1) / (sum(w) + L2), scaled by the learning rate.
func (b *treeBuilder) leaf(indices []int) *node {
	var sumWR, sumW float64
	for _, i := range indices {
		sumWR += b.samples[i].Weight * b.residuals[i]
		sumW += b.samples[i].Weight
	}
	value := softThreshold(sumWR, b.params.L1) / (sumW + b.params.L2)
	return &node{Leaf: true, Value: b.params.LearningRate * value}
}

func softThreshold(v, alpha float64) float64 {
	switch {
	case v > alpha:
		return v - alpha
	case v < -alpha:
		return v + alpha
	default:
		return 0
	}
}

// bestSplit scans every feature for the threshold that most reduces weighted
// squared error. Returns nil when no split satisfies the leaf-size floor or
// improves on the parent.
func (b *treeBuilder) bestSplit(indices []int) *split {
	featureCount := len(b.samples[indices[0]].Features)
	parentSSE := b.weightedSSE(indices)

	var best *split
	order := make([]int, len(indices))
	for feature := 0; feature < featureCount; feature++ {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool {
			return b.samples[order[i]].Features[feature] < b.samples[order[j]].Features[feature]
		})

		// Prefix scan: at cut position k, rows [0,k) go left.
		var leftW, leftWR, leftWRR float64
		totalW, totalWR, totalWRR := b.moments(order)
		for k := 1; k < len(order); k++ {
			i := order[k-1]
			w, r := b.samples[i].Weight, b.residuals[i]
			leftW += w
			leftWR += w * r
			leftWRR += w * r * r

			cur := b.samples[order[k]].Features[feature]
			prev := b.samples[i].Features[feature]
			if cur == prev {
				continue // cannot cut between identical values
			}
			if k < b.params.MinLeafSize || len(order)-k < b.params.MinLeafSize {
				continue
			}

			rightW := totalW - leftW
			if leftW <= 0 || rightW <= 0 {
				continue
			}
			leftSSE := leftWRR - leftWR*leftWR/leftW
			rightWR := totalWR - leftWR
			rightSSE := (totalWRR - leftWRR) - rightWR*rightWR/rightW
			gain := parentSSE - leftSSE - rightSSE
			if gain <= 1e-12 {
				continue
			}
			if best == nil || gain > best.gain {
				best = &split{
					feature:   feature,
					threshold: (prev + cur) / 2,
					gain:      gain,
				}
				best.left = append(best.left[:0], order[:k]...)
				best.right = append(best.right[:0], order[k:]...)
			}
		}
	}
	return best
}

func (b *treeBuilder) moments(indices []int) (sumW, sumWR, sumWRR float64) {
	for _, i := range indices {
		w, r := b.samples[i].Weight, b.residuals[i]
		sumW += w
		sumWR += w * r
		sumWRR += w * r * r
	}
	return sumW, sumWR, sumWRR
}

func (b *treeBuilder) weightedSSE(indices []int) float64 {
	sumW, sumWR, sumWRR := b.moments(indices)
	if sumW <= 0 {
		return 0
	}
	sse := sumWRR - sumWR*sumWR/sumW
	if sse < 0 || math.IsNaN(sse) {
		return 0
	}
	return sse
}
