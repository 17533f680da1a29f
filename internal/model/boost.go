package model

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TreeNode is one node of a fitted regression tree. Leaves carry the value;
// interior nodes route rows by feature threshold.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

func (n *TreeNode) predict(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Boost is a gradient-boosted ensemble of regression trees fitted on
// residuals. Both boosted families map onto it; they differ only in how
// their sampled hyperparameters translate (leaf-count style vs depth style).
type Boost struct {
	Family    Kind        `json:"family"`
	Eta       float64     `json:"eta"`
	Rounds    int         `json:"rounds"`
	MaxDepth  int         `json:"max_depth"`
	Subsample float64     `json:"subsample"`
	Colsample float64     `json:"colsample"`
	MinChild  int         `json:"min_child"`
	Seed      int64       `json:"seed"`
	Base      float64     `json:"base"`
	Trees     []*TreeNode `json:"trees"`
}

// NewBoost translates a family's sampled hyperparameters into booster
// settings.
func NewBoost(family Kind, params map[string]float64) *Boost {
	b := &Boost{
		Family:    family,
		Eta:       0.1,
		Rounds:    100,
		MaxDepth:  6,
		Subsample: 1,
		Colsample: 1,
		MinChild:  5,
		Seed:      1,
	}

	switch family {
	case KindLightGBM:
		if v, ok := params["num_leaves"]; ok && v >= 2 {
			b.MaxDepth = clampInt(int(math.Ceil(math.Log2(v))), 1, 12)
		}
		if v, ok := params["feature_fraction"]; ok {
			b.Colsample = clampFrac(v)
		}
		if v, ok := params["bagging_fraction"]; ok {
			b.Subsample = clampFrac(v)
		}
		if v, ok := params["min_child_samples"]; ok && v >= 1 {
			b.MinChild = int(v)
		}
	case KindXGBoost:
		if v, ok := params["max_depth"]; ok && v >= 1 {
			b.MaxDepth = clampInt(int(v), 1, 12)
		}
		if v, ok := params["eta"]; ok && v > 0 {
			b.Eta = v
		}
		if v, ok := params["colsample_bytree"]; ok {
			b.Colsample = clampFrac(v)
		}
		if v, ok := params["subsample"]; ok {
			b.Subsample = clampFrac(v)
		}
	}

	if v, ok := params["rounds"]; ok && v >= 1 {
		b.Rounds = int(v)
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFrac(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1
	}
	return v
}

// Fit grows Rounds trees on the running residual.
func (b *Boost) Fit(features [][]float64, target []float64) error {
	n := len(features)
	if n == 0 || n != len(target) {
		return errors.New("boost: empty or mismatched training data")
	}
	p := len(features[0])
	if p == 0 {
		return errors.New("boost: no feature columns")
	}

	rng := rand.New(rand.NewSource(b.Seed))
	b.Base = stat.Mean(target, nil)
	b.Trees = b.Trees[:0]

	residual := make([]float64, n)
	for i := range residual {
		residual[i] = target[i] - b.Base
	}

	for round := 0; round < b.Rounds; round++ {
		rows := sampleIndices(rng, n, b.Subsample)
		cols := sampleFeatures(rng, p, b.Colsample)

		tree := b.buildTree(features, residual, rows, cols, 0)
		if tree == nil {
			break
		}
		b.Trees = append(b.Trees, tree)

		for i, row := range features {
			residual[i] -= b.Eta * tree.predict(row)
		}
	}
	return nil
}

// Predict sums the ensemble for each row.
func (b *Boost) Predict(features [][]float64) ([]float64, error) {
	if len(b.Trees) == 0 && b.Base == 0 {
		return nil, errors.New("boost: model not fitted")
	}
	out := make([]float64, len(features))
	for i, row := range features {
		sum := b.Base
		for _, tree := range b.Trees {
			sum += b.Eta * tree.predict(row)
		}
		out[i] = sum
	}
	return out, nil
}

func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	k := int(math.Round(fraction * float64(n)))
	if k >= n || k <= 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

func sampleFeatures(rng *rand.Rand, p int, fraction float64) []int {
	k := int(math.Round(fraction * float64(p)))
	if k < 1 {
		k = 1
	}
	if k >= p {
		cols := make([]int, p)
		for j := range cols {
			cols[j] = j
		}
		return cols
	}
	perm := rng.Perm(p)[:k]
	sort.Ints(perm)
	return perm
}

// buildTree greedily splits on the squared-error reduction of the residual.
func (b *Boost) buildTree(features [][]float64, residual []float64, rows, cols []int, depth int) *TreeNode {
	if len(rows) == 0 {
		return nil
	}

	mean := 0.0
	for _, i := range rows {
		mean += residual[i]
	}
	mean /= float64(len(rows))

	if depth >= b.MaxDepth || len(rows) < 2*b.MinChild {
		return &TreeNode{Leaf: true, Value: mean}
	}

	feature, threshold, ok := b.bestSplit(features, residual, rows, cols)
	if !ok {
		return &TreeNode{Leaf: true, Value: mean}
	}

	var left, right []int
	for _, i := range rows {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.MinChild || len(right) < b.MinChild {
		return &TreeNode{Leaf: true, Value: mean}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.buildTree(features, residual, left, cols, depth+1),
		Right:     b.buildTree(features, residual, right, cols, depth+1),
	}
}

func (b *Boost) bestSplit(features [][]float64, residual []float64, rows, cols []int) (int, float64, bool) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	var totalSum float64
	for _, i := range rows {
		totalSum += residual[i]
	}
	total := float64(len(rows))
	parentScore := totalSum * totalSum / total

	order := make([]int, len(rows))
	for _, j := range cols {
		copy(order, rows)
		sort.Slice(order, func(a, c int) bool {
			return features[order[a]][j] < features[order[c]][j]
		})

		leftSum := 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftSum += residual[i]

			// No valid threshold between equal values.
			if features[i][j] == features[order[k+1]][j] {
				continue
			}
			leftCount := float64(k + 1)
			rightCount := total - leftCount
			if int(leftCount) < b.MinChild || int(rightCount) < b.MinChild {
				continue
			}

			rightSum := totalSum - leftSum
			gain := leftSum*leftSum/leftCount + rightSum*rightSum/rightCount - parentScore
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = j
				bestThreshold = (features[i][j] + features[order[k+1]][j]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

var _ Regressor = (*Boost)(nil)
