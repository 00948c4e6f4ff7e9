package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrEmptyDataset  = errors.New("forest: empty dataset")
	ErrShapeMismatch = errors.New("forest: shape mismatch")
)

// Config controls forest training.
type Config struct {
	NTrees          int   // number of trees
	MaxFeatures     int   // features tried per split; 0 means floor(sqrt(p))
	MaxDepth        int   // 0 means unlimited
	MinSamplesSplit int   // minimum samples required to split a node
	Bootstrap       bool  // sample rows with replacement per tree
	Seed            int64 // RNG seed; equal seeds give equal forests
}

// DefaultConfig mirrors the usual random-forest defaults: 100 trees, sqrt features, bootstrap.
func DefaultConfig(seed int64) Config {
	return Config{NTrees: 100, MinSamplesSplit: 2, Bootstrap: true, Seed: seed}
}

// Forest is a bagged ensemble of CART classification trees.
type Forest struct {
	Trees       []Tree `json:"trees"`
	NumClasses  int    `json:"num_classes"`
	NumFeatures int    `json:"num_features"`
}

// Train fits a forest on x (rows × features) and integer labels y in [0, k).
func Train(x [][]float64, y []int, cfg Config) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, fmt.Errorf("%w: no features", ErrShapeMismatch)
	}
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), p)
		}
	}
	classes := 2
	for _, v := range y {
		if v < 0 {
			return nil, fmt.Errorf("forest: negative label %d", v)
		}
		if v+1 > classes {
			classes = v + 1
		}
	}
	if cfg.NTrees <= 0 {
		cfg.NTrees = 100
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(p)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > p {
		maxFeatures = p
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{Trees: make([]Tree, cfg.NTrees), NumClasses: classes, NumFeatures: p}
	n := len(x)
	for t := 0; t < cfg.NTrees; t++ {
		// Each tree draws from its own stream so the ensemble does not depend on tree build order.
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		idx := make([]int, n)
		if cfg.Bootstrap {
			for i := range idx {
				idx[i] = treeRng.Intn(n)
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}
		b := &builder{
			x: x, y: y, classes: classes,
			maxFeatures: maxFeatures, maxDepth: cfg.MaxDepth, minSplit: cfg.MinSamplesSplit,
			rng: treeRng,
		}
		b.grow(idx, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
	return f, nil
}

// PredictProba averages the leaf class distributions of all trees.
func (f *Forest) PredictProba(row []float64) []float64 {
	out := make([]float64, f.NumClasses)
	if len(f.Trees) == 0 {
		return out
	}
	for i := range f.Trees {
		leaf := f.Trees[i].leaf(row)
		for c, v := range leaf {
			out[c] += v
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

// Predict returns the most probable class; ties go to the lower class.
func (f *Forest) Predict(row []float64) int {
	return argmax(f.PredictProba(row))
}

// Accuracy is the fraction of rows whose prediction matches y.
func (f *Forest) Accuracy(x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	hit := 0
	for i := range x {
		if f.Predict(x[i]) == y[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(x))
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
