package forest

import (
	"math/rand"
	"sort"
)

// Node is a tree node. Leaves have Left == -1 and carry the class distribution in Value.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree stores nodes in a flat slice; the root is Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) leaf(row []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type builder struct {
	x           [][]float64
	y           []int
	classes     int
	maxFeatures int
	maxDepth    int
	minSplit    int
	rng         *rand.Rand
	nodes       []Node
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

func (b *builder) grow(idx []int, depth int) int {
	counts := b.count(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1})

	if isPure(counts) || len(idx) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[id].Value = distribution(counts, len(idx))
		return id
	}
	best, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[id].Value = distribution(counts, len(idx))
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit samples features in random order; constant features do not count towards maxFeatures.
func (b *builder) bestSplit(idx []int) (split, bool) {
	p := len(b.x[0])
	order := b.rng.Perm(p)
	best := split{impurity: 2}
	found := false
	tried := 0
	sorted := make([]int, len(idx))
	for _, f := range order {
		if tried >= b.maxFeatures && found {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		tried++
		if s, ok := b.scanFeature(sorted, f); ok && s.impurity < best.impurity {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *builder) scanFeature(sorted []int, f int) (split, bool) {
	n := len(sorted)
	leftCounts := make([]int, b.classes)
	rightCounts := b.count(sorted)
	best := split{feature: f, impurity: 2}
	found := false
	for k := 0; k < n-1; k++ {
		c := b.y[sorted[k]]
		leftCounts[c]++
		rightCounts[c]--
		lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
		if lo >= hi {
			continue
		}
		nl, nr := k+1, n-k-1
		imp := (float64(nl)*gini(leftCounts, nl) + float64(nr)*gini(rightCounts, nr)) / float64(n)
		if imp < best.impurity {
			t := lo + (hi-lo)/2
			if t >= hi {
				t = lo
			}
			best.threshold = t
			best.impurity = imp
			found = true
		}
	}
	return best, found
}

func (b *builder) count(idx []int) []int {
	c := make([]int, b.classes)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	s := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		s += p * p
	}
	return 1 - s
}

func isPure(counts []int) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
