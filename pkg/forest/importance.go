package forest

import (
	"math"
	"math/rand"
)

// Scorer evaluates a model on a feature matrix.
type Scorer interface {
	Accuracy(x [][]float64, y []int) float64
}

// Importance is the accuracy drop caused by shuffling one column.
type Importance struct {
	Mean float64
	Std  float64
	Raw  []float64
}

// PermutationImportance shuffles each column repeats times and records baseline minus permuted accuracy.
// Std is the population standard deviation over repeats.
func PermutationImportance(m Scorer, x [][]float64, y []int, repeats int, seed int64) []Importance {
	if len(x) == 0 {
		return nil
	}
	if repeats <= 0 {
		repeats = 1
	}
	p := len(x[0])
	baseline := m.Accuracy(x, y)
	rng := rand.New(rand.NewSource(seed))

	work := make([][]float64, len(x))
	for i := range x {
		work[i] = append([]float64(nil), x[i]...)
	}

	out := make([]Importance, p)
	for f := 0; f < p; f++ {
		raw := make([]float64, repeats)
		for r := 0; r < repeats; r++ {
			perm := rng.Perm(len(x))
			for i := range work {
				work[i][f] = x[perm[i]][f]
			}
			raw[r] = baseline - m.Accuracy(work, y)
		}
		for i := range work {
			work[i][f] = x[i][f]
		}
		mean, std := meanStd(raw)
		out[f] = Importance{Mean: mean, Std: std, Raw: raw}
	}
	return out
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	mean := s / float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}
