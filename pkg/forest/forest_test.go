package forest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds rows where column 0 decides the label and column 1 is noise.
func separable(n int) ([][]float64, []int) {
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i), float64((i * 7) % 13)}
		if i >= n/2 {
			y[i] = 1
		}
	}
	return x, y
}

func TestTrainLearnsSeparableData(t *testing.T) {
	x, y := separable(100)
	f, err := Train(x, y, DefaultConfig(42))
	require.NoError(t, err)

	assert.Len(t, f.Trees, 100)
	assert.Equal(t, 2, f.NumClasses)
	assert.GreaterOrEqual(t, f.Accuracy(x, y), 0.95)
	assert.Equal(t, 0, f.Predict([]float64{2, 5}))
	assert.Equal(t, 1, f.Predict([]float64{97, 5}))
}

func TestPredictProbaSumsToOne(t *testing.T) {
	x, y := separable(60)
	f, err := Train(x, y, DefaultConfig(1))
	require.NoError(t, err)

	p := f.PredictProba([]float64{30, 3})
	require.Len(t, p, 2)
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)
}

func TestTrainIsDeterministicForSeed(t *testing.T) {
	x, y := separable(80)
	a, err := Train(x, y, DefaultConfig(42))
	require.NoError(t, err)
	b, err := Train(x, y, DefaultConfig(42))
	require.NoError(t, err)

	for i := range x {
		assert.Equal(t, a.PredictProba(x[i]), b.PredictProba(x[i]))
	}
}

func TestForestSurvivesJSON(t *testing.T) {
	x, y := separable(40)
	f, err := Train(x, y, Config{NTrees: 5, Bootstrap: true, Seed: 7})
	require.NoError(t, err)

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	var back Forest
	require.NoError(t, json.Unmarshal(raw, &back))

	for i := range x {
		assert.Equal(t, f.PredictProba(x[i]), back.PredictProba(x[i]))
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, err := Train(nil, nil, DefaultConfig(1))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Train([][]float64{{1}, {2}}, []int{0}, DefaultConfig(1))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Train([][]float64{{1, 2}, {2}}, []int{0, 1}, DefaultConfig(1))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSingleClassPredictsThatClass(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []int{1, 1, 1}
	f, err := Train(x, y, DefaultConfig(3))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Predict([]float64{10}))
}

func TestTrainTestSplitSizes(t *testing.T) {
	train, test, err := TrainTestSplit(101, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 21)
	assert.Len(t, train, 80)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d duplicated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 101)

	again, _, err := TrainTestSplit(101, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, again)
}

func TestTrainTestSplitTooSmall(t *testing.T) {
	_, _, err := TrainTestSplit(1, 0.2, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(0, 0.2, 42)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestPermutationImportanceRanksSignalAboveNoise(t *testing.T) {
	x, y := separable(100)
	f, err := Train(x, y, DefaultConfig(42))
	require.NoError(t, err)

	imp := PermutationImportance(f, x, y, 10, 42)
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0].Mean, imp[1].Mean)
	assert.Len(t, imp[0].Raw, 10)
	assert.GreaterOrEqual(t, imp[0].Std, 0.0)
}

func TestColumnsAndSubset(t *testing.T) {
	x := [][]float64{{1, 2, 3}, {4, 5, 6}}
	y := []int{0, 1}

	assert.Equal(t, [][]float64{{3, 1}, {6, 4}}, Columns(x, []int{2, 0}))

	xs, ys := Subset(x, y, []int{1})
	assert.Equal(t, [][]float64{{4, 5, 6}}, xs)
	assert.Equal(t, []int{1}, ys)
}
