package training

import (
	"fmt"
	"sort"

	"CoveredCall/internal/domain/models"
	"CoveredCall/pkg/forest"
)

// Config holds the training knobs. Seed drives the split, every forest and the importance shuffles.
type Config struct {
	TestFraction float64
	Seed         int64
	Repeats      int
	Trees        int
}

// DefaultConfig is an 80/20 split, 100 trees, 10 importance repeats, seed 42.
func DefaultConfig() Config {
	return Config{TestFraction: 0.2, Seed: 42, Repeats: 10, Trees: 100}
}

// Report describes one training run.
type Report struct {
	Importances []models.FeatureImportance `json:"importances"`
	Pruning     []models.PruningResult     `json:"pruning"`
	Best        models.PruningResult       `json:"best"`
	TrainSize   int                        `json:"train_size"`
	TestSize    int                        `json:"test_size"`
}

// Trainer fits forests and prunes features by permutation importance.
type Trainer struct {
	cfg Config
}

func NewTrainer(cfg Config) *Trainer {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.Repeats <= 0 {
		cfg.Repeats = 10
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	return &Trainer{cfg: cfg}
}

func (t *Trainer) forestConfig() forest.Config {
	fc := forest.DefaultConfig(t.cfg.Seed)
	fc.NTrees = t.cfg.Trees
	return fc
}

// TrainAndPrune ranks features by permutation importance on the held-out split, then drops the
// least important feature one at a time, retraining at each size. The winning subset is the first
// with maximum held-out accuracy, so ties favour more features. The returned model is retrained
// on the training split with the winning subset only.
func (t *Trainer) TrainAndPrune(dataset []models.FeatureRow, features []string) (*Report, *models.TrainedModel, error) {
	if err := models.ValidateFeatures(features); err != nil {
		return nil, nil, err
	}
	if len(dataset) == 0 {
		return nil, nil, fmt.Errorf("empty dataset: %w", models.ErrDataUnavailable)
	}
	x, y, err := models.Matrix(dataset, features)
	if err != nil {
		return nil, nil, err
	}
	trainIdx, testIdx, err := forest.TrainTestSplit(len(x), t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("split %d rows: %v: %w", len(x), err, models.ErrDataUnavailable)
	}
	trainX, trainY := forest.Subset(x, y, trainIdx)
	testX, testY := forest.Subset(x, y, testIdx)

	full, err := forest.Train(trainX, trainY, t.forestConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("train full model: %w", err)
	}
	imp := forest.PermutationImportance(full, testX, testY, t.cfg.Repeats, t.cfg.Seed)

	report := &Report{TrainSize: len(trainIdx), TestSize: len(testIdx)}
	report.Importances = make([]models.FeatureImportance, len(features))
	for i, name := range features {
		report.Importances[i] = models.FeatureImportance{Feature: name, ImportanceMean: imp[i].Mean, ImportanceStd: imp[i].Std}
	}
	sort.SliceStable(report.Importances, func(i, j int) bool {
		return report.Importances[i].ImportanceMean > report.Importances[j].ImportanceMean
	})

	column := make(map[string]int, len(features))
	for i, name := range features {
		column[name] = i
	}
	ranked := make([]string, len(report.Importances))
	for i, fi := range report.Importances {
		ranked[i] = fi.Feature
	}

	for current := ranked; len(current) > 0; current = current[:len(current)-1] {
		cols := make([]int, len(current))
		for i, name := range current {
			cols[i] = column[name]
		}
		m, err := forest.Train(forest.Columns(trainX, cols), trainY, t.forestConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("train %d features: %w", len(current), err)
		}
		report.Pruning = append(report.Pruning, models.PruningResult{
			FeatureCount: len(current),
			Features:     append([]string(nil), current...),
			Accuracy:     m.Accuracy(forest.Columns(testX, cols), testY),
		})
	}

	report.Best = BestSubset(report.Pruning)
	cols := make([]int, len(report.Best.Features))
	for i, name := range report.Best.Features {
		cols[i] = column[name]
	}
	final, err := forest.Train(forest.Columns(trainX, cols), trainY, t.forestConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("train final model: %w", err)
	}
	return report, &models.TrainedModel{
		Classifier:    final,
		Features:      append([]string(nil), report.Best.Features...),
		TrainAccuracy: report.Best.Accuracy,
	}, nil
}

// BestSubset returns the first result with the highest accuracy.
func BestSubset(results []models.PruningResult) models.PruningResult {
	var best models.PruningResult
	for i, r := range results {
		if i == 0 || r.Accuracy > best.Accuracy {
			best = r
		}
	}
	return best
}

// Predict returns the class probabilities of the model for one feature row.
func Predict(m *models.TrainedModel, row models.FeatureRow) ([2]float64, int, error) {
	var out [2]float64
	if m == nil || m.Classifier == nil {
		return out, 0, fmt.Errorf("no classifier: %w", models.ErrDataUnavailable)
	}
	v, err := row.Vector(m.Features)
	if err != nil {
		return out, 0, err
	}
	p := m.Classifier.PredictProba(v)
	if len(p) < 2 {
		return out, 0, fmt.Errorf("classifier has %d classes: %w", len(p), models.ErrInvalidInput)
	}
	out[0], out[1] = p[0], p[1]
	return out, m.Classifier.Predict(v), nil
}
