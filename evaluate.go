package seqlab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/happyhackingspace/seqlab/classifier"
)

// EvalConfig holds configuration for cross-validation.
type EvalConfig struct {
	Folds int
	// Groups assigns each example to a group; examples of one group never
	// straddle the train and test side of a fold. Nil puts every example
	// in its own group.
	Groups        []string
	LabelCutoff   int
	FeatureCutoff int
	Trainer       classifier.TrainerConfig
}

// DefaultEvalConfig returns a 10-fold configuration with the default trainer.
func DefaultEvalConfig() *EvalConfig {
	return &EvalConfig{Folds: 10, Trainer: classifier.DefaultTrainerConfig()}
}

// Tally counts correct test predictions.
type Tally struct {
	Correct int
	Total   int
}

// Accuracy returns Correct/Total, or 0 for an empty tally.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

// EvalResult holds cross-validation results.
type EvalResult struct {
	Accuracy float64
	Correct  int
	Total    int
	Folds    []Tally
	Labels   map[string]Tally

	// Confusion counts test examples by gold label, then predicted label.
	Confusion map[string]map[string]int
}

// Evaluate runs grouped k-fold cross-validation over examples. Each fold
// builds its own vocabulary from the training side.
func Evaluate(ctx context.Context, examples []classifier.Example, config *EvalConfig) (*EvalResult, error) {
	if config == nil {
		config = DefaultEvalConfig()
	}
	nFolds := config.Folds
	if nFolds <= 1 {
		return nil, fmt.Errorf("seqlab: need at least 2 folds, got %d", nFolds)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("seqlab: %w", classifier.ErrNoInstances)
	}

	groups := config.Groups
	if groups == nil {
		groups = make([]string, len(examples))
		for i := range groups {
			groups[i] = fmt.Sprint(i)
		}
	}
	if len(groups) != len(examples) {
		return nil, fmt.Errorf("seqlab: %d groups for %d examples", len(groups), len(examples))
	}
	if distinct := countDistinct(groups); distinct < 2 {
		return nil, fmt.Errorf("seqlab: need at least 2 distinct groups to cross-validate, got %d", distinct)
	}

	result := &EvalResult{
		Labels:    make(map[string]Tally),
		Confusion: make(map[string]map[string]int),
	}
	for f, testIdx := range groupKFold(groups, nFolds) {
		testSet := makeTestSet(len(examples), testIdx)
		var train []classifier.Example
		for i, ex := range examples {
			if !testSet[i] {
				train = append(train, ex)
			}
		}

		model, err := classifier.Train(ctx, train, config.LabelCutoff, config.FeatureCutoff, config.Trainer)
		if err != nil {
			return nil, fmt.Errorf("seqlab: fold %d: %w", f, err)
		}

		var fold Tally
		for _, idx := range testIdx {
			ex := examples[idx]
			lr := result.Labels[ex.Label]
			best, err := model.PredictBest(ex.Vector)
			if err == nil && best.Label == ex.Label {
				fold.Correct++
				lr.Correct++
			}
			row := result.Confusion[ex.Label]
			if row == nil {
				row = make(map[string]int)
				result.Confusion[ex.Label] = row
			}
			row[best.Label]++
			fold.Total++
			lr.Total++
			result.Labels[ex.Label] = lr
		}
		slog.Debug("Fold evaluated", "fold", f, "correct", fold.Correct, "total", fold.Total)

		result.Folds = append(result.Folds, fold)
		result.Correct += fold.Correct
		result.Total += fold.Total
	}
	if result.Total > 0 {
		result.Accuracy = float64(result.Correct) / float64(result.Total)
	}
	return result, nil
}

// groupKFold splits example indices into at most nFolds folds, assigning
// whole groups round-robin in first-seen order.
func groupKFold(groups []string, nFolds int) [][]int {
	groupToFold := make(map[string]int)
	var order []string
	for _, g := range groups {
		if _, ok := groupToFold[g]; !ok {
			groupToFold[g] = len(order)
			order = append(order, g)
		}
	}

	nFolds = min(nFolds, len(order))
	for g, i := range groupToFold {
		groupToFold[g] = i % nFolds
	}

	folds := make([][]int, nFolds)
	for i, g := range groups {
		fold := groupToFold[g]
		folds[fold] = append(folds[fold], i)
	}
	return folds
}

func countDistinct(groups []string) int {
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		seen[g] = struct{}{}
	}
	return len(seen)
}

func makeTestSet(n int, testIdx []int) []bool {
	set := make([]bool, n)
	for _, i := range testIdx {
		set[i] = true
	}
	return set
}
