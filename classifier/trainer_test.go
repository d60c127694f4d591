package classifier

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// separable returns a three-class corpus where each class owns a cue word and
// every instance also carries a shared noise feature.
func separable() []Example {
	var out []Example
	cues := map[string][]string{
		"NOUN": {"dog", "cat", "tree"},
		"VERB": {"run", "eat", "see"},
		"ADJ":  {"red", "big", "old"},
	}
	for i := range 4 {
		for _, label := range []string{"NOUN", "VERB", "ADJ"} {
			for _, w := range cues[label] {
				v := vec("w", w, "bias", "on", "pos", fmt.Sprint(i%2))
				out = append(out, Example{Label: label, Vector: v})
			}
		}
	}
	return out
}

func TestAlgorithmText(t *testing.T) {
	for _, a := range []Algorithm{L2L1SVM, L2L2SVM, L2LR} {
		text, err := a.MarshalText()
		require.NoError(t, err)
		var back Algorithm
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, a, back)
	}

	_, err := ParseAlgorithm("adagrad")
	var ae *AlgorithmError
	assert.ErrorAs(t, err, &ae)

	var cfg TrainerConfig
	require.NoError(t, yaml.Unmarshal([]byte("algorithm: l2l2svm\ncost: 0.5\n"), &cfg))
	assert.Equal(t, L2L2SVM, cfg.Algorithm)
	assert.Equal(t, 0.5, cfg.Cost)
}

func TestTrainSeparable(t *testing.T) {
	for _, alg := range []Algorithm{L2L1SVM, L2L2SVM, L2LR} {
		t.Run(alg.String(), func(t *testing.T) {
			cfg := DefaultTrainerConfig()
			cfg.Algorithm = alg
			cfg.Cost = 1
			cfg.Epsilon = 0.01

			examples := separable()
			model, err := Train(context.Background(), examples, 0, 0, cfg)
			require.NoError(t, err)
			assert.Equal(t, alg, model.Meta.Algorithm)
			assert.NotEqual(t, [16]byte{}, [16]byte(model.Meta.ID))

			for _, ex := range examples {
				best, err := model.PredictBest(ex.Vector)
				require.NoError(t, err)
				assert.Equal(t, ex.Label, best.Label, "vector %s", ex.Vector)
			}
		})
	}
}

func TestTrainWithBias(t *testing.T) {
	cfg := DefaultTrainerConfig()
	cfg.Algorithm = L2L1SVM
	cfg.Cost = 1
	cfg.Bias = 1

	// B is the majority; an empty vector should fall back to it.
	examples := []Example{
		{Label: "A", Vector: vec("w", "a")},
		{Label: "B", Vector: vec("w", "b")},
		{Label: "B", Vector: vec("w", "c")},
		{Label: "B", Vector: vec("w", "d")},
	}
	model, err := Train(context.Background(), examples, 0, 0, cfg)
	require.NoError(t, err)
	require.Len(t, model.Bias, 2)
	assert.Greater(t, model.Bias[1], model.Bias[0])

	best, err := model.PredictBest(vec())
	require.NoError(t, err)
	assert.Equal(t, "B", best.Label)
}

func TestTrainParallelMatchesSequential(t *testing.T) {
	examples := separable()
	vocab := BuildVocabulary(examples, 0, 0)
	instances := vocab.Instances(examples)

	for _, alg := range []Algorithm{L2L1SVM, L2LR} {
		cfg := DefaultTrainerConfig()
		cfg.Algorithm = alg

		cfg.Workers = 1
		seq, err := NewTrainer(cfg).Train(context.Background(), vocab, instances)
		require.NoError(t, err)

		cfg.Workers = 8
		par, err := NewTrainer(cfg).Train(context.Background(), vocab, instances)
		require.NoError(t, err)

		assert.Equal(t, seq.Weights, par.Weights, alg.String())
		assert.Equal(t, seq.Bias, par.Bias, alg.String())
	}
}

func TestTrainDeterministic(t *testing.T) {
	examples := separable()
	cfg := DefaultTrainerConfig()
	cfg.Algorithm = L2L1SVM
	cfg.Cost = 1

	a, err := Train(context.Background(), examples, 0, 0, cfg)
	require.NoError(t, err)
	b, err := Train(context.Background(), examples, 0, 0, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Weights, b.Weights)
}

func TestTrainEmptyVectors(t *testing.T) {
	clean := separable()
	vocab := BuildVocabulary(clean, 0, 0)
	withEmpty := append(vocab.Instances(clean), vocab.Instances([]Example{
		{Label: "NOUN"},
		{Label: "VERB", Vector: vec("w", "unseen")},
		{Label: "ADJ"},
	})...)

	for _, alg := range []Algorithm{L2L1SVM, L2L2SVM, L2LR} {
		t.Run(alg.String(), func(t *testing.T) {
			cfg := DefaultTrainerConfig()
			cfg.Algorithm = alg
			cfg.Cost = 1
			cfg.Epsilon = 0.001
			obs := &recordingObserver{}
			cfg.Observer = obs

			want, err := NewTrainer(cfg).Train(context.Background(), vocab, vocab.Instances(clean))
			require.NoError(t, err)
			obs.solves = nil
			got, err := NewTrainer(cfg).Train(context.Background(), vocab, withEmpty)
			require.NoError(t, err)

			require.Len(t, obs.solves, 3)
			for _, s := range obs.solves {
				assert.Less(t, s.Iterations, cfg.MaxIterations, "label %s did not converge", s.Label)
			}
			for l := range want.Weights {
				assert.InDeltaSlice(t, want.Weights[l], got.Weights[l], 0.05, "label %d", l)
			}
		})
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	solves []SolveStats
	runs   int
	err    error
}

func (r *recordingObserver) ObserveSolve(s SolveStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solves = append(r.solves, s)
}

func (r *recordingObserver) ObserveTraining(_ TrainStats, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.err = err
}

func TestTrainObserver(t *testing.T) {
	obs := &recordingObserver{}
	cfg := DefaultTrainerConfig()
	cfg.Observer = obs

	_, err := Train(context.Background(), separable(), 0, 0, cfg)
	require.NoError(t, err)
	assert.Len(t, obs.solves, 3)
	assert.Equal(t, 1, obs.runs)
	assert.NoError(t, obs.err)
	for _, s := range obs.solves {
		assert.Positive(t, s.Iterations)
	}
}

func TestTrainErrors(t *testing.T) {
	examples := separable()
	vocab := BuildVocabulary(examples, 0, 0)
	instances := vocab.Instances(examples)

	cfg := DefaultTrainerConfig()
	cfg.Cost = 0
	_, err := NewTrainer(cfg).Train(context.Background(), vocab, instances)
	assert.Error(t, err)

	cfg = DefaultTrainerConfig()
	_, err = NewTrainer(cfg).Train(context.Background(), vocab, nil)
	assert.ErrorIs(t, err, ErrNoInstances)

	_, err = NewTrainer(cfg).Train(context.Background(), NewCounter().Build(0, 0), instances)
	assert.ErrorIs(t, err, ErrNoLabels)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	obs := &recordingObserver{}
	cfg.Observer = obs
	_, err = NewTrainer(cfg).Train(ctx, vocab, instances)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, obs.err, context.Canceled)
}
