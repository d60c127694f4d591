package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TrainerConfig holds training hyperparameters.
type TrainerConfig struct {
	Algorithm     Algorithm `yaml:"algorithm" json:"algorithm"`
	Cost          float64   `yaml:"cost" json:"cost"`       // C
	Epsilon       float64   `yaml:"epsilon" json:"epsilon"` // stopping tolerance
	Bias          float64   `yaml:"bias" json:"bias"`       // bias feature value, disabled when <= 0
	MaxIterations int       `yaml:"max_iterations" json:"max_iterations"`
	Seed          uint64    `yaml:"seed" json:"seed"`
	Workers       int       `yaml:"workers" json:"workers"`

	Observer Observer `yaml:"-" json:"-"`
}

// DefaultTrainerConfig returns the default training config.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Algorithm:     L2LR,
		Cost:          0.1,
		Epsilon:       0.1,
		MaxIterations: 1000,
		Seed:          5,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

func (c TrainerConfig) validate() error {
	switch {
	case c.Algorithm < L2L1SVM || c.Algorithm > L2LR:
		return &AlgorithmError{Name: c.Algorithm.String()}
	case c.Cost <= 0:
		return fmt.Errorf("classifier: cost must be positive, got %v", c.Cost)
	case c.Epsilon <= 0:
		return fmt.Errorf("classifier: epsilon must be positive, got %v", c.Epsilon)
	case c.MaxIterations <= 0:
		return fmt.Errorf("classifier: max iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// Trainer fits one-vs-rest linear models. It holds no state between runs.
type Trainer struct {
	cfg TrainerConfig
}

// NewTrainer returns a trainer for cfg.
func NewTrainer(cfg TrainerConfig) *Trainer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	return &Trainer{cfg: cfg}
}

// Config returns the effective configuration.
func (t *Trainer) Config() TrainerConfig {
	return t.cfg
}

// Train solves one binary problem per label of vocab and assembles the
// model. Solves run on up to Workers goroutines and are deterministic for a
// fixed seed regardless of scheduling.
func (t *Trainer) Train(ctx context.Context, vocab *Vocabulary, instances []Instance) (*Model, error) {
	start := time.Now()
	stats := TrainStats{Labels: vocab.NumLabels(), Features: vocab.NumFeatures(), Instances: len(instances)}

	model, err := t.train(ctx, vocab, instances)
	stats.Duration = time.Since(start)
	t.cfg.Observer.ObserveTraining(stats, err)
	if err != nil {
		return nil, err
	}

	slog.Debug("Training complete", "labels", stats.Labels, "features", stats.Features,
		"instances", stats.Instances, "algorithm", t.cfg.Algorithm, "duration", stats.Duration)
	return model, nil
}

func (t *Trainer) train(ctx context.Context, vocab *Vocabulary, instances []Instance) (*Model, error) {
	cfg := t.cfg
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if vocab.NumLabels() == 0 {
		return nil, ErrNoLabels
	}
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	p := problem{instances: instances, dim: vocab.NumFeatures(), bias: cfg.Bias}
	numLabels := vocab.NumLabels()
	weights := make([][]float64, numLabels)
	bias := make([]float64, numLabels)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for label := range numLabels {
		g.Go(func() error {
			begin := time.Now()
			sol, err := t.solve(gctx, p, label)
			if err != nil {
				return err
			}
			weights[label] = sol.weights
			if cfg.Bias > 0 {
				bias[label] = sol.bias * cfg.Bias
			}

			s := SolveStats{
				Label:          vocab.Label(label),
				Algorithm:      cfg.Algorithm,
				Iterations:     sol.iterations,
				SupportVectors: sol.supportVectors,
				Objective:      sol.objective,
				Duration:       time.Since(begin),
			}
			cfg.Observer.ObserveSolve(s)
			if cfg.Algorithm == L2LR {
				slog.Debug("Label solved", "label", s.Label, "iterations", s.Iterations, "objective", s.Objective)
			} else {
				slog.Debug("Label solved", "label", s.Label, "iterations", s.Iterations, "support_vectors", s.SupportVectors)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classifier: train: %w", err)
	}

	return &Model{
		Vocabulary: vocab,
		Weights:    weights,
		Bias:       bias,
		Meta: Meta{
			ID:        uuid.New(),
			Algorithm: cfg.Algorithm,
			Cost:      cfg.Cost,
			Epsilon:   cfg.Epsilon,
			BiasTerm:  cfg.Bias,
			CreatedAt: time.Now().UTC(),
		},
	}, nil
}

// solve runs the binary problem for label. Each label draws from its own
// generator so that results do not depend on which worker runs it.
func (t *Trainer) solve(ctx context.Context, p problem, label int) (solution, error) {
	rng := rand.New(rand.NewPCG(t.cfg.Seed, uint64(label)))
	switch t.cfg.Algorithm {
	case L2L1SVM:
		return solveSVM(ctx, p, label, false, t.cfg, rng)
	case L2L2SVM:
		return solveSVM(ctx, p, label, true, t.cfg, rng)
	default:
		return solveLR(ctx, p, label, t.cfg, rng)
	}
}

// Train is a convenience wrapper building the vocabulary, converting the
// examples and training with cfg.
func Train(ctx context.Context, examples []Example, labelCutoff, featureCutoff int, cfg TrainerConfig) (*Model, error) {
	vocab := BuildVocabulary(examples, labelCutoff, featureCutoff)
	return NewTrainer(cfg).Train(ctx, vocab, vocab.Instances(examples))
}
