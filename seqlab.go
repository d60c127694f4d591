// Package seqlab trains and applies sparse linear sequence labelers.
//
// A Component wraps a feature extractor and runs in one of three modes. In
// collect mode it tallies label and feature counts, in train mode it turns
// observations into instances for the classifier, and in predict mode it
// ranks labels with a trained model:
//
//	col := seqlab.NewCollector(ext)
//	for _, obs := range corpus {
//	    _ = col.Observe(obs.Context, obs.Label)
//	}
//	vocab, _ := col.Vocabulary(0, 1)
//
//	tr := seqlab.NewTrainer(ext, vocab)
//	for _, obs := range corpus {
//	    _ = tr.Observe(obs.Context, obs.Label)
//	}
//	model, _ := tr.Train(ctx, classifier.DefaultTrainerConfig())
//
//	pred := seqlab.NewPredictor(ext, model)
//	best, _ := pred.PredictBest(context)
package seqlab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/feature"
)

// Mode is the lifecycle stage of a Component.
type Mode int

const (
	ModeCollect Mode = iota
	ModeTrain
	ModePredict
)

func (m Mode) String() string {
	switch m {
	case ModeCollect:
		return "collect"
	case ModeTrain:
		return "train"
	case ModePredict:
		return "predict"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ModeError reports an operation called on a component in the wrong mode.
type ModeError struct {
	Op   string
	Mode Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("seqlab: %s is not available in %s mode", e.Op, e.Mode)
}

// Component extracts features from caller contexts and feeds them to the
// stage selected by its mode. Observe is safe for concurrent use; Predict
// may be called concurrently once the component is in predict mode.
type Component struct {
	mode Mode
	ext  *feature.Extractor

	mu        sync.Mutex
	counter   *classifier.Counter
	vocab     *classifier.Vocabulary
	instances []classifier.Instance
	skipped   int

	model     *classifier.Model
	predictor classifier.Predictor
}

// NewCollector returns a component counting labels and features.
func NewCollector(ext *feature.Extractor) *Component {
	return &Component{mode: ModeCollect, ext: ext, counter: classifier.NewCounter()}
}

// NewTrainer returns a component collecting training instances over vocab.
func NewTrainer(ext *feature.Extractor, vocab *classifier.Vocabulary) *Component {
	return &Component{mode: ModeTrain, ext: ext, vocab: vocab}
}

// NewPredictor returns a component ranking labels with model.
func NewPredictor(ext *feature.Extractor, model *classifier.Model) *Component {
	return &Component{mode: ModePredict, ext: ext, model: model, vocab: model.Vocabulary, predictor: model}
}

// NewCachedPredictor is like NewPredictor with rankings memoized in an LRU
// cache of the given size.
func NewCachedPredictor(ext *feature.Extractor, model *classifier.Model, size int) (*Component, error) {
	cached, err := classifier.NewCachedModel(model, size)
	if err != nil {
		return nil, err
	}
	c := NewPredictor(ext, model)
	c.predictor = cached
	return c, nil
}

// Mode returns the component's mode.
func (c *Component) Mode() Mode {
	return c.mode
}

// Extractor returns the component's feature extractor.
func (c *Component) Extractor() *feature.Extractor {
	return c.ext
}

// Observe extracts the features of acc and records them with label. In
// train mode observations whose label is not in the vocabulary are skipped.
func (c *Component) Observe(acc feature.Accessor, label string) error {
	return c.ObserveVector(c.ext.Extract(acc), label)
}

// ObserveVector is like Observe for an already extracted vector.
func (c *Component) ObserveVector(vec feature.Vector, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeCollect:
		c.counter.Add(label, vec)
	case ModeTrain:
		inst, ok := c.vocab.Instance(label, vec)
		if !ok {
			c.skipped++
			return nil
		}
		c.instances = append(c.instances, inst)
	default:
		return &ModeError{Op: "observe", Mode: c.mode}
	}
	return nil
}

// Vocabulary builds the vocabulary from the collected counts.
func (c *Component) Vocabulary(labelCutoff, featureCutoff int) (*classifier.Vocabulary, error) {
	if c.mode != ModeCollect {
		return nil, &ModeError{Op: "vocabulary", Mode: c.mode}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	vocab := c.counter.Build(labelCutoff, featureCutoff)
	slog.Debug("Vocabulary built", "labels", vocab.NumLabels(), "features", vocab.NumFeatures(),
		"label_cutoff", labelCutoff, "feature_cutoff", featureCutoff)
	return vocab, nil
}

// Instances returns the number of collected training instances and the
// number of observations skipped for an unknown label.
func (c *Component) Instances() (kept, skipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances), c.skipped
}

// Train fits a model on the collected instances.
func (c *Component) Train(ctx context.Context, cfg classifier.TrainerConfig) (*classifier.Model, error) {
	if c.mode != ModeTrain {
		return nil, &ModeError{Op: "train", Mode: c.mode}
	}
	c.mu.Lock()
	instances, skipped := c.instances, c.skipped
	c.mu.Unlock()

	if skipped > 0 {
		slog.Debug("Skipped observations with unknown labels", "count", skipped)
	}
	model, err := classifier.NewTrainer(cfg).Train(ctx, c.vocab, instances)
	if err != nil {
		return nil, fmt.Errorf("seqlab: %w", err)
	}
	return model, nil
}

// Predict ranks every label for acc by descending score.
func (c *Component) Predict(acc feature.Accessor) ([]classifier.Prediction, error) {
	if c.mode != ModePredict {
		return nil, &ModeError{Op: "predict", Mode: c.mode}
	}
	if c.model.NumLabels() == 0 {
		return nil, classifier.ErrNoLabels
	}
	return c.predictor.Predict(c.ext.Extract(acc)), nil
}

// PredictBest returns the top-ranked label for acc.
func (c *Component) PredictBest(acc feature.Accessor) (classifier.Prediction, error) {
	preds, err := c.Predict(acc)
	if err != nil {
		return classifier.Prediction{}, err
	}
	return preds[0], nil
}

// Model returns the model of a predict-mode component, nil otherwise.
func (c *Component) Model() *classifier.Model {
	return c.model
}
