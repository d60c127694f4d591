// Package tagger is a part-of-speech tagger built on seqlab.
//
// Features come from YAML templates over the fields listed in Schema; a
// one-vs-rest linear model scores tags and a beam search picks the best tag
// sequence for each sentence.
package tagger

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/happyhackingspace/seqlab"
	"github.com/happyhackingspace/seqlab/beam"
	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/feature"
)

//go:embed templates.yaml
var defaultTemplates []byte

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() *feature.TemplateSet {
	ts, err := feature.LoadTemplates(bytes.NewReader(defaultTemplates), feature.LoadOptions{Schema: Schema})
	if err != nil {
		panic(fmt.Sprintf("tagger: built-in templates: %v", err))
	}
	return ts
}

// Config holds tagger settings.
type Config struct {
	LabelCutoff   int                      `yaml:"label_cutoff" json:"label_cutoff"`
	FeatureCutoff int                      `yaml:"feature_cutoff" json:"feature_cutoff"`
	BeamWidth     int                      `yaml:"beam_width" json:"beam_width"`
	Pruning       beam.PruneMode           `yaml:"pruning" json:"pruning"`
	CacheSize     int                      `yaml:"cache_size" json:"cache_size"` // 0 disables the ranking cache
	Trainer       classifier.TrainerConfig `yaml:"trainer" json:"-"`

	BeamObserver beam.Observer `yaml:"-" json:"-"`
}

// DefaultConfig returns the default tagger config.
func DefaultConfig() Config {
	return Config{
		FeatureCutoff: 1,
		BeamWidth:     4,
		Trainer:       classifier.DefaultTrainerConfig(),
	}
}

// Tagger assigns tags to sentences. It is safe for concurrent use.
type Tagger struct {
	Templates *feature.TemplateSet
	Model     *classifier.Model

	cfg       Config
	ext       *feature.Extractor
	predictor classifier.Predictor
}

// New assembles a tagger from a template set and a trained model.
func New(templates *feature.TemplateSet, model *classifier.Model, cfg Config) (*Tagger, error) {
	if cfg.BeamWidth <= 0 {
		cfg.BeamWidth = 1
	}
	t := &Tagger{
		Templates: templates,
		Model:     model,
		cfg:       cfg,
		ext:       feature.NewExtractor(templates.Templates),
		predictor: model,
	}
	if cfg.CacheSize > 0 {
		cached, err := classifier.NewCachedModel(model, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("tagger: %w", err)
		}
		t.predictor = cached
	}
	return t, nil
}

// Config returns the tagger's configuration.
func (t *Tagger) Config() Config {
	return t.cfg
}

// Train collects a vocabulary over sentences, then trains a model with the
// gold tags as left context.
func Train(ctx context.Context, sentences []Sentence, templates *feature.TemplateSet, cfg Config) (*Tagger, error) {
	if templates == nil {
		templates = DefaultTemplates()
	}
	ext := feature.NewExtractor(templates.Templates)
	prepared := make([][]node, len(sentences))
	for i, s := range sentences {
		prepared[i] = prepare(s)
	}

	col := seqlab.NewCollector(ext)
	if err := observe(col, sentences, prepared); err != nil {
		return nil, err
	}
	vocab, err := col.Vocabulary(cfg.LabelCutoff, cfg.FeatureCutoff)
	if err != nil {
		return nil, err
	}

	tr := seqlab.NewTrainer(ext, vocab)
	if err := observe(tr, sentences, prepared); err != nil {
		return nil, err
	}
	kept, skipped := tr.Instances()
	slog.Info("Training tagger", "sentences", len(sentences), "instances", kept, "skipped", skipped,
		"labels", vocab.NumLabels(), "features", vocab.NumFeatures())

	model, err := tr.Train(ctx, cfg.Trainer)
	if err != nil {
		return nil, fmt.Errorf("tagger: %w", err)
	}
	return New(templates, model, cfg)
}

func observe(c *seqlab.Component, sentences []Sentence, prepared [][]node) error {
	for k, s := range sentences {
		tags := s.Tags()
		for i, tok := range s {
			if err := c.Observe(state{nodes: prepared[k], i: i, tags: tags}, tok.Tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// Tag returns the best tag sequence for s and its cumulative score.
func (t *Tagger) Tag(ctx context.Context, s Sentence) ([]string, float64, error) {
	if t.Model.NumLabels() == 0 {
		return nil, 0, classifier.ErrNoLabels
	}
	nodes := prepare(s)
	scorer := func(_ context.Context, step int, history []string) ([]classifier.Prediction, error) {
		return t.predictor.Predict(t.ext.Extract(state{nodes: nodes, i: step, tags: history})), nil
	}
	tags, score, err := beam.Decode(ctx, t.cfg.BeamWidth, len(s), scorer,
		beam.WithPruning(t.cfg.Pruning), beam.WithObserver(t.cfg.BeamObserver))
	if err != nil {
		return nil, 0, fmt.Errorf("tagger: %w", err)
	}
	return tags, score, nil
}

// Annotate returns a copy of s with predicted tags.
func (t *Tagger) Annotate(ctx context.Context, s Sentence) (Sentence, error) {
	tags, _, err := t.Tag(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make(Sentence, len(s))
	copy(out, s)
	for i := range out {
		out[i].Tag = tags[i]
	}
	return out, nil
}

// AnnotateAll tags sentences on up to workers goroutines, preserving order.
func (t *Tagger) AnnotateAll(ctx context.Context, sentences []Sentence, workers int) ([]Sentence, error) {
	out := make([]Sentence, len(sentences))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, s := range sentences {
		g.Go(func() error {
			tagged, err := t.Annotate(gctx, s)
			if err != nil {
				return fmt.Errorf("sentence %d: %w", i, err)
			}
			out[i] = tagged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Score holds tagging accuracy against gold tags.
type Score struct {
	Tokens    seqlab.Tally
	Sentences seqlab.Tally
}

// Evaluate tags every sentence and compares against its gold tags.
func (t *Tagger) Evaluate(ctx context.Context, sentences []Sentence, workers int) (Score, error) {
	tagged, err := t.AnnotateAll(ctx, sentences, workers)
	if err != nil {
		return Score{}, err
	}
	var score Score
	for k, s := range sentences {
		allCorrect := true
		for i, tok := range s {
			if tagged[k][i].Tag == tok.Tag {
				score.Tokens.Correct++
			} else {
				allCorrect = false
			}
			score.Tokens.Total++
		}
		if allCorrect {
			score.Sentences.Correct++
		}
		score.Sentences.Total++
	}
	return score, nil
}
