package seqlab

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/feature"
)

// word is an accessor over a sentence of words with a pivot position.
type word struct {
	words []string
	i     int
}

func (w word) Field(tok feature.Token) (string, bool) {
	j := w.i + tok.Offset
	if j < 0 || j >= len(w.words) || tok.Field != "f" {
		return "", false
	}
	return w.words[j], true
}

func (w word) Fields(feature.Token) ([]string, bool) {
	return nil, false
}

func extractor() *feature.Extractor {
	return feature.NewExtractor([]feature.Template{
		feature.MustTemplate("w", "i:f"),
		feature.MustTemplate("wp", "i-1:f"),
	})
}

type observation struct {
	acc   word
	label string
}

func corpus() []observation {
	sentences := [][2][]string{
		{{"the", "dog", "runs"}, {"DET", "NOUN", "VERB"}},
		{{"a", "cat", "sleeps"}, {"DET", "NOUN", "VERB"}},
		{{"the", "cat", "runs"}, {"DET", "NOUN", "VERB"}},
		{{"a", "dog", "sleeps"}, {"DET", "NOUN", "VERB"}},
	}
	var out []observation
	for _, s := range sentences {
		for i, label := range s[1] {
			out = append(out, observation{acc: word{words: s[0], i: i}, label: label})
		}
	}
	return out
}

func trainComponent(t *testing.T) *classifier.Model {
	t.Helper()
	ext := extractor()

	col := NewCollector(ext)
	for _, o := range corpus() {
		require.NoError(t, col.Observe(o.acc, o.label))
	}
	vocab, err := col.Vocabulary(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"DET", "NOUN", "VERB"}, vocab.Labels())

	tr := NewTrainer(ext, vocab)
	for _, o := range corpus() {
		require.NoError(t, tr.Observe(o.acc, o.label))
	}
	require.NoError(t, tr.ObserveVector(nil, "UNSEEN"))
	kept, skipped := tr.Instances()
	assert.Equal(t, 12, kept)
	assert.Equal(t, 1, skipped)

	cfg := classifier.DefaultTrainerConfig()
	cfg.Cost = 1
	model, err := tr.Train(context.Background(), cfg)
	require.NoError(t, err)
	return model
}

func TestLifecycle(t *testing.T) {
	model := trainComponent(t)
	pred := NewPredictor(extractor(), model)
	assert.Equal(t, ModePredict, pred.Mode())

	for _, o := range corpus() {
		best, err := pred.PredictBest(o.acc)
		require.NoError(t, err)
		assert.Equal(t, o.label, best.Label)
	}

	preds, err := pred.Predict(word{words: []string{"the"}, i: 0})
	require.NoError(t, err)
	assert.Len(t, preds, 3)
	assert.Equal(t, "DET", preds[0].Label)
}

func TestCachedPredictor(t *testing.T) {
	model := trainComponent(t)
	pred, err := NewCachedPredictor(extractor(), model, 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, o := range corpus() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			best, err := pred.PredictBest(o.acc)
			assert.NoError(t, err)
			assert.Equal(t, o.label, best.Label)
		}()
	}
	wg.Wait()
}

func TestModeErrors(t *testing.T) {
	ext := extractor()
	acc := word{words: []string{"the"}}

	col := NewCollector(ext)
	_, err := col.Predict(acc)
	assertModeError(t, err, "predict", ModeCollect)
	_, err = col.Train(context.Background(), classifier.DefaultTrainerConfig())
	assertModeError(t, err, "train", ModeCollect)

	tr := NewTrainer(ext, classifier.NewCounter().Build(0, 0))
	_, err = tr.Vocabulary(0, 0)
	assertModeError(t, err, "vocabulary", ModeTrain)
	_, err = tr.PredictBest(acc)
	assertModeError(t, err, "predict", ModeTrain)

	pred := NewPredictor(ext, trainComponent(t))
	err = pred.Observe(acc, "DET")
	assertModeError(t, err, "observe", ModePredict)
}

func assertModeError(t *testing.T, err error, op string, mode Mode) {
	t.Helper()
	var me *ModeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, op, me.Op)
	assert.Equal(t, mode, me.Mode)
	assert.Contains(t, err.Error(), mode.String())
}

func TestTrainWithoutInstances(t *testing.T) {
	vocab := classifier.BuildVocabulary([]classifier.Example{{Label: "A"}}, 0, 0)
	_, err := NewTrainer(extractor(), vocab).Train(context.Background(), classifier.DefaultTrainerConfig())
	assert.ErrorIs(t, err, classifier.ErrNoInstances)
}

func TestGroupKFold(t *testing.T) {
	groups := []string{"a", "b", "a", "c", "b", "d"}
	folds := groupKFold(groups, 3)
	assert.Equal(t, [][]int{{0, 2, 5}, {1, 4}, {3}}, folds)

	// More folds than groups collapses to one fold per group.
	folds = groupKFold([]string{"x", "x", "y"}, 10)
	assert.Equal(t, [][]int{{0, 1}, {2}}, folds)

	assert.Equal(t, []bool{false, true, false, true}, makeTestSet(4, []int{1, 3}))
}

func examples() []classifier.Example {
	var out []classifier.Example
	ext := extractor()
	for _, o := range corpus() {
		out = append(out, classifier.Example{Label: o.label, Vector: ext.Extract(o.acc)})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	exs := examples()
	groups := make([]string, len(exs))
	for i := range groups {
		groups[i] = fmt.Sprint(i / 3) // one group per sentence
	}

	cfg := DefaultEvalConfig()
	cfg.Folds = 2
	cfg.Groups = groups
	cfg.Trainer.Cost = 1
	res, err := Evaluate(context.Background(), exs, cfg)
	require.NoError(t, err)

	assert.Equal(t, len(exs), res.Total)
	assert.Len(t, res.Folds, 2)
	assert.Equal(t, 6, res.Folds[0].Total)
	assert.Equal(t, 4, res.Labels["NOUN"].Total)
	assert.InDelta(t, float64(res.Correct)/float64(res.Total), res.Accuracy, 1e-12)
	assert.Positive(t, res.Correct)

	confused := 0
	for _, n := range res.Confusion["NOUN"] {
		confused += n
	}
	assert.Equal(t, res.Labels["NOUN"].Total, confused)
}

func TestEvaluateErrors(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.Folds = 1
	_, err := Evaluate(context.Background(), examples(), cfg)
	assert.Error(t, err)

	_, err = Evaluate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, classifier.ErrNoInstances)

	cfg = DefaultEvalConfig()
	cfg.Groups = []string{"a"}
	_, err = Evaluate(context.Background(), examples(), cfg)
	assert.Error(t, err)

	exs := examples()
	cfg = DefaultEvalConfig()
	cfg.Groups = make([]string, len(exs))
	_, err = Evaluate(context.Background(), exs, cfg)
	assert.ErrorContains(t, err, "2 distinct groups")
	assert.NotErrorIs(t, err, classifier.ErrNoInstances)
}
