package beam

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/seqlab/classifier"
)

func preds(pairs ...any) []classifier.Prediction {
	var out []classifier.Prediction
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, classifier.Prediction{Label: pairs[i].(string), Index: i / 2, Score: pairs[i+1].(float64)})
	}
	return out
}

func toyTree(t *testing.T, opts ...Option) *Tree {
	t.Helper()
	tree := New(2, opts...)
	require.NoError(t, tree.Advance([][]classifier.Prediction{preds("A", 0.9, "B", 0.5, "C", 0.1)}))
	require.NoError(t, tree.Advance([][]classifier.Prediction{
		preds("D", 0.3, "E", 0.1),
		preds("D", 0.9),
	}))
	return tree
}

func TestToySequence(t *testing.T) {
	for _, mode := range []PruneMode{PruneRaw, PruneCumulative, PruneNone} {
		t.Run(mode.String(), func(t *testing.T) {
			tree := toyTree(t, WithPruning(mode))

			labels, score, err := tree.Best()
			require.NoError(t, err)
			assert.Equal(t, []string{"B", "D"}, labels)
			assert.InDelta(t, 1.4, score, 1e-12)

			hyps := tree.Hypotheses()
			require.Len(t, hyps, 2)
			assert.Equal(t, []string{"B", "D"}, hyps[0].Labels())
			assert.Equal(t, []string{"A", "D"}, hyps[1].Labels())
			assert.InDelta(t, 1.2, hyps[1].Total(), 1e-12)
		})
	}
}

func TestStepZeroKeepsTopWidth(t *testing.T) {
	tree := New(2)
	require.NoError(t, tree.Advance([][]classifier.Prediction{preds("A", 0.9, "B", 0.5, "C", 0.1)}))

	var labels []string
	for _, h := range tree.Hypotheses() {
		labels = append(labels, h.Label())
		assert.Equal(t, h.Score(), h.Total())
	}
	assert.Equal(t, []string{"A", "B"}, labels)
}

func TestRawPruning(t *testing.T) {
	// From A (0.9) the first extension totals 1.2, so E's raw 0.1 stops the
	// loop. Without pruning A->E (1.0) would be formed.
	obs := &stepRecorder{}
	toyTree(t, WithObserver(obs))
	assert.Equal(t, []stepEvent{{0, 2, 2}, {1, 2, 2}}, obs.events)

	obs = &stepRecorder{}
	toyTree(t, WithPruning(PruneNone), WithObserver(obs))
	assert.Equal(t, []stepEvent{{0, 2, 2}, {1, 3, 2}}, obs.events)
}

func TestCumulativePruningIsExact(t *testing.T) {
	step0 := preds("A", 0.0, "B", 0.0, "C", 0.0)
	step1 := [][]classifier.Prediction{
		preds("x", 5.0, "y", 4.0, "z", 3.0),
		preds("x", 2.0, "y", 1.0, "z", 0.5),
		preds("x", 4.5, "y", 0.1, "z", 0.0),
	}

	exact := New(3, WithPruning(PruneNone))
	require.NoError(t, exact.Advance([][]classifier.Prediction{step0}))
	require.NoError(t, exact.Advance(step1))

	obs := &stepRecorder{}
	pruned := New(3, WithPruning(PruneCumulative), WithObserver(obs))
	require.NoError(t, pruned.Advance([][]classifier.Prediction{step0}))
	require.NoError(t, pruned.Advance(step1))

	assert.Equal(t, exact.String(), pruned.String())
	assert.Less(t, obs.events[1].extensions, 9)
}

func TestHistoryAndString(t *testing.T) {
	tree := toyTree(t)
	require.NoError(t, tree.Advance([][]classifier.Prediction{
		preds("F", 0.5),
		preds("G", 0.25),
	}))

	assert.Equal(t, []string{"F", "D", "B"}, tree.History(0, 5))
	assert.Equal(t, []string{"F", "D"}, tree.History(0, 2))
	assert.Empty(t, tree.History(0, 0))
	assert.Equal(t, 3, tree.Steps())

	assert.Equal(t, "B:0.5 -> D:0.9 -> F:0.5\nA:0.9 -> D:0.3 -> G:0.25", tree.String())
}

func TestAdvanceGreedy(t *testing.T) {
	tree := New(3)
	require.NoError(t, tree.AdvanceGreedy([][]classifier.Prediction{preds("A", 0.2, "B", 0.1)}))
	require.NoError(t, tree.AdvanceGreedy([][]classifier.Prediction{preds("C", 0.7)}))

	labels, score, err := tree.Best()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, labels)
	assert.InDelta(t, 0.9, score, 1e-12)
	assert.Len(t, tree.Hypotheses(), 1)
}

func TestErrors(t *testing.T) {
	_, _, err := New(2).Best()
	assert.ErrorIs(t, err, ErrNotStarted)

	err = New(2).Advance([][]classifier.Prediction{{}})
	assert.ErrorIs(t, err, ErrEmpty)

	var cce *CandidateCountError
	err = New(2).Advance(nil)
	require.ErrorAs(t, err, &cce)
	assert.Equal(t, 1, cce.Want)

	tree := toyTree(t)
	err = tree.Advance([][]classifier.Prediction{preds("F", 0.1)})
	require.ErrorAs(t, err, &cce)
	assert.Equal(t, 2, cce.Want)
	assert.Equal(t, 1, cce.Got)

	err = tree.Advance([][]classifier.Prediction{{}, {}})
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 2, tree.Steps(), "failed step must not change the tree")
}

func TestParsePruneMode(t *testing.T) {
	for _, m := range []PruneMode{PruneRaw, PruneCumulative, PruneNone, PruneGreedy} {
		back, err := ParsePruneMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
	_, err := ParsePruneMode("sometimes")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var mu sync.Mutex
	var calls [][]string
	scorer := func(_ context.Context, step int, history []string) ([]classifier.Prediction, error) {
		mu.Lock()
		calls = append(calls, history)
		mu.Unlock()
		switch {
		case step == 0:
			return preds("A", 0.9, "B", 0.5, "C", 0.1), nil
		case history[0] == "A":
			return preds("D", 0.3, "E", 0.1), nil
		default:
			return preds("D", 0.9), nil
		}
	}

	labels, score, err := Decode(context.Background(), 2, 2, scorer)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, labels)
	assert.InDelta(t, 1.4, score, 1e-12)
	assert.Len(t, calls, 3)

	labels, _, err = Decode(context.Background(), 2, 0, scorer)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestDecodeGreedy(t *testing.T) {
	var calls int
	scorer := func(_ context.Context, step int, history []string) ([]classifier.Prediction, error) {
		calls++
		switch {
		case step == 0:
			return preds("A", 0.9, "B", 0.5, "C", 0.1), nil
		case history[0] == "A":
			return preds("D", 0.3, "E", 0.1), nil
		default:
			return preds("D", 0.9), nil
		}
	}

	obs := &stepRecorder{}
	labels, score, err := Decode(context.Background(), 4, 2, scorer, WithPruning(PruneGreedy), WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, labels)
	assert.InDelta(t, 1.2, score, 1e-12)
	assert.Equal(t, 2, calls)
	require.Len(t, obs.events, 2)
	for _, e := range obs.events {
		assert.Equal(t, 1, e.survivors)
	}
}

func TestDecodeErrors(t *testing.T) {
	boom := errors.New("boom")
	scorer := func(_ context.Context, step int, _ []string) ([]classifier.Prediction, error) {
		if step == 1 {
			return nil, boom
		}
		return preds("A", 1.0), nil
	}
	_, _, err := Decode(context.Background(), 2, 3, scorer)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Decode(ctx, 2, 3, func(context.Context, int, []string) ([]classifier.Prediction, error) {
		return preds("A", 1.0), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

type stepEvent struct {
	step, extensions, survivors int
}

type stepRecorder struct {
	events []stepEvent
}

func (r *stepRecorder) ObserveStep(step, extensions, survivors int) {
	r.events = append(r.events, stepEvent{step, extensions, survivors})
}
