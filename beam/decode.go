package beam

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/happyhackingspace/seqlab/classifier"
)

// Scorer returns the ranked candidates for the given step, conditioned on the
// labels a hypothesis has chosen so far (oldest first, empty at step 0).
type Scorer func(ctx context.Context, step int, history []string) ([]classifier.Prediction, error)

// Decode runs n decision steps and returns the best label sequence. Within a
// step the scorer runs concurrently for every surviving hypothesis.
func Decode(ctx context.Context, width, n int, scorer Scorer, opts ...Option) ([]string, float64, error) {
	if n == 0 {
		return nil, 0, nil
	}
	t := New(width, opts...)

	first, err := scorer(ctx, 0, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("beam: step 0: %w", err)
	}
	if err := t.Advance([][]classifier.Prediction{first}); err != nil {
		return nil, 0, err
	}

	for step := 1; step < n; step++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		hyps := t.Hypotheses()
		candidates := make([][]classifier.Prediction, len(hyps))

		g, gctx := errgroup.WithContext(ctx)
		for k, h := range hyps {
			history := h.Labels()
			g.Go(func() error {
				preds, err := scorer(gctx, step, history)
				if err != nil {
					return err
				}
				candidates[k] = preds
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, fmt.Errorf("beam: step %d: %w", step, err)
		}

		if err := t.Advance(candidates); err != nil {
			return nil, 0, err
		}
	}
	return t.Best()
}
