// Package beam implements top-K hypothesis search over sequences of ranked
// label predictions.
//
// A Tree keeps one arena of hypotheses per decision step. Each hypothesis
// stores the index of its predecessor in the previous step's arena, so a
// full label sequence is recovered by walking indices backwards:
//
//	t := beam.New(2)
//	_ = t.Advance([][]classifier.Prediction{step0})
//	_ = t.Advance(perHypothesis) // one ranked list per surviving hypothesis
//	labels, score, _ := t.Best()
package beam

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/happyhackingspace/seqlab/classifier"
)

var (
	// ErrEmpty is returned when a step would leave no hypothesis alive.
	ErrEmpty = errors.New("beam: no surviving hypotheses")
	// ErrNotStarted is returned when querying a tree before any Advance.
	ErrNotStarted = errors.New("beam: no step taken")
)

// CandidateCountError reports a mismatch between the number of candidate
// lists and the number of surviving hypotheses.
type CandidateCountError struct {
	Step int
	Want int
	Got  int
}

func (e *CandidateCountError) Error() string {
	return fmt.Sprintf("beam: step %d: got %d candidate lists for %d hypotheses", e.Step, e.Got, e.Want)
}

// PruneMode selects the early exit applied while extending one hypothesis.
type PruneMode int

const (
	// PruneRaw stops extending a hypothesis once a candidate's own score
	// falls below the lowest cumulative score among the extensions already
	// formed from that hypothesis.
	PruneRaw PruneMode = iota
	// PruneCumulative stops once a candidate's cumulative score falls below
	// the K-th best cumulative score formed so far in the step. It never
	// drops an extension that would survive truncation.
	PruneCumulative
	// PruneNone forms every extension.
	PruneNone
	// PruneGreedy keeps a single hypothesis per step; Advance behaves as
	// AdvanceGreedy.
	PruneGreedy
)

func (m PruneMode) String() string {
	switch m {
	case PruneRaw:
		return "raw"
	case PruneCumulative:
		return "cumulative"
	case PruneNone:
		return "none"
	case PruneGreedy:
		return "greedy"
	}
	return "unknown"
}

// ParsePruneMode returns the mode with the given name.
func ParsePruneMode(s string) (PruneMode, error) {
	for _, m := range []PruneMode{PruneRaw, PruneCumulative, PruneNone, PruneGreedy} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("beam: unknown prune mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m PruneMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PruneMode) UnmarshalText(text []byte) error {
	v, err := ParsePruneMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Observer receives one event per decision step.
type Observer interface {
	ObserveStep(step, extensions, survivors int)
}

type noopObserver struct{}

func (noopObserver) ObserveStep(int, int, int) {}

// Option configures a Tree.
type Option func(*Tree)

// WithPruning sets the pruning mode. The default is PruneRaw.
func WithPruning(m PruneMode) Option {
	return func(t *Tree) { t.prune = m }
}

// WithObserver reports step statistics to o.
func WithObserver(o Observer) Option {
	return func(t *Tree) {
		if o != nil {
			t.observer = o
		}
	}
}

type node struct {
	prev  int // index in the previous step, -1 at step 0
	label string
	score float64
	total float64
}

// Tree is a beam over one sequence. It is not safe for concurrent use and
// not reusable across sequences.
type Tree struct {
	width    int
	prune    PruneMode
	observer Observer
	steps    [][]node
}

// New returns an empty tree keeping at most width hypotheses per step.
// A width below one is treated as one.
func New(width int, opts ...Option) *Tree {
	t := &Tree{width: max(width, 1), observer: noopObserver{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Width returns the beam width.
func (t *Tree) Width() int {
	return t.width
}

// Steps returns the number of decision steps taken.
func (t *Tree) Steps() int {
	return len(t.steps)
}

func (t *Tree) current() []node {
	if len(t.steps) == 0 {
		return nil
	}
	return t.steps[len(t.steps)-1]
}

// Advance takes one decision step. At the first step candidates must hold a
// single list; afterwards it must hold one list per surviving hypothesis, in
// rank order. Lists are expected ranked by descending score.
func (t *Tree) Advance(candidates [][]classifier.Prediction) error {
	if t.prune == PruneGreedy {
		return t.AdvanceGreedy(candidates)
	}
	step := len(t.steps)
	var next []node

	if step == 0 {
		if len(candidates) != 1 {
			return &CandidateCountError{Step: 0, Want: 1, Got: len(candidates)}
		}
		for _, c := range candidates[0][:min(t.width, len(candidates[0]))] {
			next = append(next, node{prev: -1, label: c.Label, score: c.Score, total: c.Score})
		}
	} else {
		cur := t.current()
		if len(candidates) != len(cur) {
			return &CandidateCountError{Step: step, Want: len(cur), Got: len(candidates)}
		}
		next = t.extend(cur, candidates)
		slices.SortStableFunc(next, func(a, b node) int { return cmp.Compare(b.total, a.total) })
	}

	formed := len(next)
	if formed == 0 {
		return ErrEmpty
	}
	if len(next) > t.width {
		next = next[:t.width]
	}
	t.steps = append(t.steps, next)
	t.observer.ObserveStep(step, formed, len(next))
	return nil
}

func (t *Tree) extend(cur []node, candidates [][]classifier.Prediction) []node {
	var (
		next []node
		topK []float64 // best totals so far, descending, for PruneCumulative
	)
	for k, h := range cur {
		lowest := 0.0 // lowest total among extensions of h
		for j, c := range candidates[k] {
			total := h.total + c.Score
			if j > 0 && t.pruned(c.Score, total, lowest, topK) {
				break
			}

			next = append(next, node{prev: k, label: c.Label, score: c.Score, total: total})
			if j == 0 || total < lowest {
				lowest = total
			}
			if t.prune == PruneCumulative {
				topK = insertTop(topK, total, t.width)
			}
		}
	}
	return next
}

func (t *Tree) pruned(score, total, lowest float64, topK []float64) bool {
	switch t.prune {
	case PruneRaw:
		return score < lowest
	case PruneCumulative:
		return len(topK) == t.width && total < topK[t.width-1]
	}
	return false
}

// insertTop inserts v into the descending slice top, keeping at most k
// entries.
func insertTop(top []float64, v float64, k int) []float64 {
	i, _ := slices.BinarySearchFunc(top, v, func(e, target float64) int { return cmp.Compare(target, e) })
	if i >= k {
		return top
	}
	top = slices.Insert(top, i, v)
	if len(top) > k {
		top = top[:k]
	}
	return top
}

// AdvanceGreedy takes one decision step keeping only the single best
// extension, judged by the top candidate score of each list.
func (t *Tree) AdvanceGreedy(candidates [][]classifier.Prediction) error {
	step := len(t.steps)
	cur := t.current()
	want := max(len(cur), 1)
	if len(candidates) != want {
		return &CandidateCountError{Step: step, Want: want, Got: len(candidates)}
	}

	best := -1
	for k, list := range candidates {
		if len(list) == 0 {
			continue
		}
		if best < 0 || list[0].Score > candidates[best][0].Score {
			best = k
		}
	}
	if best < 0 {
		return ErrEmpty
	}

	c := candidates[best][0]
	n := node{prev: -1, label: c.Label, score: c.Score, total: c.Score}
	if step > 0 {
		n.prev = best
		n.total += cur[best].total
	}
	t.steps = append(t.steps, []node{n})
	t.observer.ObserveStep(step, 1, 1)
	return nil
}

// Hypothesis is a read-only view of one surviving hypothesis.
type Hypothesis struct {
	tree *Tree
	step int
	idx  int
}

// Label returns the label chosen at the hypothesis' last step.
func (h Hypothesis) Label() string {
	return h.tree.steps[h.step][h.idx].label
}

// Score returns the score of the last step's label.
func (h Hypothesis) Score() float64 {
	return h.tree.steps[h.step][h.idx].score
}

// Total returns the cumulative score.
func (h Hypothesis) Total() float64 {
	return h.tree.steps[h.step][h.idx].total
}

// Labels returns the full label sequence, oldest first.
func (h Hypothesis) Labels() []string {
	labels := make([]string, h.step+1)
	idx := h.idx
	for s := h.step; s >= 0; s-- {
		n := h.tree.steps[s][idx]
		labels[s] = n.label
		idx = n.prev
	}
	return labels
}

// History returns up to n most recent labels, most recent first.
func (h Hypothesis) History(n int) []string {
	var labels []string
	idx := h.idx
	for s := h.step; s >= 0 && len(labels) < n; s-- {
		nd := h.tree.steps[s][idx]
		labels = append(labels, nd.label)
		idx = nd.prev
	}
	return labels
}

func (h Hypothesis) String() string {
	var parts []string
	idx := h.idx
	for s := h.step; s >= 0; s-- {
		n := h.tree.steps[s][idx]
		parts = append(parts, n.label+":"+strconv.FormatFloat(n.score, 'g', -1, 64))
		idx = n.prev
	}
	slices.Reverse(parts)
	return strings.Join(parts, " -> ")
}

// Hypotheses returns the current beam in rank order.
func (t *Tree) Hypotheses() []Hypothesis {
	cur := t.current()
	out := make([]Hypothesis, len(cur))
	for i := range cur {
		out[i] = Hypothesis{tree: t, step: len(t.steps) - 1, idx: i}
	}
	return out
}

// History returns up to n most recent labels of the k-th hypothesis, most
// recent first.
func (t *Tree) History(k, n int) []string {
	return Hypothesis{tree: t, step: len(t.steps) - 1, idx: k}.History(n)
}

// Best returns the label sequence with the highest cumulative score. Ties go
// to the higher ranked hypothesis.
func (t *Tree) Best() ([]string, float64, error) {
	hyps := t.Hypotheses()
	if len(hyps) == 0 {
		return nil, 0, ErrNotStarted
	}
	best := hyps[0]
	for _, h := range hyps[1:] {
		if h.Total() > best.Total() {
			best = h
		}
	}
	return best.Labels(), best.Total(), nil
}

// String renders every surviving hypothesis on its own line as
// "label:score -> label:score ...".
func (t *Tree) String() string {
	hyps := t.Hypotheses()
	lines := make([]string, len(hyps))
	for i, h := range hyps {
		lines[i] = h.String()
	}
	return strings.Join(lines, "\n")
}
