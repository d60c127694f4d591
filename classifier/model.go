package classifier

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/vectorizer"
)

// Meta records how a model was trained.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	Algorithm Algorithm `json:"algorithm"`
	Cost      float64   `json:"cost"`
	Epsilon   float64   `json:"epsilon"`
	BiasTerm  float64   `json:"bias_term"`
	CreatedAt time.Time `json:"created_at"`
}

// Model holds a vocabulary and one weight vector per label. It is read-only
// after construction and safe for concurrent classification.
type Model struct {
	Vocabulary *Vocabulary
	Weights    [][]float64 // [numLabels][numFeatures]
	Bias       []float64   // [numLabels], already scaled by Meta.BiasTerm
	Meta       Meta
}

// NewModel assembles a model and checks that its parts agree in shape.
func NewModel(vocab *Vocabulary, weights [][]float64, bias []float64, meta Meta) (*Model, error) {
	m := &Model{Vocabulary: vocab, Weights: weights, Bias: bias, Meta: meta}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) validate() error {
	if m.Vocabulary == nil {
		return &ModelError{Reason: "missing vocabulary"}
	}
	numLabels, numFeatures := m.Vocabulary.NumLabels(), m.Vocabulary.NumFeatures()
	if len(m.Weights) != numLabels {
		return &ModelError{Reason: fmt.Sprintf("%d weight rows for %d labels", len(m.Weights), numLabels)}
	}
	for l, row := range m.Weights {
		if len(row) != numFeatures {
			return &ModelError{Reason: fmt.Sprintf("weight row %d has %d entries for %d features", l, len(row), numFeatures)}
		}
	}
	if len(m.Bias) != 0 && len(m.Bias) != numLabels {
		return &ModelError{Reason: fmt.Sprintf("%d bias entries for %d labels", len(m.Bias), numLabels)}
	}
	return nil
}

// Predictor ranks labels for a feature vector. Both Model and CachedModel
// implement it.
type Predictor interface {
	Predict(vec feature.Vector) []Prediction
}

// Prediction is a scored label.
type Prediction struct {
	Label string
	Index int
	Score float64
}

func (p Prediction) String() string {
	return fmt.Sprintf("%s:%g", p.Label, p.Score)
}

// NumLabels returns the number of labels.
func (m *Model) NumLabels() int {
	return m.Vocabulary.NumLabels()
}

func (m *Model) score(x vectorizer.SparseVector, label int) float64 {
	s := x.Dot(m.Weights[label])
	if len(m.Bias) > 0 {
		s += m.Bias[label]
	}
	return s
}

// Predict scores every label and returns them by descending score, ties in
// ascending label index. Unknown features are ignored.
func (m *Model) Predict(vec feature.Vector) []Prediction {
	return m.PredictSparse(m.Vocabulary.Sparse(vec))
}

// PredictSparse is like Predict for a vector already mapped through the
// model's vocabulary.
func (m *Model) PredictSparse(x vectorizer.SparseVector) []Prediction {
	preds := make([]Prediction, m.NumLabels())
	for l := range preds {
		preds[l] = Prediction{Label: m.Vocabulary.Label(l), Index: l, Score: m.score(x, l)}
	}
	slices.SortStableFunc(preds, func(a, b Prediction) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return preds
}

// PredictBest returns the top-ranked label.
func (m *Model) PredictBest(vec feature.Vector) (Prediction, error) {
	first, _, err := m.PredictTwo(vec)
	return first, err
}

// PredictTwo returns the two top-ranked labels. With a single label the
// second prediction has Index -1 and a score of negative infinity.
func (m *Model) PredictTwo(vec feature.Vector) (first, second Prediction, err error) {
	if m.NumLabels() == 0 {
		return Prediction{}, Prediction{}, ErrNoLabels
	}
	x := m.Vocabulary.Sparse(vec)
	first = Prediction{Index: -1, Score: math.Inf(-1)}
	second = first
	for l := range m.NumLabels() {
		s := m.score(x, l)
		switch {
		case first.Index < 0 || s > first.Score:
			second = first
			first = Prediction{Index: l, Score: s}
		case second.Index < 0 || s > second.Score:
			second = Prediction{Index: l, Score: s}
		}
	}
	first.Label = m.Vocabulary.Label(first.Index)
	if second.Index >= 0 {
		second.Label = m.Vocabulary.Label(second.Index)
	}
	return first, second, nil
}

// Normalize returns a copy of preds whose scores are replaced by their
// softmax.
func Normalize(preds []Prediction) []Prediction {
	out := slices.Clone(preds)
	if len(out) == 0 {
		return out
	}
	scores := make([]float64, len(out))
	for i, p := range out {
		scores[i] = p.Score
	}
	lse := floats.LogSumExp(scores)
	for i := range out {
		out[i].Score = math.Exp(out[i].Score - lse)
	}
	return out
}

// Sigmoid returns a copy of preds whose scores are mapped through the
// logistic function and rescaled to sum to one.
func Sigmoid(preds []Prediction) []Prediction {
	out := slices.Clone(preds)
	var sum float64
	for i := range out {
		out[i].Score = 1 / (1 + math.Exp(-out[i].Score))
		sum += out[i].Score
	}
	if sum > 0 {
		for i := range out {
			out[i].Score /= sum
		}
	}
	return out
}
