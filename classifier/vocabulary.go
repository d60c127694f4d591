package classifier

import (
	"fmt"

	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/vectorizer"
)

// FeatureKey identifies a (type, value) feature.
type FeatureKey struct {
	Type  string
	Value string
}

func (k FeatureKey) String() string {
	return k.Type + ":" + k.Value
}

// Instance is a labeled training vector mapped through a Vocabulary.
type Instance struct {
	Label int
	vectorizer.SparseVector
}

// Example is a labeled feature vector before vocabulary lookup.
type Example struct {
	Label  string
	Vector feature.Vector
}

// Vocabulary maps labels and features to dense indices. It is immutable
// once built and safe for concurrent use.
type Vocabulary struct {
	LabelCutoff   int
	FeatureCutoff int

	labels   *Alphabet
	features map[FeatureKey]int
	keys     []FeatureKey
}

// newVocabulary creates a vocabulary from labels and feature keys in index
// order. Duplicates are a structural error.
func newVocabulary(labels []string, keys []FeatureKey) (*Vocabulary, error) {
	v := &Vocabulary{
		labels:   NewAlphabet(),
		features: make(map[FeatureKey]int, len(keys)),
		keys:     keys,
	}
	for _, l := range labels {
		if v.labels.Get(l) >= 0 {
			return nil, &ModelError{Reason: fmt.Sprintf("duplicate label %q", l)}
		}
		v.labels.Add(l)
	}
	for i, k := range keys {
		if _, ok := v.features[k]; ok {
			return nil, &ModelError{Reason: fmt.Sprintf("duplicate feature %q", k)}
		}
		v.features[k] = i
	}
	return v, nil
}

// NumLabels returns L.
func (v *Vocabulary) NumLabels() int {
	return v.labels.Size()
}

// NumFeatures returns F.
func (v *Vocabulary) NumFeatures() int {
	return len(v.keys)
}

// Labels returns the labels in index order. The slice must not be modified.
func (v *Vocabulary) Labels() []string {
	return v.labels.Strings()
}

// Label returns the label with index i.
func (v *Vocabulary) Label(i int) string {
	return v.labels.String(i)
}

// LabelIndex returns the index of label, or -1.
func (v *Vocabulary) LabelIndex(label string) int {
	return v.labels.Get(label)
}

// Features returns the feature keys in index order. The slice must not be
// modified.
func (v *Vocabulary) Features() []FeatureKey {
	return v.keys
}

// FeatureIndex returns the index of a (type, value) pair, or -1.
func (v *Vocabulary) FeatureIndex(typ, value string) int {
	if i, ok := v.features[FeatureKey{typ, value}]; ok {
		return i
	}
	return -1
}

// Sparse maps a vector through the vocabulary, dropping unknown features.
// Values are kept only when the vector carries explicit weights.
func (v *Vocabulary) Sparse(vec feature.Vector) vectorizer.SparseVector {
	weighted := vec.Weighted()
	indices := make([]int, 0, len(vec))
	var values []float64
	if weighted {
		values = make([]float64, 0, len(vec))
	}
	for i, f := range vec {
		idx := v.FeatureIndex(f.Type, f.Value)
		if idx < 0 {
			continue
		}
		indices = append(indices, idx)
		if weighted {
			values = append(values, vec.WeightAt(i))
		}
	}
	return vectorizer.FromEntries(indices, values, len(v.keys))
}

// Instance converts a labeled vector. It reports false when the label is
// not in the vocabulary.
func (v *Vocabulary) Instance(label string, vec feature.Vector) (Instance, bool) {
	y := v.LabelIndex(label)
	if y < 0 {
		return Instance{}, false
	}
	return Instance{Label: y, SparseVector: v.Sparse(vec)}, true
}

// Instances converts examples, silently skipping unknown labels.
func (v *Vocabulary) Instances(examples []Example) []Instance {
	out := make([]Instance, 0, len(examples))
	for _, ex := range examples {
		if inst, ok := v.Instance(ex.Label, ex.Vector); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Counter tallies label and feature occurrences.
type Counter struct {
	labels     map[string]int
	labelOrder []string
	types      map[string]*valueCounts
	typeOrder  []string
}

type valueCounts struct {
	counts map[string]int
	order  []string
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{
		labels: make(map[string]int),
		types:  make(map[string]*valueCounts),
	}
}

// Add tallies one labeled vector. Every occurrence of a feature counts,
// including duplicates within the same vector.
func (c *Counter) Add(label string, vec feature.Vector) {
	if _, ok := c.labels[label]; !ok {
		c.labelOrder = append(c.labelOrder, label)
	}
	c.labels[label]++

	for _, f := range vec {
		vc, ok := c.types[f.Type]
		if !ok {
			vc = &valueCounts{counts: make(map[string]int)}
			c.types[f.Type] = vc
			c.typeOrder = append(c.typeOrder, f.Type)
		}
		if _, ok := vc.counts[f.Value]; !ok {
			vc.order = append(vc.order, f.Value)
		}
		vc.counts[f.Value]++
	}
}

// LabelCount returns how often label was seen.
func (c *Counter) LabelCount(label string) int {
	return c.labels[label]
}

// FeatureCount returns how often a (type, value) pair was seen.
func (c *Counter) FeatureCount(typ, value string) int {
	if vc, ok := c.types[typ]; ok {
		return vc.counts[value]
	}
	return 0
}

// Build assigns indices to every label seen more than labelCutoff times and
// every feature seen more than featureCutoff times, in first-seen order.
func (c *Counter) Build(labelCutoff, featureCutoff int) *Vocabulary {
	v := &Vocabulary{
		LabelCutoff:   labelCutoff,
		FeatureCutoff: featureCutoff,
		labels:        NewAlphabet(),
		features:      make(map[FeatureKey]int),
	}
	for _, l := range c.labelOrder {
		if c.labels[l] > labelCutoff {
			v.labels.Add(l)
		}
	}
	for _, typ := range c.typeOrder {
		vc := c.types[typ]
		for _, value := range vc.order {
			if vc.counts[value] > featureCutoff {
				k := FeatureKey{typ, value}
				v.features[k] = len(v.keys)
				v.keys = append(v.keys, k)
			}
		}
	}
	return v
}

// BuildVocabulary runs both counting passes over examples.
func BuildVocabulary(examples []Example, labelCutoff, featureCutoff int) *Vocabulary {
	c := NewCounter()
	for _, ex := range examples {
		c.Add(ex.Label, ex.Vector)
	}
	return c.Build(labelCutoff, featureCutoff)
}
