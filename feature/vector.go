// Package feature turns structural positions into sparse string features.
//
// A Template addresses one or more positions relative to a pivot and reads a
// field at each of them. The Extractor expands every template of a task
// against an Accessor supplied by the caller and concatenates the results
// into a Vector:
//
//	ext := feature.NewExtractor(templates)
//	vec := ext.Extract(acc) // [{f0 the 1} {p1 DT_NN 1} ...]
package feature

import (
	"strconv"
	"strings"
)

// Feature is a single (type, value) pair with an optional weight.
type Feature struct {
	Type   string  `json:"type"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// Vector is an ordered sequence of features. Duplicates are allowed and each
// occurrence counts on its own.
type Vector []Feature

// Add appends a feature with weight 1.
func (v *Vector) Add(typ, value string) {
	*v = append(*v, Feature{Type: typ, Value: value, Weight: 1})
}

// AddWeighted appends a feature with an explicit weight.
func (v *Vector) AddWeighted(typ, value string, weight float64) {
	*v = append(*v, Feature{Type: typ, Value: value, Weight: weight})
}

// Len returns the number of entries.
func (v Vector) Len() int {
	return len(v)
}

// WeightAt returns the weight of the i-th entry. Entries appended with Add
// weigh 1; an explicit zero weight stays zero.
func (v Vector) WeightAt(i int) float64 {
	return v[i].Weight
}

// Weighted reports whether any entry carries a weight other than 1.
func (v Vector) Weighted() bool {
	for i := range v {
		if v.WeightAt(i) != 1 {
			return true
		}
	}
	return false
}

// String renders the vector as space separated "type:value" tokens, with a
// trailing ":weight" on every token when the vector is weighted.
func (v Vector) String() string {
	weighted := v.Weighted()
	var b strings.Builder
	for i, f := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Type)
		b.WriteByte(':')
		b.WriteString(f.Value)
		if weighted {
			b.WriteByte(':')
			b.WriteString(strconv.FormatFloat(v.WeightAt(i), 'g', -1, 64))
		}
	}
	return b.String()
}
