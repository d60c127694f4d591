// Package vectorizer provides the sparse vector kernel shared by training and
// classification.
package vectorizer

import (
	"math"
	"slices"
	"strconv"
)

// SparseVector represents a sparse float64 vector. Indices are ascending and
// may repeat. A nil Values slice means every stored entry has value 1.
type SparseVector struct {
	Indices []int
	Values  []float64
	Dim     int
}

// NewSparseVector creates a sparse vector with given dimension.
func NewSparseVector(dim int) SparseVector {
	return SparseVector{Dim: dim}
}

// entry pairs an index with its value while sorting.
type entry struct {
	idx int
	val float64
}

// FromEntries builds a vector from unsorted parallel slices. The sort is
// stable so repeated indices keep their insertion order. Pass nil values for
// an unweighted vector.
func FromEntries(indices []int, values []float64, dim int) SparseVector {
	if values == nil {
		idx := slices.Clone(indices)
		slices.Sort(idx)
		return SparseVector{Indices: idx, Dim: dim}
	}

	entries := make([]entry, len(indices))
	for i, idx := range indices {
		entries[i] = entry{idx, values[i]}
	}
	slices.SortStableFunc(entries, func(a, b entry) int { return a.idx - b.idx })

	sv := SparseVector{
		Indices: make([]int, len(entries)),
		Values:  make([]float64, len(entries)),
		Dim:     dim,
	}
	for i, e := range entries {
		sv.Indices[i] = e.idx
		sv.Values[i] = e.val
	}
	return sv
}

// Value returns the value of the i-th stored entry.
func (sv SparseVector) Value(i int) float64 {
	if sv.Values == nil {
		return 1
	}
	return sv.Values[i]
}

// Set adds or updates a value at the given index, keeping indices sorted.
func (sv *SparseVector) Set(idx int, val float64) {
	pos, found := slices.BinarySearch(sv.Indices, idx)
	if sv.Values == nil {
		sv.Values = make([]float64, len(sv.Indices))
		for i := range sv.Values {
			sv.Values[i] = 1
		}
	}
	if found {
		sv.Values[pos] = val
		return
	}
	sv.Indices = slices.Insert(sv.Indices, pos, idx)
	sv.Values = slices.Insert(sv.Values, pos, val)
}

// Dot computes the dot product with a dense vector.
func (sv SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for i, idx := range sv.Indices {
		if idx < len(dense) {
			sum += sv.Value(i) * dense[idx]
		}
	}
	return sum
}

// AddTo performs dense += scale * sv.
func (sv SparseVector) AddTo(dense []float64, scale float64) {
	for i, idx := range sv.Indices {
		if idx < len(dense) {
			dense[idx] += scale * sv.Value(i)
		}
	}
}

// SquaredNorm returns the sum of squared stored values. Repeated indices
// count once per occurrence.
func (sv SparseVector) SquaredNorm() float64 {
	if sv.Values == nil {
		return float64(len(sv.Indices))
	}
	var sum float64
	for _, v := range sv.Values {
		sum += v * v
	}
	return sum
}

// ToDense converts to a dense float64 slice. Repeated indices accumulate.
func (sv SparseVector) ToDense() []float64 {
	dense := make([]float64, sv.Dim)
	sv.AddTo(dense, 1)
	return dense
}

// Nnz returns the number of stored entries.
func (sv SparseVector) Nnz() int {
	return len(sv.Indices)
}

// L2Norm returns the L2 norm of the sparse vector.
func (sv SparseVector) L2Norm() float64 {
	return math.Sqrt(sv.SquaredNorm())
}

// Key returns a canonical encoding of the stored entries. Vectors with equal
// keys have equal dot products with any dense vector.
func (sv SparseVector) Key() string {
	b := make([]byte, 0, 8*len(sv.Indices))
	for i, idx := range sv.Indices {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(idx), 10)
		if v := sv.Value(i); v != 1 {
			b = append(b, '=')
			b = strconv.AppendFloat(b, v, 'g', -1, 64)
		}
	}
	return string(b)
}
