package classifier

import (
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/happyhackingspace/seqlab/feature"
)

// CachedModel memoizes rankings of a Model keyed by the input vector mapped
// through the model's vocabulary. It is safe for concurrent use.
type CachedModel struct {
	*Model
	cache *lru.Cache[string, []Prediction]
}

// NewCachedModel wraps m with a cache holding up to size rankings.
func NewCachedModel(m *Model, size int) (*CachedModel, error) {
	cache, err := lru.New[string, []Prediction](size)
	if err != nil {
		return nil, fmt.Errorf("classifier: cache: %w", err)
	}
	return &CachedModel{Model: m, cache: cache}, nil
}

// Predict returns the ranking of vec, computing it at most once per
// distinct vector while it stays cached. The returned slice is a copy.
func (c *CachedModel) Predict(vec feature.Vector) []Prediction {
	x := c.Vocabulary.Sparse(vec)
	key := x.Key()
	if preds, ok := c.cache.Get(key); ok {
		return slices.Clone(preds)
	}
	preds := c.PredictSparse(x)
	c.cache.Add(key, preds)
	return slices.Clone(preds)
}

// Len returns the number of cached rankings.
func (c *CachedModel) Len() int {
	return c.cache.Len()
}

// Purge drops every cached ranking.
func (c *CachedModel) Purge() {
	c.cache.Purge()
}
