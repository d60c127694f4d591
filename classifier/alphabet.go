// Package classifier builds vocabularies from labeled feature vectors, trains
// one-vs-rest linear models by dual coordinate descent and ranks labels for
// new vectors.
package classifier

// Alphabet maps between strings and dense integer IDs in insertion order.
type Alphabet struct {
	toID  map[string]int
	toStr []string
}

// NewAlphabet creates an empty alphabet.
func NewAlphabet() *Alphabet {
	return &Alphabet{toID: make(map[string]int)}
}

// Add adds a string to the alphabet if not already present, returns its ID.
func (a *Alphabet) Add(s string) int {
	if id, ok := a.toID[s]; ok {
		return id
	}
	id := len(a.toStr)
	a.toID[s] = id
	a.toStr = append(a.toStr, s)
	return id
}

// Get returns the ID for a string, or -1 if not found.
func (a *Alphabet) Get(s string) int {
	if a == nil {
		return -1
	}
	if id, ok := a.toID[s]; ok {
		return id
	}
	return -1
}

// String returns the entry with the given ID.
func (a *Alphabet) String(id int) string {
	return a.toStr[id]
}

// Strings returns the entries in ID order. The slice must not be modified.
func (a *Alphabet) Strings() []string {
	return a.toStr
}

// Size returns the number of entries.
func (a *Alphabet) Size() int {
	if a == nil {
		return 0
	}
	return len(a.toStr)
}
