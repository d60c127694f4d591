package feature

import "strings"

// DefaultDelimiter joins the fields of a multi-token template.
const DefaultDelimiter = "_"

// Accessor reads fields from the caller's structure.
//
// Field returns a scalar field and false when the position is out of range or
// the field is absent. Fields returns a set-valued field and false when the
// field is not set-valued or absent; the extractor then falls back to Field.
type Accessor interface {
	Field(tok Token) (string, bool)
	Fields(tok Token) ([]string, bool)
}

// Extractor expands templates into feature vectors.
type Extractor struct {
	Templates []Template
	Delimiter string
}

// NewExtractor returns an extractor using DefaultDelimiter.
func NewExtractor(templates []Template) *Extractor {
	return &Extractor{Templates: templates, Delimiter: DefaultDelimiter}
}

// Extract concatenates the features of every template in declaration order.
func (e *Extractor) Extract(acc Accessor) Vector {
	vec := make(Vector, 0, len(e.Templates))
	for _, t := range e.Templates {
		vec = e.AppendTemplate(vec, t, acc)
	}
	return vec
}

// AppendTemplate appends the features of a single template to vec. A template
// with no tokens or any unresolvable token contributes nothing.
func (e *Extractor) AppendTemplate(vec Vector, t Template, acc Accessor) Vector {
	if len(t.Tokens) == 0 {
		return vec
	}
	if t.Set {
		return e.appendSet(vec, t, acc)
	}

	var b strings.Builder
	for i, tok := range t.Tokens {
		field, ok := acc.Field(tok)
		if !ok {
			return vec
		}
		if i > 0 {
			b.WriteString(e.delimiter())
		}
		b.WriteString(field)
	}
	return append(vec, Feature{Type: t.Type, Value: b.String(), Weight: 1})
}

func (e *Extractor) appendSet(vec Vector, t Template, acc Accessor) Vector {
	sets := make([][]string, len(t.Tokens))
	for i, tok := range t.Tokens {
		values, ok := acc.Fields(tok)
		if !ok {
			field, ok := acc.Field(tok)
			if !ok {
				return vec
			}
			values = []string{field}
		}
		if len(values) == 0 {
			return vec
		}
		sets[i] = values
	}

	for _, value := range cartesian(sets, e.delimiter()) {
		vec = append(vec, Feature{Type: t.Type, Value: value, Weight: 1})
	}
	return vec
}

func (e *Extractor) delimiter() string {
	if e.Delimiter == "" {
		return DefaultDelimiter
	}
	return e.Delimiter
}

// cartesian joins one element of every set, the first set varying slowest.
func cartesian(sets [][]string, delim string) []string {
	size := 1
	for _, s := range sets {
		size *= len(s)
	}
	out := make([]string, 0, size)
	out = append(out, sets[0]...)
	for _, set := range sets[1:] {
		next := make([]string, 0, len(out)*len(set))
		for _, prefix := range out {
			for _, v := range set {
				next = append(next, prefix+delim+v)
			}
		}
		out = next
	}
	return out
}
