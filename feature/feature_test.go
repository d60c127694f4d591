package feature

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapAccessor resolves "<source><offset>:<field>" lookups from fixed maps.
type mapAccessor struct {
	fields map[string]string
	sets   map[string][]string
}

func (m mapAccessor) Field(tok Token) (string, bool) {
	v, ok := m.fields[tok.String()]
	return v, ok
}

func (m mapAccessor) Fields(tok Token) ([]string, bool) {
	v, ok := m.sets[tok.String()]
	return v, ok
}

// treeNode is a tiny dependency tree used to exercise relation tokens.
type treeNode struct {
	form, pos, deprel string
	head              int
}

type treeAccessor struct {
	nodes []treeNode // index 0 is the artificial root
	pivot int
}

func (a treeAccessor) node(tok Token) (int, bool) {
	i := a.pivot + tok.Offset
	if i <= 0 || i >= len(a.nodes) {
		return 0, false
	}
	switch tok.Relation {
	case "":
		return i, true
	case "hd":
		h := a.nodes[i].head
		return h, h > 0
	case "lmd":
		for j := 1; j < i; j++ {
			if a.nodes[j].head == i {
				return j, true
			}
		}
		return 0, false
	case "rmd":
		for j := len(a.nodes) - 1; j > i; j-- {
			if a.nodes[j].head == i {
				return j, true
			}
		}
		return 0, false
	}
	return 0, false
}

func (a treeAccessor) Field(tok Token) (string, bool) {
	i, ok := a.node(tok)
	if !ok {
		return "", false
	}
	switch tok.Field {
	case "f":
		return a.nodes[i].form, true
	case "p":
		return a.nodes[i].pos, true
	case "d":
		return a.nodes[i].deprel, true
	}
	return "", false
}

func (a treeAccessor) Fields(tok Token) ([]string, bool) {
	if tok.Field != "ds" {
		return nil, false
	}
	i, ok := a.node(tok)
	if !ok {
		return nil, false
	}
	var labels []string
	for j := 1; j < len(a.nodes); j++ {
		if a.nodes[j].head == i {
			labels = append(labels, a.nodes[j].deprel)
		}
	}
	return labels, true
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		in   string
		want Token
	}{
		{"i:f", Token{Source: 'i', Field: "f"}},
		{"i-1:p", Token{Source: 'i', Offset: -1, Field: "p"}},
		{"i+2:sf", Token{Source: 'i', Offset: 2, Field: "sf"}},
		{"i2:sf", Token{Source: 'i', Offset: 2, Field: "sf"}},
		{"l-1_hd:p", Token{Source: 'l', Offset: -1, Relation: "hd", Field: "p"}},
		{"s_lmd:d", Token{Source: 's', Relation: "lmd", Field: "d"}},
	}
	for _, tt := range tests {
		got, err := ParseToken(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTokenStringRoundTrip(t *testing.T) {
	for _, s := range []string{"i:f", "i-1:p", "i+2:sf", "l-1_hd:p", "b+3_rmd:ds"} {
		tok, err := ParseToken(s)
		require.NoError(t, err)
		assert.Equal(t, s, tok.String())
	}
}

func TestParseTokenErrors(t *testing.T) {
	for _, s := range []string{"", "i", "i:", ":f", "ix:f"} {
		_, err := ParseToken(s)
		var te *TemplateError
		assert.True(t, errors.As(err, &te), "expected TemplateError for %q, got %v", s, err)
	}
}

func TestExtractScalar(t *testing.T) {
	acc := mapAccessor{fields: map[string]string{
		"i:f":   "dog",
		"i-1:f": "the",
		"i-1:p": "DT",
	}}
	ext := NewExtractor([]Template{
		MustTemplate("f0", "i:f"),
		MustTemplate("f1", "i-1:f", "i:f"),
		MustTemplate("p2", "i-1:p", "i+1:p"), // i+1 out of range
		MustTemplate("p3", "i-1:p"),
	})

	vec := ext.Extract(acc)
	assert.Equal(t, Vector{
		{Type: "f0", Value: "dog", Weight: 1},
		{Type: "f1", Value: "the_dog", Weight: 1},
		{Type: "p3", Value: "DT", Weight: 1},
	}, vec)
}

func TestExtractCartesian(t *testing.T) {
	acc := mapAccessor{sets: map[string][]string{
		"i:a": {"x", "y"},
		"i:b": {"1", "2"},
	}}
	ext := NewExtractor([]Template{MustSetTemplate("s0", "i:a", "i:b")})

	vec := ext.Extract(acc)
	require.Len(t, vec, 4)
	var values []string
	for _, f := range vec {
		assert.Equal(t, "s0", f.Type)
		values = append(values, f.Value)
	}
	assert.Equal(t, []string{"x_1", "x_2", "y_1", "y_2"}, values)
}

func TestExtractSetDegradesScalar(t *testing.T) {
	acc := mapAccessor{
		fields: map[string]string{"i:p": "NN"},
		sets:   map[string][]string{"i:ft": {"Num=Sing", "Case=Nom"}},
	}
	ext := &Extractor{Templates: []Template{MustSetTemplate("s0", "i:p", "i:ft")}, Delimiter: "|"}

	vec := ext.Extract(acc)
	require.Len(t, vec, 2)
	assert.Equal(t, "NN|Num=Sing", vec[0].Value)
	assert.Equal(t, "NN|Case=Nom", vec[1].Value)
}

func TestExtractSetSkipsWholeTemplate(t *testing.T) {
	acc := mapAccessor{
		fields: map[string]string{"i:p": "NN"},
		sets:   map[string][]string{"i:ft": {"a", "b"}, "i:empty": {}},
	}
	ext := NewExtractor([]Template{
		MustSetTemplate("s0", "i:ft", "i+1:p"),
		MustSetTemplate("s1", "i:ft", "i:empty"),
		MustTemplate("p2", "i:p"),
	})

	vec := ext.Extract(acc)
	assert.Equal(t, Vector{{Type: "p2", Value: "NN", Weight: 1}}, vec)
}

func TestExtractTokenlessTemplate(t *testing.T) {
	acc := mapAccessor{fields: map[string]string{"i:p": "NN"}}
	ext := NewExtractor([]Template{
		{Type: "s0", Set: true},
		{Type: "f1"},
		MustTemplate("p2", "i:p"),
	})

	var vec Vector
	assert.NotPanics(t, func() { vec = ext.Extract(acc) })
	assert.Equal(t, Vector{{Type: "p2", Value: "NN", Weight: 1}}, vec)
}

func TestExtractTreeRelations(t *testing.T) {
	// root <- saw ; saw -> John (nsubj), saw -> dog (dobj), dog -> the (det)
	acc := treeAccessor{
		nodes: []treeNode{
			{},
			{form: "John", pos: "NNP", deprel: "nsubj", head: 2},
			{form: "saw", pos: "VBD", deprel: "root", head: 0},
			{form: "the", pos: "DT", deprel: "det", head: 4},
			{form: "dog", pos: "NN", deprel: "dobj", head: 2},
		},
		pivot: 4,
	}
	ext := NewExtractor([]Template{
		MustTemplate("p0", "i_hd:p", "i:p"),
		MustTemplate("d1", "i_lmd:d"),
		MustTemplate("d2", "i_rmd:d"), // dog has no right dependent
		MustSetTemplate("s3", "i_hd:ds"),
	})

	vec := ext.Extract(acc)
	assert.Equal(t, Vector{
		{Type: "p0", Value: "VBD_NN", Weight: 1},
		{Type: "d1", Value: "det", Weight: 1},
		{Type: "s3", Value: "nsubj", Weight: 1},
		{Type: "s3", Value: "dobj", Weight: 1},
	}, vec)
}

func TestVectorString(t *testing.T) {
	var v Vector
	v.Add("f0", "dog")
	v.Add("p1", "NN")
	assert.False(t, v.Weighted())
	assert.Equal(t, "f0:dog p1:NN", v.String())

	v.AddWeighted("n2", "len", 0.5)
	assert.True(t, v.Weighted())
	assert.Equal(t, "f0:dog:1 p1:NN:1 n2:len:0.5", v.String())

	var zero Vector
	zero.AddWeighted("f0", "dog", 0)
	assert.Equal(t, 0.0, zero.WeightAt(0))
	assert.True(t, zero.Weighted())
	assert.Equal(t, "f0:dog:0", zero.String())
}

const templateYAML = `
cutoffs:
  - label: 0
    feature: 1
  - label: 2
    feature: 3
templates:
  - type: f
    tokens: ["i:f"]
  - type: f
    visible: false
    tokens: ["i-1:f"]
  - type: p
    tokens: ["i-2:p", "i-1:p"]
  - type: s
    set: true
    note: suffixes
    tokens: ["i:suf"]
`

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates(strings.NewReader(templateYAML), LoadOptions{})
	require.NoError(t, err)

	require.Len(t, ts.Templates, 3)
	assert.Equal(t, "f0", ts.Templates[0].Type)
	assert.Equal(t, "p1", ts.Templates[1].Type)
	assert.Equal(t, "s2", ts.Templates[2].Type)
	assert.True(t, ts.Templates[2].Set)
	assert.Equal(t, "suffixes", ts.Templates[2].Note)
	assert.Equal(t, Cutoff{Label: 2, Feature: 3}, ts.Cutoff(1))
	assert.Equal(t, Cutoff{}, ts.Cutoff(5))

	all, err := LoadTemplates(strings.NewReader(templateYAML), LoadOptions{KeepInvisible: true})
	require.NoError(t, err)
	require.Len(t, all.Templates, 4)
	assert.False(t, all.Templates[1].Visible)
}

func TestLoadTemplatesSchema(t *testing.T) {
	schema := Schema{Sources: []byte{'i'}, Fields: []string{"f", "p"}}
	_, err := LoadTemplates(strings.NewReader(templateYAML), LoadOptions{Schema: schema})

	var te *TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "unknown field", te.Reason)
	assert.Equal(t, "i:suf", te.Token)
}

func TestEncodeDecompile(t *testing.T) {
	ts, err := LoadTemplates(strings.NewReader(templateYAML), LoadOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ts.Encode(&buf))
	assert.Contains(t, buf.String(), "i-2:p")

	back, err := Decompile(ts.File())
	require.NoError(t, err)
	assert.Equal(t, ts.Templates, back.Templates)
	assert.Equal(t, ts.Cutoffs, back.Cutoffs)
}
