package tagger

import (
	"strings"

	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/textutil"
)

// Field names understood by the tagger's feature templates.
const (
	FieldForm            = "f"   // word-form
	FieldSimplified      = "sf"  // simplified form
	FieldLowerSimplified = "lsf" // lowercased simplified form
	FieldLemma           = "m"   // lemma
	FieldTag             = "p"   // tag, left context only
	FieldShape           = "sh"  // word shape
	FieldPrefix          = "pre" // set: prefixes of lsf
	FieldSuffix          = "suf" // set: suffixes of lsf
	FieldFeats           = "ft"  // set: morphological features
	FieldOrthography     = "o"   // set: orthographic flags
)

// SourceInput is the only template source: the token being tagged.
const SourceInput = 'i'

// MaxAffix is the longest prefix or suffix, in runes, used as a feature.
const MaxAffix = 4

// Schema accepts the tagger's source and fields and no relations.
var Schema = feature.Schema{
	Sources:   []byte{SourceInput},
	Relations: []string{},
	Fields: []string{
		FieldForm, FieldSimplified, FieldLowerSimplified, FieldLemma, FieldTag,
		FieldShape, FieldPrefix, FieldSuffix, FieldFeats, FieldOrthography,
	},
}

// Token is one word of a sentence. Tag is the gold tag when training and
// the predicted tag after tagging.
type Token struct {
	Form  string
	Lemma string
	Tag   string
	Feats []string
}

// Sentence is an ordered list of tokens.
type Sentence []Token

// Forms returns the word-forms of s.
func (s Sentence) Forms() []string {
	forms := make([]string, len(s))
	for i, t := range s {
		forms[i] = t.Form
	}
	return forms
}

// Tags returns the tags of s.
func (s Sentence) Tags() []string {
	tags := make([]string, len(s))
	for i, t := range s {
		tags[i] = t.Tag
	}
	return tags
}

// node is a token with its derived forms precomputed.
type node struct {
	Token
	simplified string
	lower      string
	shape      string
	prefixes   []string
	suffixes   []string
	ortho      []string
}

func prepare(s Sentence) []node {
	nodes := make([]node, len(s))
	for i, t := range s {
		sf := textutil.Simplify(t.Form)
		lsf := strings.ToLower(sf)
		nodes[i] = node{
			Token:      t,
			simplified: sf,
			lower:      lsf,
			shape:      textutil.Shape(t.Form),
			prefixes:   textutil.Prefixes(lsf, MaxAffix),
			suffixes:   textutil.Suffixes(lsf, MaxAffix),
			ortho:      textutil.Orthography(sf),
		}
	}
	return nodes
}

// state is the feature.Accessor for the token at position i. tags holds
// the labels chosen for positions before i.
type state struct {
	nodes []node
	i     int
	tags  []string
}

func (s state) node(tok feature.Token) (*node, int, bool) {
	if tok.Source != SourceInput || tok.Relation != "" {
		return nil, 0, false
	}
	j := s.i + tok.Offset
	if j < 0 || j >= len(s.nodes) {
		return nil, 0, false
	}
	return &s.nodes[j], j, true
}

func (s state) Field(tok feature.Token) (string, bool) {
	n, j, ok := s.node(tok)
	if !ok {
		return "", false
	}
	var v string
	switch tok.Field {
	case FieldForm:
		v = n.Form
	case FieldSimplified:
		v = n.simplified
	case FieldLowerSimplified:
		v = n.lower
	case FieldLemma:
		v = n.Lemma
	case FieldTag:
		if j >= s.i || j >= len(s.tags) {
			return "", false
		}
		v = s.tags[j]
	case FieldShape:
		v = n.shape
	}
	return v, v != ""
}

func (s state) Fields(tok feature.Token) ([]string, bool) {
	n, _, ok := s.node(tok)
	if !ok {
		return nil, false
	}
	var vs []string
	switch tok.Field {
	case FieldPrefix:
		vs = n.prefixes
	case FieldSuffix:
		vs = n.suffixes
	case FieldFeats:
		vs = n.Feats
	case FieldOrthography:
		vs = n.ortho
	default:
		return nil, false
	}
	return vs, len(vs) > 0
}
