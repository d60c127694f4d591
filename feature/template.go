package feature

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// FieldDelimiter separates the position part of a token from its field.
	FieldDelimiter = ":"
	// RelationDelimiter separates a source position from a relation.
	RelationDelimiter = "_"
)

// Token addresses one field at one position of the caller's structure.
//
// Source names the pivot (e.g. 'i' for the current token, 's' for a stack
// top), Offset moves relative to it and Relation optionally walks a
// structural edge from there ("hd" head, "lmd" leftmost dependent, ...).
type Token struct {
	Source   byte
	Offset   int
	Relation string
	Field    string
}

// ParseToken parses the compact form "<source><offset>[_<relation>]:<field>",
// for example "i:f", "i-1:p", "i+2:sf" or "l-1_hd:p".
func ParseToken(s string) (Token, error) {
	pos, field, ok := strings.Cut(s, FieldDelimiter)
	if !ok || field == "" {
		return Token{}, &TemplateError{Token: s, Reason: "missing field"}
	}
	pos, rel, _ := strings.Cut(pos, RelationDelimiter)
	if pos == "" {
		return Token{}, &TemplateError{Token: s, Reason: "missing source"}
	}

	tok := Token{Source: pos[0], Relation: rel, Field: field}
	if len(pos) > 1 {
		off := strings.TrimPrefix(pos[1:], "+")
		n, err := strconv.Atoi(off)
		if err != nil {
			return Token{}, &TemplateError{Token: s, Reason: "invalid offset", Err: err}
		}
		tok.Offset = n
	}
	return tok, nil
}

// String renders the token in the syntax accepted by ParseToken.
func (t Token) String() string {
	var b strings.Builder
	b.WriteByte(t.Source)
	if t.Offset != 0 {
		if t.Offset > 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(t.Offset))
	}
	if t.Relation != "" {
		b.WriteString(RelationDelimiter)
		b.WriteString(t.Relation)
	}
	b.WriteString(FieldDelimiter)
	b.WriteString(t.Field)
	return b.String()
}

// Template is an ordered list of tokens producing features of one type.
type Template struct {
	Type    string
	Tokens  []Token
	Set     bool
	Visible bool
	Note    string
}

// NewTemplate builds a visible scalar template from token strings.
func NewTemplate(typ string, tokens ...string) (Template, error) {
	t := Template{Type: typ, Visible: true}
	for _, s := range tokens {
		tok, err := ParseToken(s)
		if err != nil {
			return Template{}, err
		}
		t.Tokens = append(t.Tokens, tok)
	}
	return t, nil
}

// MustTemplate is like NewTemplate but panics on a malformed token.
func MustTemplate(typ string, tokens ...string) Template {
	t, err := NewTemplate(typ, tokens...)
	if err != nil {
		panic(err)
	}
	return t
}

// MustSetTemplate is like MustTemplate but marks the template as a set feature.
func MustSetTemplate(typ string, tokens ...string) Template {
	t := MustTemplate(typ, tokens...)
	t.Set = true
	return t
}

func (t Template) String() string {
	strs := make([]string, len(t.Tokens))
	for i, tok := range t.Tokens {
		strs[i] = tok.String()
	}
	return t.Type + "=" + strings.Join(strs, " ")
}

// Schema lists the sources, relations and fields a task understands.
// A nil list accepts anything.
type Schema struct {
	Sources   []byte
	Relations []string
	Fields    []string
}

// Validate checks every token of the template against the schema.
func (s Schema) Validate(t Template) error {
	if len(t.Tokens) == 0 {
		return &TemplateError{Template: t.Type, Reason: "no tokens"}
	}
	for _, tok := range t.Tokens {
		switch {
		case s.Sources != nil && !slices.Contains(s.Sources, tok.Source):
			return &TemplateError{Template: t.Type, Token: tok.String(), Reason: "unknown source"}
		case tok.Relation != "" && s.Relations != nil && !slices.Contains(s.Relations, tok.Relation):
			return &TemplateError{Template: t.Type, Token: tok.String(), Reason: "unknown relation"}
		case s.Fields != nil && !slices.Contains(s.Fields, tok.Field):
			return &TemplateError{Template: t.Type, Token: tok.String(), Reason: "unknown field"}
		}
	}
	return nil
}

// TemplateError reports a malformed template definition.
type TemplateError struct {
	Template string
	Token    string
	Reason   string
	Err      error
}

func (e *TemplateError) Error() string {
	msg := "feature: " + e.Reason
	if e.Token != "" {
		msg += fmt.Sprintf(" in token %q", e.Token)
	}
	if e.Template != "" {
		msg += fmt.Sprintf(" of template %q", e.Template)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TemplateError) Unwrap() error { return e.Err }
