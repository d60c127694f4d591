package feature

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Cutoff holds exclusive occurrence thresholds for one model.
type Cutoff struct {
	Label   int `yaml:"label" json:"label"`
	Feature int `yaml:"feature" json:"feature"`
}

// TemplateSpec is the serialized form of a template.
type TemplateSpec struct {
	Type    string   `yaml:"type" json:"type"`
	Set     bool     `yaml:"set,omitempty" json:"set,omitempty"`
	Visible *bool    `yaml:"visible,omitempty" json:"visible,omitempty"`
	Note    string   `yaml:"note,omitempty" json:"note,omitempty"`
	Tokens  []string `yaml:"tokens" json:"tokens"`
}

// TemplateFile is the layout of a template configuration file.
type TemplateFile struct {
	Cutoffs   []Cutoff       `yaml:"cutoffs,omitempty" json:"cutoffs,omitempty"`
	Templates []TemplateSpec `yaml:"templates" json:"templates"`
}

// TemplateSet is a validated, ready-to-use list of templates.
type TemplateSet struct {
	Templates []Template
	Cutoffs   []Cutoff
}

// LoadOptions controls template compilation.
type LoadOptions struct {
	Schema        Schema
	KeepInvisible bool
}

// LoadTemplateFile reads a YAML template file from disk.
func LoadTemplateFile(path string, opts LoadOptions) (*TemplateSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTemplates(f, opts)
}

// LoadTemplates decodes YAML template definitions from r.
func LoadTemplates(r io.Reader, opts LoadOptions) (*TemplateSet, error) {
	var file TemplateFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, &TemplateError{Reason: "decode template file", Err: err}
	}
	return Compile(file, opts)
}

// Compile parses and validates template specs. Every kept template gets its
// ordinal appended to its declared type so that types are unique.
func Compile(file TemplateFile, opts LoadOptions) (*TemplateSet, error) {
	ts := &TemplateSet{Cutoffs: file.Cutoffs}
	for i, spec := range file.Templates {
		visible := spec.Visible == nil || *spec.Visible
		if !visible && !opts.KeepInvisible {
			continue
		}

		t := Template{
			Type:    spec.Type + strconv.Itoa(len(ts.Templates)),
			Set:     spec.Set,
			Visible: visible,
			Note:    spec.Note,
		}
		for _, s := range spec.Tokens {
			tok, err := ParseToken(s)
			if err != nil {
				return nil, fmt.Errorf("template %d: %w", i, err)
			}
			t.Tokens = append(t.Tokens, tok)
		}
		if err := opts.Schema.Validate(t); err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		ts.Templates = append(ts.Templates, t)
	}
	return ts, nil
}

// Cutoff returns the i-th cutoff pair, or zero cutoffs when absent.
func (ts *TemplateSet) Cutoff(i int) Cutoff {
	if i < len(ts.Cutoffs) {
		return ts.Cutoffs[i]
	}
	return Cutoff{}
}

// File converts the set back into its serialized form. Types keep their
// ordinal suffix, so compiling the result yields doubly suffixed types;
// use Decompile for a round trip.
func (ts *TemplateSet) File() TemplateFile {
	file := TemplateFile{Cutoffs: ts.Cutoffs}
	for _, t := range ts.Templates {
		file.Templates = append(file.Templates, specOf(t))
	}
	return file
}

// Decompile restores a set from File output without renaming types.
func Decompile(file TemplateFile) (*TemplateSet, error) {
	ts := &TemplateSet{Cutoffs: file.Cutoffs}
	for _, spec := range file.Templates {
		t, err := NewTemplate(spec.Type, spec.Tokens...)
		if err != nil {
			return nil, err
		}
		t.Set = spec.Set
		t.Visible = spec.Visible == nil || *spec.Visible
		t.Note = spec.Note
		ts.Templates = append(ts.Templates, t)
	}
	return ts, nil
}

func specOf(t Template) TemplateSpec {
	spec := TemplateSpec{Type: t.Type, Set: t.Set, Note: t.Note}
	if !t.Visible {
		v := false
		spec.Visible = &v
	}
	for _, tok := range t.Tokens {
		spec.Tokens = append(spec.Tokens, tok.String())
	}
	return spec
}

// Encode writes the set as YAML.
func (ts *TemplateSet) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ts.File()); err != nil {
		return err
	}
	return enc.Close()
}
