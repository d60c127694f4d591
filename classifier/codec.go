package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/compress"
)

// modelFile is the serialized layout of a Model.
type modelFile struct {
	Cutoffs  feature.Cutoff `json:"cutoffs"`
	Labels   []string       `json:"labels"`
	Features [][2]string    `json:"features"`
	Weights  [][]float64    `json:"weights"`
	Bias     []float64      `json:"bias,omitempty"`
	Meta     Meta           `json:"meta"`
}

// MarshalJSON implements json.Marshaler.
func (m *Model) MarshalJSON() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	file := modelFile{
		Cutoffs:  feature.Cutoff{Label: m.Vocabulary.LabelCutoff, Feature: m.Vocabulary.FeatureCutoff},
		Labels:   m.Vocabulary.Labels(),
		Features: make([][2]string, m.Vocabulary.NumFeatures()),
		Weights:  m.Weights,
		Bias:     m.Bias,
		Meta:     m.Meta,
	}
	for i, k := range m.Vocabulary.Features() {
		file.Features[i] = [2]string{k.Type, k.Value}
	}
	return json.Marshal(file)
}

// UnmarshalJSON implements json.Unmarshaler. Structural problems are
// reported as *ModelError.
func (m *Model) UnmarshalJSON(data []byte) error {
	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return &ModelError{Reason: "decode", cause: err}
	}

	keys := make([]FeatureKey, len(file.Features))
	for i, f := range file.Features {
		keys[i] = FeatureKey{Type: f[0], Value: f[1]}
	}
	vocab, err := newVocabulary(file.Labels, keys)
	if err != nil {
		return err
	}
	vocab.LabelCutoff = file.Cutoffs.Label
	vocab.FeatureCutoff = file.Cutoffs.Feature

	if file.Weights == nil {
		file.Weights = [][]float64{}
	}
	loaded, err := NewModel(vocab, file.Weights, file.Bias, file.Meta)
	if err != nil {
		return err
	}
	*m = *loaded
	return nil
}

// Marshal serializes the model to JSON bytes.
func Marshal(m *Model) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal deserializes a model from JSON bytes.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		var me *ModelError
		if errors.As(err, &me) {
			return nil, err
		}
		return nil, &ModelError{Reason: "decode", cause: err}
	}
	return &m, nil
}

// WriteTo writes the JSON form of the model to w.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	data, err := Marshal(m)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadModel reads a model written by WriteTo.
func ReadModel(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Save writes the model to path, zstd-compressed when path ends in ".zst".
func Save(m *Model, path string) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := compress.WriteFile(path, data); err != nil {
		return fmt.Errorf("classifier: save %s: %w", path, err)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(path string) (*Model, error) {
	data, err := compress.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: load %s: %w", path, err)
	}
	return Unmarshal(data)
}
