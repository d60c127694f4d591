package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T) *Model {
	t.Helper()
	cfg := DefaultTrainerConfig()
	cfg.Bias = 1
	model, err := Train(context.Background(), separable(), 0, 1, cfg)
	require.NoError(t, err)
	return model
}

func heldOut() []Example {
	return []Example{
		{Label: "NOUN", Vector: vec("w", "dog", "pos", "1")},
		{Label: "VERB", Vector: vec("w", "see", "w", "unseen")},
		{Label: "ADJ", Vector: vec("w", "old", "bias", "on")},
		{Label: "?", Vector: vec("pos", "0")},
	}
}

func assertSameModel(t *testing.T, want, got *Model) {
	t.Helper()
	assert.Equal(t, want.Vocabulary.Labels(), got.Vocabulary.Labels())
	assert.Equal(t, want.Vocabulary.Features(), got.Vocabulary.Features())
	assert.Equal(t, want.Vocabulary.LabelCutoff, got.Vocabulary.LabelCutoff)
	assert.Equal(t, want.Vocabulary.FeatureCutoff, got.Vocabulary.FeatureCutoff)
	assert.Equal(t, want.Weights, got.Weights)
	assert.Equal(t, want.Bias, got.Bias)
	assert.Equal(t, want.Meta.ID, got.Meta.ID)
	assert.Equal(t, want.Meta.Algorithm, got.Meta.Algorithm)
	assert.True(t, want.Meta.CreatedAt.Equal(got.Meta.CreatedAt))
	for _, ex := range heldOut() {
		assert.Equal(t, want.Predict(ex.Vector), got.Predict(ex.Vector))
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	model := trainedModel(t)

	data, err := Marshal(model)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assertSameModel(t, model, back)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"cutoffs", "labels", "features", "weights", "bias", "meta"} {
		assert.Contains(t, raw, key)
	}
	assert.Contains(t, string(raw["meta"]), `"algorithm":"l2lr"`)
}

func TestWriteToReadModel(t *testing.T) {
	model := trainedModel(t)

	var buf bytes.Buffer
	n, err := model.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	back, err := ReadModel(&buf)
	require.NoError(t, err)
	assertSameModel(t, model, back)
}

func TestSaveLoad(t *testing.T) {
	model := trainedModel(t)
	dir := t.TempDir()

	for _, name := range []string{"model.json", "model.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(model, path))
			back, err := Load(path)
			require.NoError(t, err)
			assertSameModel(t, model, back)
		})
	}
}

func TestUnmarshalStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"rows", `{"labels":["A","B"],"features":[["f","x"]],"weights":[[1]]}`},
		{"columns", `{"labels":["A"],"features":[["f","x"]],"weights":[[1,2]]}`},
		{"duplicate label", `{"labels":["A","A"],"features":[],"weights":[[],[]]}`},
		{"duplicate feature", `{"labels":["A"],"features":[["f","x"],["f","x"]],"weights":[[1,2]]}`},
		{"bias", `{"labels":["A"],"features":[],"weights":[[]],"bias":[1,2]}`},
		{"syntax", `{"labels":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			var me *ModelError
			assert.ErrorAs(t, err, &me)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
