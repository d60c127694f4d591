package tagger

import (
	"encoding/json"
	"fmt"

	"github.com/happyhackingspace/seqlab/beam"
	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/compress"
)

// bundle is the on-disk layout of a tagger.
type bundle struct {
	Templates feature.TemplateFile `json:"templates"`
	BeamWidth int                  `json:"beam_width"`
	Pruning   beam.PruneMode       `json:"pruning"`
	Model     *classifier.Model    `json:"model"`
}

// Save writes templates, decoding settings and model to one file,
// zstd-compressed when path ends in ".zst".
func (t *Tagger) Save(path string) error {
	data, err := json.Marshal(bundle{
		Templates: t.Templates.File(),
		BeamWidth: t.cfg.BeamWidth,
		Pruning:   t.cfg.Pruning,
		Model:     t.Model,
	})
	if err != nil {
		return fmt.Errorf("tagger: save %s: %w", path, err)
	}
	if err := compress.WriteFile(path, data); err != nil {
		return fmt.Errorf("tagger: save %s: %w", path, err)
	}
	return nil
}

// Load reads a tagger written by Save. Decoding settings stored in the file
// override those of cfg; the cache size is taken from cfg.
func Load(path string, cfg Config) (*Tagger, error) {
	data, err := compress.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tagger: load %s: %w", path, err)
	}
	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("tagger: load %s: %w", path, err)
	}
	if b.Model == nil {
		return nil, fmt.Errorf("tagger: load %s: no model", path)
	}
	templates, err := feature.Decompile(b.Templates)
	if err != nil {
		return nil, fmt.Errorf("tagger: load %s: %w", path, err)
	}
	for _, tmpl := range templates.Templates {
		if err := Schema.Validate(tmpl); err != nil {
			return nil, fmt.Errorf("tagger: load %s: %w", path, err)
		}
	}

	cfg.BeamWidth = b.BeamWidth
	cfg.Pruning = b.Pruning
	cfg.LabelCutoff = b.Model.Vocabulary.LabelCutoff
	cfg.FeatureCutoff = b.Model.Vocabulary.FeatureCutoff
	return New(templates, b.Model, cfg)
}
