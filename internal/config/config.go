// Package config loads seqlab settings from defaults, a YAML file and the
// environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/seqlab/beam"
	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/tagger"
)

// Config is the layout of a seqlab configuration file.
type Config struct {
	// Templates is a YAML template file; empty selects the built-in set.
	Templates   string        `yaml:"templates"`
	Tagger      tagger.Config `yaml:"tagger"`
	Folds       int           `yaml:"folds"`
	Workers     int           `yaml:"workers"` // tagging goroutines
	MetricsFile string        `yaml:"metrics_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tagger:  tagger.DefaultConfig(),
		Folds:   10,
		Workers: 4,
	}
}

// Load returns the defaults overridden by the file at path, when path is
// not empty, and by SEQLAB_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvironment(os.Getenv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvironment(getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"SEQLAB_BEAM_WIDTH", &c.Tagger.BeamWidth},
		{"SEQLAB_FEATURE_CUTOFF", &c.Tagger.FeatureCutoff},
		{"SEQLAB_TRAIN_WORKERS", &c.Tagger.Trainer.Workers},
		{"SEQLAB_WORKERS", &c.Workers},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := getenv("SEQLAB_ALGORITHM"); v != "" {
		alg, err := classifier.ParseAlgorithm(v)
		if err != nil {
			return err
		}
		c.Tagger.Trainer.Algorithm = alg
	}
	if v := getenv("SEQLAB_PRUNING"); v != "" {
		mode, err := beam.ParsePruneMode(v)
		if err != nil {
			return err
		}
		c.Tagger.Pruning = mode
	}
	if v := getenv("SEQLAB_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
	return nil
}

// Validate reports settings no command can run with.
func (c *Config) Validate() error {
	switch {
	case c.Tagger.BeamWidth < 1:
		return fmt.Errorf("config: beam_width must be at least 1, got %d", c.Tagger.BeamWidth)
	case c.Tagger.LabelCutoff < 0 || c.Tagger.FeatureCutoff < 0:
		return fmt.Errorf("config: cutoffs must not be negative")
	case c.Tagger.CacheSize < 0:
		return fmt.Errorf("config: cache_size must not be negative, got %d", c.Tagger.CacheSize)
	case c.Folds < 2:
		return fmt.Errorf("config: folds must be at least 2, got %d", c.Folds)
	case c.Workers < 1:
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Encode writes c as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
