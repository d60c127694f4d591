// Package storage reads and writes labeled instance files and data folders
// of instance files.
package storage

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/internal/compress"
)

// Storage wraps an instance data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

// Config is the structure of config.json.
type Config struct {
	Weighted    bool              `json:"weighted"`
	SkipLabel   string            `json:"skip_label"`
	SimplifyMap map[string]string `json:"simplify_map"`
}

// indexEntry represents a single entry in index.json.
type indexEntry struct {
	Group string `json:"group"`
}

// Record is one labeled instance together with where it came from.
type Record struct {
	classifier.Example
	Group  string
	Source string
}

// GetConfig reads the config file. A missing file yields the zero config.
func (s *Storage) GetConfig() (*Config, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, "config.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetIndex reads the index file mapping instance files to groups. Without
// an index every instance file in the folder is used and forms its own
// group.
func (s *Storage) GetIndex() (map[string]indexEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, "index.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return s.scanIndex()
	}
	if err != nil {
		return nil, err
	}
	var index map[string]indexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *Storage) scanIndex() (map[string]indexEntry, error) {
	index := make(map[string]indexEntry)
	err := filepath.WalkDir(s.Folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsInstanceFile(path) {
			return nil
		}
		rel, err := filepath.Rel(s.Folder, path)
		if err != nil {
			return err
		}
		index[rel] = indexEntry{Group: GroupOf(rel)}
		return nil
	})
	return index, err
}

// IsInstanceFile reports whether path has an instance file extension.
func IsInstanceFile(path string) bool {
	path = strings.TrimSuffix(path, compress.Ext)
	return filepath.Ext(path) == ".inst"
}

// GroupOf derives a group name from an instance file path: its base name
// without extensions.
func GroupOf(path string) string {
	base := filepath.Base(strings.TrimSuffix(path, compress.Ext))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IterRecords reads every indexed instance file, ordered by group then path.
func (s *Storage) IterRecords(opts IterOptions) ([]Record, error) {
	config, err := s.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	index, err := s.GetIndex()
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}

	type pathInfo struct {
		path string
		info indexEntry
	}
	sorted := make([]pathInfo, 0, len(index))
	for path, info := range index {
		sorted = append(sorted, pathInfo{path, info})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].info.Group != sorted[j].info.Group {
			return sorted[i].info.Group < sorted[j].info.Group
		}
		return sorted[i].path < sorted[j].path
	})

	seen := make(map[[md5.Size]byte]bool)
	var records []Record

	for _, pi := range sorted {
		examples, err := ReadInstanceFile(filepath.Join(s.Folder, pi.path), config.Weighted)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Cannot read instance file", "path", pi.path, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, ex := range examples {
			if opts.SimplifyLabels {
				if simplified, ok := config.SimplifyMap[ex.Label]; ok {
					ex.Label = simplified
				}
			}
			if opts.DropSkipped && config.SkipLabel != "" && ex.Label == config.SkipLabel {
				continue
			}
			if opts.DropDuplicates {
				hash := md5.Sum([]byte(FormatInstance(ex, config.Weighted)))
				if seen[hash] {
					continue
				}
				seen[hash] = true
			}
			records = append(records, Record{Example: ex, Group: pi.info.Group, Source: pi.path})
		}
		if opts.Verbose {
			slog.Debug("Read instance file", "path", pi.path, "instances", len(examples))
		}
	}

	return records, nil
}

// IterOptions controls record iteration behavior.
type IterOptions struct {
	DropDuplicates bool
	DropSkipped    bool
	SimplifyLabels bool
	Verbose        bool
}

// DefaultIterOptions returns the default options for iterating records.
func DefaultIterOptions() IterOptions {
	return IterOptions{
		DropSkipped:    true,
		SimplifyLabels: true,
	}
}

// Examples strips provenance from records.
func Examples(records []Record) []classifier.Example {
	out := make([]classifier.Example, len(records))
	for i, r := range records {
		out[i] = r.Example
	}
	return out
}

// Groups returns the group of every record.
func Groups(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Group
	}
	return out
}
