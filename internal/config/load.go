package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPatterns are the task-file name patterns scanned in a config directory.
var DefaultPatterns = []string{"*tasks.yaml", "*_tasks.yaml", "*tasks.yml", "*tasks.toml"}

type rawFile struct {
	Global map[string]any   `json:"global"`
	Tasks  []map[string]any `json:"tasks"`
}

// LoadFile reads and parses one configuration source.
//
// A missing file is reported with an error satisfying errors.Is(err, fs.ErrNotExist).
// An empty document yields an empty File.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes data as the format implied by path's extension.
func Parse(path string, data []byte) (*File, error) {
	f := &File{Path: path, Global: Values{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}

	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		return f, nil
	}

	var raw rawFile
	dec := json.NewDecoder(bytes.NewReader(jb))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", path, format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s: invalid config: trailing data", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if raw.Global != nil {
		f.Global = Values(raw.Global)
	}
	f.Tasks = make([]TaskDefinition, 0, len(raw.Tasks))
	for _, t := range raw.Tasks {
		if t == nil {
			continue
		}
		f.Tasks = append(f.Tasks, newTaskDefinition(path, Values(t)))
	}
	return f, nil
}

// Discover returns the task files in dir matching any of patterns, deduplicated
// by cleaned absolute path and sorted. nil patterns means DefaultPatterns.
//
// A missing dir yields no files; any other error reading dir is returned.
func Discover(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", dir)
	}

	seen := map[string]struct{}{}
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = filepath.Clean(m)
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			if fi, err := os.Stat(abs); err != nil || fi.IsDir() {
				continue
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsTaskFile reports whether the base name of path matches one of patterns.
func IsTaskFile(path string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
