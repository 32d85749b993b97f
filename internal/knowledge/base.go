// Package knowledge answers keyword queries from a small, static insurance
// knowledge base. The base is loaded once at startup and never mutated.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Base is an immutable category -> subcategory -> text mapping.
// The zero value is an empty base.
type Base struct {
	entries map[string]map[string]string
}

// NewBase builds a Base from the given mapping. The mapping is copied, so
// later changes by the caller are not observed.
func NewBase(m map[string]map[string]string) Base {
	entries := make(map[string]map[string]string, len(m))
	for cat, subs := range m {
		cp := make(map[string]string, len(subs))
		for k, v := range subs {
			cp[k] = v
		}
		entries[cat] = cp
	}
	return Base{entries: entries}
}

// Get returns the snippet stored under category/key, or "" if either is missing.
func (b Base) Get(category, key string) string {
	return b.entries[category][key]
}

// Categories returns the category names in sorted order.
func (b Base) Categories() []string {
	cats := make([]string, 0, len(b.entries))
	for c := range b.entries {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Len returns the total number of snippets.
func (b Base) Len() int {
	n := 0
	for _, subs := range b.entries {
		n += len(subs)
	}
	return n
}

// Load reads a knowledge base from a JSON or YAML file. A missing or
// malformed file yields an empty Base together with the error, so callers can
// log it and carry on. A path containing glob metacharacters is handed to
// LoadGlob.
func Load(path string) (Base, error) {
	if strings.ContainsAny(path, "*?[{") {
		return LoadGlob(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Base{}, fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	b, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Base{}, fmt.Errorf("parsing knowledge base %s: %w", path, err)
	}
	return b, nil
}

// LoadGlob merges every file matching a doublestar pattern such as
// "kb/**/*.yaml", in lexical path order. A key defined in several files takes
// the value from the last one. Files that fail to load are skipped and their
// errors joined; the Base holds whatever loaded.
func LoadGlob(pattern string) (Base, error) {
	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return Base{}, fmt.Errorf("matching knowledge base %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return Base{}, fmt.Errorf("no knowledge base files match %s", pattern)
	}
	sort.Strings(paths)

	merged := make(map[string]map[string]string)
	var errs []error
	for _, p := range paths {
		b, err := Load(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for cat, subs := range b.entries {
			if merged[cat] == nil {
				merged[cat] = make(map[string]string, len(subs))
			}
			for k, v := range subs {
				merged[cat][k] = v
			}
		}
	}
	return Base{entries: merged}, errors.Join(errs...)
}

// Parse decodes a knowledge base document. ext selects the format: ".yml" and
// ".yaml" are YAML, anything else is JSON. Non-object categories and
// non-string leaves are skipped.
func Parse(data []byte, ext string) (Base, error) {
	var raw map[string]any
	switch strings.ToLower(ext) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Base{}, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return Base{}, err
		}
	}

	entries := make(map[string]map[string]string, len(raw))
	for cat, v := range raw {
		subs, ok := v.(map[string]any)
		if !ok {
			continue
		}
		texts := make(map[string]string, len(subs))
		for key, leaf := range subs {
			if s, ok := leaf.(string); ok {
				texts[key] = s
			}
		}
		entries[cat] = texts
	}
	return Base{entries: entries}, nil
}
