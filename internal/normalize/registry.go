package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

//go:embed registry.yaml
var builtinRegistry []byte

// RegistryEntry is one curated canonical definition key
type RegistryEntry struct {
	Key           string   `yaml:"key"`
	CanonicalTerm string   `yaml:"canonical_term"`
	Aliases       []string `yaml:"aliases"`
}

type registryFile struct {
	Entries []RegistryEntry `yaml:"entries"`
}

// Registry maps normalized aliases to curated entries. It is immutable after
// construction and safe for concurrent reads.
type Registry struct {
	byAlias map[string]RegistryEntry
	byKey   map[string]RegistryEntry
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the built-in registry, parsed on first use
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r, err := ParseRegistry(builtinRegistry)
		if err != nil {
			panic(fmt.Sprintf("normalize: built-in registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// LoadRegistry reads a registry file. An empty path returns the built-in registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML. Keys must be unique and an alias
// may belong to only one key.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	r := &Registry{
		byAlias: make(map[string]RegistryEntry),
		byKey:   make(map[string]RegistryEntry, len(f.Entries)),
	}

	for _, e := range f.Entries {
		if e.Key == "" || e.CanonicalTerm == "" {
			return nil, fmt.Errorf("registry entry missing key or canonical_term: %+v", e)
		}
		if _, dup := r.byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate registry key %q", e.Key)
		}
		r.byKey[e.Key] = e

		// The canonical term is always an alias of itself
		for _, alias := range append([]string{e.CanonicalTerm}, e.Aliases...) {
			norm := util.NormalizeKey(alias)
			if norm == "" {
				continue
			}
			if prev, ok := r.byAlias[norm]; ok && prev.Key != e.Key {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, prev.Key, e.Key)
			}
			r.byAlias[norm] = e
		}
	}

	return r, nil
}

// Lookup finds the curated entry for a raw term. It tries the normalized
// term, then the term without a trailing plural "s", then the slug as a key.
func (r *Registry) Lookup(term string) (RegistryEntry, bool) {
	norm := util.NormalizeKey(term)
	if norm == "" {
		return RegistryEntry{}, false
	}
	if e, ok := r.byAlias[norm]; ok {
		return e, true
	}
	if len(norm) > 3 && norm[len(norm)-1] == 's' {
		if e, ok := r.byAlias[norm[:len(norm)-1]]; ok {
			return e, true
		}
	}
	e, ok := r.byKey[util.Slugify(term)]
	return e, ok
}

// Len returns the number of curated keys
func (r *Registry) Len() int {
	return len(r.byKey)
}
