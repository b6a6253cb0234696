// Package presets manages YAML-defined named clustering configurations.
package presets

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/textclust/internal/cluster"
	"github.com/thebtf/textclust/internal/params"
)

// Preset is a named algorithm and parameter set. A preset may extend another
// one, inheriting its algorithm and parameters and overriding them.
type Preset struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Algorithm   string         `yaml:"algorithm"`
	Extends     string         `yaml:"extends"`
	Params      map[string]any `yaml:"params"`
}

// Config is the top-level YAML structure.
type Config struct {
	Presets []Preset `yaml:"presets"`
}

// Registry holds loaded presets, keyed by name.
type Registry struct {
	byName map[string]*Preset
	order  []string // preserves definition order
}

// Empty returns a registry without presets.
func Empty() *Registry {
	return &Registry{byName: make(map[string]*Preset)}
}

// Load reads the YAML file at path and returns a Registry.
// If the file does not exist, Load returns an empty Registry (not an error).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse builds a Registry from YAML bytes, checking names, algorithms and
// extends references.
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	r := &Registry{
		byName: make(map[string]*Preset, len(cfg.Presets)),
	}
	for i := range cfg.Presets {
		p := &cfg.Presets[i]
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("preset %q defined twice", p.Name)
		}
		if p.Algorithm != "" {
			if _, err := cluster.Lookup(p.Algorithm); err != nil {
				return nil, fmt.Errorf("preset %q: %w", p.Name, err)
			}
		}
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	for _, name := range r.order {
		if _, _, err := r.Resolve(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get returns a preset by name. Returns (nil, false) if not found.
func (r *Registry) Get(name string) (*Preset, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns all presets in definition order.
func (r *Registry) All() []*Preset {
	result := make([]*Preset, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns a sorted list of preset names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Resolve flattens the extends chain of name, root first, so that each
// preset overrides the algorithm and parameters of the one it extends.
func (r *Registry) Resolve(name string) (string, params.Map, error) {
	var chain []*Preset
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return "", nil, fmt.Errorf("preset %q: extends cycle through %q", name, cur)
		}
		seen[cur] = true
		p, ok := r.byName[cur]
		if !ok {
			return "", nil, fmt.Errorf("unknown preset %q", cur)
		}
		chain = append(chain, p)
		cur = p.Extends
	}

	algorithm := ""
	merged := params.Map{}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Algorithm != "" {
			algorithm = chain[i].Algorithm
		}
		merged = params.Merge(merged, chain[i].Params)
	}
	return algorithm, merged, nil
}
