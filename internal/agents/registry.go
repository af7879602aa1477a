// Package agents holds the static description of the remote agent services
// and the liveness states they can be in.
package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/autodev/internal/config"
)

// Descriptor identifies one agent service. Immutable after load.
type Descriptor struct {
	Name        string // Identifier, also the stage name ("planning", "database", ...)
	Address     string // Base URL without trailing slash
	DisplayName string
	Color       string
	Icon        string
}

// Registry maps agent identifiers to descriptors. It is read-only after
// construction, so it needs no locking.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// NewRegistry builds a registry from descriptors. Names must be unique and
// addresses non-empty.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Descriptor, len(descriptors)),
		order:  make([]string, 0, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("agent descriptor has no name")
		}
		if d.Address == "" {
			return nil, fmt.Errorf("agent %q has no address", d.Name)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("agent %q registered twice", d.Name)
		}
		d.Address = strings.TrimRight(d.Address, "/")
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}

	return r, nil
}

// FromConfig builds a registry from the agents section of cfg. Pipeline
// agents come first in stage order, any extra agents follow sorted by name.
func FromConfig(cfg *config.Config) (*Registry, error) {
	seen := make(map[string]bool, len(cfg.Agents))
	descriptors := make([]Descriptor, 0, len(cfg.Agents))

	for _, name := range config.PipelineAgents {
		ac, ok := cfg.Agents[name]
		if !ok {
			continue
		}
		seen[name] = true
		descriptors = append(descriptors, descriptorFrom(name, ac))
	}

	var extra []string
	for name := range cfg.Agents {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		descriptors = append(descriptors, descriptorFrom(name, cfg.Agents[name]))
	}

	return NewRegistry(descriptors...)
}

func descriptorFrom(name string, ac config.AgentConfig) Descriptor {
	return Descriptor{
		Name:        name,
		Address:     ac.Address,
		DisplayName: ac.DisplayName,
		Color:       ac.Color,
		Icon:        ac.Icon,
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Agents returns all descriptors in registration order.
func (r *Registry) Agents() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.order)
}
