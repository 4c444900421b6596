// Package registry holds the catalog of external checkers run against every
// example. It is pure configuration: no execution logic lives here.
package registry

import (
	"fmt"
	"strings"

	"github.com/harrison/bookcheck/internal/models"
)

// Phase is a named, ordered group of tools. Phases run in declared order for
// each example.
type Phase struct {
	Name  string
	Tools []models.ToolSpec
}

// Registry is an immutable, phase-ordered set of ToolSpecs with unique names.
type Registry struct {
	phases []Phase
	byName map[string]models.ToolSpec
}

// New validates phases and builds a Registry. Each tool's Phase field is set
// from its enclosing phase. Tool names must be unique across all phases and
// every timeout strictly positive.
func New(phases ...Phase) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]models.ToolSpec),
	}
	seenPhase := make(map[string]bool, len(phases))
	for _, p := range phases {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("phase name is required")
		}
		if seenPhase[name] {
			return nil, fmt.Errorf("duplicate phase: %s", name)
		}
		seenPhase[name] = true

		tools := make([]models.ToolSpec, 0, len(p.Tools))
		for _, tool := range p.Tools {
			if err := tool.Validate(); err != nil {
				return nil, fmt.Errorf("phase %s: %w", name, err)
			}
			if _, exists := r.byName[tool.Name]; exists {
				return nil, fmt.Errorf("duplicate tool name: %s", tool.Name)
			}
			tool.Phase = name
			tool.Command = append([]string(nil), tool.Command...)
			tool.PassPatterns = append([]string(nil), tool.PassPatterns...)
			r.byName[tool.Name] = tool
			tools = append(tools, tool)
		}
		r.phases = append(r.phases, Phase{Name: name, Tools: tools})
	}
	return r, nil
}

// MustNew is New for catalogs known to be valid; it panics on error.
func MustNew(phases ...Phase) *Registry {
	r, err := New(phases...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every tool in declared order (phase by phase).
func (r *Registry) All() []models.ToolSpec {
	var all []models.ToolSpec
	for _, p := range r.phases {
		all = append(all, p.Tools...)
	}
	return all
}

// Phase returns the tools of one phase in declared order.
func (r *Registry) Phase(name string) ([]models.ToolSpec, bool) {
	for _, p := range r.phases {
		if p.Name == name {
			return append([]models.ToolSpec(nil), p.Tools...), true
		}
	}
	return nil, false
}

// Phases returns a copy of the phase list.
func (r *Registry) Phases() []Phase {
	out := make([]Phase, 0, len(r.phases))
	for _, p := range r.phases {
		out = append(out, Phase{Name: p.Name, Tools: append([]models.ToolSpec(nil), p.Tools...)})
	}
	return out
}

// PhaseNames lists phase names in declared order.
func (r *Registry) PhaseNames() []string {
	names := make([]string, 0, len(r.phases))
	for _, p := range r.phases {
		names = append(names, p.Name)
	}
	return names
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (models.ToolSpec, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.byName)
}

// Select narrows the registry to the named tools and phases. A tool is kept
// when it is named in tools or belongs to a phase named in phases; with both
// lists empty the registry is returned unchanged. Unknown names are an error.
func (r *Registry) Select(tools, phases []string) (*Registry, error) {
	if len(tools) == 0 && len(phases) == 0 {
		return r, nil
	}

	wantTool := make(map[string]bool, len(tools))
	for _, name := range tools {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(r.names(), ", "))
		}
		wantTool[name] = true
	}
	wantPhase := make(map[string]bool, len(phases))
	for _, name := range phases {
		if _, ok := r.Phase(name); !ok {
			return nil, fmt.Errorf("unknown phase %q (available: %s)", name, strings.Join(r.PhaseNames(), ", "))
		}
		wantPhase[name] = true
	}

	var selected []Phase
	for _, p := range r.phases {
		var kept []models.ToolSpec
		for _, tool := range p.Tools {
			if wantPhase[p.Name] || wantTool[tool.Name] {
				kept = append(kept, tool)
			}
		}
		if len(kept) > 0 {
			selected = append(selected, Phase{Name: p.Name, Tools: kept})
		}
	}
	return New(selected...)
}

func (r *Registry) names() []string {
	var names []string
	for _, tool := range r.All() {
		names = append(names, tool.Name)
	}
	return names
}
