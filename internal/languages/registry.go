package languages

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// RunnerFactory returns the process runner a language's phases execute on.
type RunnerFactory func(Spec) (sandbox.Runner, error)

// Registry resolves language tokens to adapters. It is read-only after
// construction.
type Registry struct {
	adapters map[string]Adapter
	aliases  map[string]string
}

func NewRegistry(specs []Spec, runnerFor RunnerFactory) (*Registry, error) {
	reg := &Registry{
		adapters: make(map[string]Adapter, len(specs)),
		aliases:  make(map[string]string),
	}

	for _, spec := range specs {
		if _, exists := reg.adapters[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate language %q", spec.Name)
		}
		runner, err := runnerFor(spec)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", spec.Name, err)
		}
		adapter, err := NewAdapter(spec, runner)
		if err != nil {
			return nil, err
		}
		reg.adapters[spec.Name] = adapter

		for _, alias := range append([]string{spec.Name}, spec.Aliases...) {
			key := normalize(alias)
			if owner, taken := reg.aliases[key]; taken {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", alias, owner, spec.Name)
			}
			reg.aliases[key] = spec.Name
		}
	}

	if len(reg.adapters) == 0 {
		return nil, fmt.Errorf("at least one language must be configured")
	}
	return reg, nil
}

func normalize(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// Resolve maps a case-insensitive token or alias to its adapter.
func (r *Registry) Resolve(token string) (Adapter, error) {
	name, ok := r.aliases[normalize(token)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedLanguage, token)
	}
	return r.adapters[name], nil
}

// Specs lists the configured languages ordered by name.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Spec())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MaxBudget is the longest compile+run time of any language.
func (r *Registry) MaxBudget() time.Duration {
	var longest time.Duration
	for _, a := range r.adapters {
		if b := a.Spec().Budget(); b > longest {
			longest = b
		}
	}
	return longest
}
