package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Settings carries the connection details handed to a provider factory.
type Settings struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Factory builds a Provider from settings.
type Factory func(Settings) (Provider, error)

// Registry resolves provider names from configuration to provider factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a provider factory under name (case-insensitive).
func (r *Registry) Register(name string, f Factory) {
	r.factories[normalize(name)] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[normalize(name)]
	return ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs the provider registered under name.
func (r *Registry) Build(name string, s Settings) (Provider, error) {
	key := normalize(name)
	f, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	if s.Name == "" {
		s.Name = key
	}
	return f(s)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
