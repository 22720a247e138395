package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds and validates an agent from its effective configuration.
type Constructor func(cfg Config, deps Deps) (Agent, error)

// Variant is a registered agent implementation.
type Variant struct {
	Name string
	New  Constructor
}

// Registry maps type tags to constructors.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

// NewRegistry returns a registry with the built-in variants registered.
func NewRegistry() *Registry {
	r := &Registry{variants: map[string]Variant{}}
	fin := Variant{Name: "FinancialAgent", New: NewFinancial}
	r.Register("financial", fin)
	r.Register("financial_news", fin)
	r.Register("news", fin)
	return r
}

// Register adds or replaces the variant for tag. Tags are stored as given
// after normalization; nothing about v is checked until Create.
func (r *Registry) Register(tag string, v Variant) {
	tag = normalizeTag(tag)
	if v.Name == "" {
		v.Name = tag
	}
	r.mu.Lock()
	r.variants[tag] = v
	r.mu.Unlock()
}

// Create builds the agent for cfg["type"]. Constructor errors are returned
// unchanged.
func (r *Registry) Create(cfg Config, deps Deps) (Agent, error) {
	tag := normalizeTag(cfg.String("type"))
	r.mu.RLock()
	v, ok := r.variants[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownAgentTypeError{Type: cfg.String("type"), Available: r.Types()}
	}
	if v.New == nil {
		return nil, fmt.Errorf("agent type %q has no constructor", tag)
	}
	return v.New(cfg, deps)
}

// Types returns the registered tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.variants))
	for k := range r.variants {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Describe maps each tag to its variant name.
func (r *Registry) Describe() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.variants))
	for k, v := range r.variants {
		out[k] = v.Name
	}
	return out
}

func normalizeTag(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
