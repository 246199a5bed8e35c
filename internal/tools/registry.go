// Package tools resolves configured tool installations (Gradle, JDK) by name.
package tools

import (
	"sort"
	"sync"
)

// Kind identifies a family of installations.
type Kind string

const (
	KindGradle Kind = "gradle"
	KindJDK    Kind = "jdk"
)

// Installation is a named tool home directory.
type Installation struct {
	Kind Kind
	Name string
	Home string
}

// Resolver looks up an installation by kind and exact, case-sensitive name.
type Resolver interface {
	FindInstallation(kind Kind, name string) (Installation, bool)
}

// Registry is an in-memory Resolver safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[Kind]map[string]Installation
}

// NewRegistry returns a registry seeded with installs.
func NewRegistry(installs ...Installation) *Registry {
	r := &Registry{items: make(map[Kind]map[string]Installation)}
	for _, in := range installs {
		r.Add(in)
	}
	return r
}

// Add registers or replaces an installation.
func (r *Registry) Add(in Installation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.items[in.Kind]
	if !ok {
		byName = make(map[string]Installation)
		r.items[in.Kind] = byName
	}
	byName[in.Name] = in
}

// FindInstallation implements Resolver.
func (r *Registry) FindInstallation(kind Kind, name string) (Installation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.items[kind][name]
	return in, ok
}

// All returns installations of kind sorted by name.
func (r *Registry) All(kind Kind) []Installation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Installation, 0, len(r.items[kind]))
	for _, in := range r.items[kind] {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
