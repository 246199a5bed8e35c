// Package envoverlay merges tool home overrides onto a process environment.
//
// An Overlay is built once per step invocation and never changes afterwards.
// Merging never mutates the base environment and never removes a key, so
// overlays from unrelated collaborators can be stacked with Compose.
package envoverlay

import (
	"maps"
	"slices"
	"sort"
	"strings"
)

// Well-known override keys.
const (
	GradleHome = "GRADLE_HOME"
	JavaHome   = "JAVA_HOME"
)

// EnvMap is a process environment keyed by case-sensitive variable name.
type EnvMap map[string]string

// Var is a single override.
type Var struct {
	Name  string
	Value string
}

// Overlay is an ordered, immutable set of overrides.
type Overlay struct {
	names  []string
	values map[string]string
}

// New builds an overlay from vars in order. A repeated name keeps its first
// position and takes the last value.
func New(vars ...Var) Overlay {
	o := Overlay{values: make(map[string]string, len(vars))}
	for _, v := range vars {
		if _, seen := o.values[v.Name]; !seen {
			o.names = append(o.names, v.Name)
		}
		o.values[v.Name] = v.Value
	}
	return o
}

// Len returns the number of overrides.
func (o Overlay) Len() int { return len(o.names) }

// Names returns override names in insertion order.
func (o Overlay) Names() []string { return slices.Clone(o.names) }

// Get returns the override for name.
func (o Overlay) Get(name string) (string, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Map returns a copy of the overrides.
func (o Overlay) Map() EnvMap {
	m := make(EnvMap, len(o.values))
	maps.Copy(m, o.values)
	return m
}

// Expand implements Expander.
func (o Overlay) Expand(base EnvMap) EnvMap {
	return Merge(base, o.values)
}

// Merge returns a new map holding every key of base with every key of
// overrides replaced by the override value. Neither input is modified.
func Merge(base, overrides map[string]string) EnvMap {
	out := make(EnvMap, len(base)+len(overrides))
	maps.Copy(out, base)
	maps.Copy(out, overrides)
	return out
}

// Expander contributes variables to an environment.
type Expander interface {
	Expand(base EnvMap) EnvMap
}

// ExpanderFunc adapts a function to Expander.
type ExpanderFunc func(EnvMap) EnvMap

func (f ExpanderFunc) Expand(base EnvMap) EnvMap { return f(base) }

// Compose chains expanders left to right; later expanders win on conflicts.
// Nil entries are skipped.
func Compose(expanders ...Expander) Expander {
	return ExpanderFunc(func(base EnvMap) EnvMap {
		env := Merge(base, nil)
		for _, e := range expanders {
			if e == nil {
				continue
			}
			env = e.Expand(env)
		}
		return env
	})
}

// FromEnviron parses KEY=VALUE pairs as returned by os.Environ. Entries without
// '=' are ignored; a later duplicate wins.
func FromEnviron(environ []string) EnvMap {
	env := make(EnvMap, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		env[name] = value
	}
	return env
}

// Environ renders env as sorted KEY=VALUE pairs suitable for exec.Cmd.Env.
func Environ(env EnvMap) []string {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, k := range names {
		out = append(out, k+"="+env[k])
	}
	return out
}
