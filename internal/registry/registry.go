// Package registry resolves portable type names to fresh instances.
//
// Records store the fully-qualified Go type name of the operation they were
// created from. Reconstructing the operation later needs a factory for that
// name, which may not exist in every binary; lookups therefore fail with
// ErrUnresolvableType rather than panicking.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ErrUnresolvableType is returned when no factory is registered for a type name.
var ErrUnresolvableType = errors.New("unresolvable type")

// #region registry
// Registry maps fully-qualified type names to factories producing T.
type Registry[T any] struct {
	mu        sync.RWMutex
	kind      string
	factories map[string]func() T
}

// New creates an empty registry. kind names the family in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]func() T)}
}

// Register adds factory under the type name of the value it produces and
// returns that name.
func (r *Registry[T]) Register(factory func() T) (string, error) {
	if factory == nil {
		return "", fmt.Errorf("register %s: nil factory", r.kind)
	}
	name := TypeName(factory())
	if name == "" {
		return "", fmt.Errorf("register %s: factory returned nil", r.kind)
	}
	return name, r.RegisterName(name, factory)
}

// RegisterName adds factory under an explicit name.
func (r *Registry[T]) RegisterName(name string, factory func() T) error {
	if name == "" || factory == nil {
		return fmt.Errorf("register %s: name and factory required", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%s %s already registered", r.kind, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for package init functions.
func (r *Registry[T]) MustRegister(factory func() T) string {
	name, err := r.Register(factory)
	if err != nil {
		panic(err)
	}
	return name
}

// New instantiates the type registered under name.
func (r *Registry[T]) New(name string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		if name == "" {
			return zero, fmt.Errorf("%s: empty type name: %w", r.kind, ErrUnresolvableType)
		}
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrUnresolvableType)
	}
	return factory(), nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Unregister removes name. Used by tests simulating environments that lack a type.
func (r *Registry[T]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// #endregion registry

// #region type-name
// TypeName returns "<import path>.<TypeName>" for v, dereferencing pointers.
// Values implementing interface{ TypeName() string } name themselves.
func TypeName(v any) string {
	if v == nil {
		return ""
	}
	if named, ok := v.(interface{ TypeName() string }); ok {
		if n := named.TypeName(); n != "" {
			return n
		}
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// #endregion type-name
