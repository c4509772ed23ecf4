package device

import (
	"fmt"

	"github.com/mdufaud/sihdgo/internal/tree"
)

// Component is what a Factory must produce: a lifecycle Service that is
// also a tree.Entity, so the caller can both cascade Setup/Init/.../Reset
// into it and attach it as a child in the tree.
type Component interface {
	Service
	tree.Entity
}

// Factory builds a named Component. Registered factories let a tree be
// assembled declaratively (by type name) instead of in Go source, the
// counterpart of the original's dynamic-library class lookup — Go's
// reflection/plugin machinery is a poor fit for the same job, so a plain
// map of constructors stands in for it.
type Factory func(name string) (Component, error)

// Registry maps type names to the Factory that builds them.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry with "device" (a plain Device) already
// registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register("device", func(name string) (Component, error) { return New(name) })
	return r
}

// Register adds or replaces the factory for typeName.
func (r *Registry) Register(typeName string, factory Factory) {
	r.factories[typeName] = factory
}

// Build constructs a new instance of typeName named name.
func (r *Registry) Build(typeName, name string) (Component, error) {
	factory, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("device: no factory registered for type %q", typeName)
	}
	return factory(name)
}

// Has reports whether typeName has a registered factory.
func (r *Registry) Has(typeName string) bool {
	_, ok := r.factories[typeName]
	return ok
}
