// Package runtime assembles a device tree from a declarative YAML
// description and supervises the goroutines the assembled tree spawns
// once it starts running.
package runtime

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/tree"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

// channelSpec declares one channel to attach directly to a node.
type channelSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Size int    `yaml:"size,omitempty"`
}

// nodeSpec is one entry of the declarative tree: a typed, named
// component, its string configuration, any channels it owns directly,
// and its children.
type nodeSpec struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Config   map[string]string `yaml:"config,omitempty"`
	Channels []channelSpec     `yaml:"channels,omitempty"`
	Children []nodeSpec        `yaml:"children,omitempty"`
}

// channelOwner is satisfied by any Component that can own channels
// directly (Device and everything built on it).
type channelOwner interface {
	AddChannel(name string, kind typedarray.Kind, size int) (*channel.Channel, error)
}

// childAdder is satisfied by any Component that can parent other
// components (Device and everything built on it).
type childAdder interface {
	AddChild(e tree.Entity, owned bool) error
}

// LoadTree parses a YAML tree description from path and builds it via
// registry, returning the root component. Components are built
// depth-first: a parent's channels are already attached by the time its
// children are constructed, so a child can reference a sibling or
// ancestor channel by relative path immediately.
func LoadTree(path string, registry *device.Registry) (device.Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: read tree file: %w", err)
	}
	var root nodeSpec
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("runtime: parse tree file: %w", err)
	}
	return buildNode(root, registry)
}

func buildNode(spec nodeSpec, registry *device.Registry) (device.Component, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("runtime: node missing a name")
	}
	typeName := spec.Type
	if typeName == "" {
		typeName = "device"
	}

	component, err := registry.Build(typeName, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("runtime: build %s: %w", spec.Name, err)
	}

	for _, chSpec := range spec.Channels {
		kind, err := typedarray.KindFromString(chSpec.Type)
		if err != nil {
			return nil, fmt.Errorf("runtime: %s: channel %s: %w", spec.Name, chSpec.Name, err)
		}
		size := chSpec.Size
		if size == 0 {
			size = 1
		}
		owner, ok := component.(channelOwner)
		if !ok {
			return nil, fmt.Errorf("runtime: %s: type %q cannot own channels directly", spec.Name, typeName)
		}
		if _, err := owner.AddChannel(chSpec.Name, kind, size); err != nil {
			return nil, fmt.Errorf("runtime: %s: add channel %s: %w", spec.Name, chSpec.Name, err)
		}
	}

	if configurable, ok := component.(config.Configurable); ok {
		for key, value := range spec.Config {
			if err := configurable.Configure(key, value); err != nil {
				return nil, fmt.Errorf("runtime: %s: configure %s=%s: %w", spec.Name, key, value, err)
			}
		}
	} else if len(spec.Config) > 0 {
		return nil, fmt.Errorf("runtime: %s: type %q does not accept configuration", spec.Name, typeName)
	}

	for _, childSpec := range spec.Children {
		child, err := buildNode(childSpec, registry)
		if err != nil {
			return nil, err
		}
		adder, ok := component.(childAdder)
		if !ok {
			return nil, fmt.Errorf("runtime: %s: type %q cannot own children", spec.Name, typeName)
		}
		if err := adder.AddChild(child, true); err != nil {
			return nil, fmt.Errorf("runtime: %s: add child %s: %w", spec.Name, childSpec.Name, err)
		}
	}

	return component, nil
}
