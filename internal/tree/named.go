// Package tree implements the hierarchical addressing substrate every
// other core component sits on: Named leaves, Node branches with ordered
// children and deferred links, dotted-path resolution, and tree-wide link
// resolution.
package tree

import (
	"fmt"
	"strings"
)

// Separator delimits path segments: "a.b.c" is "c" under "b" under "a".
const Separator = "."

// Entity is anything that can live in a Node's children map: it has a
// name, knows its full dotted path, and can be reparented exactly once.
// Named and Node both satisfy it; so does anything embedding Named, such
// as a Channel.
type Entity interface {
	Name() string
	FullName() string
	Parent() *Node
	SetParent(p *Node) bool
}

// Named is a tree leaf: a unique name plus a back-reference to its parent.
// It is the embeddable base for every addressable object in the tree,
// including Node itself.
type Named struct {
	name   string
	parent *Node
}

// NewNamed validates name and returns a detached Named. name must be
// non-empty and must not contain the path separator.
func NewNamed(name string) (*Named, error) {
	if name == "" {
		return nil, fmt.Errorf("tree: name must not be empty")
	}
	if strings.Contains(name, Separator) {
		return nil, fmt.Errorf("tree: name %q must not contain separator %q", name, Separator)
	}
	return &Named{name: name}, nil
}

// Name returns the node's own name (not a path).
func (n *Named) Name() string { return n.name }

// Parent returns the current parent, or nil if detached.
func (n *Named) Parent() *Node { return n.parent }

// SetParent reparents n. It fails if n already has a parent and a
// non-nil parent is requested: a Named may be inserted into at most one
// parent. Passing nil always succeeds and detaches n.
func (n *Named) SetParent(p *Node) bool {
	if p != nil && n.parent != nil {
		return false
	}
	n.parent = p
	return true
}

// FullName is the dotted path from the root down to this node.
func (n *Named) FullName() string {
	if n.parent == nil {
		return n.name
	}
	return n.parent.FullName() + Separator + n.name
}

// Root walks up to the top-most Node above n, or nil if n is detached.
func (n *Named) Root() *Node {
	if n.parent == nil {
		return nil
	}
	cur := n.parent
	for cur.Parent() != nil {
		cur = cur.Parent()
	}
	return cur
}

// IsOwnedByParent reports whether n's parent node owns (and will destroy)
// n, as opposed to holding a non-owning link reference to it.
func (n *Named) IsOwnedByParent() bool {
	if n.parent == nil {
		return false
	}
	owned, _ := n.parent.isChildOwned(n.name)
	return owned
}
