package tree

import (
	"fmt"
	"strings"
	"sync"
)

// LinkChecker lets a Node subclass (e.g. a channel container) reject a
// resolved link whose target doesn't match a declared expectation. It is
// consulted by ResolveLinks for every link declared directly on the node
// that implements it.
type LinkChecker interface {
	OnCheckLink(name string, child Entity) bool
}

type childEntry struct {
	entity Entity
	owned  bool
}

type linkDecl struct {
	targetPath string
}

// Node is a tree branch: an ordered, named set of children plus a set of
// pending links declared on it but not yet resolved.
type Node struct {
	Named

	mu       sync.Mutex
	order    []string
	children map[string]childEntry
	links    map[string]linkDecl
	checker  LinkChecker
}

// SetLinkChecker installs the hook consulted by ResolveLinks before
// accepting a resolved link. Go has no virtual dispatch through
// embedding, so a composite type that wants to veto links (e.g. a channel
// container checking type/size) must call this with itself during
// construction.
func (n *Node) SetLinkChecker(c LinkChecker) {
	n.checker = c
}

// NewNode allocates a detached, empty Node.
func NewNode(name string) (*Node, error) {
	named, err := NewNamed(name)
	if err != nil {
		return nil, err
	}
	return &Node{
		Named:    *named,
		children: make(map[string]childEntry),
		links:    make(map[string]linkDecl),
	}, nil
}

// Root returns the top-most Node above n, or n itself if it is detached.
func (n *Node) Root() *Node {
	p := n.Parent()
	if p == nil {
		return n
	}
	for p.Parent() != nil {
		p = p.Parent()
	}
	return p
}

// AddChild inserts e, named e.Name(), as a child of n. owned marks whether
// n is responsible for e's lifetime (affects Reset's cascading cleanup,
// not Go's GC). Fails if the name is already used by a child or a pending
// link, or if e already belongs to another parent.
func (n *Node) AddChild(e Entity, owned bool) error {
	name := e.Name()

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.children[name]; exists {
		return fmt.Errorf("tree: %s already has a child named %q", n.FullName(), name)
	}
	if _, exists := n.links[name]; exists {
		return fmt.Errorf("tree: %s already declares a link named %q", n.FullName(), name)
	}
	if e.Parent() != nil {
		return fmt.Errorf("tree: %q already has a parent", name)
	}
	if !e.SetParent(n) {
		return fmt.Errorf("tree: could not reparent %q", name)
	}
	n.children[name] = childEntry{entity: e, owned: owned}
	n.order = append(n.order, name)
	return nil
}

// RemoveChild detaches and returns the named child, if any. Owned
// children are simply unlinked from the tree (Go's GC reclaims them once
// unreferenced); non-owned (linked) entries are left untouched elsewhere.
func (n *Node) RemoveChild(name string) (Entity, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	entry, ok := n.children[name]
	if !ok {
		return nil, false
	}
	delete(n.children, name)
	for i, k := range n.order {
		if k == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	if entry.owned {
		entry.entity.SetParent(nil)
	}
	return entry.entity, true
}

// RemoveChildren detaches every child, destroying owned ones (in Go:
// dropping the last reference to them).
func (n *Node) RemoveChildren() {
	n.mu.Lock()
	keys := append([]string(nil), n.order...)
	n.mu.Unlock()
	for _, k := range keys {
		n.RemoveChild(k)
	}
}

// GetChild returns the direct child named name, if present.
func (n *Node) GetChild(name string) (Entity, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.children[name]
	if !ok {
		return nil, false
	}
	return entry.entity, true
}

// isChildOwned reports whether the child registered under name is owned.
func (n *Node) isChildOwned(name string) (bool, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.children[name]
	if !ok {
		return false, false
	}
	return entry.owned, true
}

// ChildrenKeys returns child names in insertion order. The slice is a
// snapshot: iterating over it is safe even if the caller removes children
// from n during the loop.
func (n *Node) ChildrenKeys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.order...)
}

// IsLink reports whether name is a currently-unresolved link declaration.
func (n *Node) IsLink(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.links[name]
	return ok
}

// AddLink declares a non-owning reference named localName resolving later
// to targetPath. Fails if localName is already a child or another link.
func (n *Node) AddLink(localName, targetPath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.children[localName]; exists {
		return fmt.Errorf("tree: %s already has a child named %q", n.FullName(), localName)
	}
	if _, exists := n.links[localName]; exists {
		return fmt.Errorf("tree: %s already declares a link named %q", n.FullName(), localName)
	}
	n.links[localName] = linkDecl{targetPath: targetPath}
	return nil
}

// Find resolves path relative to n. Segments are separated by Separator; a
// leading "/" anchors at the root; a leading "." means "start here", and
// each additional leading "." steps up one parent before descending.
// Find never fails loudly: any missing segment yields nil.
func (n *Node) Find(path string) Entity {
	if path == "" {
		return n
	}

	var anchor Entity = n
	rest := path

	switch {
	case strings.HasPrefix(path, "/"):
		anchor = n.Root()
		rest = path[1:]
	case strings.HasPrefix(path, "."):
		i := 0
		for i < len(path) && path[i] == '.' {
			i++
		}
		steps := i - 1
		cur := anchor
		for s := 0; s < steps; s++ {
			p := cur.Parent()
			if p == nil {
				return nil
			}
			cur = p
		}
		anchor = cur
		rest = path[i:]
	}

	if rest == "" {
		return anchor
	}

	cur := anchor
	for _, seg := range strings.Split(rest, Separator) {
		b, ok := cur.(branch)
		if !ok {
			return nil
		}
		child, ok := b.GetChild(seg)
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// resolver is satisfied by *Node and by anything embedding it (e.g. a
// channel container or device). ResolveLinks type-asserts against this
// instead of the concrete *Node so composite types are walked too — Go's
// embedding stores the outer type, not *Node, in the Entity interface.
type resolver interface {
	ResolveLinks() bool
}

// ResolveLinks resolves every pending link declared on n or any node
// reachable below n (a pre-order walk), installing each successfully
// resolved target as a non-owning child under its local name. Already
// resolved links stay resolved even if a later link in the same walk
// fails; the overall return value is false if anything failed to resolve.
func (n *Node) ResolveLinks() bool {
	ok := n.resolveOwnLinks()
	for _, key := range n.ChildrenKeys() {
		child, exists := n.GetChild(key)
		if !exists {
			continue
		}
		if child == Entity(n) {
			continue
		}
		if r, isResolver := child.(resolver); isResolver {
			if !r.ResolveLinks() {
				ok = false
			}
		}
	}
	return ok
}

func (n *Node) resolveOwnLinks() bool {
	n.mu.Lock()
	pending := make(map[string]linkDecl, len(n.links))
	for k, v := range n.links {
		pending[k] = v
	}
	n.mu.Unlock()

	ok := true
	for localName, decl := range pending {
		target := n.Find(decl.targetPath)
		if target == nil {
			ok = false
			continue
		}
		if n.checker != nil && !n.checker.OnCheckLink(localName, target) {
			ok = false
			continue
		}
		n.mu.Lock()
		n.children[localName] = childEntry{entity: target, owned: false}
		n.order = append(n.order, localName)
		delete(n.links, localName)
		n.mu.Unlock()
	}
	return ok
}

// TreeStr renders the subtree rooted at n as an indented multi-line
// string, children shown in insertion order.
func (n *Node) TreeStr() string {
	var b strings.Builder
	writeSubtree(n, &b, 0)
	return b.String()
}

// branch is satisfied by *Node and anything embedding it; writeSubtree
// uses it for the same reason ResolveLinks uses resolver above.
type branch interface {
	Entity
	ChildrenKeys() []string
	GetChild(name string) (Entity, bool)
}

func writeSubtree(n branch, b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s%s\n", strings.Repeat("  ", depth), n.Name())
	for _, key := range n.ChildrenKeys() {
		child, ok := n.GetChild(key)
		if !ok {
			continue
		}
		if childBranch, isBranch := child.(branch); isBranch {
			writeSubtree(childBranch, b, depth+1)
		} else {
			fmt.Fprintf(b, "%s%s\n", strings.Repeat("  ", depth+1), child.Name())
		}
	}
}
