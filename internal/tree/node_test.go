package tree

import "testing"

func mustNode(t *testing.T, name string) *Node {
	t.Helper()
	n, err := NewNode(name)
	if err != nil {
		t.Fatalf("NewNode(%q): %v", name, err)
	}
	return n
}

func mustNamed(t *testing.T, name string) *Named {
	t.Helper()
	n, err := NewNamed(name)
	if err != nil {
		t.Fatalf("NewNamed(%q): %v", name, err)
	}
	return n
}

func TestTreeAndFind(t *testing.T) {
	root := mustNode(t, "root")
	child1 := mustNamed(t, "child1")
	child2 := mustNamed(t, "child2")
	if err := root.AddChild(child1, true); err != nil {
		t.Fatalf("AddChild child1: %v", err)
	}
	if err := root.AddChild(child2, true); err != nil {
		t.Fatalf("AddChild child2: %v", err)
	}

	parent := mustNode(t, "parent")
	if err := root.AddChild(parent, true); err != nil {
		t.Fatalf("AddChild parent: %v", err)
	}
	cousin1 := mustNamed(t, "cousin1")
	cousin3 := mustNamed(t, "cousin3")
	parent.AddChild(cousin1, true)
	parent.AddChild(cousin3, true)

	if got := root.Find("child1"); got == nil || got.Name() != "child1" {
		t.Fatalf("root.Find(child1) = %v", got)
	}
	if got := root.Find("parent.cousin1"); got != cousin1 {
		t.Fatalf("root.Find(parent.cousin1) = %v, want cousin1", got)
	}
	if got := parent.Find("cousin1"); got != cousin1 {
		t.Fatalf("parent.Find(cousin1) = %v, want cousin1", got)
	}
	if got := parent.Find(".cousin1"); got != cousin1 {
		t.Fatalf("parent.Find(.cousin1) = %v, want cousin1", got)
	}
	if got := root.Find(".parent.cousin1"); got != cousin1 {
		t.Fatalf("root.Find(.parent.cousin1) = %v, want cousin1", got)
	}
	if got := parent.Find("..parent.cousin1"); got != cousin1 {
		t.Fatalf("parent.Find(..parent.cousin1) = %v, want cousin1", got)
	}
	if got := root.Find("/parent.cousin3"); got != cousin3 {
		t.Fatalf("root.Find(/parent.cousin3) = %v, want cousin3", got)
	}
	if got := parent.Find(".."); got != Entity(root) {
		t.Fatalf("parent.Find(..) = %v, want root", got)
	}
	if root.Find("nope") != nil {
		t.Fatalf("Find on missing segment should return nil")
	}
	if parent.Root() != root {
		t.Fatalf("parent.Root() should be root")
	}
}

func TestChildrenKeysOrderPreserved(t *testing.T) {
	root := mustNode(t, "root")
	names := []string{"c", "a", "b"}
	for _, n := range names {
		root.AddChild(mustNamed(t, n), true)
	}
	keys := root.ChildrenKeys()
	for i, n := range names {
		if keys[i] != n {
			t.Fatalf("ChildrenKeys()[%d] = %q, want %q", i, keys[i], n)
		}
	}
}

func TestAddChildDuplicateNameFails(t *testing.T) {
	root := mustNode(t, "root")
	root.AddChild(mustNamed(t, "dup"), true)
	if err := root.AddChild(mustNamed(t, "dup"), true); err == nil {
		t.Fatalf("expected duplicate child name to fail")
	}
}

func TestNamedCannotHaveTwoParents(t *testing.T) {
	root1 := mustNode(t, "root1")
	root2 := mustNode(t, "root2")
	child := mustNamed(t, "child")
	if err := root1.AddChild(child, true); err != nil {
		t.Fatalf("AddChild into root1: %v", err)
	}
	if err := root2.AddChild(child, true); err == nil {
		t.Fatalf("expected AddChild into root2 to fail, child already parented")
	}
}

func TestLinkResolution(t *testing.T) {
	root := mustNode(t, "root")
	origin := mustNode(t, "origin")
	root.AddChild(origin, true)
	child1 := mustNamed(t, "child1")
	child2 := mustNamed(t, "child2")
	origin.AddChild(child1, true)
	origin.AddChild(child2, true)

	parentNode := mustNode(t, "parent")
	root.AddChild(parentNode, true)

	if err := parentNode.AddLink("mychild1", "..origin.child1"); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	if !root.ResolveLinks() {
		t.Fatalf("ResolveLinks should succeed")
	}
	got, ok := parentNode.GetChild("mychild1")
	if !ok || got != Entity(child1) {
		t.Fatalf("mychild1 = %v, %v, want child1", got, ok)
	}
}

func TestLinkUnresolvedFails(t *testing.T) {
	root := mustNode(t, "root")
	if err := root.AddLink("missing", "nowhere"); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	if root.ResolveLinks() {
		t.Fatalf("ResolveLinks should fail for unresolvable link")
	}
}

func TestAddLinkDuplicateNameFails(t *testing.T) {
	root := mustNode(t, "root")
	if err := root.AddLink("name", "..some.path"); err != nil {
		t.Fatalf("first AddLink: %v", err)
	}
	if err := root.AddLink("name", "..some.other.path"); err == nil {
		t.Fatalf("expected duplicate link name to fail")
	}
}

func TestRemoveChildDetaches(t *testing.T) {
	root := mustNode(t, "root")
	child := mustNamed(t, "child")
	root.AddChild(child, true)
	removed, ok := root.RemoveChild("child")
	if !ok || removed != Entity(child) {
		t.Fatalf("RemoveChild returned %v, %v", removed, ok)
	}
	if child.Parent() != nil {
		t.Fatalf("removed child should be detached")
	}
	if _, ok := root.GetChild("child"); ok {
		t.Fatalf("removed child should not be found")
	}
}
