package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mdufaud/sihdgo/internal/channel"
)

func writeTreeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tree file: %v", err)
	}
	return path
}

func TestLoadTreeBuildsChannelsAndChildren(t *testing.T) {
	path := writeTreeFile(t, `
name: root
type: device
channels:
  - name: source
    type: uint
    size: 1
children:
  - name: pulsator
    type: pulsation
    config:
      frequency: "10"
`)
	registry := DefaultRegistry()
	root, err := LoadTree(path, registry)
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if root.Name() != "root" {
		t.Fatalf("root name = %q, want root", root.Name())
	}

	finder, ok := root.(interface {
		FindChannel(path string) (*channel.Channel, bool)
	})
	if !ok {
		t.Fatalf("root should support FindChannel")
	}
	if _, ok := finder.FindChannel("source"); !ok {
		t.Fatalf("root should have a source channel")
	}

	if !root.Init() {
		t.Fatalf("Init should succeed")
	}
	if !root.Start() {
		t.Fatalf("Start should succeed")
	}
	if !root.Stop() {
		t.Fatalf("Stop should succeed")
	}
}

func TestLoadTreeRejectsUnknownType(t *testing.T) {
	path := writeTreeFile(t, `
name: root
type: not_a_real_type
`)
	if _, err := LoadTree(path, DefaultRegistry()); err == nil {
		t.Fatalf("expected an error for an unregistered type")
	}
}

func TestLoadTreeRejectsUnknownConfigKey(t *testing.T) {
	path := writeTreeFile(t, `
name: sink
type: mem_recorder
config:
  not_a_real_key: "1"
`)
	if _, err := LoadTree(path, DefaultRegistry()); err == nil {
		t.Fatalf("expected an error for an unknown configuration key")
	}
}
