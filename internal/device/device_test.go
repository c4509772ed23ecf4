package device

import (
	"testing"

	"github.com/mdufaud/sihdgo/internal/service"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

func TestFullLifecycleCascadesToChildren(t *testing.T) {
	parent, err := New("parent")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child, err := New("child")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := parent.AddChild(child, true); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if !parent.Setup() {
		t.Fatalf("Setup should succeed")
	}
	if child.State() != service.StateConfigured {
		t.Fatalf("child state = %v, want Configured", child.State())
	}
	if !parent.Init() {
		t.Fatalf("Init should succeed")
	}
	if !parent.Start() {
		t.Fatalf("Start should succeed")
	}
	if child.State() != service.StateRunning {
		t.Fatalf("child state = %v, want Running", child.State())
	}
	if !parent.Stop() {
		t.Fatalf("Stop should succeed")
	}
	if child.State() != service.StateStopped {
		t.Fatalf("child state = %v, want Stopped", child.State())
	}
}

func TestOptionalSetupSkipsDirectlyToInit(t *testing.T) {
	d, _ := New("d")
	if !d.Init() {
		t.Fatalf("Init from None should succeed (Setup is optional)")
	}
	if d.State() != service.StateStopped {
		t.Fatalf("state = %v, want Stopped", d.State())
	}
}

func TestSetupFailsFastAndSkipsLaterChildren(t *testing.T) {
	parent, _ := New("parent")
	bad, _ := New("bad")
	later, _ := New("later")
	parent.AddChild(bad, true)
	parent.AddChild(later, true)

	bad.OnSetup = func() bool { return false }
	touched := false
	later.OnSetup = func() bool { touched = true; return true }

	if parent.Setup() {
		t.Fatalf("Setup should fail when a child's Setup fails")
	}
	if touched {
		t.Fatalf("a child after the first failing one should not be set up")
	}
}

func TestInitFailsFastAndSkipsLaterChildren(t *testing.T) {
	parent, _ := New("parent")
	bad, _ := New("bad")
	later, _ := New("later")
	parent.AddChild(bad, true)
	parent.AddChild(later, true)

	bad.OnInit = func() bool { return false }
	touched := false
	later.OnInit = func() bool { touched = true; return true }

	if parent.Init() {
		t.Fatalf("Init should fail when a child's Init fails")
	}
	if touched {
		t.Fatalf("a child after the first failing one should not be initialized")
	}
}

func TestStopFailsFastAndSkipsLaterChildren(t *testing.T) {
	parent, _ := New("parent")
	bad, _ := New("bad")
	later, _ := New("later")
	parent.AddChild(bad, true)
	parent.AddChild(later, true)

	bad.OnStop = func() bool { return false }
	touched := false
	later.OnStop = func() bool { touched = true; return true }

	parent.Init()
	parent.Start()
	if parent.Stop() {
		t.Fatalf("Stop should fail when a child's Stop fails")
	}
	if touched {
		t.Fatalf("a child after the first failing one should not be stopped")
	}
}

func TestStartFailureStopsAlreadyStartedChildrenInReverse(t *testing.T) {
	parent, _ := New("parent")
	good, _ := New("good")
	bad, _ := New("bad")
	parent.AddChild(good, true)
	parent.AddChild(bad, true)

	var stopOrder []string
	good.OnStop = func() bool { stopOrder = append(stopOrder, "good"); return true }
	bad.OnStart = func() bool { return false }

	parent.Init()
	if parent.Start() {
		t.Fatalf("Start should fail when a child fails to start")
	}
	if len(stopOrder) != 1 || stopOrder[0] != "good" {
		t.Fatalf("expected 'good' to be stopped after 'bad' failed, got %v", stopOrder)
	}
	if good.State() != service.StateStopped {
		t.Fatalf("good should be back to Stopped, got %v", good.State())
	}
}

func TestStartFailsOnUnresolvedLink(t *testing.T) {
	d, _ := New("d")
	d.AddLink("missing", "nowhere")
	d.Init()
	if d.Start() {
		t.Fatalf("Start should fail with an unresolved link")
	}
	if d.State() != service.StateError {
		t.Fatalf("a device whose own start fails moves to Error, got %v", d.State())
	}
}

func TestResetIsBestEffortAndAlwaysClearsChildren(t *testing.T) {
	parent, _ := New("parent")
	failing, _ := New("failing")
	failing.OnReset = func() bool { return false }
	parent.AddChild(failing, true)
	parent.AddChannel("scratch", typedarray.KindI32, 1)

	parent.Init()
	if parent.Reset() {
		t.Fatalf("Reset should report failure when a child's OnReset fails")
	}
	if len(parent.ChildrenKeys()) != 0 {
		t.Fatalf("children should be cleared even when reset failed")
	}
}

func TestCloseOnRootStopsAndResetsRunningDevice(t *testing.T) {
	d, _ := New("root")
	d.Init()
	d.Start()
	if !d.Close() {
		t.Fatalf("Close should succeed")
	}
	if d.State() != service.StateNone {
		t.Fatalf("state after Close = %v, want None", d.State())
	}
}

func TestCloseIsNoopWithParent(t *testing.T) {
	parent, _ := New("parent")
	child, _ := New("child")
	parent.AddChild(child, true)
	parent.Init()
	parent.Start()
	if !child.Close() {
		t.Fatalf("Close on a non-root device should be a harmless no-op")
	}
	if child.State() != service.StateRunning {
		t.Fatalf("Close must not touch a device that still has a parent")
	}
}
