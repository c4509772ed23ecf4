package service

import "testing"

func TestFullLifecycle(t *testing.T) {
	c := NewController()
	if !c.OpStart(EventSetup) {
		t.Fatalf("Setup should be legal from None")
	}
	if !c.OpEnd(true) {
		t.Fatalf("Setup success should move to Configured")
	}
	if c.State() != StateConfigured {
		t.Fatalf("state = %v, want Configured", c.State())
	}
	if !c.OpStart(EventInit) || !c.OpEnd(true) {
		t.Fatalf("Init should succeed")
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %v, want Stopped", c.State())
	}
	if !c.OpStart(EventStart) || !c.OpEnd(true) {
		t.Fatalf("Start should succeed")
	}
	if c.State() != StateRunning {
		t.Fatalf("state = %v, want Running", c.State())
	}
	if !c.OpStart(EventStop) || !c.OpEnd(true) {
		t.Fatalf("Stop should succeed")
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %v, want Stopped", c.State())
	}
}

func TestIllegalTransitionIsNoop(t *testing.T) {
	c := NewController()
	if c.OpStart(EventStart) {
		t.Fatalf("Start from None should be illegal")
	}
	if c.State() != StateNone {
		t.Fatalf("illegal transition must not change state, got %v", c.State())
	}
}

func TestOptionalSetupSkipsToInit(t *testing.T) {
	c := NewController()
	c.OptionalSetup()
	if !c.OpStart(EventInit) {
		t.Fatalf("Init from None should be legal after OptionalSetup")
	}
	if !c.OpEnd(true) || c.State() != StateStopped {
		t.Fatalf("state = %v, want Stopped", c.State())
	}
}

func TestOptionalSetupNotEnabledByDefault(t *testing.T) {
	c := NewController()
	if c.OpStart(EventInit) {
		t.Fatalf("Init from None should be illegal without OptionalSetup")
	}
}

func TestErrorPathStaysInError(t *testing.T) {
	c := NewController()
	c.OpStart(EventSetup)
	c.OpEnd(false)
	if c.State() != StateError {
		t.Fatalf("state = %v, want Error", c.State())
	}
	if c.OpStart(EventInit) {
		t.Fatalf("no transitions should be legal from Error")
	}
}

func TestObserverNotifiedOnTransitions(t *testing.T) {
	c := NewController()
	count := 0
	c.AddObserver(observerFunc(func(*Controller) { count++ }))
	c.OpStart(EventSetup)
	c.OpEnd(true)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

type observerFunc func(*Controller)

func (f observerFunc) Handle(c *Controller) { f(c) }
