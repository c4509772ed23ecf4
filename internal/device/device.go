// Package device implements the channel-container + lifecycle composite
// every device in the tree is built from: setup/init/start/stop/reset
// cascades to Service children, link resolution gates start, and stop
// unwinds in reverse order on failure.
package device

import (
	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/service"
)

// Service is implemented by anything a Device cascades lifecycle
// operations into: Device itself, and any other composite built the same
// way. A plain Channel is not a Service and is skipped by the cascade.
type Service interface {
	Setup() bool
	Init() bool
	Start() bool
	Stop() bool
	Reset() bool
}

// Device composes a channel container with a lifecycle controller. Go has
// no virtual dispatch through embedding, so the on_setup/on_init/... hooks
// the original overrides per-subtype are exposed as settable function
// fields instead; a concrete device (Pulsation, Sampler, ...) assigns the
// ones it needs after calling New.
type Device struct {
	*channel.Container

	controller *service.Controller

	OnSetup func() bool
	OnInit  func() bool
	OnStart func() bool
	OnStop  func() bool
	OnReset func() bool
}

// New constructs a Device named name, with Setup skippable by default
// (original_source/core/src/Device.cpp always enables optional_setup).
func New(name string) (*Device, error) {
	container, err := channel.NewContainer(name)
	if err != nil {
		return nil, err
	}
	d := &Device{
		Container:  container,
		controller: service.NewController(),
		OnSetup:    alwaysTrue,
		OnInit:     alwaysTrue,
		OnStart:    alwaysTrue,
		OnStop:     alwaysTrue,
		OnReset:    alwaysTrue,
	}
	d.controller.OptionalSetup()
	return d, nil
}

func alwaysTrue() bool { return true }

// Controller exposes the underlying lifecycle state machine, e.g. for a
// scheduler or UI to observe state transitions.
func (d *Device) Controller() *service.Controller { return d.controller }

// State returns the device's current lifecycle state.
func (d *Device) State() service.State { return d.controller.State() }

// AddObserver registers o to be notified on every lifecycle transition.
func (d *Device) AddObserver(o service.Observer) { d.controller.AddObserver(o) }

// RemoveObserver unregisters o.
func (d *Device) RemoveObserver(o service.Observer) { d.controller.RemoveObserver(o) }

func (d *Device) runOp(op service.Event, do func() bool) bool {
	if !d.controller.OpStart(op) {
		logging.Log.Warn("device: illegal state transition", "device", d.FullName(), "op", op, "state", d.controller.State())
		return false
	}
	ret := do()
	d.controller.OpEnd(ret)
	return ret
}

// Setup runs the Setup op-phase: every Service child is set up, then
// OnSetup.
func (d *Device) Setup() bool { return d.runOp(service.EventSetup, d.doSetup) }

// Init runs the Init op-phase.
func (d *Device) Init() bool { return d.runOp(service.EventInit, d.doInit) }

// Start runs the Start op-phase: children start in insertion order, links
// resolve, then OnStart. Any failure stops the children already started,
// in reverse order, and moves the device itself to Error.
func (d *Device) Start() bool { return d.runOp(service.EventStart, d.doStart) }

// Stop runs the Stop op-phase: observation of external channels is
// dropped first, then children stop in insertion order, then OnStop.
func (d *Device) Stop() bool { return d.runOp(service.EventStop, d.doStop) }

// Reset runs the Reset op-phase. It is best-effort: every child is reset
// regardless of earlier failures, children are always detached, and the
// aggregate success is reported only after both have happened.
func (d *Device) Reset() bool { return d.runOp(service.EventReset, d.doReset) }

// eachChildService calls fn for every Service child in insertion order.
// With failFast, the first fn failure stops the walk immediately and the
// remaining children are left untouched, matching the original's
// do_setup/do_init/do_stop, which all return false on the first failing
// child rather than continuing. Without failFast (Reset only), every
// child is visited regardless of earlier failures.
func (d *Device) eachChildService(failFast bool, fn func(name string, svc Service) bool) bool {
	ok := true
	for _, key := range d.ChildrenKeys() {
		child, exists := d.GetChild(key)
		if !exists {
			continue
		}
		svc, isService := child.(Service)
		if !isService {
			continue
		}
		if !fn(key, svc) {
			ok = false
			if failFast {
				return false
			}
		}
	}
	return ok
}

func (d *Device) doSetup() bool {
	ok := d.eachChildService(true, func(name string, svc Service) bool {
		if !svc.Setup() {
			logging.Log.Error("device: child setup failed", "device", d.FullName(), "child", name)
			return false
		}
		return true
	})
	if !ok {
		return false
	}
	return d.OnSetup()
}

func (d *Device) doInit() bool {
	ok := d.eachChildService(true, func(name string, svc Service) bool {
		if !svc.Init() {
			logging.Log.Error("device: child init failed", "device", d.FullName(), "child", name)
			return false
		}
		return true
	})
	if !ok {
		return false
	}
	return d.OnInit()
}

func (d *Device) doStart() bool {
	var started []Service
	ok := true
	for _, key := range d.ChildrenKeys() {
		child, exists := d.GetChild(key)
		if !exists {
			continue
		}
		svc, isService := child.(Service)
		if !isService {
			continue
		}
		if !svc.Start() {
			logging.Log.Error("device: child start failed", "device", d.FullName(), "child", key)
			ok = false
			break
		}
		started = append(started, svc)
	}

	if ok {
		ok = d.ResolveLinks()
		if !ok {
			logging.Log.Error("device: link resolution failed", "device", d.FullName())
		}
	}

	if !ok {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop()
		}
		return false
	}
	return d.OnStart()
}

func (d *Device) doStop() bool {
	d.RemoveChannelsObservation()
	ok := d.eachChildService(true, func(name string, svc Service) bool {
		if !svc.Stop() {
			logging.Log.Error("device: child stop failed", "device", d.FullName(), "child", name)
			return false
		}
		return true
	})
	if !ok {
		return false
	}
	return d.OnStop()
}

func (d *Device) doReset() bool {
	ok := d.eachChildService(false, func(name string, svc Service) bool {
		if !svc.Reset() {
			logging.Log.Error("device: child reset failed", "device", d.FullName(), "child", name)
			return false
		}
		return true
	})
	d.RemoveChildren()
	onResetOk := d.OnReset()
	return ok && onResetOk
}

// Close is a convenience for root-position devices: it stops a running
// device and resets a stopped one, matching the "must not leak a running
// subtree" expectation from the original's root destructor. It is a
// no-op on a device that still has a parent.
func (d *Device) Close() bool {
	if d.Parent() != nil {
		return true
	}
	ok := true
	if d.State() == service.StateRunning {
		ok = d.Stop()
	}
	if ok && d.State() == service.StateStopped {
		ok = d.Reset()
	}
	return ok
}
