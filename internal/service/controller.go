package service

import "sync"

// State is one of the lifecycle states a Controller moves through.
type State int

const (
	StateNone State = iota
	StateConfiguring
	StateConfigured
	StateInitializing
	StateStopped
	StateStarting
	StateRunning
	StateStopping
	StateResetting
	StateError
)

var stateNames = map[State]string{
	StateNone:         "none",
	StateConfiguring:  "configuring",
	StateConfigured:   "configured",
	StateInitializing: "initializing",
	StateStopped:      "stopped",
	StateStarting:     "starting",
	StateRunning:      "running",
	StateStopping:     "stopping",
	StateResetting:    "resetting",
	StateError:        "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Event is one of the lifecycle or outcome signals driving the Controller.
type Event int

const (
	EventSetup Event = iota
	EventInit
	EventStart
	EventStop
	EventReset
	EventSuccess
	EventError
)

var eventNames = map[Event]string{
	EventSetup:   "setup",
	EventInit:    "init",
	EventStart:   "start",
	EventStop:    "stop",
	EventReset:   "reset",
	EventSuccess: "success",
	EventError:   "error",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Observer is notified after every state transition the Controller makes.
type Observer interface {
	Handle(c *Controller)
}

// Controller is the Setup -> Init -> Start -> Stop -> Reset lifecycle
// state machine. At most one op-phase state is
// active at a time; illegal transitions are reported as a no-op (false)
// rather than propagated as an error.
type Controller struct {
	mu        sync.Mutex
	sm        *StateMachine[State, Event]
	observers []Observer
}

// NewController builds a Controller in State None with the standard
// transition table.
func NewController() *Controller {
	sm := NewStateMachine[State, Event](StateNone)

	sm.AddTransition(StateNone, EventSetup, StateConfiguring)
	sm.AddTransition(StateConfiguring, EventError, StateError)
	sm.AddTransition(StateConfiguring, EventSuccess, StateConfigured)

	sm.AddTransition(StateConfigured, EventInit, StateInitializing)
	sm.AddTransition(StateInitializing, EventError, StateError)
	sm.AddTransition(StateInitializing, EventSuccess, StateStopped)

	sm.AddTransition(StateStopped, EventStart, StateStarting)
	sm.AddTransition(StateStarting, EventError, StateError)
	sm.AddTransition(StateStarting, EventSuccess, StateRunning)

	sm.AddTransition(StateRunning, EventStop, StateStopping)
	sm.AddTransition(StateStopping, EventError, StateError)
	sm.AddTransition(StateStopping, EventSuccess, StateStopped)

	sm.AddTransition(StateConfigured, EventReset, StateResetting)
	sm.AddTransition(StateStopped, EventReset, StateResetting)
	sm.AddTransition(StateResetting, EventError, StateError)
	sm.AddTransition(StateResetting, EventSuccess, StateNone)

	return &Controller{sm: sm}
}

// OptionalSetup adds the None -(Init)-> Initializing edge, letting a
// service skip Setup entirely.
func (c *Controller) OptionalSetup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sm.AddTransition(StateNone, EventInit, StateInitializing)
}

// OptionalInit adds the None -(Start)-> Starting edge, letting a service
// skip both Setup and Init (original_source/util/src/ServiceController.cpp
// exposes the same escape hatch for Init).
func (c *Controller) OptionalInit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sm.AddTransition(StateNone, EventStart, StateStarting)
}

// OpStart attempts to enter the op-phase state for op (Setup/Init/Start/
// Stop/Reset). It returns false — and the caller must not invoke the
// corresponding do_* hook — if the current state forbids it.
func (c *Controller) OpStart(op Event) bool {
	c.mu.Lock()
	ok := c.sm.Transition(op)
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return ok
}

// OpEnd completes the op-phase started by OpStart, moving to the success
// or error state. It always notifies observers.
func (c *Controller) OpEnd(success bool) bool {
	event := EventError
	if success {
		event = EventSuccess
	}
	c.mu.Lock()
	ok := c.sm.Transition(event)
	c.mu.Unlock()
	c.notify()
	return ok
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.State()
}

// LastEvent returns the most recent event applied to the machine.
func (c *Controller) LastEvent() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.LastEvent()
}

// AddObserver registers o to be notified on every transition.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// RemoveObserver unregisters o.
func (c *Controller) RemoveObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, obs := range c.observers {
		if obs == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		o.Handle(c)
	}
}
