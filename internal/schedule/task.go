// Package schedule implements Task and Scheduler: a time-ordered,
// pausable dispatcher for one-shot and periodic work.
package schedule

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Task is a scheduled unit of work: a callable plus a target eligibility
// time and an optional period.
type Task struct {
	Name string
	Fn   func()

	// Period is the reschedule interval. Zero means one-shot.
	Period time.Duration

	// relative marks a task whose target was computed from run_in rather
	// than run_at: only these are shifted when the scheduler resumes
	// from a pause, since a run_in countdown suspends while paused.
	relative bool

	target  time.Time
	lastRun time.Time
	seq     uint64

	// ID uniquely identifies this task instance across reschedules;
	// Scheduler.RemoveTask looks tasks up by it.
	ID string

	// cancelled is set by Scheduler.RemoveTask. A task already popped off
	// the queue and mid-Fn when this is set still finishes its current
	// run, but is not pushed back onto the queue afterward.
	cancelled atomic.Bool
}

// At constructs a one-shot (or, with period > 0, periodic) task eligible
// at the absolute time at.
func At(name string, at time.Time, period time.Duration, fn func()) *Task {
	return &Task{Name: name, Fn: fn, Period: period, target: at, ID: uuid.NewString()}
}

// In constructs a task eligible after d elapses from the moment it is
// added to a Scheduler (not from construction); the countdown freezes
// while that scheduler is paused.
func In(name string, d time.Duration, period time.Duration, fn func()) *Task {
	return &Task{Name: name, Fn: fn, Period: period, relative: true, target: zeroTimeSentinel().Add(d), ID: uuid.NewString()}
}

// zeroTimeSentinel exists so In's target carries a relative offset (d)
// until the scheduler resolves it against its own clock on Add.
func zeroTimeSentinel() time.Time { return time.Time{} }

// Target returns the task's current eligibility time.
func (t *Task) Target() time.Time { return t.target }

// LastRun returns the time the task last fired, or the zero time if
// never.
func (t *Task) LastRun() time.Time { return t.lastRun }
