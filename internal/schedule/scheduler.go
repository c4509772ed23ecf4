package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/mdufaud/sihdgo/internal/clock"
	"github.com/mdufaud/sihdgo/internal/logging"
)

// DefaultAcceptablePreplay is the slack below a task's target time at
// which the scheduler fires early rather than re-arming its timer.
const DefaultAcceptablePreplay = 100 * time.Nanosecond

// DefaultOverrunAt is how late a task can fire before it counts as an
// overrun.
const DefaultOverrunAt = 2 * time.Millisecond

// taskHeap orders Tasks by target time, ties broken by insertion order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].target.Equal(h[j].target) {
		return h[i].seq < h[j].seq
	}
	return h[i].target.Before(h[j].target)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler is a single-goroutine, time-ordered task dispatcher with
// pause/resume and overrun accounting.
type Scheduler struct {
	mu      sync.Mutex
	clk     clock.Clock
	queue   taskHeap
	seqGen  uint64
	playing *Task

	acceptablePreplay time.Duration
	overrunAt         time.Duration
	overruns          int
	noDelay           bool

	paused     bool
	pauseStart time.Time

	wake chan struct{}

	runningMu sync.Mutex
	running   bool
}

// New returns an idle Scheduler using the default monotonic clock.
func New() *Scheduler {
	return &Scheduler{
		clk:               clock.Default,
		acceptablePreplay: DefaultAcceptablePreplay,
		overrunAt:         DefaultOverrunAt,
		wake:              make(chan struct{}, 1),
	}
}

// SetClock overrides the scheduler's time source (tests use clock.Mock).
func (s *Scheduler) SetClock(clk clock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clk = clk
}

// SetNoDelay makes every task eligible immediately, regardless of its
// target time. Intended for deterministic replay/fast-forward: a player
// draining a recorded session doesn't want to wait out real gaps.
func (s *Scheduler) SetNoDelay(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noDelay = active
	s.wakeLocked()
}

// SetOverrunAt overrides the lateness threshold counted as an overrun.
func (s *Scheduler) SetOverrunAt(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrunAt = d
}

// SetAcceptablePreplay overrides the early-fire slack.
func (s *Scheduler) SetAcceptablePreplay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptablePreplay = d
}

// Overruns returns the number of tasks that fired more than overrun_at
// late.
func (s *Scheduler) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// effectiveNow is what a relative (run_in) task's countdown is measured
// against when it is added: the clock's current time, or, during a pause,
// the time the pause began. Resume then shifts relative targets forward
// by the pause duration.
func (s *Scheduler) effectiveNow() time.Time {
	if s.paused {
		return s.pauseStart
	}
	return s.clk.Now()
}

// Add enqueues task, resolving a relative (In-constructed) target against
// the scheduler's current effective time.
func (s *Scheduler) Add(t *Task) {
	s.mu.Lock()
	if t.relative {
		offset := t.target.Sub(time.Time{})
		t.target = s.effectiveNow().Add(offset)
	}
	t.seq = s.seqGen
	s.seqGen++
	heap.Push(&s.queue, t)
	s.mu.Unlock()
	s.signalWake()
}

// RemoveTask cancels the task identified by id. It succeeds whether or
// not the task is currently queued: a queued task is removed from the
// heap outright; a task being played at this instant still completes its
// current run, but is not rescheduled afterward. Removing an ID that
// doesn't match anything pending or in flight is a harmless no-op.
func (s *Scheduler) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.queue {
		if t.ID == id {
			heap.Remove(&s.queue, i)
			t.cancelled.Store(true)
			return true
		}
	}
	if s.playing != nil && s.playing.ID == id {
		s.playing.cancelled.Store(true)
	}
	return true
}

// signalWake is a non-blocking wakeup: the wake channel only needs to
// carry "something changed," never a count, so a full buffer means the
// loop has not yet consumed the previous signal and doesn't need another.
func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) wakeLocked() {
	s.signalWake()
}

// Pause freezes eligibility checks: the dedicated goroutine stops playing
// tasks until Resume, and every relative task's remaining countdown is
// preserved rather than consumed by the elapsed wall-clock time.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.pauseStart = s.clk.Now()
}

// Resume un-pauses the scheduler, shifting every relative task's target
// forward by the elapsed pause duration.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	pausedFor := s.clk.Now().Sub(s.pauseStart)
	for _, t := range s.queue {
		if t.relative {
			t.target = t.target.Add(pausedFor)
		}
	}
	heap.Init(&s.queue)
	s.paused = false
	s.wakeLocked()
}

// Len reports the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run drives the dispatch loop until ctx is cancelled. It is meant to run
// in its own goroutine; Stop (via ctx cancellation) is idempotent from
// the caller's perspective.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return nil
	}
	s.running = true
	s.runningMu.Unlock()
	defer func() {
		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()
	}()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, hasTask := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if hasTask {
			timer.Reset(wait)
		} else {
			timer.Reset(time.Hour)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			continue
		case <-timer.C:
			s.playEligible()
		}
	}
}

// nextWait returns how long to wait before the head of the queue becomes
// eligible, and whether there is a task at all.
func (s *Scheduler) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || len(s.queue) == 0 {
		return 0, false
	}
	head := s.queue[0]
	now := s.clk.Now()
	wait := head.target.Sub(now)
	if s.noDelay || wait <= s.acceptablePreplay {
		return 0, true
	}
	return wait, true
}

// playEligible fires every task at the head of the queue whose target
// has arrived, rescheduling periodic ones and trashing one-shot ones.
func (s *Scheduler) playEligible() {
	for {
		task, now, ok := s.popEligible()
		if !ok {
			return
		}
		lateness := now.Sub(task.target)
		if lateness > s.overrunThreshold() {
			s.mu.Lock()
			s.overruns++
			s.mu.Unlock()
			logging.Log.Warn("scheduler: task overran", "task", task.Name, "late_by", lateness)
		}

		task.lastRun = task.target

		s.mu.Lock()
		s.playing = task
		s.mu.Unlock()

		task.Fn()

		s.mu.Lock()
		s.playing = nil
		cancelled := task.cancelled.Load()
		s.mu.Unlock()

		if task.Period > 0 && !cancelled {
			task.target = task.target.Add(task.Period)
			s.mu.Lock()
			task.seq = s.seqGen
			s.seqGen++
			heap.Push(&s.queue, task)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) overrunThreshold() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrunAt
}

// popEligible removes and returns the head task if it is due now.
func (s *Scheduler) popEligible() (*Task, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || len(s.queue) == 0 {
		return nil, time.Time{}, false
	}
	now := s.clk.Now()
	head := s.queue[0]
	if !s.noDelay && head.target.After(now.Add(s.acceptablePreplay)) {
		return nil, time.Time{}, false
	}
	heap.Pop(&s.queue)
	return head, now, true
}
