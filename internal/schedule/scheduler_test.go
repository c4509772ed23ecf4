package schedule

import (
	"context"
	"sync"
	"testing"
	"time"
)

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	s.Run(ctx)
}

func TestTasksFireInEligibilityOrder(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var order []string

	base := time.Now()
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	s.Add(At("c", base.Add(30*time.Millisecond), 0, record("c")))
	s.Add(At("a", base.Add(10*time.Millisecond), 0, record("a")))
	s.Add(At("b", base.Add(20*time.Millisecond), 0, record("b")))

	runFor(t, s, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 tasks fired", order)
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v, want [a b c]", order)
	}
}

func TestPeriodicTaskReschedulesFromTarget(t *testing.T) {
	s := New()
	var mu sync.Mutex
	fires := 0

	s.Add(At("tick", time.Now(), 10*time.Millisecond, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	}))

	runFor(t, s, 55*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fires < 3 {
		t.Fatalf("fires = %d, want at least 3 in 55ms at a 10ms period", fires)
	}
}

func TestNoDelayFiresImmediately(t *testing.T) {
	s := New()
	s.SetNoDelay(true)
	done := make(chan struct{})

	s.Add(At("far", time.Now().Add(time.Hour), 0, func() { close(done) }))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go s.Run(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("task scheduled an hour out should fire immediately under no-delay")
	}
}

func TestOverrunIsCountedNotFatal(t *testing.T) {
	s := New()
	s.SetOverrunAt(time.Millisecond)
	fired := make(chan struct{})

	s.Add(At("late", time.Now().Add(-10*time.Millisecond), 0, func() { close(fired) }))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go s.Run(ctx)

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatalf("already-due task should still fire")
	}
	time.Sleep(10 * time.Millisecond)
	if s.Overruns() != 1 {
		t.Fatalf("overruns = %d, want 1", s.Overruns())
	}
}

func TestRemoveTaskDropsQueuedTask(t *testing.T) {
	s := New()
	fired := make(chan struct{}, 1)
	task := At("never", time.Now().Add(time.Hour), 0, func() { fired <- struct{}{} })
	s.Add(task)

	if !s.RemoveTask(task.ID) {
		t.Fatalf("RemoveTask should report success for a queued task")
	}
	if s.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 after removing the only task", s.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	select {
	case <-fired:
		t.Fatalf("removed task should never fire")
	default:
	}
}

func TestRemoveTaskOnUnknownIDStillSucceeds(t *testing.T) {
	s := New()
	if !s.RemoveTask("does-not-exist") {
		t.Fatalf("RemoveTask should succeed even when nothing matches")
	}
}

func TestRemoveTaskDuringPlaybackCompletesButDoesNotReschedule(t *testing.T) {
	s := New()
	var mu sync.Mutex
	fires := 0
	started := make(chan struct{})
	proceed := make(chan struct{})

	var task *Task
	task = At("tick", time.Now(), 10*time.Millisecond, func() {
		mu.Lock()
		fires++
		mu.Unlock()
		close(started)
		<-proceed
	})
	s.Add(task)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go s.Run(ctx)

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatalf("task never started")
	}

	if !s.RemoveTask(task.ID) {
		t.Fatalf("RemoveTask should succeed for an in-flight task")
	}
	close(proceed)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := fires
	mu.Unlock()
	if got != 1 {
		t.Fatalf("fires = %d, want exactly 1 (in-flight run completes, but is not rescheduled)", got)
	}
}

func TestPauseFreezesRelativeTaskCountdown(t *testing.T) {
	s := New()
	fired := make(chan struct{})
	task := In("soon", 20*time.Millisecond, 0, func() { close(fired) })
	s.Add(task)
	before := task.Target()

	s.Pause()
	time.Sleep(50 * time.Millisecond)

	select {
	case <-fired:
		t.Fatalf("task should not fire while paused")
	default:
	}

	s.Resume()
	if shift := task.Target().Sub(before); shift < 50*time.Millisecond {
		t.Fatalf("resume shifted the relative target by %v, want at least the 50ms pause", shift)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go s.Run(ctx)

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatalf("task should fire shortly after resume")
	}
}
