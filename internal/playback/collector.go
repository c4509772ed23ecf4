package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idlePoll is how often a running Collector re-checks a Provider that
// reported Providing() true but produced nothing on the last Provide
// call. A real waitable-notify primitive would avoid the poll entirely,
// but nothing in this pipeline currently signals "a new item is ready"
// out of band, so a short poll stands in for it.
const idlePoll = time.Millisecond

// CollectorObserver is notified, on the collector's own goroutine, of
// every item a Collector pulls from its Provider.
type CollectorObserver[T any] interface {
	HandleCollected(item T)
}

// Collector drains a Provider[T] on a dedicated goroutine and fans each
// produced item out to its observers. It sleeps (does not busy-loop)
// while its provider is not currently providing, and wakes on SetProvider
// or context cancellation.
type Collector[T any] struct {
	// ID uniquely identifies this collector instance, for correlating
	// log lines and observer callbacks back to one collector across a
	// run with several of them active.
	ID string

	mu        sync.Mutex
	provider  Provider[T]
	observers []CollectorObserver[T]
	wake      chan struct{}

	runningMu sync.Mutex
	running   bool
}

// NewCollector returns an idle Collector with no provider.
func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{ID: uuid.NewString(), wake: make(chan struct{}, 1)}
}

// SetProvider installs p as the source to drain, waking the loop if it
// is currently sleeping.
func (c *Collector[T]) SetProvider(p Provider[T]) {
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
	c.signalWake()
}

// AddObserver registers o to receive every collected item.
func (c *Collector[T]) AddObserver(o CollectorObserver[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Collector[T]) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the collect loop until ctx is cancelled. Meant to run in its
// own goroutine; a second concurrent Run is a harmless no-op.
func (c *Collector[T]) Run(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return nil
	}
	c.running = true
	c.runningMu.Unlock()
	defer func() {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
	}()

	for {
		provider := c.currentProvider()

		if provider == nil || !provider.Providing() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
				continue
			}
		}

		item, ok := provider.Provide()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
				continue
			case <-time.After(idlePoll):
				continue
			}
		}

		for _, o := range c.currentObservers() {
			o.HandleCollected(item)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Collector[T]) currentProvider() Provider[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (c *Collector[T]) currentObservers() []CollectorObserver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CollectorObserver[T](nil), c.observers...)
}
