// Package channel implements the typed, observed, write-coalescing byte
// channel every producer/consumer in the tree exchanges data through, plus
// AChannelContainer, the Node specialization that owns and wires them.
package channel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdufaud/sihdgo/internal/clock"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/tree"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

// Observer receives a notification every time a channel it watches
// completes a successful, non-coalesced write.
type Observer interface {
	Handle(c *Channel)
}

// Channel is a typed array with a last-write timestamp, an observer
// fanout, and write-coalescing. It embeds tree.Named, so it is addressable
// anywhere in the node tree.
type Channel struct {
	tree.Named

	arrMu     sync.Mutex
	arr       *typedarray.TypedArray
	timestamp time.Time
	clk       clock.Clock

	writeOnChange bool
	notifying     atomic.Bool

	notifyMu sync.Mutex

	obsMu          sync.Mutex
	observers      []Observer
	pendingRemoval []Observer
}

// New constructs a Channel named name holding size elements of kind.
func New(name string, kind typedarray.Kind, size int) (*Channel, error) {
	named, err := tree.NewNamed(name)
	if err != nil {
		return nil, err
	}
	arr, err := typedarray.New(kind, size)
	if err != nil {
		return nil, fmt.Errorf("channel: %s: %w", name, err)
	}
	return &Channel{
		Named:         *named,
		arr:           arr,
		clk:           clock.Default,
		writeOnChange: true,
	}, nil
}

// Build constructs a Channel from a "name=X;type=Y;size=N" configuration
// string.
func Build(configuration string) (*Channel, error) {
	fields, err := config.ParseString(configuration)
	if err != nil {
		return nil, fmt.Errorf("channel: build: %w", err)
	}
	name, ok := fields["name"]
	if !ok {
		return nil, fmt.Errorf("channel: build: missing 'name' in %q", configuration)
	}
	typeName, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("channel: build: missing 'type' in %q", configuration)
	}
	sizeStr, ok := fields["size"]
	if !ok {
		return nil, fmt.Errorf("channel: build: missing 'size' in %q", configuration)
	}
	kind, err := typedarray.KindFromString(typeName)
	if err != nil {
		return nil, fmt.Errorf("channel: build: %w", err)
	}
	size, err := config.ParseSize(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("channel: build: %w", err)
	}
	return New(name, kind, size)
}

// Type returns the channel's element kind.
func (c *Channel) Type() typedarray.Kind {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return c.arr.Type()
}

// Size returns the channel's element count.
func (c *Channel) Size() int {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return c.arr.Size()
}

// ByteSize returns the channel's buffer size in bytes.
func (c *Channel) ByteSize() int {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return c.arr.ByteSize()
}

// Array exposes the channel's backing TypedArray, for callers that need
// type/size introspection (e.g. link-checking).
func (c *Channel) Array() *typedarray.TypedArray {
	return c.arr
}

// SetWriteOnChange toggles the write-coalescing policy.
func (c *Channel) SetWriteOnChange(active bool) {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	c.writeOnChange = active
}

// SetClock overrides the channel's timestamp source.
func (c *Channel) SetClock(clk clock.Clock) {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	c.clk = clk
}

// Timestamp returns the time of the last successful, non-coalesced write.
func (c *Channel) Timestamp() time.Time {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return c.timestamp
}

// Write copies src into the buffer at byteOffset, honoring write-coalescing
// and the notify re-entrancy guard.
func (c *Channel) Write(src []byte, byteOffset int) bool {
	if c.notifying.Load() {
		logging.Log.Warn("channel: cannot write while notifying", "channel", c.FullName())
		return false
	}

	changed := false
	c.arrMu.Lock()
	if byteOffset+len(src) > c.arr.ByteSize() {
		logging.Log.Error("channel: write overflows buffer",
			"channel", c.FullName(), "len", len(src), "offset", byteOffset, "byte_size", c.arr.ByteSize())
		c.arrMu.Unlock()
		return false
	}
	if c.writeOnChange && c.arr.IsBytesEqual(src, byteOffset) {
		c.arrMu.Unlock()
		return true
	}
	if err := c.arr.CopyFromBytes(src, byteOffset); err != nil {
		logging.Log.Error("channel: copy failed", "channel", c.FullName(), "err", err)
		c.arrMu.Unlock()
		return false
	}
	c.timestamp = c.clk.Now()
	changed = true
	c.arrMu.Unlock()

	if changed {
		c.Notify()
	}
	return true
}

// WriteFrom copies other's entire buffer into this channel at offset 0.
// It fails by returning false if the byte sizes disagree.
func (c *Channel) WriteFrom(other *Channel) bool {
	other.arrMu.Lock()
	data := append([]byte(nil), other.arr.Buf()...)
	other.arrMu.Unlock()
	if len(data) != c.ByteSize() {
		logging.Log.Error("channel: write from a channel of a different byte size",
			"channel", c.FullName(), "other", other.FullName(), "len", len(data))
		return false
	}
	return c.Write(data, 0)
}

// CopyTo copies this channel's full buffer into dst at byteOffset.
func (c *Channel) CopyTo(dst *typedarray.TypedArray, byteOffset int) error {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return dst.CopyFromBytes(c.arr.Buf(), byteOffset)
}

// Clone returns an independently-owned copy of the channel's current
// buffer, used by the recorder to capture a snapshot immune to later
// writes.
func (c *Channel) Clone() *typedarray.TypedArray {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return c.arr.Clone()
}

// Notify runs the observer fanout. It sets the re-entrancy guard for the
// full duration of the fanout: a nested Write from inside an observer's
// Handle is rejected, matching the original's un-scoped (not per-caller)
// notifying flag — see DESIGN.md for why this repo keeps that behavior
// instead of a goroutine-local guard.
func (c *Channel) Notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.drainPendingRemovals()

	c.notifying.Store(true)
	for _, o := range c.snapshotObservers() {
		o.Handle(c)
	}
	c.notifying.Store(false)
}

// AddObserver registers o. It returns false if o was already registered.
func (c *Channel) AddObserver(o Observer) bool {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for _, existing := range c.observers {
		if existing == o {
			return false
		}
	}
	c.observers = append(c.observers, o)
	return true
}

// RemoveObserver unregisters o. Called from inside a notification, the
// removal is deferred until the start of the next Notify call.
func (c *Channel) RemoveObserver(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if c.notifying.Load() {
		c.pendingRemoval = append(c.pendingRemoval, o)
		return
	}
	c.removeNowLocked(o)
}

func (c *Channel) removeNowLocked(o Observer) {
	for i, existing := range c.observers {
		if existing == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Channel) snapshotObservers() []Observer {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	return append([]Observer(nil), c.observers...)
}

func (c *Channel) drainPendingRemovals() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for _, o := range c.pendingRemoval {
		c.removeNowLocked(o)
	}
	c.pendingRemoval = nil
}

// Description renders a short "type[size]" summary, mirroring the
// original's Named::description override.
func (c *Channel) Description() string {
	return c.arr.String()
}

// WriteScalar encodes v and writes it into element idx of c. It fails
// (returning false without writing) if T's representation doesn't match
// the channel's kind. Methods can't carry their own type parameters in
// Go, so this lives as a package function rather than on *Channel.
func WriteScalar[T any](c *Channel, idx int, v T) bool {
	c.arrMu.Lock()
	kind := c.arr.Type()
	offset := c.arr.ByteIndex(idx)
	c.arrMu.Unlock()
	if !typedarray.MatchesGoType[T](kind) {
		logging.Log.Error("channel: scalar type mismatch", "channel", c.FullName(), "kind", kind)
		return false
	}
	return c.Write(typedarray.EncodeScalar(v), offset)
}

// ReadScalar decodes element idx of c as a T.
func ReadScalar[T any](c *Channel, idx int) (T, error) {
	c.arrMu.Lock()
	defer c.arrMu.Unlock()
	return typedarray.ReadScalar[T](c.arr, idx)
}
