// Package playback implements the record/replay pipeline: a Recorder
// observes channels and emits (alias, timestamp, snapshot) events to a
// sink, a Provider is anything that can hand those events back out in
// order, a Collector drains a Provider on its own goroutine, and a
// Player schedules replayed writes relative to the first record's
// timestamp.
package playback

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

// PlayableRecord is one captured channel write: the alias it was
// recorded under, the channel's timestamp at capture time, and an
// independently-owned snapshot of its array.
type PlayableRecord struct {
	ID        string
	Name      string
	Timestamp time.Time
	Value     *typedarray.TypedArray
}

// NewPlayableRecord builds a PlayableRecord with a fresh ID.
// MemRecorder.AddRecord builds every record it inserts this way.
func NewPlayableRecord(name string, timestamp time.Time, value *typedarray.TypedArray) PlayableRecord {
	return PlayableRecord{ID: uuid.NewString(), Name: name, Timestamp: timestamp, Value: value}
}

// RecordSink receives a (alias, channel) pair every time a Recorder
// observes a write to one of its recorded channels. MemRecorder is the
// in-memory implementation.
type RecordSink interface {
	HandleRecord(alias string, ch *channel.Channel)
}

// Provider is a pull-based source of T. Providing reports whether the
// provider is currently a source of items at all; false may mean
// "drained" or "stopped", not necessarily "will never produce again".
// Provide returns the next item, or false if none is available right
// now, which can happen while Providing is still true.
type Provider[T any] interface {
	Providing() bool
	Provide() (T, bool)
}
