package playback

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/service"
	"github.com/mdufaud/sihdgo/internal/tree"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

// MemRecorder is an in-memory RecordSink that keeps every inserted
// PlayableRecord in timestamp order and exposes itself as a
// Provider[PlayableRecord]: a Recorder feeds it, a Player or test drains
// it. It carries its own Setup/Init/Start/Stop/Reset lifecycle but is not
// a channel container, so it embeds tree.Named rather than device.Device.
type MemRecorder struct {
	tree.Named

	controller *service.Controller

	mu            sync.Mutex
	records       []PlayableRecord
	stopWhenEmpty bool
	providing     atomic.Bool
	running       atomic.Bool
}

// NewMemRecorder constructs an empty MemRecorder named name.
func NewMemRecorder(name string) (*MemRecorder, error) {
	named, err := tree.NewNamed(name)
	if err != nil {
		return nil, err
	}
	controller := service.NewController()
	controller.OptionalSetup()
	return &MemRecorder{Named: *named, controller: controller}, nil
}

// Configure implements config.Configurable for the single
// "stop_providing_when_empty" key.
func (m *MemRecorder) Configure(key, value string) error {
	switch key {
	case "stop_providing_when_empty":
		active, err := config.ParseBool(value)
		if err != nil {
			return err
		}
		m.SetStopProvidingWhenEmpty(active)
		return nil
	default:
		return fmt.Errorf("playback: memrecorder: unknown configuration key %q", key)
	}
}

var _ config.Configurable = (*MemRecorder)(nil)

// SetStopProvidingWhenEmpty controls whether Providing() flips false the
// moment the buffer drains, or stays true (waiting for more AddRecord
// calls, e.g. a live recording being played back as it grows).
func (m *MemRecorder) SetStopProvidingWhenEmpty(active bool) {
	m.mu.Lock()
	m.stopWhenEmpty = active
	m.mu.Unlock()
}

func (m *MemRecorder) Controller() *service.Controller { return m.controller }
func (m *MemRecorder) State() service.State             { return m.controller.State() }

func (m *MemRecorder) runOp(op service.Event, do func() bool) bool {
	if !m.controller.OpStart(op) {
		return false
	}
	ok := do()
	m.controller.OpEnd(ok)
	return ok
}

func (m *MemRecorder) Setup() bool { return m.runOp(service.EventSetup, func() bool { return true }) }
func (m *MemRecorder) Init() bool  { return m.runOp(service.EventInit, func() bool { return true }) }

// Start makes the recorder providing and running.
func (m *MemRecorder) Start() bool {
	return m.runOp(service.EventStart, func() bool {
		m.providing.Store(true)
		m.running.Store(true)
		return true
	})
}

// Stop stops providing without discarding anything already buffered.
func (m *MemRecorder) Stop() bool {
	return m.runOp(service.EventStop, func() bool {
		m.providing.Store(false)
		m.running.Store(false)
		return true
	})
}

// Reset clears every buffered record.
func (m *MemRecorder) Reset() bool {
	return m.runOp(service.EventReset, func() bool {
		m.Clear()
		return true
	})
}

func (m *MemRecorder) IsRunning() bool { return m.running.Load() }

// HandleRecord implements RecordSink: it clones ch's current array and
// inserts it in timestamp order.
func (m *MemRecorder) HandleRecord(alias string, ch *channel.Channel) {
	m.AddRecord(alias, ch.Timestamp(), ch.Clone())
}

// AddRecord inserts a record built from the given fields, keeping the
// buffer sorted by timestamp.
func (m *MemRecorder) AddRecord(name string, timestamp time.Time, value *typedarray.TypedArray) {
	m.insert(NewPlayableRecord(name, timestamp, value))
}

// AddRecords inserts every record in records.
func (m *MemRecorder) AddRecords(records []PlayableRecord) {
	for _, r := range records {
		m.insert(r)
	}
}

func (m *MemRecorder) insert(rec PlayableRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := sort.Search(len(m.records), func(i int) bool {
		return m.records[i].Timestamp.After(rec.Timestamp)
	})
	m.records = append(m.records, PlayableRecord{})
	copy(m.records[idx+1:], m.records[idx:])
	m.records[idx] = rec
}

// Empty reports whether the buffer currently holds no records.
func (m *MemRecorder) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records) == 0
}

// Providing implements Provider[PlayableRecord].
func (m *MemRecorder) Providing() bool {
	return m.providing.Load()
}

// Provide implements Provider[PlayableRecord]: it pops the earliest
// buffered record. If stop_providing_when_empty is set and this drains
// the last one, Providing flips false.
func (m *MemRecorder) Provide() (PlayableRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return PlayableRecord{}, false
	}
	rec := m.records[0]
	m.records = m.records[1:]
	if m.stopWhenEmpty && len(m.records) == 0 {
		m.providing.Store(false)
	}
	return rec, true
}

var _ Provider[PlayableRecord] = (*MemRecorder)(nil)

// Clear discards every buffered record.
func (m *MemRecorder) Clear() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

// Dump renders the buffer as a hexdump-style listing, one line per
// record: "name  timestamp  hex bytes".
func (m *MemRecorder) Dump() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, rec := range m.records {
		fmt.Fprintf(&b, "%s %s % x\n", rec.Name, rec.Timestamp.Format(time.RFC3339Nano), rec.Value.Buf())
	}
	return b.String()
}
