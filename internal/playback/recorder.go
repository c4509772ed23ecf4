package playback

import (
	"fmt"
	"sync"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

const channelRecords = "records"

// Recorder observes a configured alias->path set of channels and, on
// every notification, hands (alias, channel) to a configured RecordSink,
// which takes its own snapshot of the channel (MemRecorder clones its
// array), then bumps a "records" counter channel so progress is visible
// without polling.
type Recorder struct {
	*device.Device

	mu             sync.Mutex
	sinkPath       string
	aliasTargets   map[string]string // alias -> channel path, set before Start
	aliasByChannel map[*channel.Channel]string

	sink      RecordSink
	recordsCh *channel.Channel
	count     uint32
}

// NewRecorder constructs a Recorder named name with no sink or recorded
// channels configured yet.
func NewRecorder(name string) (*Recorder, error) {
	d, err := device.New(name)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		Device:         d,
		aliasTargets:   make(map[string]string),
		aliasByChannel: make(map[*channel.Channel]string),
	}
	d.SetHandler(r)
	d.OnInit = r.onInit
	d.OnStart = r.onStart
	d.OnStop = r.onStop
	d.OnReset = r.onReset
	return r, nil
}

// Configure implements config.Configurable for the "handler", "record"
// and "unrecord" keys.
func (r *Recorder) Configure(key, value string) error {
	switch key {
	case "handler":
		r.mu.Lock()
		r.sinkPath = value
		r.mu.Unlock()
		return nil
	case "record":
		alias, target, err := config.ParseAliasPair(value)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.aliasTargets[alias] = target
		r.mu.Unlock()
		return nil
	case "unrecord":
		r.mu.Lock()
		delete(r.aliasTargets, value)
		r.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("playback: recorder: unknown configuration key %q", key)
	}
}

var _ config.Configurable = (*Recorder)(nil)

// Handle implements channel.Observer, invoked by Container's handler hook
// for every channel this recorder observes.
func (r *Recorder) Handle(ch *channel.Channel) {
	r.mu.Lock()
	alias, recorded := r.aliasByChannel[ch]
	sink := r.sink
	recordsCh := r.recordsCh
	r.mu.Unlock()
	if !recorded || sink == nil {
		return
	}
	sink.HandleRecord(alias, ch)
	r.mu.Lock()
	r.count++
	count := r.count
	r.mu.Unlock()
	if recordsCh != nil {
		channel.WriteScalar(recordsCh, 0, count)
	}
}

func (r *Recorder) onInit() bool {
	r.mu.Lock()
	sinkPath := r.sinkPath
	r.mu.Unlock()
	if sinkPath == "" {
		logging.Log.Error("recorder: no handler configured", "recorder", r.FullName())
		return false
	}
	entity := r.Find(sinkPath)
	sink, ok := entity.(RecordSink)
	if !ok {
		logging.Log.Error("recorder: handler not found or wrong type", "recorder", r.FullName(), "path", sinkPath)
		return false
	}
	ch, err := r.AddUnlinkedChannel(channelRecords, typedarray.KindU32, 1, false)
	if err != nil {
		logging.Log.Error("recorder: cannot add records channel", "recorder", r.FullName(), "err", err)
		return false
	}
	r.mu.Lock()
	r.sink = sink
	r.recordsCh = ch
	r.mu.Unlock()
	return true
}

func (r *Recorder) onStart() bool {
	if r.recordsCh == nil {
		ch, ok := r.GetChannel(channelRecords)
		if !ok {
			logging.Log.Error("recorder: records channel missing at start", "recorder", r.FullName())
			return false
		}
		r.mu.Lock()
		r.recordsCh = ch
		r.mu.Unlock()
	}

	r.mu.Lock()
	targets := make(map[string]string, len(r.aliasTargets))
	for alias, path := range r.aliasTargets {
		targets[alias] = path
	}
	r.mu.Unlock()

	for alias, path := range targets {
		entity := r.Find(path)
		ch, ok := entity.(*channel.Channel)
		if !ok {
			logging.Log.Error("recorder: channel to record not found", "recorder", r.FullName(), "alias", alias, "path", path)
			return false
		}
		r.mu.Lock()
		r.aliasByChannel[ch] = alias
		r.mu.Unlock()
		r.ObserveChannelRef(ch)
	}
	return true
}

func (r *Recorder) onStop() bool {
	r.mu.Lock()
	r.aliasByChannel = make(map[*channel.Channel]string)
	r.recordsCh = nil
	r.mu.Unlock()
	return true
}

func (r *Recorder) onReset() bool {
	r.mu.Lock()
	r.count = 0
	r.sink = nil
	r.mu.Unlock()
	return true
}
