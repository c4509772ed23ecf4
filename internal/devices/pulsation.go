// Package devices holds small demo devices exercising the service tree
// end to end: Pulsation emits a heartbeat at a configured frequency, and
// Sampler coalesces input channel writes onto output channels once per
// tick of its own configured frequency.
package devices

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

const (
	channelHeartbeat = "heartbeat"
	channelActivate  = "activate"
)

// Pulsation is a heartbeat device: while its "activate" channel reads
// true, it increments and writes a counter onto "heartbeat" at the
// configured frequency.
type Pulsation struct {
	*device.Device

	mu        sync.Mutex
	frequency float64
	limiter   *rate.Limiter

	heartbeatCh *channel.Channel
	activateCh  *channel.Channel
	beats       uint32

	active atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPulsation builds a Pulsation device named name.
func NewPulsation(name string) (*Pulsation, error) {
	d, err := device.New(name)
	if err != nil {
		return nil, err
	}
	p := &Pulsation{Device: d}
	d.OnInit = p.onInit
	d.OnStart = p.onStart
	d.OnStop = p.onStop
	return p, nil
}

// Configure implements config.Configurable for the "frequency" key, in
// hertz.
func (p *Pulsation) Configure(key, value string) error {
	switch key {
	case "frequency":
		freq, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("devices: invalid frequency %q: %w", value, err)
		}
		if freq <= 0 {
			return fmt.Errorf("devices: frequency must be positive, got %v", freq)
		}
		p.mu.Lock()
		p.frequency = freq
		p.limiter = rate.NewLimiter(rate.Limit(freq), 1)
		p.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("devices: pulsation has no %q configuration", key)
	}
}

var _ config.Configurable = (*Pulsation)(nil)

func (p *Pulsation) onInit() bool {
	if _, err := p.AddUnlinkedChannel(channelHeartbeat, typedarray.KindU32, 1, false); err != nil {
		return false
	}
	if _, err := p.AddUnlinkedChannel(channelActivate, typedarray.KindBool, 1, false); err != nil {
		return false
	}
	return true
}

// Handle implements channel.Observer: the only channel a Pulsation
// observes is its own "activate" channel.
func (p *Pulsation) Handle(ch *channel.Channel) {
	if ch != p.activateCh {
		return
	}
	active, err := channel.ReadScalar[bool](ch, 0)
	if err != nil {
		return
	}
	p.active.Store(active)
}

func (p *Pulsation) onStart() bool {
	p.mu.Lock()
	freq := p.frequency
	p.mu.Unlock()
	if freq == 0 {
		return false
	}

	heartbeatCh, ok := p.GetChannel(channelHeartbeat)
	if !ok {
		return false
	}
	activateCh, ok := p.GetChannel(channelActivate)
	if !ok {
		return false
	}
	beats, err := channel.ReadScalar[uint32](heartbeatCh, 0)
	if err != nil {
		return false
	}

	p.heartbeatCh = heartbeatCh
	p.activateCh = activateCh
	p.beats = beats
	p.ObserveChannelRef(activateCh)

	initiallyActive, _ := channel.ReadScalar[bool](activateCh, 0)
	p.active.Store(initiallyActive)

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.beat(p.ctx)
	return true
}

func (p *Pulsation) beat(ctx context.Context) {
	defer p.wg.Done()
	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if !p.active.Load() {
			continue
		}
		p.beats++
		channel.WriteScalar(p.heartbeatCh, 0, p.beats)
	}
}

func (p *Pulsation) onStop() bool {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.heartbeatCh = nil
	p.activateCh = nil
	return true
}

// IsActive reports whether the heartbeat is currently unpaused.
func (p *Pulsation) IsActive() bool {
	return p.active.Load()
}
