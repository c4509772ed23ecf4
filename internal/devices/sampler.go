package devices

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/device"
)

// Sampler coalesces every input channel it observes onto a configured
// output channel once per tick of a configured frequency: any number of
// writes to an input between two ticks collapse into a single
// last-value-wins write to its mapped output at the next tick.
type Sampler struct {
	*device.Device

	mu            sync.Mutex
	frequency     float64
	limiter       *rate.Limiter
	sampleOutToIn map[string]string
	outByIn       map[*channel.Channel]*channel.Channel
	dirty         map[*channel.Channel]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runMu   sync.Mutex
	running bool
}

// NewSampler builds a Sampler device named name.
func NewSampler(name string) (*Sampler, error) {
	d, err := device.New(name)
	if err != nil {
		return nil, err
	}
	s := &Sampler{Device: d, sampleOutToIn: map[string]string{}}
	d.SetHandler(s)
	d.OnStart = s.onStart
	d.OnStop = s.onStop
	d.OnReset = s.onReset
	return s, nil
}

// Configure implements config.Configurable for the "sample" key (shape
// "OUT_CHANNEL_PATH=IN_CHANNEL_PATH") and the "frequency" key, in hertz,
// gating how often dirty inputs are flushed to their outputs.
func (s *Sampler) Configure(key, value string) error {
	switch key {
	case "sample":
		out, in, err := config.ParseAliasPair(value)
		if err != nil {
			return fmt.Errorf("devices: invalid sample configuration %q: %w", value, err)
		}
		s.mu.Lock()
		s.sampleOutToIn[out] = in
		s.mu.Unlock()
		return nil
	case "frequency":
		freq, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("devices: invalid frequency %q: %w", value, err)
		}
		if freq <= 0 {
			return fmt.Errorf("devices: frequency must be positive, got %v", freq)
		}
		s.mu.Lock()
		s.frequency = freq
		s.limiter = rate.NewLimiter(rate.Limit(freq), 1)
		s.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("devices: sampler has no %q configuration", key)
	}
}

var _ config.Configurable = (*Sampler)(nil)

// Handle implements channel.Observer: the incoming channel is only
// marked dirty here. The actual copy to its mapped output happens on the
// next tick of run, so several rapid writes between ticks coalesce into
// one last-value-wins notification.
func (s *Sampler) Handle(ch *channel.Channel) {
	s.mu.Lock()
	if _, ok := s.outByIn[ch]; ok {
		if s.dirty == nil {
			s.dirty = map[*channel.Channel]bool{}
		}
		s.dirty[ch] = true
	}
	s.mu.Unlock()
}

func (s *Sampler) onStart() bool {
	s.mu.Lock()
	freq := s.frequency
	pairs := make(map[string]string, len(s.sampleOutToIn))
	for out, in := range s.sampleOutToIn {
		pairs[out] = in
	}
	s.mu.Unlock()
	if freq == 0 {
		return false
	}

	outByIn := make(map[*channel.Channel]*channel.Channel, len(pairs))
	ok := true
	for outPath, inPath := range pairs {
		inCh, found := s.FindChannel(inPath)
		if !found {
			ok = false
			continue
		}
		outCh, found := s.FindChannel(outPath)
		if !found {
			ok = false
			continue
		}
		if !s.ObserveChannelRef(inCh) {
			ok = false
			continue
		}
		outByIn[inCh] = outCh
	}
	if !ok {
		return false
	}

	s.mu.Lock()
	s.outByIn = outByIn
	s.dirty = map[*channel.Channel]bool{}
	limiter := s.limiter
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.run(s.ctx, limiter)

	s.runMu.Lock()
	s.running = true
	s.runMu.Unlock()
	return true
}

func (s *Sampler) run(ctx context.Context, limiter *rate.Limiter) {
	defer s.wg.Done()
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		s.flush()
	}
}

// flush copies the latest value of every channel marked dirty since the
// previous tick onto its mapped output, then clears the dirty set.
func (s *Sampler) flush() {
	s.mu.Lock()
	dirty := s.dirty
	s.dirty = map[*channel.Channel]bool{}
	outByIn := s.outByIn
	s.mu.Unlock()

	for inCh := range dirty {
		if outCh, ok := outByIn[inCh]; ok {
			outCh.WriteFrom(inCh)
		}
	}
}

func (s *Sampler) onStop() bool {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()

	s.mu.Lock()
	s.outByIn = nil
	s.dirty = nil
	s.mu.Unlock()
	return true
}

func (s *Sampler) onReset() bool {
	s.mu.Lock()
	s.sampleOutToIn = map[string]string{}
	s.mu.Unlock()
	return true
}

// IsRunning reports whether the sampler has completed Start and not yet
// Stop.
func (s *Sampler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}
