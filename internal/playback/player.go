package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdufaud/sihdgo/internal/channel"
	"github.com/mdufaud/sihdgo/internal/config"
	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/schedule"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

const (
	channelPlay = "play"
	channelEnd  = "end"

	// endPollInterval is how often the end-of-stream watcher checks
	// whether the provider has drained and nothing is left in flight.
	endPollInterval = 5 * time.Millisecond

	// DefaultQueueLimit bounds the collector->scheduler queue; the
	// collector blocks rather than grow it past this.
	DefaultQueueLimit = 64
)

// Player combines a Collector, a Scheduler and a bounded queue to replay
// a Provider[PlayableRecord] into live channels: each record is scheduled
// to write at run_in = record.timestamp - first_timestamp, so gaps in the
// original recording reproduce as gaps in playback.
type Player struct {
	*device.Device

	mu             sync.Mutex
	providerPath   string
	provider       Provider[PlayableRecord]
	aliasTargets   map[string]string
	channelByAlias map[string]*channel.Channel
	queueLimit     int

	playCh *channel.Channel
	endCh  *channel.Channel

	scheduler *schedule.Scheduler
	collector *Collector[PlayableRecord]
	queue     chan PlayableRecord

	firstSet bool
	first    time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlayer constructs a Player named name with default queue sizing and
// no provider configured yet.
func NewPlayer(name string) (*Player, error) {
	d, err := device.New(name)
	if err != nil {
		return nil, err
	}
	p := &Player{
		Device:         d,
		aliasTargets:   make(map[string]string),
		channelByAlias: make(map[string]*channel.Channel),
		queueLimit:     DefaultQueueLimit,
		scheduler:      schedule.New(),
		collector:      NewCollector[PlayableRecord](),
	}
	p.collector.AddObserver(p)
	d.OnInit = p.onInit
	d.OnStart = p.onStart
	d.OnStop = p.onStop
	d.OnReset = p.onReset
	return p, nil
}

// Configure implements config.Configurable for "provider", "alias" and
// "queue_size".
func (p *Player) Configure(key, value string) error {
	switch key {
	case "provider":
		p.mu.Lock()
		p.providerPath = value
		p.mu.Unlock()
		return nil
	case "alias":
		alias, target, err := config.ParseAliasPair(value)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.aliasTargets[alias] = target
		p.mu.Unlock()
		return nil
	case "queue_size":
		n, err := config.ParseSize(value)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.queueLimit = n
		p.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("playback: player: unknown configuration key %q", key)
	}
}

var _ config.Configurable = (*Player)(nil)

// Scheduler exposes the player's internal Scheduler, e.g. so a caller can
// SetNoDelay for fast-forwarded replay or tune overrun accounting.
func (p *Player) Scheduler() *schedule.Scheduler { return p.scheduler }

func (p *Player) onInit() bool {
	p.mu.Lock()
	providerPath := p.providerPath
	p.mu.Unlock()
	if providerPath == "" {
		logging.Log.Error("player: no provider configured", "player", p.FullName())
		return false
	}
	entity := p.Find(providerPath)
	provider, ok := entity.(Provider[PlayableRecord])
	if !ok {
		logging.Log.Error("player: provider not found or wrong type", "player", p.FullName(), "path", providerPath)
		return false
	}

	playCh, err := p.AddUnlinkedChannel(channelPlay, typedarray.KindBool, 1, false)
	if err != nil {
		logging.Log.Error("player: cannot add play channel", "player", p.FullName(), "err", err)
		return false
	}
	endCh, err := p.AddUnlinkedChannel(channelEnd, typedarray.KindBool, 1, false)
	if err != nil {
		logging.Log.Error("player: cannot add end channel", "player", p.FullName(), "err", err)
		return false
	}

	p.mu.Lock()
	p.provider = provider
	p.playCh = playCh
	p.endCh = endCh
	p.mu.Unlock()
	return true
}

func (p *Player) onStart() bool {
	if p.playCh == nil {
		ch, ok := p.GetChannel(channelPlay)
		if !ok {
			return false
		}
		p.playCh = ch
	}
	if p.endCh == nil {
		ch, ok := p.GetChannel(channelEnd)
		if !ok {
			return false
		}
		p.endCh = ch
	}

	p.mu.Lock()
	targets := make(map[string]string, len(p.aliasTargets))
	for alias, path := range p.aliasTargets {
		targets[alias] = path
	}
	queueLimit := p.queueLimit
	provider := p.provider
	p.mu.Unlock()

	channelByAlias := make(map[string]*channel.Channel, len(targets))
	for alias, path := range targets {
		entity := p.Find(path)
		ch, ok := entity.(*channel.Channel)
		if !ok {
			logging.Log.Error("player: destination channel not found", "player", p.FullName(), "alias", alias, "path", path)
			return false
		}
		channelByAlias[alias] = ch
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.channelByAlias = channelByAlias
	p.firstSet = false
	p.queue = make(chan PlayableRecord, queueLimit)
	p.ctx = ctx
	p.cancel = cancel
	p.mu.Unlock()

	p.collector.SetProvider(provider)

	p.wg.Add(4)
	go func() { defer p.wg.Done(); p.scheduler.Run(ctx) }()
	go func() { defer p.wg.Done(); p.collector.Run(ctx) }()
	go func() { defer p.wg.Done(); p.feedScheduler(ctx) }()
	go func() { defer p.wg.Done(); p.watchForEnd(ctx, provider) }()

	channel.WriteScalar(p.playCh, 0, true)
	return true
}

func (p *Player) onStop() bool {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
	if p.playCh != nil {
		channel.WriteScalar(p.playCh, 0, false)
	}
	return true
}

func (p *Player) onReset() bool {
	p.mu.Lock()
	p.provider = nil
	p.channelByAlias = make(map[string]*channel.Channel)
	p.firstSet = false
	p.mu.Unlock()
	return true
}

// HandleCollected implements CollectorObserver[PlayableRecord]: it hands
// every item the collector pulls off the provider to the bounded queue,
// blocking (not dropping) when the queue is full.
func (p *Player) HandleCollected(record PlayableRecord) {
	p.mu.Lock()
	ctx, queue := p.ctx, p.queue
	p.mu.Unlock()
	if ctx == nil {
		return
	}
	select {
	case queue <- record:
	case <-ctx.Done():
	}
}

func (p *Player) feedScheduler(ctx context.Context) {
	for {
		p.mu.Lock()
		queue := p.queue
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return
		case record, ok := <-queue:
			if !ok {
				return
			}
			p.scheduleRecord(record)
		}
	}
}

func (p *Player) scheduleRecord(record PlayableRecord) {
	p.mu.Lock()
	if !p.firstSet {
		p.first = record.Timestamp
		p.firstSet = true
	}
	offset := record.Timestamp.Sub(p.first)
	ch, ok := p.channelByAlias[record.Name]
	p.mu.Unlock()
	if !ok {
		logging.Log.Warn("player: no destination channel for alias", "player", p.FullName(), "alias", record.Name)
		return
	}
	if offset < 0 {
		offset = 0
	}
	value := record.Value
	p.scheduler.Add(schedule.In(record.Name, offset, 0, func() {
		ch.Write(value.Buf(), 0)
	}))
}

func (p *Player) watchForEnd(ctx context.Context, provider Provider[PlayableRecord]) {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			drained := len(p.queue) == 0
			p.mu.Unlock()
			if !provider.Providing() && drained && p.scheduler.Len() == 0 {
				if p.endCh != nil {
					channel.WriteScalar(p.endCh, 0, true)
				}
				go p.Stop()
				return
			}
		}
	}
}
