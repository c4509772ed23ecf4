package channel

import (
	"fmt"
	"sync"

	"github.com/mdufaud/sihdgo/internal/logging"
	"github.com/mdufaud/sihdgo/internal/tree"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

type linkConfiguration struct {
	kind  typedarray.Kind
	size  int
	match bool
}

// Container is a Node specialization that owns channels, tracks deferred
// "unlinked" channel declarations, and fans out observed-channel events to
// an optional handler. Composite types (devices) that want those events
// call SetHandler(self) during construction — see tree.Node.SetLinkChecker
// for why Go needs an explicit hook instead of relying on embedding.
type Container struct {
	*tree.Node

	mu          sync.Mutex
	channelLink map[string]linkConfiguration

	obsMu            sync.Mutex
	observedChannels []*Channel

	handler Observer
}

// NewContainer constructs a Container named name, wired as its own node's
// link checker.
func NewContainer(name string) (*Container, error) {
	node, err := tree.NewNode(name)
	if err != nil {
		return nil, err
	}
	c := &Container{
		Node:        node,
		channelLink: make(map[string]linkConfiguration),
	}
	node.SetLinkChecker(c)
	return c, nil
}

// SetHandler registers the observer that receives Handle callbacks for
// every channel this container observes (the IHandler<Channel*> hook the
// original attaches to Device).
func (c *Container) SetHandler(h Observer) {
	c.handler = h
}

// Handle forwards to the registered handler, if any. Container itself is a
// no-op observer until SetHandler is called.
func (c *Container) Handle(ch *Channel) {
	if c.handler != nil {
		c.handler.Handle(ch)
	}
}

// FindChannel resolves path against the tree, starting at this container,
// and returns it only if it names a Channel.
func (c *Container) FindChannel(path string) (*Channel, bool) {
	entity := c.Find(path)
	if entity == nil {
		return nil, false
	}
	ch, ok := entity.(*Channel)
	return ch, ok
}

// GetChannel returns the direct child named name if it is a Channel.
func (c *Container) GetChannel(name string) (*Channel, bool) {
	entity, ok := c.GetChild(name)
	if !ok {
		return nil, false
	}
	ch, ok := entity.(*Channel)
	return ch, ok
}

// AddChannel creates and attaches a new owned Channel.
func (c *Container) AddChannel(name string, kind typedarray.Kind, size int) (*Channel, error) {
	ch, err := New(name, kind, size)
	if err != nil {
		return nil, fmt.Errorf("container: %s: add_channel: %w", c.FullName(), err)
	}
	if err := c.AddChild(ch, true); err != nil {
		return nil, fmt.Errorf("container: %s: add_channel %q: %w", c.FullName(), name, err)
	}
	return ch, nil
}

// AddUnlinkedChannel declares a channel that may be supplied by a pending
// link. If name is currently a declared-but-unresolved link, the
// expected shape is recorded for OnCheckLink and nil is returned (no
// channel exists yet — it will appear once links resolve). Otherwise an
// owned channel is created immediately, as if AddChannel had been called.
func (c *Container) AddUnlinkedChannel(name string, kind typedarray.Kind, size int, checkMatch bool) (*Channel, error) {
	if c.IsLink(name) {
		c.mu.Lock()
		c.channelLink[name] = linkConfiguration{kind: kind, size: size, match: checkMatch}
		c.mu.Unlock()
		return nil, nil
	}
	return c.AddChannel(name, kind, size)
}

// OnCheckLink implements tree.LinkChecker: it rejects a resolved link
// whose target channel disagrees with an AddUnlinkedChannel declaration.
func (c *Container) OnCheckLink(name string, child tree.Entity) bool {
	ch, ok := child.(*Channel)
	if !ok {
		return true
	}
	c.mu.Lock()
	conf, declared := c.channelLink[name]
	c.mu.Unlock()
	if !declared {
		return true
	}
	ok = true
	if conf.match && conf.kind != ch.Type() {
		logging.Log.Error("container: link type mismatch",
			"container", c.FullName(), "link", name, "want", conf.kind, "got", ch.Type())
		ok = false
	}
	if conf.match && conf.size != ch.Size() {
		logging.Log.Error("container: link size mismatch",
			"container", c.FullName(), "link", name, "want", conf.size, "got", ch.Size())
		ok = false
	}
	return ok
}

// ObserveChannel resolves channelName among direct children and observes
// it. It reports false if no such channel exists.
func (c *Container) ObserveChannel(channelName string) bool {
	ch, ok := c.GetChannel(channelName)
	if !ok {
		logging.Log.Error("container: cannot find channel to observe", "container", c.FullName(), "channel", channelName)
		return false
	}
	return c.ObserveChannelRef(ch)
}

// ObserveChannelRef registers the container as an observer of ch.
func (c *Container) ObserveChannelRef(ch *Channel) bool {
	if ch == nil {
		return false
	}
	if ch.AddObserver(c) {
		c.obsMu.Lock()
		c.observedChannels = append(c.observedChannels, ch)
		c.obsMu.Unlock()
	}
	return true
}

// RemoveChannelsObservation unregisters the container from every channel
// it currently observes.
func (c *Container) RemoveChannelsObservation() {
	c.obsMu.Lock()
	observed := c.observedChannels
	c.observedChannels = nil
	c.obsMu.Unlock()
	for _, ch := range observed {
		ch.RemoveObserver(c)
	}
}
