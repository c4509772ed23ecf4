package runtime

import (
	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/devices"
	"github.com/mdufaud/sihdgo/internal/playback"
)

// DefaultRegistry returns a Registry with every component type this
// module ships registered under its configuration-file type name.
func DefaultRegistry() *device.Registry {
	r := device.NewRegistry()
	r.Register("pulsation", func(name string) (device.Component, error) { return devices.NewPulsation(name) })
	r.Register("sampler", func(name string) (device.Component, error) { return devices.NewSampler(name) })
	r.Register("recorder", func(name string) (device.Component, error) { return playback.NewRecorder(name) })
	r.Register("player", func(name string) (device.Component, error) { return playback.NewPlayer(name) })
	r.Register("mem_recorder", func(name string) (device.Component, error) { return playback.NewMemRecorder(name) })
	return r
}
