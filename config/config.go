// Package config loads the declarative model configuration spec.md §6
// describes: total timeline count, tick resolution, run duration, and
// the nets/hosts/interfaces/links/tcp tuning that compose a model. It
// decodes a map[string]any — the shape a DML front end, out of this
// module's scope, is assumed to produce — via mapstructure, the way
// several of the example repos' own config loaders decode a generic
// document into typed structs.
package config

import (
	"math"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/s3sim/core/ltime"
)

// Model is the top-level configuration document, spec.md §6's
// "total_timeline/tick_per_second/run_time/seed" plus the net/host tree.
type Model struct {
	TotalTimeline uint32      `mapstructure:"total_timeline"`
	TickPerSecond uint32      `mapstructure:"tick_per_second"`
	RunTime       float64     `mapstructure:"run_time"`
	Seed          uint32      `mapstructure:"seed"`
	Nets          []NetConfig `mapstructure:"nets"`
}

// NetConfig is one subnet's hosts and links, spec.md §3's Net.
type NetConfig struct {
	Name  string       `mapstructure:"name"`
	Hosts []HostConfig `mapstructure:"hosts"`
	Links []LinkConfig `mapstructure:"links"`
}

// HostConfig is spec.md §6's per-host attrs: `{rng_level, interface,
// route}`, with `tcpinit` folded in as the tcp master's attrs (passed to
// [tcp.Master.Config] unmodified). There are no `graph` or `nhi_route`
// fields; as unrecognized keys they make [Load] fail.
type HostConfig struct {
	Name      string            `mapstructure:"name"`
	Timeline  int               `mapstructure:"timeline"`
	RNGLevel  string            `mapstructure:"rng_level"`
	Interface []InterfaceConfig `mapstructure:"interface"`
	TCP       map[string]any    `mapstructure:"tcpinit"`
	Route     []RouteConfig     `mapstructure:"route"`
}

// InterfaceConfig is spec.md §6's per-interface attrs.
type InterfaceConfig struct {
	ID             int        `mapstructure:"id"`
	IP             string     `mapstructure:"ip"`
	Queue          string     `mapstructure:"queue"`
	BitrateBps     float64    `mapstructure:"bitrate"`
	LatencySeconds float64    `mapstructure:"latency"`
	JitterRange    float64    `mapstructure:"jitter_range"`
	BufferBytes    int        `mapstructure:"buffer"`
	RED            *REDParams `mapstructure:"red"`
}

// REDParams is the RED-specific sub-block of an interface config, used
// only when Queue == "red" (spec.md §4.2, §8's boundary behavior table).
type REDParams struct {
	Weight       float64 `mapstructure:"weight"`
	QMinBits     float64 `mapstructure:"qmin"`
	QMaxBits     float64 `mapstructure:"qmax"`
	QCapBits     float64 `mapstructure:"qcap"`
	PMax         float64 `mapstructure:"pmax"`
	MeanPktBytes float64 `mapstructure:"mean_pkt_bytes"`
	Wait         bool    `mapstructure:"wait"`
}

// LinkConfig is spec.md §6's per-link attrs: `{min_delay, prop_delay,
// attach}`, attach naming the NHIs of the interfaces it joins (count >=
// 2, enforced by [entity.Engine.AddLink] at build time).
type LinkConfig struct {
	MinDelaySeconds  float64  `mapstructure:"min_delay"`
	PropDelaySeconds float64  `mapstructure:"prop_delay"`
	Attach           []string `mapstructure:"attach"`
}

// RouteConfig is one static or nhi_route entry for a host's FIB.
type RouteConfig struct {
	Destination string `mapstructure:"destination"`
	NextHop     string `mapstructure:"next_hop"`
	Interface   int    `mapstructure:"interface"`
}

// Load decodes raw into a Model, applying the documented defaults and
// rejecting unrecognized keys (spec.md §7's ConfigError is fatal at
// build time, so a typo in the document should fail loudly here rather
// than silently doing nothing downstream).
func Load(raw map[string]any) (*Model, error) {
	m := &Model{TotalTimeline: 1}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           m,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "config: build decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "config: ConfigError")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) validate() error {
	if m.TotalTimeline == 0 {
		m.TotalTimeline = 1
	}
	if m.RunTime <= 0 {
		return errors.New("config: ConfigError: run_time must be > 0")
	}
	return nil
}

// Scale derives the ltime.Scale (decimal digits of ticks per second)
// from TickPerSecond, spec.md §3's "global log-base-10 scale." Zero
// defaults to microsecond resolution, matching every package's own
// default scale of 6.
func (m *Model) Scale() (ltime.Scale, error) {
	if m.TickPerSecond == 0 {
		return 6, nil
	}
	digits := math.Log10(float64(m.TickPerSecond))
	if digits < 0 || digits != math.Trunc(digits) {
		return 0, errors.Errorf("config: ConfigError: tick_per_second must be a power of 10, got %d", m.TickPerSecond)
	}
	return ltime.Scale(digits), nil
}

// RunTimeTicks converts RunTime (seconds) to ticks at this model's
// scale, the value cmd/s3simd hands to [scheduler.Engine.Advance].
func (m *Model) RunTimeTicks() (ltime.Time, error) {
	scale, err := m.Scale()
	if err != nil {
		return 0, err
	}
	return ltime.D2T(m.RunTime, scale), nil
}
