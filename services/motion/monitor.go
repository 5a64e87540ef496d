// Package motion turns a stream of accelerometer samples into shake events.
package motion

import (
	"math"
	"time"

	"github.com/Nhashaamn/resq/models"
)

// Config holds the detection parameters. It is fixed once a Monitor is
// built.
type Config struct {
	Threshold float64       // minimum delta magnitude, exclusive
	Cooldown  time.Duration // minimum gap between two accepted shakes, exclusive
}

// SampleState is the monitor's memory between samples.
type SampleState struct {
	LastX, LastY, LastZ float64
	Initialized         bool

	LastShakeNs int64
	HasShaken   bool
}

// Monitor compares each sample with the previous one and reports a shake
// when the change in acceleration is large enough. It is not safe for
// concurrent use; feed it from a single goroutine.
type Monitor struct {
	cfg   Config
	state SampleState
}

// New creates a monitor with an empty baseline.
func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Config returns the detection parameters.
func (m *Monitor) Config() Config {
	return m.cfg
}

// State returns a copy of the current sample state.
func (m *Monitor) State() SampleState {
	return m.state
}

// Reset drops the baseline so the next sample re-seeds it. The time of the
// last accepted shake is kept, so a restart cannot shorten the cooldown.
func (m *Monitor) Reset() {
	m.state.Initialized = false
	m.state.LastX, m.state.LastY, m.state.LastZ = 0, 0, 0
}

// OnSample feeds one reading taken at tsNs (nanoseconds, any epoch as long
// as it is consistent). The first reading after construction or Reset only
// seeds the baseline. Readings with a non-finite axis are dropped without
// touching the baseline.
func (m *Monitor) OnSample(x, y, z float64, tsNs int64) (models.ShakeEvent, bool) {
	s := models.AccelSample{X: x, Y: y, Z: z}
	if !s.Valid() {
		return models.ShakeEvent{}, false
	}

	if !m.state.Initialized {
		m.state.LastX, m.state.LastY, m.state.LastZ = x, y, z
		m.state.Initialized = true
		return models.ShakeEvent{}, false
	}

	dx := x - m.state.LastX
	dy := y - m.state.LastY
	dz := z - m.state.LastZ
	delta := math.Hypot(math.Hypot(dx, dy), dz)

	m.state.LastX, m.state.LastY, m.state.LastZ = x, y, z

	// an axis difference past MaxFloat64 is not a measurable jolt
	if math.IsInf(delta, 0) || !(delta > m.cfg.Threshold) {
		return models.ShakeEvent{}, false
	}
	if m.state.HasShaken && tsNs-m.state.LastShakeNs <= m.cfg.Cooldown.Nanoseconds() {
		return models.ShakeEvent{}, false
	}

	m.state.LastShakeNs = tsNs
	m.state.HasShaken = true
	return models.ShakeEvent{TimestampNs: tsNs, Magnitude: delta}, true
}

// Feed is OnSample for a decoded sample.
func (m *Monitor) Feed(s *models.AccelSample) (models.ShakeEvent, bool) {
	return m.OnSample(s.X, s.Y, s.Z, s.TimestampNs)
}
