package controller

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/services/motion"
	"github.com/Nhashaamn/resq/utils"
)

// MonitorStats is a snapshot of the monitor stage counters.
type MonitorStats struct {
	Active  bool   `json:"active"`
	Samples uint64 `json:"samples"`
	Invalid uint64 `json:"invalid"`
	Ignored uint64 `json:"ignored"` // arrived while deactivated
	Shakes  uint64 `json:"shakes"`
}

// MonitorController runs the motion monitor over the sample stream. It can
// be switched off and on at runtime; switching on re-seeds the baseline
// from the next sample.
//
// The monitor itself is touched only by the run goroutine. Activate and
// Deactivate communicate with it through atomics.
type MonitorController struct {
	monitor *motion.Monitor

	active       atomic.Bool
	resetPending atomic.Bool

	samples atomic.Uint64
	invalid atomic.Uint64
	ignored atomic.Uint64
	shakes  atomic.Uint64

	Out chan *models.ShakeEvent
}

// NewMonitorController creates an active monitor stage.
func NewMonitorController(cfg utils.DetectionConfig) *MonitorController {
	mc := &MonitorController{
		monitor: motion.New(motion.Config{Threshold: cfg.Threshold, Cooldown: cfg.Cooldown}),
		Out:     make(chan *models.ShakeEvent, 16),
	}
	mc.active.Store(true)
	return mc
}

// Start consumes samples from in until ctx is done or in is closed.
func (mc *MonitorController) Start(ctx context.Context, in <-chan *models.AccelSample) {
	go mc.run(ctx, in)
	cfg := mc.monitor.Config()
	utils.L().Info("monitor controller started", "threshold", cfg.Threshold, "cooldown", cfg.Cooldown)
}

func (mc *MonitorController) run(ctx context.Context, in <-chan *models.AccelSample) {
	defer close(mc.Out)

	for {
		select {
		case <-ctx.Done():
			utils.L().Info("monitor controller stopped")
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			ev, shaken := mc.process(s)
			if !shaken {
				continue
			}
			select {
			case mc.Out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (mc *MonitorController) process(s *models.AccelSample) (*models.ShakeEvent, bool) {
	if !mc.active.Load() {
		mc.ignored.Add(1)
		return nil, false
	}
	if mc.resetPending.CompareAndSwap(true, false) {
		mc.monitor.Reset()
	}

	mc.samples.Add(1)
	if !s.Valid() {
		mc.invalid.Add(1)
		return nil, false
	}

	ev, ok := mc.monitor.Feed(s)
	if !ok {
		return nil, false
	}
	ev.ID = uuid.NewString()
	mc.shakes.Add(1)
	utils.L().Info("shake detected", "event", ev.ID, "magnitude", ev.Magnitude)
	return &ev, true
}

// Activate turns detection on. It reports false if it was already on.
func (mc *MonitorController) Activate() bool {
	if !mc.active.CompareAndSwap(false, true) {
		return false
	}
	mc.resetPending.Store(true)
	utils.L().Info("shake monitor activated")
	return true
}

// Deactivate turns detection off. It reports false if it was already off.
func (mc *MonitorController) Deactivate() bool {
	if !mc.active.CompareAndSwap(true, false) {
		return false
	}
	utils.L().Info("shake monitor deactivated")
	return true
}

// Active reports whether detection is on.
func (mc *MonitorController) Active() bool {
	return mc.active.Load()
}

// Stats returns the stage counters.
func (mc *MonitorController) Stats() MonitorStats {
	return MonitorStats{
		Active:  mc.active.Load(),
		Samples: mc.samples.Load(),
		Invalid: mc.invalid.Load(),
		Ignored: mc.ignored.Load(),
		Shakes:  mc.shakes.Load(),
	}
}

// LogStats prints the stage counters.
func (mc *MonitorController) LogStats() {
	s := mc.Stats()
	utils.L().Info("monitor",
		"active", s.Active, "samples", s.Samples, "invalid", s.Invalid,
		"ignored", s.Ignored, "shakes", s.Shakes)
}
