package ingest

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/utils"
)

const gravity = 9.81

// AccelReader produces simulated accelerometer samples: a phone resting
// flat with a little hand tremor, plus a short violent shake every
// SimulateShakeEvery when that is set.
type AccelReader struct {
	cfg      utils.SensorConfig
	Out      chan *models.AccelSample
	dropped  uint64
	produced uint64
}

func NewAccelReader(cfg utils.SensorConfig) *AccelReader {
	buf := cfg.ChannelBuffer
	if buf <= 0 {
		buf = 256
	}
	return &AccelReader{
		cfg: cfg,
		Out: make(chan *models.AccelSample, buf),
	}
}

func (r *AccelReader) Start(ctx context.Context) {
	go r.run(ctx)
	utils.L().Info("accel reader started",
		"rate_hz", r.cfg.UpdateRateHz, "buffer", cap(r.Out), "shake_every", r.cfg.SimulateShakeEvery)
}

func (r *AccelReader) run(ctx context.Context) {
	defer close(r.Out)

	rate := r.cfg.UpdateRateHz
	if rate <= 0 {
		rate = 16
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var step float64
	nextShake := time.Now().Add(r.cfg.SimulateShakeEvery)
	shakeLeft := 0

	for {
		select {
		case <-ctx.Done():
			utils.L().Info("accel reader stopped",
				"produced", atomic.LoadUint64(&r.produced), "dropped", atomic.LoadUint64(&r.dropped))
			return
		case now := <-ticker.C:
			if r.cfg.SimulateShakeEvery > 0 && !now.Before(nextShake) {
				shakeLeft = 6
				nextShake = now.Add(r.cfg.SimulateShakeEvery)
			}
			s := r.read(step, shakeLeft)
			step += 0.05
			if shakeLeft > 0 {
				shakeLeft--
			}

			select {
			case r.Out <- s:
				atomic.AddUint64(&r.produced, 1)
			default:
				atomic.AddUint64(&r.dropped, 1)
			}
		}
	}
}

// read synthesises one sample. During a shake the x axis swings ±25 m/s²
// on alternate samples.
func (r *AccelReader) read(step float64, shakeLeft int) *models.AccelSample {
	s := &models.AccelSample{
		TimestampNs: utils.NowNano(),
		X:           0.2*math.Sin(step) + rand.Float64()*0.05,
		Y:           0.1*math.Cos(step) + rand.Float64()*0.05,
		Z:           gravity + rand.Float64()*0.05,
	}
	if shakeLeft > 0 {
		swing := 25.0
		if shakeLeft%2 == 0 {
			swing = -swing
		}
		s.X += swing
	}
	return s
}

func (r *AccelReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.dropped)
}
