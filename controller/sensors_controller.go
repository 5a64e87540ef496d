package controller

import (
	"context"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/services/ingest"
	"github.com/Nhashaamn/resq/utils"
)

// SensorsController owns the accelerometer source, simulated or MQTT, and
// exposes its sample channel to the monitor stage.
type SensorsController struct {
	sim  *ingest.AccelReader
	mqtt *ingest.MQTTReader

	AccelCh chan *models.AccelSample
}

// NewSensorsController builds the reader selected by cfg.Sensor.Source.
// sub is only used for the MQTT source and must be registered before the
// MQTT client connects.
func NewSensorsController(cfg *utils.Config, sub ingest.Subscriber) *SensorsController {
	sc := &SensorsController{}

	switch cfg.Sensor.Source {
	case utils.SourceMQTT:
		sc.mqtt = ingest.NewMQTTReader(cfg.Sensor, cfg.MQTT.SampleTopic)
		sc.mqtt.Register(sub)
		sc.AccelCh = sc.mqtt.Out
	default:
		sc.sim = ingest.NewAccelReader(cfg.Sensor)
		sc.AccelCh = sc.sim.Out
	}
	return sc
}

// Start launches the reader.
func (sc *SensorsController) Start(ctx context.Context) {
	if sc.sim != nil {
		sc.sim.Start(ctx)
	}
	if sc.mqtt != nil {
		sc.mqtt.Start(ctx)
	}
}

// Stats returns produced/dropped counters of the active reader.
func (sc *SensorsController) Stats() (produced, dropped uint64) {
	if sc.sim != nil {
		return sc.sim.Stats()
	}
	return sc.mqtt.Stats()
}

// LogStats prints current produce/drop counters.
func (sc *SensorsController) LogStats() {
	p, d := sc.Stats()
	attrs := []any{"produced", p, "dropped", d}
	if sc.mqtt != nil {
		attrs = append(attrs, "rejected", sc.mqtt.Rejected())
	}
	utils.L().Info("accel", attrs...)
}
