package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/utils"
)

// Subscriber is the part of the MQTT client the reader needs.
type Subscriber interface {
	Handle(filter string, h func(topic string, payload []byte))
}

// MQTTReader decodes accelerometer samples published by the phone as JSON
// {"timestamp_ns":..,"x":..,"y":..,"z":..}. A missing timestamp is
// replaced by the receive time.
type MQTTReader struct {
	topic    string
	Out      chan *models.AccelSample
	dropped  uint64
	produced uint64
	rejected uint64
	closed   atomic.Bool
}

func NewMQTTReader(cfg utils.SensorConfig, topic string) *MQTTReader {
	buf := cfg.ChannelBuffer
	if buf <= 0 {
		buf = 256
	}
	return &MQTTReader{
		topic: topic,
		Out:   make(chan *models.AccelSample, buf),
	}
}

// Register wires the reader into sub. Call before the client connects.
func (r *MQTTReader) Register(sub Subscriber) {
	sub.Handle(r.topic, r.onMessage)
}

// Start stops accepting messages once ctx is done. Out stays open since a
// late broker callback may still be in flight; consumers select on ctx.
func (r *MQTTReader) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		r.closed.Store(true)
		utils.L().Info("mqtt reader stopped",
			"produced", atomic.LoadUint64(&r.produced),
			"dropped", atomic.LoadUint64(&r.dropped),
			"rejected", atomic.LoadUint64(&r.rejected))
	}()
	utils.L().Info("mqtt reader started", "topic", r.topic, "buffer", cap(r.Out))
}

func (r *MQTTReader) onMessage(topic string, payload []byte) {
	if r.closed.Load() {
		return
	}

	var s models.AccelSample
	if err := json.Unmarshal(payload, &s); err != nil {
		atomic.AddUint64(&r.rejected, 1)
		utils.L().Debug("mqtt reader: bad payload", "topic", topic, "error", err)
		return
	}
	if s.TimestampNs == 0 {
		s.TimestampNs = utils.NowNano()
	}

	select {
	case r.Out <- &s:
		atomic.AddUint64(&r.produced, 1)
	default:
		atomic.AddUint64(&r.dropped, 1)
	}
}

func (r *MQTTReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.dropped)
}

// Rejected returns the number of payloads that failed to decode.
func (r *MQTTReader) Rejected() uint64 {
	return atomic.LoadUint64(&r.rejected)
}
