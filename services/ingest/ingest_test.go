package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/services/motion"
	"github.com/Nhashaamn/resq/utils"
)

type fakeSubscriber struct {
	filter  string
	handler func(string, []byte)
}

func (f *fakeSubscriber) Handle(filter string, h func(string, []byte)) {
	f.filter = filter
	f.handler = h
}

func TestMQTTReaderDecodesSamples(t *testing.T) {
	r := NewMQTTReader(utils.SensorConfig{ChannelBuffer: 4}, "resq/+/accel")
	sub := &fakeSubscriber{}
	r.Register(sub)
	require.Equal(t, "resq/+/accel", sub.filter)

	sub.handler("resq/p1/accel", []byte(`{"timestamp_ns":42,"x":1.5,"y":-2,"z":9.8}`))
	sub.handler("resq/p1/accel", []byte(`{"x":0,"y":0,"z":9.8}`))
	sub.handler("resq/p1/accel", []byte(`not json`))

	first := <-r.Out
	assert.Equal(t, models.AccelSample{TimestampNs: 42, X: 1.5, Y: -2, Z: 9.8}, *first)

	second := <-r.Out
	assert.NotZero(t, second.TimestampNs, "missing timestamp is stamped on receipt")

	produced, dropped := r.Stats()
	assert.Equal(t, uint64(2), produced)
	assert.Equal(t, uint64(0), dropped)
	assert.Equal(t, uint64(1), r.Rejected())
}

func TestMQTTReaderDropsWhenFull(t *testing.T) {
	r := NewMQTTReader(utils.SensorConfig{ChannelBuffer: 1}, "t")
	r.onMessage("t", []byte(`{"x":1}`))
	r.onMessage("t", []byte(`{"x":2}`))

	produced, dropped := r.Stats()
	assert.Equal(t, uint64(1), produced)
	assert.Equal(t, uint64(1), dropped)
}

func TestMQTTReaderIgnoresMessagesAfterStop(t *testing.T) {
	r := NewMQTTReader(utils.SensorConfig{ChannelBuffer: 4}, "t")
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	require.Eventually(t, r.closed.Load, time.Second, 5*time.Millisecond)
	r.onMessage("t", []byte(`{"x":1}`))
	assert.Len(t, r.Out, 0)
}

func TestSimulatedShakeIsDetected(t *testing.T) {
	r := NewAccelReader(utils.SensorConfig{UpdateRateHz: 200, ChannelBuffer: 64, SimulateShakeEvery: 30 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Start(ctx)

	m := motion.New(motion.Config{Threshold: 18, Cooldown: time.Hour})
	for s := range r.Out {
		require.True(t, s.Valid())
		if _, ok := m.Feed(s); ok {
			cancel()
			return
		}
	}
	t.Fatal("simulated shake never crossed the threshold")
}

func TestSimulatedRestIsQuiet(t *testing.T) {
	r := NewAccelReader(utils.SensorConfig{})
	m := motion.New(motion.Config{Threshold: 18, Cooldown: time.Second})
	for i := 0; i < 200; i++ {
		_, ok := m.Feed(r.read(float64(i)*0.05, 0))
		require.False(t, ok)
	}
}
