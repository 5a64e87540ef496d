package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 18.0, cfg.Detection.Threshold)
	assert.Equal(t, 5*time.Second, cfg.Detection.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Countdown.Duration)
	assert.Equal(t, time.Second, cfg.Countdown.TickInterval)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
detection:
  threshold: 22.5
  cooldown: 3s
countdown:
  duration: 15s
sensor:
  source: mqtt
mqtt:
  broker: mqtt://broker:1883
  sample_topic: phone/accel
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 22.5, cfg.Detection.Threshold)
	assert.Equal(t, 3*time.Second, cfg.Detection.Cooldown)
	assert.Equal(t, 15*time.Second, cfg.Countdown.Duration)
	// untouched keys keep their defaults
	assert.Equal(t, time.Second, cfg.Countdown.TickInterval)
	assert.True(t, cfg.Countdown.StopMonitorOnConfirm)
	assert.Equal(t, SourceMQTT, cfg.Sensor.Source)
	assert.Equal(t, "phone/accel", cfg.MQTT.SampleTopic)
	assert.Equal(t, "resq/emergency/action", cfg.MQTT.ActionTopic)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero threshold", "detection:\n  threshold: 0\n"},
		{"negative cooldown", "detection:\n  cooldown: -1s\n"},
		{"zero countdown", "countdown:\n  duration: 0s\n"},
		{"unknown source", "sensor:\n  source: bluetooth\n"},
		{"mqtt without broker", "sensor:\n  source: mqtt\nmqtt:\n  broker: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("Warning").String())
	assert.Equal(t, "ERROR", ParseLevel("error").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}
