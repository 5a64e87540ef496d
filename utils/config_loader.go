package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ─── Detection / countdown ──────────────────────────────────────────────

type DetectionConfig struct {
	Threshold float64       `yaml:"threshold"` // m/s² delta between samples
	Cooldown  time.Duration `yaml:"cooldown"`
}

type CountdownConfig struct {
	Duration             time.Duration `yaml:"duration"`
	TickInterval         time.Duration `yaml:"tick_interval"`
	StopMonitorOnConfirm bool          `yaml:"stop_monitor_on_confirm"`
}

// ─── Sensor source ──────────────────────────────────────────────────────

const (
	SourceSimulated = "sim"
	SourceMQTT      = "mqtt"
)

type SensorConfig struct {
	Source             string        `yaml:"source"` // "sim" or "mqtt"
	UpdateRateHz       int           `yaml:"update_rate_hz"`
	ChannelBuffer      int           `yaml:"channel_buffer"`
	SimulateShakeEvery time.Duration `yaml:"simulate_shake_every"`
}

type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	SampleTopic string        `yaml:"sample_topic"`
	ActionTopic string        `yaml:"action_topic"`
	KeepAlive   time.Duration `yaml:"keep_alive"`
	QoS         byte          `yaml:"qos"`
}

// ─── Storage / API / log ────────────────────────────────────────────────

type CSVStorageConfig struct {
	FlushIntervalMs int  `yaml:"flush_interval_ms"`
	BufferSizeKB    int  `yaml:"buffer_size_kb"`
	WriteHeader     bool `yaml:"write_header"`
}

type StorageConfig struct {
	BaseDir       string           `yaml:"base_dir"`
	DBFile        string           `yaml:"db_file"`
	SessionPrefix string           `yaml:"session_prefix"`
	CSV           CSVStorageConfig `yaml:"csv"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the top-level structure for resq.yaml.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Countdown CountdownConfig `yaml:"countdown"`
	Sensor    SensorConfig    `yaml:"sensor"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultConfig returns the tuned defaults: an 18 m/s² jolt with a 5s
// cooldown opens a 10s countdown ticking once per second.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{Threshold: 18.0, Cooldown: 5 * time.Second},
		Countdown: CountdownConfig{
			Duration:             10 * time.Second,
			TickInterval:         time.Second,
			StopMonitorOnConfirm: true,
		},
		Sensor: SensorConfig{
			Source:        SourceSimulated,
			UpdateRateHz:  16, // roughly SENSOR_DELAY_UI
			ChannelBuffer: 256,
		},
		MQTT: MQTTConfig{
			Broker:      "mqtt://localhost:1883",
			ClientID:    "resq-monitor",
			SampleTopic: "resq/sensors/accel",
			ActionTopic: "resq/emergency/action",
			KeepAlive:   30 * time.Second,
			QoS:         1,
		},
		Storage: StorageConfig{
			BaseDir:       "data",
			DBFile:        "resq.db",
			SessionPrefix: "session",
			CSV:           CSVStorageConfig{FlushIntervalMs: 500, BufferSizeKB: 64, WriteHeader: true},
		},
		API: APIConfig{Enabled: true, Listen: ":8080"},
		Log: LogConfig{Level: "info"},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Detection.Threshold <= 0:
		return fmt.Errorf("%w: detection.threshold must be > 0", ErrInvalidConfig)
	case c.Detection.Cooldown < 0:
		return fmt.Errorf("%w: detection.cooldown must be >= 0", ErrInvalidConfig)
	case c.Countdown.Duration <= 0:
		return fmt.Errorf("%w: countdown.duration must be > 0", ErrInvalidConfig)
	case c.Countdown.TickInterval <= 0:
		return fmt.Errorf("%w: countdown.tick_interval must be > 0", ErrInvalidConfig)
	case c.Sensor.UpdateRateHz <= 0:
		return fmt.Errorf("%w: sensor.update_rate_hz must be > 0", ErrInvalidConfig)
	}

	switch c.Sensor.Source {
	case SourceSimulated:
	case SourceMQTT:
		if c.MQTT.Broker == "" || c.MQTT.SampleTopic == "" {
			return fmt.Errorf("%w: mqtt.broker and mqtt.sample_topic are required for source=mqtt", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sensor.source %q", ErrInvalidConfig, c.Sensor.Source)
	}
	return nil
}

// LoadConfig reads resq.yaml on top of DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
