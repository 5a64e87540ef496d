// Package notify hands resolved incidents to the outside world.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/utils"
)

// Message is the JSON body published for every resolved incident. The
// emergency_triggered / send_emergency pair is what the app layer keys its
// alert screen on.
type Message struct {
	IncidentID         string          `json:"incident_id"`
	Action             models.Action   `json:"action"`
	ResolvedBy         models.Resolver `json:"resolved_by"`
	DetectedNs         int64           `json:"detected_ns"`
	ResolvedNs         int64           `json:"resolved_ns"`
	Magnitude          float64         `json:"magnitude"`
	EmergencyTriggered bool            `json:"emergency_triggered"`
	SendEmergency      bool            `json:"send_emergency"`
}

// NewMessage builds the published body for inc.
func NewMessage(inc models.Incident) Message {
	return Message{
		IncidentID:         inc.ID,
		Action:             inc.Action,
		ResolvedBy:         inc.ResolvedBy,
		DetectedNs:         inc.DetectedNs,
		ResolvedNs:         inc.ResolvedNs,
		Magnitude:          inc.Magnitude,
		EmergencyTriggered: true,
		SendEmergency:      inc.Escalated(),
	}
}

// Publisher is the part of the MQTT client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MQTTNotifier publishes every incident on a single topic.
type MQTTNotifier struct {
	pub   Publisher
	topic string
}

func NewMQTTNotifier(pub Publisher, topic string) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, topic: topic}
}

func (n *MQTTNotifier) Handle(ctx context.Context, inc models.Incident) error {
	body, err := json.Marshal(NewMessage(inc))
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}
	return n.pub.Publish(ctx, n.topic, body)
}

// LogNotifier writes incidents to a structured logger. Escalations are
// logged at WARN so they stand out.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Handle(ctx context.Context, inc models.Incident) error {
	level := slog.LevelInfo
	msg := "emergency suppressed"
	if inc.Escalated() {
		level = slog.LevelWarn
		msg = "emergency escalated"
	}
	n.log.Log(ctx, level, msg,
		"incident", inc.ID,
		"resolved_by", inc.ResolvedBy,
		"magnitude", inc.Magnitude,
		"detected_at", utils.FormatTimestamp(inc.DetectedNs),
		"resolved_at", utils.FormatTimestamp(inc.ResolvedNs))
	return nil
}
