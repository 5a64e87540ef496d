package models

// Action is what happens once a countdown resolves.
type Action string

const (
	ActionEscalate Action = "escalate" // send the emergency alert
	ActionSuppress Action = "suppress" // user cancelled in time
)

// Resolver names the event that resolved a countdown.
type Resolver string

const (
	ResolvedByTimeout Resolver = "timeout"
	ResolvedByConfirm Resolver = "confirm"
	ResolvedByDecline Resolver = "decline"
)

// Incident is one shake that went through the confirmation countdown.
type Incident struct {
	ID          string   `json:"id"`
	DetectedNs  int64    `json:"detected_ns"`
	Magnitude   float64  `json:"magnitude"`
	CountdownMs int64    `json:"countdown_ms"`
	Action      Action   `json:"action"`
	ResolvedBy  Resolver `json:"resolved_by"`
	ResolvedNs  int64    `json:"resolved_ns"`
}

// Escalated reports whether the incident ended with an emergency alert.
func (i *Incident) Escalated() bool {
	return i.Action == ActionEscalate
}

func (Incident) CSVHeader() []string {
	return []string{
		"incident_id", "detected_ns", "magnitude", "countdown_ms",
		"action", "resolved_by", "resolved_ns",
	}
}

func (i *Incident) CSVRow() []string {
	return []string{
		i.ID,
		itoa64(i.DetectedNs),
		ftoa(i.Magnitude, 4),
		itoa64(i.CountdownMs),
		string(i.Action),
		string(i.ResolvedBy),
		itoa64(i.ResolvedNs),
	}
}
