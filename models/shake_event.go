package models

// ShakeEvent is raised by the motion monitor when the acceleration delta
// between two consecutive samples exceeds the threshold outside the
// cooldown window.
type ShakeEvent struct {
	ID          string  `json:"id"`
	TimestampNs int64   `json:"timestamp_ns"`
	Magnitude   float64 `json:"magnitude"` // m/s², delta between samples
}

func (ShakeEvent) CSVHeader() []string {
	return []string{"timestamp_ns", "event_id", "magnitude"}
}

func (e *ShakeEvent) CSVRow() []string {
	return []string{itoa64(e.TimestampNs), e.ID, ftoa(e.Magnitude, 4)}
}
