package models

import "math"

// AccelSample holds one 3-axis accelerometer reading.
type AccelSample struct {
	TimestampNs int64   `json:"timestamp_ns"`
	X           float64 `json:"x"` // m/s²
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
}

// Valid reports whether every axis is a finite number.
func (s *AccelSample) Valid() bool {
	return finite(s.X) && finite(s.Y) && finite(s.Z)
}

func (AccelSample) CSVHeader() []string {
	return []string{"timestamp_ns", "x", "y", "z"}
}

func (s *AccelSample) CSVRow() []string {
	return []string{
		itoa64(s.TimestampNs),
		ftoa(s.X, 6), ftoa(s.Y, 6), ftoa(s.Z, 6),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
