package types

import "time"

// SensorData represents a single published reading from one sensor
type SensorData struct {
	DeviceID  string    `json:"deviceId"`
	Sensor    string    `json:"sensor"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}
