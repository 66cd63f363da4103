package types

// SensorMetadata describes one simulated sensor parameter
type SensorMetadata struct {
	Unit      string  `json:"unit"`      //unit of measurement used by the sensor, like °C
	Min       float64 `json:"min"`       //minimum value the sensor can report
	Max       float64 `json:"max"`       //maximum value the sensor can report
	Precision float64 `json:"precision"` //smallest meaningful step for this sensor
}

// Clamp forces a value into the valid range of this sensor
func (m SensorMetadata) Clamp(value float64) float64 {
	if value < m.Min {
		return m.Min
	}
	if value > m.Max {
		return m.Max
	}
	return value
}

// DeviceInfo holds the static identity of a device plus its lifecycle state
type DeviceInfo struct {
	DeviceID string   `json:"device_id"`
	Location string   `json:"location"`
	Sensors  []string `json:"sensors"`
	Running  bool     `json:"running"`
}
