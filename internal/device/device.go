package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bms-iot/telemetry/pkg/types"
)

// ErrUnknownSensor is returned when a sensor name is not part of the device
var ErrUnknownSensor = errors.New("unknown sensor")

// Device simulates a single building management device with a fixed set of
// sensors. The sensor set is frozen at construction; readings are always
// clamped into the range declared in the sensor metadata.
type Device struct {
	DeviceID string
	Location string

	mutex    sync.RWMutex //our mutex which can have N readers but only 1 writer at a given time
	readings map[string]float64
	metadata map[string]types.SensorMetadata
	running  bool
}

// defaultSensors holds the five simulated parameters with realistic ranges
var defaultSensors = map[string]struct {
	meta    types.SensorMetadata
	initial float64
}{
	"temperature": {types.SensorMetadata{Unit: "°C", Min: 18, Max: 26, Precision: 0.5}, 22.0},
	"humidity":    {types.SensorMetadata{Unit: "%", Min: 30, Max: 60, Precision: 1.0}, 45.0},
	"pressure":    {types.SensorMetadata{Unit: "hPa", Min: 990, Max: 1030, Precision: 0.1}, 1013.25},
	"co2_level":   {types.SensorMetadata{Unit: "ppm", Min: 300, Max: 1000, Precision: 10.0}, 400.0},
	"occupancy":   {types.SensorMetadata{Unit: "count", Min: 0, Max: 100, Precision: 1}, 10},
}

// DeviceFactory creates a new device with the default sensor set
func DeviceFactory(deviceID, location string) *Device {
	d := &Device{
		DeviceID: deviceID,
		Location: location,
		readings: make(map[string]float64, len(defaultSensors)),
		metadata: make(map[string]types.SensorMetadata, len(defaultSensors)),
	}

	for name, sensor := range defaultSensors {
		d.readings[name] = sensor.meta.Clamp(sensor.initial)
		d.metadata[name] = sensor.meta
	}

	return d
}

// Value returns the current reading for a sensor, false if the name is unknown
func (d *Device) Value(name string) (float64, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	value, ok := d.readings[name]
	return value, ok
}

// Snapshot returns a point-in-time copy of all readings
func (d *Device) Snapshot() map[string]float64 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	//copy under the lock so the caller never sees a half-applied update
	result := make(map[string]float64, len(d.readings))
	for name, value := range d.readings {
		result[name] = value
	}
	return result
}

// SetValue sets a sensor reading, clamping it into the valid range
func (d *Device) SetValue(name string, value float64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	meta, ok := d.metadata[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSensor, name)
	}

	d.readings[name] = meta.Clamp(value)
	return nil
}

// SetValues applies a batch of readings in one critical section, clamping
// each into its valid range. Used by the simulation loop so one tick is a
// single write.
func (d *Device) SetValues(values map[string]float64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for name := range values {
		if _, ok := d.metadata[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSensor, name)
		}
	}

	for name, value := range values {
		d.readings[name] = d.metadata[name].Clamp(value)
	}
	return nil
}

// MetadataOf returns the static metadata for a sensor
func (d *Device) MetadataOf(name string) (types.SensorMetadata, error) {
	meta, ok := d.metadata[name]
	if !ok {
		return types.SensorMetadata{}, fmt.Errorf("%w: %s", ErrUnknownSensor, name)
	}
	return meta, nil
}

// SensorNames returns the fixed sensor name set in sorted order
func (d *Device) SensorNames() []string {
	names := make([]string, 0, len(d.metadata))
	for name := range d.metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns device identity and lifecycle state
func (d *Device) Info() types.DeviceInfo {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	names := make([]string, 0, len(d.metadata))
	for name := range d.metadata {
		names = append(names, name)
	}
	sort.Strings(names)

	return types.DeviceInfo{
		DeviceID: d.DeviceID,
		Location: d.Location,
		Sensors:  names,
		Running:  d.running,
	}
}

// Running reports whether the simulation loop is active
func (d *Device) Running() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.running
}

// setRunning flips the lifecycle flag, used by the simulator only
func (d *Device) setRunning(running bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.running = running
}
