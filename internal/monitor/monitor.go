package monitor

import (
	"log"
	"sync"
	"time"

	"github.com/bms-iot/telemetry/internal/device"
)

// DefaultPollInterval is the default time between threshold checks
const DefaultPollInterval = 5 * time.Second

// Threshold is an allowed value band for one sensor
type Threshold struct {
	Min float64
	Max float64
}

// Monitor polls the device snapshot and logs an alert whenever a reading
// leaves its threshold band. It is strictly read-only on the device.
type Monitor struct {
	device     *device.Device
	interval   time.Duration
	thresholds map[string]Threshold

	stopChan chan struct{}
	wg       sync.WaitGroup

	mutex      sync.Mutex //protects alert count
	alertCount int64
}

// MonitorFactory creates a monitor for the given device. A nil threshold
// map means every sensor is checked against its metadata range.
func MonitorFactory(dev *device.Device, interval time.Duration, thresholds map[string]Threshold) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if thresholds == nil {
		thresholds = make(map[string]Threshold)
		for _, name := range dev.SensorNames() {
			meta, err := dev.MetadataOf(name)
			if err != nil {
				continue
			}
			thresholds[name] = Threshold{Min: meta.Min, Max: meta.Max}
		}
	}

	return &Monitor{
		device:     dev,
		interval:   interval,
		thresholds: thresholds,
		stopChan:   make(chan struct{}),
	}
}

// Start starts the polling loop
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.pollLoop()
	log.Printf("Monitor started for device %s with %v poll interval", m.device.DeviceID, m.interval)
}

// Stop stops the polling loop
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()

	m.mutex.Lock()
	finalCount := m.alertCount
	m.mutex.Unlock()

	log.Printf("Monitor stopped for device %s. Total alerts: %d", m.device.DeviceID, finalCount)
}

// AlertCount returns the number of alerts raised so far (thread-safe)
func (m *Monitor) AlertCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.alertCount
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.check(m.device.Snapshot())
		}
	}
}

// check compares one snapshot against the thresholds and logs an alert per
// violation, returning how many it found
func (m *Monitor) check(snapshot map[string]float64) int {
	violations := 0

	for sensor, threshold := range m.thresholds {
		value, ok := snapshot[sensor]
		if !ok {
			continue
		}

		if value < threshold.Min || value > threshold.Max {
			log.Printf("ALERT [%s] %s: %.2f outside range [%.1f, %.1f]",
				m.device.DeviceID, sensor, value, threshold.Min, threshold.Max)
			violations++
		}
	}

	if violations > 0 {
		m.mutex.Lock()
		m.alertCount += int64(violations)
		m.mutex.Unlock()
	}

	return violations
}
