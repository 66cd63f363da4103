package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bms-iot/telemetry/internal/device"
)

func TestCheckCountsViolations(t *testing.T) {
	dev := device.DeviceFactory("BMS-001", "Building A")
	mon := MonitorFactory(dev, time.Second, map[string]Threshold{
		"temperature": {Min: 0, Max: 10}, //initial reading 22 violates this
		"humidity":    {Min: 0, Max: 100},
	})

	violations := mon.check(dev.Snapshot())
	assert.Equal(t, 1, violations)
	assert.Equal(t, int64(1), mon.AlertCount())

	//a second check accumulates
	mon.check(dev.Snapshot())
	assert.Equal(t, int64(2), mon.AlertCount())
}

func TestDefaultThresholdsMatchMetadata(t *testing.T) {
	dev := device.DeviceFactory("BMS-001", "Building A")
	mon := MonitorFactory(dev, time.Second, nil)

	//readings are clamped into metadata ranges, so the defaults can
	//never fire on untouched state
	violations := mon.check(dev.Snapshot())
	assert.Equal(t, 0, violations)
	assert.Equal(t, int64(0), mon.AlertCount())
}

func TestCheckIgnoresUnknownThresholdSensors(t *testing.T) {
	dev := device.DeviceFactory("BMS-001", "Building A")
	mon := MonitorFactory(dev, time.Second, map[string]Threshold{
		"bogus": {Min: 0, Max: 1},
	})

	assert.Equal(t, 0, mon.check(dev.Snapshot()))
}

func TestStartStop(t *testing.T) {
	dev := device.DeviceFactory("BMS-001", "Building A")
	mon := MonitorFactory(dev, 10*time.Millisecond, map[string]Threshold{
		"temperature": {Min: 0, Max: 10},
	})

	mon.Start()
	time.Sleep(50 * time.Millisecond)
	mon.Stop()

	//the loop ran and raised alerts for the out-of-band temperature
	require.Greater(t, mon.AlertCount(), int64(0))
}
