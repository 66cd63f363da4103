package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sensorNames = []string{"co2_level", "humidity", "occupancy", "pressure", "temperature"}

func TestInitialReadingsWithinRange(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")

	for _, name := range sensorNames {
		value, ok := dev.Value(name)
		require.True(t, ok, "sensor %s missing", name)

		meta, err := dev.MetadataOf(name)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, value, meta.Min)
		assert.LessOrEqual(t, value, meta.Max)
	}
}

func TestSetValueClampsIntoRange(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")

	require.NoError(t, dev.SetValue("temperature", 99))
	value, ok := dev.Value("temperature")
	require.True(t, ok)
	assert.Equal(t, 26.0, value)

	require.NoError(t, dev.SetValue("temperature", -40))
	value, _ = dev.Value("temperature")
	assert.Equal(t, 18.0, value)

	require.NoError(t, dev.SetValue("temperature", 21.5))
	value, _ = dev.Value("temperature")
	assert.Equal(t, 21.5, value)
}

func TestSetValueUnknownSensor(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")

	err := dev.SetValue("nonexistent", 1)
	require.ErrorIs(t, err, ErrUnknownSensor)

	_, ok := dev.Value("nonexistent")
	assert.False(t, ok)
}

func TestSetValuesIsAllOrNothing(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	before, _ := dev.Value("temperature")

	err := dev.SetValues(map[string]float64{
		"temperature": 20,
		"bogus":       1,
	})
	require.ErrorIs(t, err, ErrUnknownSensor)

	//the valid part of the batch must not have been applied
	after, _ := dev.Value("temperature")
	assert.Equal(t, before, after)
}

func TestSnapshotHasFixedKeySet(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")

	snapshot := dev.Snapshot()
	require.Len(t, snapshot, len(sensorNames))
	for _, name := range sensorNames {
		assert.Contains(t, snapshot, name)
	}

	//the snapshot is a copy, mutating it must not touch the device
	snapshot["temperature"] = 1000
	value, _ := dev.Value("temperature")
	assert.NotEqual(t, 1000.0, value)
}

func TestMetadataOf(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")

	meta, err := dev.MetadataOf("temperature")
	require.NoError(t, err)
	assert.Equal(t, "°C", meta.Unit)
	assert.Equal(t, 18.0, meta.Min)
	assert.Equal(t, 26.0, meta.Max)
	assert.Equal(t, 0.5, meta.Precision)

	_, err = dev.MetadataOf("nonexistent")
	require.ErrorIs(t, err, ErrUnknownSensor)
}

func TestInfo(t *testing.T) {
	dev := DeviceFactory("BMS-OFFICE-01", "Office Building - Floor 3")

	info := dev.Info()
	assert.Equal(t, "BMS-OFFICE-01", info.DeviceID)
	assert.Equal(t, "Office Building - Floor 3", info.Location)
	assert.Equal(t, sensorNames, info.Sensors)
	assert.False(t, info.Running)
}
