package device

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickKeepsReadingsInRange(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	sim := NewSimulator(dev, time.Second)

	for i := 0; i < 1000; i++ {
		sim.Tick()

		for name, value := range dev.Snapshot() {
			meta, err := dev.MetadataOf(name)
			require.NoError(t, err)
			require.GreaterOrEqual(t, value, meta.Min, "%s below range after tick %d", name, i)
			require.LessOrEqual(t, value, meta.Max, "%s above range after tick %d", name, i)
		}
	}
}

func TestSnapshotDuringConcurrentTicks(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	sim := NewSimulator(dev, time.Second)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sim.Tick()
			}
		}
	}()

	//every snapshot taken while ticks are running must carry the full,
	//unchanged key set with in-range values
	for i := 0; i < 200; i++ {
		snapshot := dev.Snapshot()
		require.Len(t, snapshot, len(sensorNames))
		for _, name := range sensorNames {
			value, ok := snapshot[name]
			require.True(t, ok)

			meta, err := dev.MetadataOf(name)
			require.NoError(t, err)
			require.GreaterOrEqual(t, value, meta.Min)
			require.LessOrEqual(t, value, meta.Max)
		}
	}

	close(stop)
	wg.Wait()
}

func TestStartIsIdempotent(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	sim := NewSimulator(dev, 10*time.Millisecond)

	sim.Start()
	sim.Start() //second call must be a no-op
	assert.True(t, sim.Running())
	assert.True(t, dev.Running())

	sim.Stop()
	assert.False(t, sim.Running())
	assert.False(t, dev.Running())
}

func TestStopWithoutStart(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	sim := NewSimulator(dev, 10*time.Millisecond)

	//must not panic or block
	sim.Stop()
	assert.False(t, sim.Running())
}

func TestSimulationUpdatesReadings(t *testing.T) {
	dev := DeviceFactory("BMS-001", "Building A")
	sim := NewSimulator(dev, 5*time.Millisecond)

	before := dev.Snapshot()
	sim.Start()
	time.Sleep(100 * time.Millisecond)
	sim.Stop()
	after := dev.Snapshot()

	changed := false
	for name, value := range after {
		if value != before[name] {
			changed = true
		}
	}
	assert.True(t, changed, "no reading changed after running the simulation")
}
