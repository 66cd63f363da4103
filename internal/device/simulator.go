package device

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// DefaultUpdateInterval is the default time between simulation ticks
const DefaultUpdateInterval = 1 * time.Second

// joinTimeout bounds how long Stop waits for the loop goroutine to exit
const joinTimeout = 5 * time.Second

// Simulator continuously perturbs the readings of a device with a
// random-walk-with-clamp model, one tick per interval
type Simulator struct {
	device   *Device
	interval time.Duration

	mutex    sync.Mutex //protects running and stopChan
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSimulator creates a simulator for the given device
func NewSimulator(device *Device, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return &Simulator{
		device:   device,
		interval: interval,
	}
}

// Start starts the simulation loop; calling it again while running is a no-op
func (s *Simulator) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		log.Printf("Simulation already running for device %s", s.device.DeviceID)
		return
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.device.setRunning(true)

	s.wg.Add(1)
	go s.run(s.stopChan)

	log.Printf("Simulation started for device %s with %v update interval", s.device.DeviceID, s.interval)
}

// Stop signals the loop to exit and waits for it with a bounded join.
// A join timeout is logged, not fatal.
func (s *Simulator) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Simulation stopped for device %s", s.device.DeviceID)
	case <-time.After(joinTimeout):
		log.Printf("Simulation loop for device %s did not exit within %v", s.device.DeviceID, joinTimeout)
	}

	s.device.setRunning(false)
}

// Running reports whether the loop is active
func (s *Simulator) Running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// run is the simulation loop, one Tick per interval until stopped
func (s *Simulator) run(stopChan chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances every sensor by one random-walk step and writes the whole
// batch back in one critical section. Exported so tests can drive the model
// without waiting on the ticker.
func (s *Simulator) Tick() {
	current := s.device.Snapshot()
	next := make(map[string]float64, len(current))

	//temperature drifts gradually
	next["temperature"] = current["temperature"] + rand.NormFloat64()*0.3

	//humidity trends slightly downward with random variation
	next["humidity"] = current["humidity"] + rand.NormFloat64()*0.5 - 0.2

	//pressure moves with small weather-like variations
	next["pressure"] = current["pressure"] + rand.NormFloat64()*0.5

	//co2 rises with occupancy and falls with ventilation
	occupancyFactor := current["occupancy"] / 20.0
	next["co2_level"] = current["co2_level"] + rand.NormFloat64()*5 + occupancyFactor

	//occupancy jumps in whole people, only some of the time
	next["occupancy"] = current["occupancy"]
	if rand.Float64() < 0.3 {
		next["occupancy"] += float64(rand.Intn(11) - 5)
	}

	//SetValues clamps each reading into its declared range
	if err := s.device.SetValues(next); err != nil {
		log.Printf("Error applying simulation tick: %v", err)
	}
}
