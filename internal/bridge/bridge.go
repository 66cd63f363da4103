package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bms-iot/telemetry/internal/device"
	"github.com/bms-iot/telemetry/pkg/types"
)

// DefaultPublishInterval is the default time between snapshot publications
const DefaultPublishInterval = 5 * time.Second

// Bridge periodically reads the device snapshot and re-publishes each
// sensor reading to an MQTT broker. It only consumes Snapshot and
// MetadataOf; it never writes to the device.
type Bridge struct {
	BrokerURL   string
	TopicPrefix string

	device     *device.Device
	interval   time.Duration
	mqttClient mqtt.Client
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// BridgeFactory creates a new MQTT bridge for the given device
func BridgeFactory(brokerURL, topicPrefix string, dev *device.Device, interval time.Duration) *Bridge {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Bridge{
		BrokerURL:   brokerURL,
		TopicPrefix: topicPrefix,
		device:      dev,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start connects to the broker and starts the publish loop
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", b.BrokerURL))
	opts.SetClientID(fmt.Sprintf("bms-bridge-%s", b.device.DeviceID))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("Bridge for device %s connected to MQTT broker", b.device.DeviceID)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("Bridge for device %s lost connection to MQTT broker: %v", b.device.DeviceID, err)
	})

	b.mqttClient = mqtt.NewClient(opts)
	if token := b.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	b.wg.Add(1)
	go b.publishLoop()

	log.Printf("Bridge started for device %s publishing to %s", b.device.DeviceID, b.BrokerURL)
	return nil
}

// Stop stops the publish loop and disconnects from the broker
func (b *Bridge) Stop() {
	close(b.stopChan)
	b.wg.Wait()

	if b.mqttClient != nil && b.mqttClient.IsConnected() {
		b.mqttClient.Disconnect(250)
	}

	log.Printf("Bridge stopped for device %s", b.device.DeviceID)
}

// publishLoop publishes one snapshot per interval until stopped
func (b *Bridge) publishLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.publishSnapshot(time.Now())
		}
	}
}

// publishSnapshot publishes every current reading as its own message
func (b *Bridge) publishSnapshot(now time.Time) {
	for topic, data := range b.buildMessages(b.device.Snapshot(), now) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("Error marshaling reading for %s: %v", topic, err)
			continue
		}

		token := b.mqttClient.Publish(topic, 0, false, payload)
		token.Wait()

		if token.Error() != nil {
			log.Printf("Error publishing to topic %s: %v", topic, token.Error())
		}
	}
}

// buildMessages maps a snapshot onto per-sensor topics and payloads
func (b *Bridge) buildMessages(snapshot map[string]float64, now time.Time) map[string]types.SensorData {
	messages := make(map[string]types.SensorData, len(snapshot))

	for sensor, value := range snapshot {
		meta, err := b.device.MetadataOf(sensor)
		if err != nil {
			log.Printf("Error reading metadata for %s: %v", sensor, err)
			continue
		}

		topic := fmt.Sprintf("%s/%s/%s", b.TopicPrefix, b.device.DeviceID, sensor)
		messages[topic] = types.SensorData{
			DeviceID:  b.device.DeviceID,
			Sensor:    sensor,
			Timestamp: now,
			Value:     value,
			Unit:      meta.Unit,
		}
	}

	return messages
}
