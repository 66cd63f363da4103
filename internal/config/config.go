package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration. Every field is typed and named;
// unknown or missing values fall back to defaults and Validate rejects
// anything unusable.
type Config struct {
	DeviceID       string        `mapstructure:"device_id"`
	Location       string        `mapstructure:"location"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`

	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Web     WebConfig     `mapstructure:"web"`
}

// BridgeConfig configures the optional MQTT republisher
type BridgeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BrokerHost  string        `mapstructure:"broker_host"`
	BrokerPort  int           `mapstructure:"broker_port"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	Interval    time.Duration `mapstructure:"interval"`
}

// BrokerURL returns the host:port address of the MQTT broker
func (b BridgeConfig) BrokerURL() string {
	return fmt.Sprintf("%s:%d", b.BrokerHost, b.BrokerPort)
}

// MonitorConfig configures the optional threshold monitor
type MonitorConfig struct {
	Enabled    bool                       `mapstructure:"enabled"`
	Interval   time.Duration              `mapstructure:"interval"`
	Thresholds map[string]ThresholdConfig `mapstructure:"thresholds"`
}

// ThresholdConfig is an allowed value band for one sensor
type ThresholdConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// WebConfig configures the optional live web viewer
type WebConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		DeviceID:       "BMS-001",
		Location:       "Building A",
		Host:           "127.0.0.1",
		Port:           47808,
		UpdateInterval: 1 * time.Second,
		Bridge: BridgeConfig{
			Enabled:     false,
			BrokerHost:  "localhost",
			BrokerPort:  1883,
			TopicPrefix: "bms",
			Interval:    5 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled:  false,
			Interval: 5 * time.Second,
		},
		Web: WebConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:8080",
		},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %v", c.UpdateInterval)
	}

	if c.Bridge.Enabled {
		if c.Bridge.BrokerHost == "" {
			return fmt.Errorf("bridge.broker_host must not be empty when the bridge is enabled")
		}
		if c.Bridge.BrokerPort <= 0 || c.Bridge.BrokerPort > 65535 {
			return fmt.Errorf("bridge.broker_port %d out of range", c.Bridge.BrokerPort)
		}
		if c.Bridge.TopicPrefix == "" {
			return fmt.Errorf("bridge.topic_prefix must not be empty when the bridge is enabled")
		}
		if c.Bridge.Interval <= 0 {
			return fmt.Errorf("bridge.interval must be positive, got %v", c.Bridge.Interval)
		}
	}

	if c.Monitor.Enabled {
		if c.Monitor.Interval <= 0 {
			return fmt.Errorf("monitor.interval must be positive, got %v", c.Monitor.Interval)
		}
		for sensor, threshold := range c.Monitor.Thresholds {
			if threshold.Min > threshold.Max {
				return fmt.Errorf("monitor threshold for %s has min %.2f above max %.2f",
					sensor, threshold.Min, threshold.Max)
			}
		}
	}

	if c.Web.Enabled && c.Web.ListenAddr == "" {
		return fmt.Errorf("web.listen_addr must not be empty when the web view is enabled")
	}

	return nil
}
