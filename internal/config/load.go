package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the configuration from defaults, an optional config file and
// BMSD_* environment variable overrides, in that order of precedence. An
// empty cfgFile means the usual search paths are tried and a missing file
// is fine; an explicit path that cannot be read is an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("/etc/bmsd")
		v.AddConfigPath("$HOME/.bmsd")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix("BMSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		//no config file anywhere, defaults and env are enough
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so AutomaticEnv can override any key
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("device_id", defaults.DeviceID)
	v.SetDefault("location", defaults.Location)
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("update_interval", defaults.UpdateInterval)

	v.SetDefault("bridge.enabled", defaults.Bridge.Enabled)
	v.SetDefault("bridge.broker_host", defaults.Bridge.BrokerHost)
	v.SetDefault("bridge.broker_port", defaults.Bridge.BrokerPort)
	v.SetDefault("bridge.topic_prefix", defaults.Bridge.TopicPrefix)
	v.SetDefault("bridge.interval", defaults.Bridge.Interval)

	v.SetDefault("monitor.enabled", defaults.Monitor.Enabled)
	v.SetDefault("monitor.interval", defaults.Monitor.Interval)

	v.SetDefault("web.enabled", defaults.Web.Enabled)
	v.SetDefault("web.listen_addr", defaults.Web.ListenAddr)
}
