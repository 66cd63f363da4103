package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bms-iot/telemetry/internal/bridge"
	"github.com/bms-iot/telemetry/internal/config"
	"github.com/bms-iot/telemetry/internal/device"
	"github.com/bms-iot/telemetry/internal/monitor"
	"github.com/bms-iot/telemetry/internal/web"
	"github.com/bms-iot/telemetry/pkg/telemetry"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "bmsd",
	Short:        "Building management telemetry daemon",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Simulate a BMS device and serve its readings over TCP",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.toml)")

	serveCmd.Flags().String("device-id", "", "device identifier (overrides config)")
	serveCmd.Flags().String("location", "", "device location (overrides config)")
	serveCmd.Flags().String("host", "", "listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	dev := device.DeviceFactory(cfg.DeviceID, cfg.Location)
	sim := device.NewSimulator(dev, cfg.UpdateInterval)
	sim.Start()

	server := telemetry.ServerFactory(cfg.Host, cfg.Port, dev)
	if err := server.Start(); err != nil {
		sim.Stop()
		return err
	}

	//the bridge, monitor and web view are optional collaborators; a
	//failure to start one of them is not fatal to the telemetry core
	var mqttBridge *bridge.Bridge
	if cfg.Bridge.Enabled {
		mqttBridge = bridge.BridgeFactory(cfg.Bridge.BrokerURL(), cfg.Bridge.TopicPrefix, dev, cfg.Bridge.Interval)
		if err := mqttBridge.Start(); err != nil {
			log.Printf("Bridge failed to start, continuing without it: %v", err)
			mqttBridge = nil
		}
	}

	var thresholdMonitor *monitor.Monitor
	if cfg.Monitor.Enabled {
		thresholdMonitor = monitor.MonitorFactory(dev, cfg.Monitor.Interval, monitorThresholds(cfg))
		thresholdMonitor.Start()
	}

	var webView *web.Server
	if cfg.Web.Enabled {
		webView = web.ServerFactory(cfg.Web.ListenAddr, dev)
		if err := webView.Start(); err != nil {
			log.Printf("Web view failed to start, continuing without it: %v", err)
			webView = nil
		}
	}

	//run until an external interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("bmsd running until interrupted")
	<-sigChan
	log.Println("Received termination signal")

	if webView != nil {
		webView.Stop()
	}
	if thresholdMonitor != nil {
		thresholdMonitor.Stop()
	}
	if mqttBridge != nil {
		mqttBridge.Stop()
	}
	server.Stop()
	sim.Stop()

	return nil
}

// applyFlagOverrides lets explicit flags win over file and env values
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("device-id") {
		cfg.DeviceID, _ = cmd.Flags().GetString("device-id")
	}
	if cmd.Flags().Changed("location") {
		cfg.Location, _ = cmd.Flags().GetString("location")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
}

// monitorThresholds converts configured bands into monitor thresholds;
// nil means the monitor falls back to the metadata ranges
func monitorThresholds(cfg *config.Config) map[string]monitor.Threshold {
	if len(cfg.Monitor.Thresholds) == 0 {
		return nil
	}

	thresholds := make(map[string]monitor.Threshold, len(cfg.Monitor.Thresholds))
	for sensor, band := range cfg.Monitor.Thresholds {
		thresholds[sensor] = monitor.Threshold{Min: band.Min, Max: band.Max}
	}
	return thresholds
}
