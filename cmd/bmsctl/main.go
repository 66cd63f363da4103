package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bms-iot/telemetry/pkg/telemetry"
)

var (
	host    string
	port    int
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "bmsctl",
	Short:        "Query a BMS telemetry server",
	SilenceUsage: true,
}

var readCmd = &cobra.Command{
	Use:   "read <sensor>",
	Short: "Read a single sensor value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := telemetry.ClientFactory(host, port, timeout)
		return client.WithConnection(func(c *telemetry.Client) error {
			value, err := c.ReadSensor(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %.2f\n", args[0], value)
			return nil
		})
	},
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Read a snapshot of every sensor",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := telemetry.ClientFactory(host, port, timeout)
		return client.WithConnection(func(c *telemetry.Client) error {
			data, err := c.ReadAll()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(data))
			for name := range data {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Printf("%-12s : %8.2f\n", name, data[name])
			}
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := telemetry.ClientFactory(host, port, timeout)
		return client.WithConnection(func(c *telemetry.Client) error {
			info, err := c.DeviceInfo()
			if err != nil {
				return err
			}

			fmt.Printf("Device ID : %s\n", info.DeviceID)
			fmt.Printf("Location  : %s\n", info.Location)
			fmt.Printf("Sensors   : %s\n", strings.Join(info.Sensors, ", "))
			fmt.Printf("Running   : %v\n", info.Running)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "server host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 47808, "server port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(readAllCmd)
	rootCmd.AddCommand(infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
