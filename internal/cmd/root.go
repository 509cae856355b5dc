// Package cmd wires the latchd command tree: run starts the
// controller, provision and inspect work on device memory images.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latchlab/latchd/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "latchd",
	Short: "Door access controller",
	Long: `Latchd is a door access controller: an event engine dispatching
reader input to per-door state machines that drive the relay, LED and
buzzer lines, plus a management port speaking the device's binary
protocol.

Without real hardware it runs against an interactive console that
stands in for the readers and output lines.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./latchd.yaml)")
}

// loadConfig reads the effective configuration from the --config file,
// a discovered ./latchd.yaml, the environment, and the defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.New(), cfgFile)
}
