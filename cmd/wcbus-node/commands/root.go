// Package commands implements the wcbus-node CLI: a runnable host binary
// that wires a pair of simulated nodes together over an in-memory UART
// chain and exposes their bus health as Prometheus metrics.
package commands

import (
	"github.com/spf13/cobra"
)

// version is stamped into the startup banner; overridable at link time.
var version = "1.0.0"

var (
	// Global flags.
	metricsAddr string
	nodeAName   byte
	nodeBName   byte
)

// rootCmd is the base command when wcbus-node is called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "wcbus-node",
	Short: "wcbus-node runs a simulated inter-node bus link",
	Long: `wcbus-node wires two simulated bus nodes together over an in-memory
UART daisy-chain link and runs the demo telemetry app on each. It is a
reference host binary for the bus stack, not a driver for real CAN/UART
hardware -- see "run" to start it and "inspect" for a one-shot snapshot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to rootCmd and runs it. Called once by
// main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9090",
		"address the Prometheus /metrics endpoint listens on")
	rootCmd.PersistentFlags().Uint8Var(&nodeAName, "node-a-name", 1, "heartbeat node name stamped by node A")
	rootCmd.PersistentFlags().Uint8Var(&nodeBName, "node-b-name", 2, "heartbeat node name stamped by node B")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
