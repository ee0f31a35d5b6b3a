// Command wcbus-node is the reference host binary for the bus stack: it
// wires two simulated nodes together over an in-memory UART chain and
// exposes their health as Prometheus metrics.
package main

import (
	"fmt"
	"os"

	"github.com/wasa-rockoon/wcbus/cmd/wcbus-node/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wcbus-node: %v\n", err)
		os.Exit(1)
	}
}
