package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasa-rockoon/wcbus/pkg/bus"
)

var inspectDuration time.Duration

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run the simulated pair briefly and print a snapshot",
	Long: `Inspect wires the same simulated node pair "run" does, lets it tick for
--duration, then prints each node's peer view and shared variable state and
exits. Useful for a quick look at the bus without standing up a metrics
scrape -- there is no running daemon to query here, only this process's own
brief simulation.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().DurationVar(&inspectDuration, "duration", 3*time.Second,
		"how long to let the simulated pair run before reporting")
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, b := newSimulatedPair()

	ctx, cancel := context.WithTimeout(context.Background(), inspectDuration)
	defer cancel()

	a.run(ctx)
	b.run(ctx)

	<-ctx.Done()

	printNodeSnapshot(cmd, "node A", a)
	printNodeSnapshot(cmd, "node B", b)
	return nil
}

func printNodeSnapshot(cmd *cobra.Command, label string, n *node) {
	now := n.Core.Now()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s (bus address %d)\n", label, n.Core.SelfNode())
	fmt.Fprintf(cmd.OutOrStdout(), "  self_error_count: %d\n", n.Core.SelfErrorCount())
	fmt.Fprintf(cmd.OutOrStdout(), "  self_sanity_bits: %016b\n", n.Core.SelfSanityBits())

	alivePeers := 0
	for id := byte(0); id < bus.NodeMax; id++ {
		info := n.Core.NodeInfo(id)
		if info == nil || !info.Alive(now, bus.HeartbeatTimeoutMs) {
			continue
		}
		alivePeers++
		fmt.Fprintf(cmd.OutOrStdout(), "  peer %d: name=%d received=%d lost=%d error_count=%d\n",
			id, info.Name, info.ReceivedCount, info.LostCount, info.ErrorCount)
	}
	if alivePeers == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "  no live peers yet")
	}

	if temp, ok := n.App.NeighborTemperature(now); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "  neighbor temperature: %.2f\n", temp)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "  neighbor temperature: not yet received")
	}
}
