package commands

import (
	"context"

	"github.com/wasa-rockoon/wcbus/internal/apps/telemetry"
	"github.com/wasa-rockoon/wcbus/internal/simtransport"
	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/bus/hostref"
	"github.com/wasa-rockoon/wcbus/pkg/busmetrics"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
	"github.com/wasa-rockoon/wcbus/pkg/uart"
)

// node bundles one simulated node's wiring: its own host, bus core, shared
// table, UART adapter, and telemetry app.
type node struct {
	Core      *bus.Core
	Table     *shared.Table
	Adapter   *uart.Adapter
	App       *telemetry.App
	Collector *busmetrics.Collector
}

// newNode builds one node's stack over driver, a component id for its
// published packets, and the name it stamps on its own heartbeats.
func newNode(driver uart.Driver, componentID, selfName byte, label string) *node {
	table := &shared.Table{}
	host := hostref.NewHost()
	// Factory-provision the node slot the way a real fleet flashes each
	// MCU's EEPROM: a fresh in-memory store would otherwise hand both
	// nodes address 0, the wire's "local" origin, and their heartbeats
	// would carry no sequence or address for the peer to track.
	host.WritePersistent(0, selfName)
	core := bus.New(host, table, bus.WithSelfName(selfName), bus.WithComponentID(componentID))
	adapter := uart.New(core, driver, bus.SendQueueSize)
	core.SetSender(adapter)
	app := telemetry.New(core, core, table, componentID)
	return &node{
		Core:      core,
		Table:     table,
		Adapter:   adapter,
		App:       app,
		Collector: busmetrics.New(core, table, label),
	}
}

// newSimulatedPair wires two nodes together over an in-memory UART
// daisy-chain, the way cmd/wcbus-node runs without real CAN/UART hardware
// attached.
func newSimulatedPair() (a, b *node) {
	driverA, driverB := simtransport.NewLoopbackChain()
	a = newNode(driverA, 1, nodeAName, "node-a")
	b = newNode(driverB, 2, nodeBName, "node-b")
	return a, b
}

// run starts every goroutine a node needs (bus core ticking, UART pump/poll,
// and the telemetry app) until ctx is cancelled.
func (n *node) run(ctx context.Context) {
	go n.Core.Run(ctx)
	go n.Adapter.Run(ctx)
	go n.App.Run(ctx)
}
