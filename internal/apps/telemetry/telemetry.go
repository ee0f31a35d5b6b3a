// Package telemetry is the demo "app" layer cmd/wcbus-node wires a
// simulated node around: it publishes a simulated sensor reading once a
// second and mirrors the same reading from its chain neighbor into a
// SharedTable variable.
package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/logger"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
	"github.com/wasa-rockoon/wcbus/pkg/wire"
)

// KindIDTemperature is the packet id this demo app publishes its reading
// under; the high bit is set by SetTelemetryLocal (telemetry, not command).
const KindIDTemperature byte = 0x10

// App is the demo telemetry publisher/subscriber.
type App struct {
	core   *bus.Core
	sender bus.Sender

	componentID byte
	sendBuf     [64]byte
	tick        uint64

	neighborTemp shared.Variable
}

// New builds an App publishing through sender and mirroring its chain
// neighbor's temperature reading (same kind id, any origin) into a
// SharedTable variable.
func New(core *bus.Core, sender bus.Sender, table *shared.Table, componentID byte) *App {
	a := &App{core: core, sender: sender, componentID: componentID}
	core.ListenShared(0x80 | KindIDTemperature)
	table.Add(&a.neighborTemp, 0x80|KindIDTemperature, wire.Name{'t', 'm'}, 0,
		shared.AnyOrigin, shared.AnyNode)
	a.neighborTemp.TimeoutMs = 10_000
	return a
}

// NeighborTemperature reports the last-mirrored neighbor reading (as the
// raw float32 bits shared.Variable.Value carries) and whether it is still
// within its freshness window.
func (a *App) NeighborTemperature(nowMs uint64) (float32, bool) {
	if !a.neighborTemp.Valid(nowMs) {
		return 0, false
	}
	return math.Float32frombits(a.neighborTemp.Value), true
}

// Run publishes a simulated sensor reading once a second until ctx is
// cancelled, the same ticker-driven shape bus.Core.Run and uart.Adapter.Run
// use.
func (a *App) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.publish()
		}
	}
}

// publish builds and sends one telemetry packet carrying the simulated
// reading. The reading is a simple bounded sine wave standing in for a
// real sensor -- there is no real hardware in this repository to sample.
func (a *App) publish() {
	a.tick++
	reading := float32(20.0 + 2.0*math.Sin(float64(a.tick)/10))

	p := wire.Empty(a.sendBuf[:])
	if err := p.SetTelemetryLocal(KindIDTemperature, a.componentID); err != nil {
		logger.Error("telemetry: build packet: %v", err)
		return
	}
	e, err := p.Append(wire.Name{'t', 'm'})
	if err != nil {
		logger.Error("telemetry: append entry: %v", err)
		return
	}
	if err := e.SetFloat32(reading); err != nil {
		logger.Error("telemetry: set reading: %v", err)
		return
	}
	p.Seal()

	if !a.sender.Send(p) {
		a.core.RecordError([3]byte{'B', 'C', 'S'})
		return
	}
	logger.Debug("telemetry: published reading=%.2f", reading)
}
