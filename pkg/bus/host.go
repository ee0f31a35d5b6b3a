package bus

import "github.com/wasa-rockoon/wcbus/pkg/wire"

// Clock supplies monotonic wall-clock milliseconds.
type Clock interface {
	NowMillis() uint64
}

// PersistentStore is the tiny byte-addressed store BusCore uses to survive
// a reboot with the same node id. Only address 0 is ever touched by this
// package.
type PersistentStore interface {
	ReadPersistent(addr byte) byte
	WritePersistent(addr byte, value byte)
}

// RandomSource draws the per-boot unique identifier used by the conflict
// protocol. It need not be cryptographically random, only distinct enough
// that two nodes rarely draw the same value.
type RandomSource interface {
	RandomUnique() uint32
}

// Host bundles the hardware-facing primitives the bus core depends on and
// nothing else. A Core is handed one at construction; there is no
// process-wide singleton for any host dependency.
type Host interface {
	Clock
	PersistentStore
	RandomSource
}

// Sender transmits a sealed outbound packet over whichever adapter (CAN,
// UART, or a test double) the host wired up, returning false on a driver
// send failure.
type Sender interface {
	Send(p *wire.Packet) bool
}
