// Package hostref provides reference bus.Host implementations for host-side
// binaries and tests: a system clock, an xid-derived random source, and an
// in-memory persistent byte store standing in for the node's one-byte
// NVRAM slot.
package hostref

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// SystemClock implements bus.Clock over the process wall clock.
type SystemClock struct{ start time.Time }

// NewSystemClock returns a clock whose NowMillis counts up from process
// start, avoiding any dependency on wall-clock epoch semantics.
func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

// NowMillis returns milliseconds since the clock was created.
func (c *SystemClock) NowMillis() uint64 { return uint64(time.Since(c.start).Milliseconds()) }

// XIDRandomSource derives self_unique from a fresh globally-unique xid per
// call, rather than math/rand -- the pack's sockstats exporter binary
// leans on the same library for per-process identifiers.
type XIDRandomSource struct{}

// RandomUnique draws a new xid and folds its 12 bytes down to 32 bits.
func (XIDRandomSource) RandomUnique() uint32 {
	id := xid.New()
	b := id.Bytes()
	var v uint32
	for _, x := range b {
		v = v*31 + uint32(x)
	}
	return v
}

// MemPersistentStore is an in-memory bus.PersistentStore for tests and
// simulated nodes that don't have real NVRAM; it keeps a handful of bytes
// addressable the same way the embedded target's single EEPROM byte is.
type MemPersistentStore struct {
	mu    sync.Mutex
	bytes [256]byte
}

// ReadPersistent returns the byte at addr.
func (s *MemPersistentStore) ReadPersistent(addr byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes[addr]
}

// WritePersistent stores value at addr.
func (s *MemPersistentStore) WritePersistent(addr byte, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes[addr] = value
}

// Host bundles SystemClock, XIDRandomSource, and MemPersistentStore into a
// single bus.Host, the composition a standalone binary with no dedicated
// host hardware of its own needs to hand bus.New.
type Host struct {
	*SystemClock
	XIDRandomSource
	*MemPersistentStore
}

// NewHost builds a Host with a fresh SystemClock and an empty
// MemPersistentStore.
func NewHost() *Host {
	return &Host{SystemClock: NewSystemClock(), MemPersistentStore: &MemPersistentStore{}}
}
