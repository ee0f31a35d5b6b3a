// Package bus implements BusCore: node identity and the conflict protocol,
// heartbeat, sequence/loss accounting, the subscription filter, and
// error/sanity telemetry.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/wasa-rockoon/wcbus/pkg/logger"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
	"github.com/wasa-rockoon/wcbus/pkg/wire"
)

// DispatchResult tells a caller -- chiefly uart.Adapter's store-and-forward
// path -- what Dispatch made of a received packet, so it can decide
// whether to relay it onward down the daisy chain.
type DispatchResult int

const (
	// DispatchNew is a packet accepted as the next one in its peer's
	// sequence (or a first-ever packet from a fresh peer).
	DispatchNew DispatchResult = iota
	// DispatchDuplicate is a replay or reorder BusCore drops rather than
	// processes or relays a second time.
	DispatchDuplicate
	// DispatchConflict is a heartbeat that triggered the conflict
	// protocol. The packet is still otherwise processed as DispatchNew.
	DispatchConflict
)

var (
	nameUN = wire.Name{'u', 'n'}
	nameNN = wire.Name{'n', 'n'}
	nameSA = wire.Name{'s', 'a'}
	nameER = wire.Name{'e', 'r'}
	nameCD = wire.Name{'c', 'd'}
)

// Core is BusCore: one node's view of the bus. mu guards the mutable
// state below: an MCU build would rely on ISR/main-loop discipline, but a
// Go host runs the heartbeat ticker, the adapters, and the application on
// separate goroutines. NodeInfo reads through the returned pointer are
// intentionally unguarded; a torn counter read is telemetry, not state.
type Core struct {
	mu     sync.Mutex
	host   Host
	sender Sender
	shared *shared.Table

	heartbeatInterval  time.Duration
	heartbeatTimeoutMs uint64
	receiveQueueSize   int
	componentID        byte

	selfNode   byte
	selfName   byte
	selfUnique uint32
	sendSeq    uint16

	nodes [NodeMax]NodeInfo

	errorCount byte
	errorCode  [3]byte
	sanityBits uint16

	subs          [ListeningMax]byte
	subsCount     int
	sharedCount   int
	listenAllFlag bool
	filterBits    byte
	filterDirty   bool

	hbBuf [PacketLenMax]byte

	receiveQueue chan *wire.Packet
}

// New constructs a Core bound to host, reading the persisted node slot
// and drawing a fresh per-boot unique id.
func New(host Host, table *shared.Table, opts ...Option) *Core {
	c := &Core{
		host:               host,
		shared:             table,
		heartbeatInterval:  time.Second / HeartbeatFreqHz,
		heartbeatTimeoutMs: HeartbeatTimeoutMs,
		receiveQueueSize:   ReceiveQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.selfNode = host.ReadPersistent(persistAddrNodeSlot) % NodeMax
	c.selfUnique = host.RandomUnique()
	c.receiveQueue = make(chan *wire.Packet, c.receiveQueueSize)
	return c
}

// SetSender attaches the adapter Core transmits heartbeats and
// application packets through.
func (c *Core) SetSender(s Sender) { c.sender = s }

// SelfNode returns this node's current bus address.
func (c *Core) SelfNode() byte { return c.selfNode }

// SelfUnique returns this node's per-boot unique id.
func (c *Core) SelfUnique() uint32 { return c.selfUnique }

// Now returns the host clock's current reading, for callers (pkg/busmetrics)
// that need to reason about freshness the same way Core's own sweep does.
func (c *Core) Now() uint64 { return c.host.NowMillis() }

// NodeInfo returns a pointer to the tracked state for peer id, or nil if
// out of range.
func (c *Core) NodeInfo(id byte) *NodeInfo {
	if int(id) >= len(c.nodes) {
		return nil
	}
	return &c.nodes[id]
}

// ReceiveQueue returns the channel foreground-subscribed packets are
// delivered to -- the user-visible receive queue at the host layer.
func (c *Core) ReceiveQueue() <-chan *wire.Packet { return c.receiveQueue }

// Run drives the heartbeat ticker and the stale-node sanity sweep until
// ctx is cancelled.
func (c *Core) Run(ctx context.Context) {
	hbTicker := time.NewTicker(c.heartbeatInterval)
	defer hbTicker.Stop()
	sweepTicker := time.NewTicker(time.Second)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hbTicker.C:
			c.sendHeartbeat()
		case <-sweepTicker.C:
			c.sweep()
		}
	}
}

func (c *Core) sweep() {
	now := c.host.NowMillis()

	c.mu.Lock()
	alive := 0
	for i := range c.nodes {
		if c.nodes[i].Alive(now, c.heartbeatTimeoutMs) {
			alive++
		}
	}
	c.setSanity(0, alive >= 1)
	reprogram := c.filterDirty
	c.filterDirty = false
	negated := ^c.filterBits << 5
	c.mu.Unlock()

	if reprogram {
		if prog, ok := c.sender.(FilterProgrammer); ok {
			prog.SetFilter(negated, negated)
		}
	}
}

func (c *Core) sendHeartbeat() {
	if c.sender == nil {
		return
	}
	c.mu.Lock()
	p := wire.Empty(c.hbBuf[:])
	if err := p.SetTelemetryLocal(IDHeartbeat, c.componentID); err != nil {
		logger.Error("bus: build heartbeat: %v", err)
		return
	}
	if e, err := p.Append(nameUN); err == nil {
		e.SetInt(int64(c.selfUnique))
	}
	if e, err := p.Append(nameNN); err == nil {
		e.SetInt(int64(c.selfName))
	}
	if e, err := p.Append(nameSA); err == nil {
		e.SetInt(int64(c.sanityBits))
	}
	if e, err := p.Append(nameER); err == nil {
		e.SetInt(int64(c.errorCount))
	}
	if e, err := p.Append(nameCD); err == nil {
		e.SetBytes(c.errorCode[:])
	}
	c.mu.Unlock()
	c.Send(p)
}

// Send stamps p with this node's address, the next outbound sequence
// number, and the checksum, then hands it to the attached adapter. A node
// still holding address 0 sends in the local, sequence-less form, since
// the wire reserves origin byte 0 for locally-authored packets. The
// adapter records its own drop/failure codes; Send only reports them.
func (c *Core) Send(p *wire.Packet) bool {
	if c.sender == nil {
		return false
	}
	c.mu.Lock()
	c.sendSeq++
	seq := c.sendSeq
	node := c.selfNode
	c.mu.Unlock()

	var err error
	if p.Kind() == wire.Telemetry {
		err = p.SetTelemetryRemote(p.PacketID(), p.ComponentID(), node, 0, seq)
	} else {
		err = p.SetCommandRemote(p.PacketID(), p.ComponentID(), node, 0, seq)
	}
	if err != nil {
		return false
	}
	p.Seal()
	return c.sender.Send(p)
}

// FilterProgrammer is implemented by transports (can.Adapter) that can
// reprogram a hardware receive filter; bus.Core calls it opportunistically
// whenever the subscription set changes the OR-reduced filter word.
type FilterProgrammer interface {
	SetFilter(id, mask byte)
}

// Dispatch is BusCore's reception path: it updates the originating peer's
// NodeInfo and sequence/loss counters, resolves conflicting heartbeats,
// and routes the packet to SharedTable or the foreground receive queue.
func (c *Core) Dispatch(p *wire.Packet) DispatchResult {
	return c.dispatch(p, true)
}

// DispatchConsumed is Dispatch for a packet the caller is already handing
// to the application itself (can.Adapter.Receive returns the claimed
// packet directly): sequence accounting, heartbeat handling, and
// SharedTable updates run as usual, but the foreground receive queue is
// skipped so the packet is not delivered twice.
func (c *Core) DispatchConsumed(p *wire.Packet) DispatchResult {
	return c.dispatch(p, false)
}

func (c *Core) dispatch(p *wire.Packet, foreground bool) DispatchResult {
	now := c.host.NowMillis()
	origin := p.OriginUnitID()

	c.mu.Lock()
	defer c.mu.Unlock()

	result := DispatchNew
	if !p.IsLocal() {
		result = c.updateSequence(origin, byte(p.Sequence()), now)
		if result == DispatchDuplicate {
			return DispatchDuplicate
		}
	}

	if p.Kind() == wire.Telemetry && p.PacketID() == IDHeartbeat {
		if c.handleHeartbeat(p, origin) {
			return DispatchConflict
		}
		return result
	}

	kindID := p.KindID()
	switch {
	case c.isListeningShared(kindID):
		c.shared.Update(p, now, c.nodes[origin].Name)
	case foreground && c.isListening(kindID):
		c.enqueue(p)
	}
	return result
}

func (c *Core) enqueue(p *wire.Packet) {
	select {
	case c.receiveQueue <- p:
	default:
		c.recordError([3]byte{'B', 'R', 'D'})
	}
}

// updateSequence applies the per-peer sequence and loss-accounting rule
// for a packet received from origin. The wire's sequence field is 16 bits
// but per-peer tracking is byte-wide, so only the low 8 bits participate:
// a forward step of less than 128 is accepted as new, anything else is a
// replay or reorder and dropped.
func (c *Core) updateSequence(origin byte, seq byte, now uint64) DispatchResult {
	n := c.NodeInfo(origin)
	if n == nil {
		return DispatchDuplicate
	}
	if n.HeartbeatMs == 0 {
		if seq != 0 {
			n.LostCount += uint32(seq)
		}
		n.LastSeq = seq
		n.HeartbeatMs = now
		n.ReceivedCount++
		return DispatchNew
	}

	diff := seq - n.LastSeq
	if diff < 128 {
		if diff > 1 && n.Alive(now, c.heartbeatTimeoutMs) {
			n.LostCount += uint32(diff - 1)
		}
		n.LastSeq = seq
		n.HeartbeatMs = now
		n.ReceivedCount++
		return DispatchNew
	}
	return DispatchDuplicate
}

// handleHeartbeat parses a heartbeat's entries into origin's NodeInfo and
// runs the conflict protocol when the sender claims our own address under
// a different unique id: the lower unique moves on to the next slot.
func (c *Core) handleHeartbeat(p *wire.Packet, origin byte) (conflict bool) {
	n := c.NodeInfo(origin)
	if n == nil {
		return false
	}
	if e, ok := p.Find(nameUN, 0); ok {
		if v, err := e.GetInt(); err == nil {
			n.Unique = uint32(v)
		}
	}
	if e, ok := p.Find(nameNN, 0); ok {
		if v, err := e.GetInt(); err == nil {
			n.Name = byte(v)
		}
	}
	if e, ok := p.Find(nameSA, 0); ok {
		if v, err := e.GetInt(); err == nil {
			n.SanityBits = uint16(v)
		}
	}
	if e, ok := p.Find(nameER, 0); ok {
		if v, err := e.GetInt(); err == nil {
			n.ErrorCount = byte(v)
		}
	}
	if e, ok := p.Find(nameCD, 0); ok {
		if b, err := e.GetBytes(); err == nil {
			copy(n.ErrorCode[:], b)
		}
	}

	if origin == c.selfNode && n.Unique != c.selfUnique {
		c.recordError([3]byte{'B', 'C', 'F'})
		if n.Unique >= c.selfUnique {
			c.selfNode = (c.selfNode + 1) % NodeMax
			c.host.WritePersistent(persistAddrNodeSlot, c.selfNode)
			n.reset()
		}
		return true
	}
	return false
}
