// Package uart implements UartAdapter: COBS+CRC8-framed packets exchanged
// over two serial links ("upper" and "lower"), store-and-forwarded along a
// daisy chain of nodes.
package uart

import (
	"context"
	"time"

	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/cobs"
	"github.com/wasa-rockoon/wcbus/pkg/wire"
)

// Port names one of the two logical serial links a node is wired between.
type Port int

const (
	Upper Port = iota
	Lower
)

func other(port Port) Port {
	if port == Upper {
		return Lower
	}
	return Upper
}

// Driver is the host UART primitive this adapter drives: byte-oriented
// reads and writes on the upper and lower streams. ReadByte is
// non-blocking: ok=false means no byte is currently available.
type Driver interface {
	ReadByte(port Port) (b byte, ok bool)
	Write(port Port, data []byte)
}

// maxFrameLen bounds a COBS-encoded, delimited frame: the worst-case COBS
// expansion of a full PACKET_LEN_MAX wire packet, plus the trailing 0x00.
var maxFrameLen = cobs.MaxEncodedLen(bus.PacketLenMax) + 1

// Adapter is UartAdapter.
type Adapter struct {
	core   *bus.Core
	driver Driver

	pollInterval time.Duration

	send *sendRing

	rx        [2][]byte
	decodeBuf []byte
	encodeBuf []byte
	popBuf    []byte
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithPollInterval overrides how often Run drains the driver's byte
// streams and the outbound send queue.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// New builds an Adapter over driver, with an outbound send queue sized
// sendQueueSize bytes (bus.SendQueueSize unless the host has a reason to
// differ).
func New(core *bus.Core, driver Driver, sendQueueSize int, opts ...Option) *Adapter {
	a := &Adapter{
		core:         core,
		driver:       driver,
		pollInterval: time.Millisecond,
		send:         newSendRing(sendQueueSize),
		decodeBuf:    make([]byte, maxFrameLen),
		encodeBuf:    make([]byte, maxFrameLen),
		popBuf:       make([]byte, bus.PacketLenMax+1),
	}
	a.rx[Upper] = make([]byte, 0, maxFrameLen)
	a.rx[Lower] = make([]byte, 0, maxFrameLen)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Send enqueues p's sealed wire bytes (header through checksum) for
// transmission on both ports. Returns false, recording "BSD", if the send
// queue lacks free space for the frame and its length prefix.
func (a *Adapter) Send(p *wire.Packet) bool {
	if !a.send.Push(p.Bytes()) {
		a.core.RecordError([3]byte{'B', 'S', 'D'})
		return false
	}
	return true
}

// Pump dequeues one outbound frame, if any, COBS-encodes and
// delimiter-terminates it, and writes the result to both ports: the node
// broadcasts every packet it originates out both links regardless of
// chain direction.
func (a *Adapter) Pump() {
	fn, ok := a.send.Pop(a.popBuf)
	if !ok {
		return
	}
	frame := a.popBuf[:fn]
	n := cobs.Encode(frame, a.encodeBuf)
	if n < 0 || n >= len(a.encodeBuf) {
		a.core.RecordError([3]byte{'B', 'L', 'N'})
		return
	}
	a.encodeBuf[n] = 0
	out := a.encodeBuf[:n+1]
	a.driver.Write(Upper, out)
	a.driver.Write(Lower, out)
}

// Poll drains every byte currently available on port, feeding it through
// COBS frame accumulation.
func (a *Adapter) Poll(port Port) {
	for {
		b, ok := a.driver.ReadByte(port)
		if !ok {
			return
		}
		a.feed(port, b)
	}
}

func (a *Adapter) feed(port Port, b byte) {
	buf := a.rx[port]
	if len(buf) >= maxFrameLen {
		a.core.RecordError([3]byte{'B', 'L', 'N'})
		a.rx[port] = buf[:0]
		return
	}
	buf = append(buf, b)
	a.rx[port] = buf
	if b != 0 {
		return
	}
	a.handleFrame(port, buf)
	a.rx[port] = buf[:0]
}

// handleFrame decodes one complete, delimiter-terminated COBS frame
// (framed, including the trailing 0x00) received on port, verifies its
// CRC-8 trailer, dispatches it, and -- unless BusCore already saw it --
// forwards the raw frame verbatim to the opposite port, so packets hop
// node to node along the chain.
func (a *Adapter) handleFrame(port Port, framed []byte) {
	if len(framed) < 2 {
		a.core.RecordError([3]byte{'B', 'N', 'D'})
		return
	}
	src := framed[:len(framed)-1]
	n := cobs.Decode(src, a.decodeBuf)
	if n <= 0 {
		a.core.RecordError([3]byte{'B', 'N', 'D'})
		return
	}
	p, err := wire.Decode(a.decodeBuf[:n])
	if err != nil {
		a.core.RecordError([3]byte{'B', 'C', 'R'})
		return
	}
	if !p.VerifyChecksum() {
		a.core.RecordError([3]byte{'B', 'C', 'R'})
		return
	}

	result := a.core.Dispatch(p)
	if result != bus.DispatchDuplicate {
		a.driver.Write(other(port), framed)
	}
}

// Run drains both ports and the send queue on a ticker until ctx is
// cancelled.
func (a *Adapter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Poll(Upper)
			a.Poll(Lower)
			a.Pump()
		}
	}
}
