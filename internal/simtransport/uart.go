// Package simtransport provides an in-memory uart.Driver test/demo double:
// a null-modem pair of simulated serial links connecting two wcbus nodes
// in the same process. There is no physical link to listen on, so the
// "wire" is a pair of byte channels.
package simtransport

import "github.com/wasa-rockoon/wcbus/pkg/uart"

// Link is one direction-agnostic logical wire: bytes written at one end
// are the bytes read at the other, in order, buffered so Write never
// blocks the caller's poll loop.
type Link struct {
	ch chan byte
}

func newLink(capacity int) *Link {
	return &Link{ch: make(chan byte, capacity)}
}

func (l *Link) send(b byte) {
	select {
	case l.ch <- b:
	default:
		// Drop silently on overflow; a full simulated link has no physical
		// analogue worth modeling more precisely than "byte lost in transit".
	}
}

func (l *Link) recv() (byte, bool) {
	select {
	case b := <-l.ch:
		return b, true
	default:
		return 0, false
	}
}

// linkCapacity bounds each simulated wire; generous enough that a demo
// node's heartbeat cadence never overflows it under normal polling.
const linkCapacity = 4096

// Driver implements uart.Driver over a pair of Links, one per port.
type Driver struct {
	out [2]*Link // bytes this side writes land here, for the peer to read
	in  [2]*Link // bytes this side reads come from here, written by the peer
}

// NewLoopbackChain builds two Drivers wired as a two-node chain: A's Lower
// port is B's Upper port, the way two adjacent nodes on a real UART daisy
// chain would be wired. A's Upper and B's Lower are each node's open chain
// end -- writes there are simply absorbed, since nothing is attached.
func NewLoopbackChain() (a, b *Driver) {
	aLowerToBUpper := newLink(linkCapacity)
	bUpperToALower := newLink(linkCapacity)

	a = &Driver{}
	b = &Driver{}

	a.out[uart.Lower] = aLowerToBUpper
	b.in[uart.Upper] = aLowerToBUpper

	b.out[uart.Upper] = bUpperToALower
	a.in[uart.Lower] = bUpperToALower

	// Open ends: writes are absorbed (nil out), reads never yield a byte
	// (nil in is handled by ReadByte/Write below).
	return a, b
}

// Write implements uart.Driver.
func (d *Driver) Write(port uart.Port, data []byte) {
	link := d.out[port]
	if link == nil {
		return
	}
	for _, b := range data {
		link.send(b)
	}
}

// ReadByte implements uart.Driver.
func (d *Driver) ReadByte(port uart.Port) (byte, bool) {
	link := d.in[port]
	if link == nil {
		return 0, false
	}
	return link.recv()
}
