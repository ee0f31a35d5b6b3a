package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/wasa-rockoon/wcbus/pkg/crc8"
)

// Kind distinguishes the two packet classes the bus core dispatches on.
type Kind byte

const (
	Command   Kind = 0
	Telemetry Kind = 1
)

// Packet is a self-describing view over a caller-owned byte buffer.
// buf[0] is the packet's logical length L -- header plus entries,
// excluding the trailing checksum byte -- so the buffer must have room for
// at least L+1 bytes before Seal is called. A fresh, all-zero buffer reads
// as an empty local command packet with no entries.
type Packet struct {
	b []byte
}

// Empty zeroes buf and wraps it as a fresh, header-only local command
// packet. buf must have capacity for at least 5 bytes (4-byte local header
// plus checksum).
func Empty(buf []byte) *Packet {
	for i := range buf {
		buf[i] = 0
	}
	p := &Packet{b: buf}
	p.b[0] = 4
	return p
}

// Decode wraps buf as a view over an already-encoded packet: buf[0] must
// be the packet's declared length, and buf must hold at least that many
// bytes plus one (for the checksum, even if not yet sealed).
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < 5 {
		return nil, ErrMalformed
	}
	l := int(buf[0])
	if l+1 > len(buf) {
		return nil, ErrMalformed
	}
	hs := 4
	if l >= 4 && buf[3] != 0 {
		hs = 7
	}
	if l < hs {
		return nil, ErrMalformed
	}
	return &Packet{b: buf}, nil
}

func (p *Packet) buf() []byte { return p.b }
func (p *Packet) offset() int { return 0 }
func (p *Packet) size() int   { return int(p.b[0]) }

func (p *Packet) headerSize() int {
	if p.b[3] != 0 {
		return 7
	}
	return 4
}

func (p *Packet) resize(ptr, newLen, oldLen int) bool {
	delta := newLen - oldLen
	newL := p.size() + delta
	if newL < p.headerSize() || newL+1 > len(p.b) {
		return false
	}
	shiftTail(p.b, ptr, oldLen, delta)
	p.b[0] = byte(newL)
	return true
}

func (p *Packet) setHeader(kind Kind, id, component byte, remote bool, origin, dest byte, seq uint16) error {
	// The wire reserves origin byte 0 for locally-authored packets, so a
	// remote header with origin 0 degrades to the local form.
	if origin == 0 {
		remote = false
	}
	newHS := 4
	if remote {
		newHS = 7
	}
	oldHS := p.headerSize()
	oldL := p.size()
	entriesLen := oldL - oldHS
	delta := newHS - oldHS
	newL := oldL + delta
	if newL+1 > len(p.b) {
		return ErrCapacity
	}
	if delta != 0 && entriesLen > 0 {
		copy(p.b[newHS:newHS+entriesLen], p.b[oldHS:oldHS+entriesLen])
	}
	p.b[0] = byte(newL)
	p.b[1] = byte(kind)<<7 | id&0x7F
	p.b[2] = component
	if remote {
		p.b[3] = origin
		p.b[4] = dest
		binary.LittleEndian.PutUint16(p.b[5:7], seq)
	} else {
		p.b[3] = 0
	}
	return nil
}

// SetCommandLocal rewrites the packet as a local (self-originated) command.
func (p *Packet) SetCommandLocal(id, component byte) error {
	return p.setHeader(Command, id, component, false, 0, 0, 0)
}

// SetTelemetryLocal rewrites the packet as a local telemetry message.
func (p *Packet) SetTelemetryLocal(id, component byte) error {
	return p.setHeader(Telemetry, id, component, false, 0, 0, 0)
}

// SetCommandRemote rewrites the packet as a command forwarded on behalf of
// origin, addressed to dest, carrying sequence seq.
func (p *Packet) SetCommandRemote(id, component, origin, dest byte, seq uint16) error {
	return p.setHeader(Command, id, component, true, origin, dest, seq)
}

// SetTelemetryRemote rewrites the packet as telemetry forwarded on behalf
// of origin, addressed to dest, carrying sequence seq.
func (p *Packet) SetTelemetryRemote(id, component, origin, dest byte, seq uint16) error {
	return p.setHeader(Telemetry, id, component, true, origin, dest, seq)
}

// Kind reports whether the packet is a command or telemetry.
func (p *Packet) Kind() Kind {
	if p.b[1]&0x80 != 0 {
		return Telemetry
	}
	return Command
}

// PacketID returns the 7-bit packet identifier.
func (p *Packet) PacketID() byte { return p.b[1] & 0x7F }

// KindID returns the full byte combining kind and packet id (buf[1]), the
// key SharedTable and the bus core index entries by.
func (p *Packet) KindID() byte { return p.b[1] }

// ComponentID returns the originating component's identifier.
func (p *Packet) ComponentID() byte { return p.b[2] }

// IsLocal reports whether the packet was authored by this node (4-byte
// header) rather than relayed from elsewhere on the bus (7-byte header).
func (p *Packet) IsLocal() bool { return p.b[3] == 0 }

// OriginUnitID returns the unit id of the node that authored the packet,
// or 0 for a local packet.
func (p *Packet) OriginUnitID() byte { return p.b[3] }

// DestUnitID returns the forwarding destination of a remote packet.
func (p *Packet) DestUnitID() byte {
	if p.IsLocal() {
		return 0
	}
	return p.b[4]
}

// Sequence returns a remote packet's per-origin sequence number.
func (p *Packet) Sequence() uint16 {
	if p.IsLocal() {
		return 0
	}
	return binary.LittleEndian.Uint16(p.b[5:7])
}

// Append grows the packet by one null entry named name and returns it.
func (p *Packet) Append(name Name) (Entry, error) {
	e, ok := appendEntry(p, name)
	if !ok {
		return Entry{}, ErrCapacity
	}
	return e, nil
}

// Find returns the (index+1)'th entry named name, 0-based.
func (p *Packet) Find(name Name, index int) (Entry, bool) {
	return find(p, name, index)
}

// Begin returns a cursor at the packet's first entry.
func (p *Packet) Begin() Cursor { return begin(p) }

// Checksum computes the CRC-8-SMBUS over the packet's L header+entries
// bytes (buf[0:L]), not including the trailing checksum byte itself.
func (p *Packet) Checksum() byte {
	return crc8.SMBUS(p.b[:p.size()])
}

// Seal writes the checksum byte at buf[L] and returns it. The backing
// buffer must have at least L+1 bytes.
func (p *Packet) Seal() byte {
	c := p.Checksum()
	p.b[p.size()] = c
	return c
}

// VerifyChecksum reports whether the byte at buf[L] matches the computed
// checksum over buf[0:L].
func (p *Packet) VerifyChecksum() bool {
	l := p.size()
	if l >= len(p.b) {
		return false
	}
	return p.b[l] == p.Checksum()
}

// Bytes returns the sealed wire representation: L header+entry bytes
// followed by the checksum byte, L+1 bytes total.
func (p *Packet) Bytes() []byte {
	return p.b[:p.size()+1]
}

// String renders a short debug summary of the packet's header and entries.
func (p *Packet) String() string {
	kind := "command"
	if p.Kind() == Telemetry {
		kind = "telemetry"
	}
	if p.IsLocal() {
		return fmt.Sprintf("wire.Packet{%s id=%d comp=%d}", kind, p.PacketID(), p.ComponentID())
	}
	return fmt.Sprintf("wire.Packet{%s id=%d comp=%d origin=%d dest=%d seq=%d}",
		kind, p.PacketID(), p.ComponentID(), p.OriginUnitID(), p.DestUnitID(), p.Sequence())
}
