package wire

import "encoding/binary"

// Entry is a cursor onto a single entry inside a container's buffer: a
// (container, absolute byte offset) pair. It is a value type and carries
// no data of its own -- all reads and writes go through the shared buffer.
type Entry struct {
	c   container
	ptr int
}

func (e Entry) header0() byte { return e.c.buf()[e.ptr] }
func (e Entry) header1() byte { return e.c.buf()[e.ptr+1] }

// rawType returns the entry's 6-bit type tag.
func (e Entry) rawType() entryType {
	low3 := e.header0() >> 5
	high3 := e.header1() >> 5
	return entryType(high3<<3 | low3)
}

func (e Entry) setType(t entryType) {
	buf := e.c.buf()
	low3 := byte(t) & 0x07
	high3 := (byte(t) >> 3) & 0x07
	buf[e.ptr] = low3<<5 | (buf[e.ptr] & 0x1F)
	buf[e.ptr+1] = high3<<5 | (buf[e.ptr+1] & 0x1F)
}

// Name returns the entry's 2-character mnemonic.
func (e Entry) Name() Name {
	return nameFromBits(e.header0()&0x1F, e.header1()&0x1F)
}

func (e Entry) setName(n Name) {
	buf := e.c.buf()
	lo0, lo1 := n.bits()
	buf[e.ptr] = (buf[e.ptr] &^ 0x1F) | lo0
	buf[e.ptr+1] = (buf[e.ptr+1] &^ 0x1F) | lo1
}

// lenByte returns the first payload byte for the length-prefixed families
// (struct, sub-packet, long bytes); callers must only invoke it for those.
func (e Entry) lenByte() byte {
	return e.c.buf()[e.ptr+2]
}

func (e Entry) payloadSize() int {
	t := e.rawType()
	if t.hasLenPrefix() {
		return t.payloadLen(e.lenByte())
	}
	return t.payloadLen(0)
}

func (e Entry) payloadOffset() int {
	return e.ptr + 2
}

func (e Entry) payload() []byte {
	n := e.payloadSize()
	off := e.payloadOffset()
	return e.c.buf()[off : off+n]
}

// IsNull reports whether the entry holds the null type.
func (e Entry) IsNull() bool { return e.rawType() == typeNull }

// IsInt reports whether the entry holds an integer of any width.
func (e Entry) IsInt() bool {
	switch e.rawType().group() {
	case groupShortInt, groupPosInt, groupNegInt:
		return true
	}
	return false
}

// IsFloat reports whether the entry holds a float of any width.
func (e Entry) IsFloat() bool {
	switch e.rawType() {
	case typeFloatZero, typeFloat16, typeFloat32, typeFloat64:
		return true
	}
	return false
}

// IsBytes reports whether the entry holds a short or long byte string.
func (e Entry) IsBytes() bool {
	t := e.rawType()
	return t.group() == groupShortBytes || t == typeLongBytes
}

// IsStruct reports whether the entry holds a nested struct.
func (e Entry) IsStruct() bool { return e.rawType() == typeStruct }

// IsPacket reports whether the entry holds an embedded sub-packet.
func (e Entry) IsPacket() bool { return e.rawType() == typeSubPacket }

// resizePayload changes the entry's payload from oldLen to newLen bytes by
// growing or shrinking in place, shifting everything after it.
func (e Entry) resizePayload(oldLen, newLen int) bool {
	ptr := e.payloadOffset() + oldLen
	return resizeAt(e.c, ptr, newLen-oldLen)
}

// SetNull clears the entry to the null type and frees its payload.
func (e Entry) SetNull() error {
	old := e.payloadSize()
	if !e.resizePayload(old, 0) {
		return ErrCapacity
	}
	e.setType(typeNull)
	return nil
}

// Remove deletes the entry entirely, shifting subsequent entries back.
func (e Entry) Remove() error {
	total := 2 + e.payloadSize()
	if !resizeAt(e.c, e.ptr+total, -total) {
		return ErrCapacity
	}
	return nil
}

// --- integers ---

func leWidth(magnitude uint64) int {
	n := 1
	for n < 8 && magnitude>>(8*uint(n)) != 0 {
		n++
	}
	return n
}

// SetInt stores value using the narrowest representation available: zero
// and small positive values (1..31) collapse into the zero-payload short
// int form; larger magnitudes use the minimal-byte positive or negative
// form.
func (e Entry) SetInt(value int64) error {
	old := e.payloadSize()
	switch {
	case value == 0:
		if !e.resizePayload(old, 0) {
			return ErrCapacity
		}
		e.setType(shortIntBase)
		return nil
	case value > 0 && value <= 31:
		if !e.resizePayload(old, 0) {
			return ErrCapacity
		}
		e.setType(shortIntBase | entryType(value))
		return nil
	case value > 0:
		n := leWidth(uint64(value))
		if !e.resizePayload(old, n) {
			return ErrCapacity
		}
		e.setType(posIntBase | entryType(n-1))
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], uint64(value))
		copy(e.payload(), raw[:n])
		return nil
	default:
		mag := uint64(-value)
		n := leWidth(mag)
		if !e.resizePayload(old, n) {
			return ErrCapacity
		}
		e.setType(negIntBase | entryType(n-1))
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], mag)
		copy(e.payload(), raw[:n])
		return nil
	}
}

// GetInt returns the entry's value as a signed integer. Floats are
// truncated toward zero.
func (e Entry) GetInt() (int64, error) {
	t := e.rawType()
	switch t.group() {
	case groupShortInt:
		return int64(t & 0x1F), nil
	case groupPosInt:
		return int64(leUint(e.payload())), nil
	case groupNegInt:
		return -int64(leUint(e.payload())), nil
	}
	if e.IsFloat() {
		f, err := e.GetFloat64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	return 0, ErrWrongType
}

func leUint(b []byte) uint64 {
	var raw [8]byte
	copy(raw[:], b)
	return binary.LittleEndian.Uint64(raw[:])
}

// --- bytes ---

// SetBytes stores b using the short inline form for up to 7 bytes, or the
// length-prefixed long form otherwise (max 255 bytes).
func (e Entry) SetBytes(b []byte) error {
	old := e.payloadSize()
	if len(b) <= 7 {
		if !e.resizePayload(old, len(b)) {
			return ErrCapacity
		}
		e.setType(shortBytesBase | entryType(len(b)))
		copy(e.payload(), b)
		return nil
	}
	if len(b) > 255 {
		return ErrWrongType
	}
	if !e.resizePayload(old, 1+len(b)) {
		return ErrCapacity
	}
	buf := e.c.buf()
	buf[e.payloadOffset()] = byte(len(b))
	copy(buf[e.payloadOffset()+1:], b)
	e.setType(typeLongBytes)
	return nil
}

// SetString is SetBytes over the UTF-8 encoding of s.
func (e Entry) SetString(s string) error { return e.SetBytes([]byte(s)) }

// GetBytes returns the entry's raw byte payload, or an error if the entry
// does not hold a byte string.
func (e Entry) GetBytes() ([]byte, error) {
	if !e.IsBytes() {
		return nil, ErrWrongType
	}
	if e.rawType() == typeLongBytes {
		return e.payload()[1:], nil
	}
	return e.payload(), nil
}

// GetString is GetBytes reinterpreted as a string.
func (e Entry) GetString() (string, error) {
	b, err := e.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- struct / sub-packet ---

// SetStruct turns the entry into an empty nested struct and returns a view
// over its entries. The struct's length byte counts itself, so an empty
// struct stores 1.
func (e Entry) SetStruct() (SubEntries, error) {
	old := e.payloadSize()
	if !e.resizePayload(old, 1) {
		return SubEntries{}, ErrCapacity
	}
	e.c.buf()[e.payloadOffset()] = 1
	e.setType(typeStruct)
	return SubEntries{parent: e.c, lenAt: e.payloadOffset()}, nil
}

// GetStruct returns a view over a nested struct's entries.
func (e Entry) GetStruct() (SubEntries, error) {
	if e.rawType() != typeStruct {
		return SubEntries{}, ErrWrongType
	}
	return SubEntries{parent: e.c, lenAt: e.payloadOffset()}, nil
}

// SetPacket embeds a copy of inner's bytes (header + entries, not its
// checksum) as a sub-packet. No separate length prefix is written: the
// inner packet's own size byte already spans the payload.
func (e Entry) SetPacket(inner *Packet) error {
	n := inner.size()
	old := e.payloadSize()
	if !e.resizePayload(old, n) {
		return ErrCapacity
	}
	buf := e.c.buf()
	off := e.payloadOffset()
	copy(buf[off:off+n], inner.b[:n])
	e.setType(typeSubPacket)
	return nil
}

// GetPacket decodes the embedded sub-packet into scratch, which must be at
// least as large as the sub-packet's declared length plus one (for a
// checksum byte a caller may later seal onto it).
func (e Entry) GetPacket(scratch []byte) (*Packet, error) {
	if e.rawType() != typeSubPacket {
		return nil, ErrWrongType
	}
	n := int(e.lenByte())
	if len(scratch) < n+1 {
		return nil, ErrCapacity
	}
	copy(scratch, e.payload()[:n])
	return Decode(scratch[:n+1])
}
