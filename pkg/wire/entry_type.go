package wire

// entryType is the 6-bit type tag packed across an entry's 2-byte header.
// The low 5 bits of byte 0 hold the 2-char name's first
// letter, the low 5 bits of byte 1 hold the second; the top 3 bits of each
// byte carry half of the type tag.
type entryType byte

const (
	typeNull      entryType = 0b000000
	typeStruct    entryType = 0b000001
	typeSubPacket entryType = 0b000010
	typeLongBytes entryType = 0b000011
	typeFloatZero entryType = 0b000100
	typeFloat16   entryType = 0b000101
	typeFloat32   entryType = 0b000110
	typeFloat64   entryType = 0b000111

	shortBytesBase entryType = 0b001000 // + SSS (0..7) inline bytes
	posIntBase     entryType = 0b010000 // + NNN (0..7) -> NNN+1 LE bytes
	negIntBase     entryType = 0b011000 // + NNN (0..7) -> NNN+1 LE bytes of magnitude
	shortIntBase   entryType = 0b100000 // + VVVVV (0..31) -> value, no payload
)

// group classifies the type tag into the families the codec switches on.
type group int

const (
	groupFixed group = iota
	groupShortBytes
	groupPosInt
	groupNegInt
	groupShortInt
)

func (t entryType) group() group {
	if t&0x20 != 0 {
		return groupShortInt
	}
	switch t >> 3 {
	case 0:
		return groupFixed
	case 1:
		return groupShortBytes
	case 2:
		return groupPosInt
	case 3:
		return groupNegInt
	}
	return groupFixed
}

// payloadLen returns the number of payload bytes that follow the entry's
// 2-byte header, given the byte(s) already read from the buffer where
// needed (lenByte is the first payload byte for variable-length families;
// it is ignored otherwise).
func (t entryType) payloadLen(lenByte byte) int {
	switch t.group() {
	case groupShortInt:
		return 0
	case groupShortBytes:
		return int(t & 0x07)
	case groupPosInt, groupNegInt:
		return int(t&0x07) + 1
	case groupFixed:
		switch t {
		case typeNull, typeFloatZero:
			return 0
		case typeFloat16:
			return 2
		case typeFloat32:
			return 4
		case typeFloat64:
			return 8
		case typeLongBytes:
			return 1 + int(lenByte)
		case typeStruct, typeSubPacket:
			// The length byte counts itself: an empty struct stores 1,
			// and a sub-packet's first byte is the inner packet's own
			// size byte, which already spans the whole payload.
			return int(lenByte)
		}
	}
	return 0
}

// hasLenPrefix reports whether the entry's first payload byte is itself a
// length count (struct, sub-packet, long bytes).
func (t entryType) hasLenPrefix() bool {
	return t == typeStruct || t == typeSubPacket || t == typeLongBytes
}

// Name is the 2-character mnemonic carried in an entry's header: char 0
// from the block starting at '@' (0x40), char 1 from the block starting at
// '`' (0x60). Only the low 5 bits of each character are ever stored, so any
// byte works as input -- callers conventionally pass ASCII letters such as
// in "Iy".
type Name [2]byte

func (n Name) bits() (byte, byte) {
	return n[0] & 0x1F, n[1] & 0x1F
}

// canon maps n onto the representative characters of the two wire blocks,
// the form Entry.Name always returns.
func (n Name) canon() Name {
	lo0, lo1 := n.bits()
	return nameFromBits(lo0, lo1)
}

func nameFromBits(lo0, lo1 byte) Name {
	return Name{0x40 | (lo0 & 0x1F), 0x60 | (lo1 & 0x1F)}
}
