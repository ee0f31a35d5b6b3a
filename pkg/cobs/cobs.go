// Package cobs implements Consistent Overhead Byte Stuffing, the framing
// wcbus's UART adapter uses to delimit packets on the wire with a single
// 0x00 byte. Both functions are pure and allocation-free
// for the caller: src and dst are caller-supplied, matching the "no dynamic
// allocation" discipline of the rest of the stack.
package cobs

// MaxEncodedLen returns the largest buffer Encode could need for n input
// bytes: one overhead byte per 254 data bytes, plus the data itself.
func MaxEncodedLen(n int) int {
	return n + n/254 + 1
}

// Encode writes the COBS encoding of src into dst (without the trailing
// 0x00 delimiter — the caller appends that) and returns the number of bytes
// written, or -1 if dst is too small.
func Encode(src []byte, dst []byte) int {
	if len(dst) < MaxEncodedLen(len(src)) {
		return -1
	}

	readIdx := 0
	writeIdx := 1
	codeIdx := 0
	code := byte(1)

	for readIdx < len(src) {
		b := src[readIdx]
		if b == 0 {
			dst[codeIdx] = code
			code = 1
			codeIdx = writeIdx
			writeIdx++
			readIdx++
			continue
		}
		dst[writeIdx] = b
		writeIdx++
		readIdx++
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			code = 1
			codeIdx = writeIdx
			writeIdx++
		}
	}
	dst[codeIdx] = code
	return writeIdx
}

// Decode reverses Encode: src must not contain the trailing 0x00 delimiter.
// Returns the number of bytes written to dst, or -1 on a malformed frame
// (zero code byte, code pointing past the end) or insufficient dst space.
func Decode(src []byte, dst []byte) int {
	if len(src) == 0 {
		return 0
	}

	readIdx := 0
	writeIdx := 0

	for readIdx < len(src) {
		code := src[readIdx]
		if code == 0 {
			return -1
		}
		readIdx++
		blockLen := int(code) - 1
		if readIdx+blockLen > len(src) {
			return -1
		}
		if writeIdx+blockLen > len(dst) {
			return -1
		}
		copy(dst[writeIdx:], src[readIdx:readIdx+blockLen])
		writeIdx += blockLen
		readIdx += blockLen

		if code != 0xFF && readIdx < len(src) {
			if writeIdx >= len(dst) {
				return -1
			}
			dst[writeIdx] = 0
			writeIdx++
		}
	}
	return writeIdx
}
