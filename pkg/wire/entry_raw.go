package wire

import "math"

// Raw32 returns the entry's value as a flat 32 bits, reinterpretable by
// the caller as whichever of {u32, i32, f32} it expects -- the view
// SharedTable mirrors into a SharedVariable. Integers are truncated to 32
// bits; floats of any stored width are narrowed to float32 bits; anything
// else (bytes, struct, sub-packet, null) reads as zero.
func (e Entry) Raw32() uint32 {
	switch {
	case e.IsFloat():
		f, _ := e.GetFloat32()
		return math.Float32bits(f)
	case e.IsInt():
		v, _ := e.GetInt()
		return uint32(v)
	}
	return 0
}
