package wire

import "math"

// SetFloat16 stores f as an IEEE half-precision float, collapsing exactly
// 0.0 into the zero-payload float-zero form.
func (e Entry) SetFloat16(f float32) error {
	if f == 0 {
		return e.setFloatZero()
	}
	old := e.payloadSize()
	if !e.resizePayload(old, 2) {
		return ErrCapacity
	}
	e.setType(typeFloat16)
	h := float32ToFloat16(f)
	buf := e.payload()
	buf[0] = byte(h)
	buf[1] = byte(h >> 8)
	return nil
}

// SetFloat32 stores f at full single precision, collapsing exactly 0.0.
func (e Entry) SetFloat32(f float32) error {
	if f == 0 {
		return e.setFloatZero()
	}
	old := e.payloadSize()
	if !e.resizePayload(old, 4) {
		return ErrCapacity
	}
	e.setType(typeFloat32)
	bits := math.Float32bits(f)
	buf := e.payload()
	buf[0] = byte(bits)
	buf[1] = byte(bits >> 8)
	buf[2] = byte(bits >> 16)
	buf[3] = byte(bits >> 24)
	return nil
}

// SetFloat64 stores f at double precision, collapsing exactly 0.0.
func (e Entry) SetFloat64(f float64) error {
	if f == 0 {
		return e.setFloatZero()
	}
	old := e.payloadSize()
	if !e.resizePayload(old, 8) {
		return ErrCapacity
	}
	e.setType(typeFloat64)
	bits := math.Float64bits(f)
	buf := e.payload()
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * uint(i)))
	}
	return nil
}

func (e Entry) setFloatZero() error {
	old := e.payloadSize()
	if !e.resizePayload(old, 0) {
		return ErrCapacity
	}
	e.setType(typeFloatZero)
	return nil
}

// GetFloat64 reads the entry's value as a double, converting up from
// whatever width (or integer type) is actually stored.
func (e Entry) GetFloat64() (float64, error) {
	switch e.rawType() {
	case typeFloatZero:
		return 0, nil
	case typeFloat16:
		p := e.payload()
		h := uint16(p[0]) | uint16(p[1])<<8
		return float64(float16ToFloat32(h)), nil
	case typeFloat32:
		p := e.payload()
		bits := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
		return float64(math.Float32frombits(bits)), nil
	case typeFloat64:
		p := e.payload()
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(p[i]) << (8 * uint(i))
		}
		return math.Float64frombits(bits), nil
	}
	if e.IsInt() {
		v, err := e.GetInt()
		return float64(v), err
	}
	return 0, ErrWrongType
}

// GetFloat32 is GetFloat64 narrowed to single precision.
func (e Entry) GetFloat32() (float32, error) {
	f, err := e.GetFloat64()
	return float32(f), err
}
