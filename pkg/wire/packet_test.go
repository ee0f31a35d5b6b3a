package wire

import (
	"bytes"
	"testing"
)

// TestCommandLocalHeader: a fresh local command packet has no entries and
// a 4-byte header.
func TestCommandLocalHeader(t *testing.T) {
	buf := make([]byte, 16)
	p := Empty(buf)
	if err := p.SetCommandLocal(0x41, 0x11); err != nil {
		t.Fatalf("SetCommandLocal: %v", err)
	}

	want := []byte{0x04, 0x41, 0x11, 0x00}
	if !bytes.Equal(p.b[:4], want) {
		t.Fatalf("header = % X, want % X", p.b[:4], want)
	}

	crc := p.Seal()
	if p.Bytes()[4] != crc {
		t.Fatalf("sealed byte mismatch")
	}
	if !p.VerifyChecksum() {
		t.Fatalf("VerifyChecksum failed on freshly sealed packet")
	}
}

// TestTelemetryLocalNamedInt: a local telemetry packet carrying one named
// positive-integer entry, checked byte for byte.
func TestTelemetryLocalNamedInt(t *testing.T) {
	buf := make([]byte, 16)
	p := Empty(buf)
	if err := p.SetTelemetryLocal(0x43, 0x11); err != nil {
		t.Fatalf("SetTelemetryLocal: %v", err)
	}
	if !bytes.Equal(p.b[:4], []byte{0x04, 0xC3, 0x11, 0x00}) {
		t.Fatalf("header = % X", p.b[:4])
	}

	e, err := p.Append(Name{'I', 'y'})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := e.SetInt(1234567890); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	want := []byte{0x0A, 0xC3, 0x11, 0x00, 0x69, 0x59, 0xD2, 0x02, 0x96, 0x49}
	if !bytes.Equal(p.b[:10], want) {
		t.Fatalf("packet = % X, want % X", p.b[:10], want)
	}
	if p.size() != 0x0A {
		t.Fatalf("size() = %d, want 10", p.size())
	}

	got, err := e.GetInt()
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if got != 1234567890 {
		t.Fatalf("GetInt() = %d, want 1234567890", got)
	}
	if e.Name() != (Name{'I', 'y'}) {
		t.Fatalf("Name() = %v", e.Name())
	}
}

func TestSetIntNarrowestEncoding(t *testing.T) {
	cases := []struct {
		value      int64
		entrySize  int // header(2) + payload
	}{
		{0, 2},
		{31, 2},
		{32, 3},
		{255, 3},
		{256, 4},
		{-1, 3},
		{-255, 3},
		{-256, 4},
	}
	for _, c := range cases {
		buf := make([]byte, 32)
		p := Empty(buf)
		e, _ := p.Append(Name{'V', 'v'})
		if err := e.SetInt(c.value); err != nil {
			t.Fatalf("SetInt(%d): %v", c.value, err)
		}
		if got := 2 + e.payloadSize(); got != c.entrySize {
			t.Errorf("SetInt(%d): entry size = %d, want %d", c.value, got, c.entrySize)
		}
		got, err := e.GetInt()
		if err != nil || got != c.value {
			t.Errorf("SetInt(%d)/GetInt round trip = %d, %v", c.value, got, err)
		}
	}
}

func TestRemoteHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	p := Empty(buf)
	if err := p.SetCommandRemote(0x10, 0x02, 5, 9, 42); err != nil {
		t.Fatalf("SetCommandRemote: %v", err)
	}
	if p.IsLocal() {
		t.Fatalf("expected remote packet")
	}
	if p.OriginUnitID() != 5 || p.DestUnitID() != 9 || p.Sequence() != 42 {
		t.Fatalf("origin/dest/seq = %d/%d/%d", p.OriginUnitID(), p.DestUnitID(), p.Sequence())
	}
	if p.size() != 7 {
		t.Fatalf("size() = %d, want 7 (remote header)", p.size())
	}
}

func TestStructNesting(t *testing.T) {
	buf := make([]byte, 48)
	p := Empty(buf)
	p.SetTelemetryLocal(0x50, 0x01)

	outer, err := p.Append(Name{'S', 's'})
	if err != nil {
		t.Fatalf("Append outer: %v", err)
	}
	sub, err := outer.SetStruct()
	if err != nil {
		t.Fatalf("SetStruct: %v", err)
	}
	inner, err := sub.Append(Name{'I', 'n'})
	if err != nil {
		t.Fatalf("Append inner: %v", err)
	}
	if err := inner.SetInt(7); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	again, err := outer.GetStruct()
	if err != nil {
		t.Fatalf("GetStruct: %v", err)
	}
	found, ok := again.Find(Name{'I', 'n'}, 0)
	if !ok {
		t.Fatalf("inner entry not found after nesting")
	}
	v, err := found.GetInt()
	if err != nil || v != 7 {
		t.Fatalf("nested GetInt = %d, %v", v, err)
	}
}

func TestEntryRemoveShiftsTail(t *testing.T) {
	buf := make([]byte, 32)
	p := Empty(buf)
	p.SetCommandLocal(1, 1)

	first, _ := p.Append(Name{'A', 'a'})
	first.SetInt(5)
	second, _ := p.Append(Name{'B', 'b'})
	second.SetInt(9)

	if err := first.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	e, ok := p.Find(Name{'B', 'b'}, 0)
	if !ok {
		t.Fatalf("second entry missing after remove")
	}
	v, err := e.GetInt()
	if err != nil || v != 9 {
		t.Fatalf("surviving entry corrupted: %d, %v", v, err)
	}
}

func TestSetPacketEmbedsSubPacket(t *testing.T) {
	innerBuf := make([]byte, 16)
	inner := Empty(innerBuf)
	inner.SetCommandLocal(2, 2)
	ie, _ := inner.Append(Name{'X', 'x'})
	ie.SetInt(3)

	outerBuf := make([]byte, 32)
	outer := Empty(outerBuf)
	outer.SetTelemetryLocal(3, 3)
	e, _ := outer.Append(Name{'P', 'p'})
	if err := e.SetPacket(inner); err != nil {
		t.Fatalf("SetPacket: %v", err)
	}

	scratch := make([]byte, 16)
	got, err := e.GetPacket(scratch)
	if err != nil {
		t.Fatalf("GetPacket: %v", err)
	}
	ge, ok := got.Find(Name{'X', 'x'}, 0)
	if !ok {
		t.Fatalf("embedded entry missing")
	}
	v, _ := ge.GetInt()
	if v != 3 {
		t.Fatalf("embedded value = %d, want 3", v)
	}
}

// TestFloat16RoundTrip covers the normal, subnormal, and zero ranges of
// the half-precision conversion, including the smallest denormal -- the
// case whose exponent underflow previously produced garbage bits.
func TestFloat16RoundTrip(t *testing.T) {
	cases := []float32{
		0, 1, -1, 0.5, 100, -100,
		5.960464477539063e-08, // smallest positive subnormal half (2^-24)
		6.097555160522461e-05, // largest subnormal half
	}
	buf := make([]byte, 16)
	for _, want := range cases {
		p := Empty(buf)
		p.SetTelemetryLocal(1, 1)
		e, _ := p.Append(Name{'F', 'f'})
		if err := e.SetFloat16(want); err != nil {
			t.Fatalf("SetFloat16(%v): %v", want, err)
		}
		got, err := e.GetFloat32()
		if err != nil {
			t.Fatalf("GetFloat32: %v", err)
		}
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		tol := want / 1000
		if tol < 0 {
			tol = -tol
		}
		if tol == 0 {
			tol = 1e-9
		}
		if diff > tol {
			t.Fatalf("float16 round trip: got %v, want %v", got, want)
		}
	}
}
