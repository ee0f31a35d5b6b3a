package section

import "testing"

func TestAllocIterVisitsEachSectionOnce(t *testing.T) {
	buf := New(make([]byte, 64))

	var handles []int
	for i := 0; i < 4; i++ {
		h, ok := buf.Alloc(4)
		if !ok {
			t.Fatalf("Alloc %d failed", i)
		}
		copy(buf.Payload(h), []byte{byte(i), byte(i), byte(i), byte(i)})
		handles = append(handles, h)
	}

	seen := map[int]bool{}
	it := buf.Iter()
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if seen[h] {
			t.Fatalf("handle %d visited twice", h)
		}
		seen[h] = true
	}
	for _, h := range handles {
		if !seen[h] {
			t.Fatalf("handle %d never visited", h)
		}
	}
}

func TestOverflowCounterMonotonic(t *testing.T) {
	buf := New(make([]byte, 32))

	last := buf.Overflow()
	for i := 0; i < 50; i++ {
		h, ok := buf.Alloc(4)
		if !ok {
			t.Fatalf("Alloc %d failed", i)
		}
		buf.Free(h)
		if buf.Overflow() < last {
			t.Fatalf("overflow counter decreased: %d -> %d", last, buf.Overflow())
		}
		last = buf.Overflow()
	}
	if last == 0 {
		t.Fatalf("expected some evictions over 50 allocations in a 32-byte arena")
	}
}

func TestLockedSectionSurvivesWrap(t *testing.T) {
	buf := New(make([]byte, 32))

	lockedHandle, ok := buf.Alloc(4)
	if !ok {
		t.Fatalf("Alloc locked section failed")
	}
	copy(buf.Payload(lockedHandle), []byte{0xAA, 0xBB, 0xCC, 0xDD})
	buf.Lock(lockedHandle)

	for i := 0; i < 30; i++ {
		h, ok := buf.Alloc(4)
		if !ok {
			t.Fatalf("Alloc %d failed", i)
		}
		if h == lockedHandle {
			t.Fatalf("allocator reused the locked section's space")
		}
		buf.Free(h)
	}

	got := buf.Payload(lockedHandle)
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("locked section corrupted: got %v, want %v", got, want)
		}
	}
}

func TestPopAdvancesBegin(t *testing.T) {
	buf := New(make([]byte, 32))
	h1, _ := buf.Alloc(4)
	_, _ = buf.Alloc(4)

	if buf.begin != h1 {
		t.Fatalf("begin = %d, want %d", buf.begin, h1)
	}
	buf.Pop()
	if buf.begin == h1 {
		t.Fatalf("Pop did not advance begin")
	}
}
