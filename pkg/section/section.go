// Package section implements the ring section buffer: a single-producer
// (interrupt context), single-consumer (main loop) in-place allocator over
// a fixed byte arena, used by the CAN adapter to reassemble multi-frame
// packets without touching the heap.
package section

// noLock is the lockAt sentinel meaning "nothing locked".
const noLock = -1

// header bits: bit 15 is the free flag, bits 0..14 are the payload size.
const freeBit = 0x8000
const sizeMask = 0x7FFF

// Buf is a fixed-capacity ring of variable-length sections. alloc is
// called from interrupt context; pop, Free, Lock, Unlock and iteration are
// called from the main loop. The two sides only ever touch begin/end in
// the directions documented on each method, so no locking is needed beyond
// that discipline.
type Buf struct {
	arena    []byte
	begin    int
	end      int
	lockAt   int
	overflow uint32
}

// New wraps arena as an empty section ring. arena is zeroed.
func New(arena []byte) *Buf {
	for i := range arena {
		arena[i] = 0
	}
	return &Buf{arena: arena, lockAt: noLock}
}

func putHeader(arena []byte, at int, free bool, payload int) {
	v := uint16(payload) & sizeMask
	if free {
		v |= freeBit
	}
	arena[at] = byte(v)
	arena[at+1] = byte(v >> 8)
}

func readHeader(arena []byte, at int) (free bool, payload int) {
	v := uint16(arena[at]) | uint16(arena[at+1])<<8
	return v&freeBit != 0, int(v & sizeMask)
}

func aheadDistance(x, from, cap int) int {
	d := x - from
	if d < 0 {
		d += cap
	}
	return d
}

// Overflow returns the monotonic count of sections evicted to make room
// for new allocations.
func (b *Buf) Overflow() uint32 { return b.overflow }

// Alloc reserves a section of size payload bytes, evicting the oldest
// allocated sections as needed to make room, and returns its handle (a
// stable byte offset). It fails only if size cannot fit the arena at all,
// or if the locked section leaves no room anywhere.
func (b *Buf) Alloc(size int) (handle int, ok bool) {
	cap := len(b.arena)
	need := size + 2
	if need >= cap {
		return 0, false
	}

	w := b.end
	if w+need >= cap {
		if rem := cap - w; rem >= 2 {
			putHeader(b.arena, w, true, rem-2)
		}
		w = 0
	}

	// Walk the chain of sections starting at begin, making room for the
	// new section at w. A section still owned by begin is evicted in the
	// ordinary way (begin advances, overflow counts it). The locked
	// section is never evicted: instead the new section's position is
	// pushed to just past it. Anything further along the chain, beyond a
	// still-locked begin, is claimed without moving begin -- begin cannot
	// advance past its lock, so it will simply see whatever now occupies
	// that space once the lock is released.
	// The bound is inclusive so begin can never land exactly on the new
	// end: begin == end always means empty.
	scan := b.begin
	for scan != b.end && aheadDistance(scan, w, cap) <= need {
		next := b.step(scan)
		switch {
		case scan == b.lockAt:
			w = next
			if w+need >= cap {
				return 0, false
			}
		case scan == b.begin:
			b.begin = next
			b.overflow++
		default:
			b.overflow++
		}
		scan = next
	}

	putHeader(b.arena, w, false, size)
	b.end = w + need
	return w, true
}

// step returns the offset of the section after the one at `at`, wrapping
// to 0 when the remaining tail of the arena is too small to hold another
// header.
func (b *Buf) step(at int) int {
	_, sz := readHeader(b.arena, at)
	next := at + 2 + sz
	if next+2 > len(b.arena) {
		return 0
	}
	return next
}

// Payload returns the payload bytes of the section at handle.
func (b *Buf) Payload(handle int) []byte {
	_, sz := readHeader(b.arena, handle)
	return b.arena[handle+2 : handle+2+sz]
}

// Free marks the section at handle as reclaimable. Reclamation itself is
// lazy: it happens when begin next reaches it, via Alloc or Pop.
func (b *Buf) Free(handle int) {
	_, sz := readHeader(b.arena, handle)
	putHeader(b.arena, handle, true, sz)
}

// Pop advances begin past the section currently at begin, if any.
func (b *Buf) Pop() {
	if b.begin == b.end {
		return
	}
	b.begin = b.step(b.begin)
}

// Lock pins the section at handle so Alloc will never evict it; only one
// section may be locked at a time.
func (b *Buf) Lock(handle int) { b.lockAt = handle }

// Unlock releases the current lock, if any.
func (b *Buf) Unlock() { b.lockAt = noLock }

// Locked reports whether any section is currently locked.
func (b *Buf) Locked() bool { return b.lockAt != noLock }

// Iter walks the currently allocated (non-free) sections from begin to
// end in ring order, without allocating.
type Iter struct {
	b   *Buf
	ptr int
}

// Iter returns an iterator positioned at the ring's oldest section.
func (b *Buf) Iter() Iter { return Iter{b: b, ptr: b.begin} }

// Next returns the next allocated section's handle, or ok=false once the
// iterator reaches the end.
func (it *Iter) Next() (handle int, ok bool) {
	for it.ptr != it.b.end {
		h := it.ptr
		free, _ := readHeader(it.b.arena, h)
		it.ptr = it.b.step(h)
		if !free {
			return h, true
		}
	}
	return 0, false
}
