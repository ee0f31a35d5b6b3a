package wire

// container is implemented by Packet and SubEntries: a resizable run of
// entries sharing one underlying buffer. Every mutator -- append, remove,
// or an in-place type change that grows or shrinks an entry's payload --
// routes through resize, the one primitive that keeps the container's own
// size byte consistent with the bytes actually in the buffer.
type container interface {
	buf() []byte
	offset() int     // absolute offset of the first entry
	size() int       // content length, measured from offset()
	headerSize() int // bytes consumed by the container's own header

	// resize changes the span of bytes from ptr to the container's current
	// end from oldLen to newLen, shifting anything at or after ptr and
	// updating the container's length field. It reports whether the
	// result fits the backing buffer.
	resize(ptr, newLen, oldLen int) bool
}

// resizeAt is the entry point mutators call: it derives old/new tail
// lengths from ptr and a signed delta, then defers to the container.
func resizeAt(c container, ptr, delta int) bool {
	end := c.offset() + c.size()
	oldLen := end - ptr
	newLen := oldLen + delta
	return c.resize(ptr, newLen, oldLen)
}

// shiftTail is the memmove shared by every resize implementation: it
// relocates the oldLen bytes currently at ptr to ptr+delta.
func shiftTail(buf []byte, ptr, oldLen, delta int) {
	if delta == 0 || oldLen == 0 {
		return
	}
	copy(buf[ptr+delta:ptr+delta+oldLen], buf[ptr:ptr+oldLen])
}

// Cursor walks the entries of a container without allocating: it is a
// (container, byte offset) pair rather than a pointer-based iterator, so
// it cannot dangle across a mutation of the underlying buffer.
type Cursor struct {
	c   container
	ptr int
}

const cursorDone = -1

// begin returns a cursor at the container's first entry.
func begin(c container) Cursor {
	ptr := c.offset() + c.headerSize()
	if ptr >= c.offset()+c.size() {
		return Cursor{c, cursorDone}
	}
	return Cursor{c, ptr}
}

// Done reports whether the cursor has run past the last entry.
func (cur Cursor) Done() bool { return cur.ptr == cursorDone }

// Entry returns the entry the cursor currently points to.
func (cur Cursor) Entry() Entry { return Entry{c: cur.c, ptr: cur.ptr} }

// Next advances the cursor past the current entry.
func (cur Cursor) Next() Cursor {
	if cur.Done() {
		return cur
	}
	e := cur.Entry()
	next := cur.ptr + 2 + e.payloadSize()
	if next >= cur.c.offset()+cur.c.size() {
		return Cursor{cur.c, cursorDone}
	}
	return Cursor{cur.c, next}
}

// find returns the (index+1)'th entry (0-based index) named name within c.
// Comparison is over the 5-bit codes actually carried on the wire, so
// "un" and "Un" name the same entry.
func find(c container, name Name, index int) (Entry, bool) {
	want := name.canon()
	seen := 0
	for cur := begin(c); !cur.Done(); cur = cur.Next() {
		e := cur.Entry()
		if e.Name() == want {
			if seen == index {
				return e, true
			}
			seen++
		}
	}
	return Entry{}, false
}

// appendEntry grows c by one null entry named name and returns it.
func appendEntry(c container, name Name) (Entry, bool) {
	ptr := c.offset() + c.size()
	if !resizeAt(c, ptr, 2) {
		return Entry{}, false
	}
	e := Entry{c: c, ptr: ptr}
	e.setName(name)
	e.setType(typeNull)
	return e, true
}
