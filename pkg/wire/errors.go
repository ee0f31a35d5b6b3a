package wire

import "errors"

// ErrCapacity is returned by any mutator that would grow a packet or a
// nested struct beyond the backing buffer it was given.
var ErrCapacity = errors.New("wire: insufficient buffer capacity")

// ErrWrongType is returned by a typed Entry getter when the entry does not
// hold a value convertible to the requested type, and by SetBytes for a
// byte string longer than 255 bytes.
var ErrWrongType = errors.New("wire: entry holds a different type")

// ErrNotFound names a failed entry lookup. The lookups in this package
// (Packet.Find, SubEntries.Find) report a missing entry with ok=false and
// do not return it.
var ErrNotFound = errors.New("wire: entry not found")

// ErrMalformed is returned by Decode when a buffer cannot be a valid packet
// (too short for its declared header form, or its declared size overruns
// the buffer it was decoded from).
var ErrMalformed = errors.New("wire: malformed packet")
