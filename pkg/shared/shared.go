// Package shared implements SharedTable: a two-level intrusive list that
// mirrors selected entries of inbound packets into caller-owned variables.
package shared

import "github.com/wasa-rockoon/wcbus/pkg/wire"

// AnyOrigin/AnyNode are the wildcard filter values meaning "match any
// sender".
const (
	AnyOrigin byte = 0xFF
	AnyNode   byte = 0xFF
)

// NeverTimeout marks a Variable that, once updated, stays valid forever.
const NeverTimeout uint32 = 0xFFFFFFFF

// Variable is a SharedVariable: a single replicated value, owned by the
// caller (typically embedded in static storage) and linked into the
// table's intrusive lists. Its zero value is an unlinked, never-updated
// variable.
type Variable struct {
	kindID      byte
	name        wire.Name
	index       int
	originFilter byte
	nodeFilter  byte

	Value        uint32
	TimeoutMs    uint32
	LastUpdateMs uint64
	updated      bool

	nextSameKey     *Variable
	nextDistinctKey *Variable
}

// Valid reports whether the variable currently holds a live value: it
// must have been updated at least once, and either never time out or
// still be within its timeout window of now.
func (v *Variable) Valid(nowMs uint64) bool {
	if !v.updated {
		return false
	}
	if v.TimeoutMs == NeverTimeout {
		return true
	}
	return nowMs-v.LastUpdateMs < uint64(v.TimeoutMs)
}

// Table is the SharedTable itself: a linked list of distinct kind_id
// buckets, each heading a linked list of variables sharing that key.
type Table struct {
	head *Variable
}

// Add links v into the table under kindID, watching for entry name/index
// within packets of that kind, filtered by origin unit id and node name.
// Insertion order within a bucket is preserved.
func (t *Table) Add(v *Variable, kindID byte, name wire.Name, index int, originFilter, nodeFilter byte) {
	v.kindID = kindID
	v.name = name
	v.index = index
	v.originFilter = originFilter
	v.nodeFilter = nodeFilter
	v.nextSameKey = nil
	v.nextDistinctKey = nil

	if t.head == nil {
		t.head = v
		return
	}
	bucket := t.head
	for {
		if bucket.kindID == kindID {
			last := bucket
			for last.nextSameKey != nil {
				last = last.nextSameKey
			}
			last.nextSameKey = v
			return
		}
		if bucket.nextDistinctKey == nil {
			bucket.nextDistinctKey = v
			return
		}
		bucket = bucket.nextDistinctKey
	}
}

// Update walks the bucket matching packet's kind_id and, for each
// variable whose origin/node filters pass, looks up its configured entry
// and mirrors its raw value in. originNodeName is the human-readable name
// of the node the packet was received from, for node-name filtering.
func (t *Table) Update(p *wire.Packet, nowMs uint64, originNodeName byte) {
	for bucket := t.head; bucket != nil; bucket = bucket.nextDistinctKey {
		if bucket.kindID != p.KindID() {
			continue
		}
		for v := bucket; v != nil; v = v.nextSameKey {
			if v.originFilter != AnyOrigin && v.originFilter != p.OriginUnitID() {
				continue
			}
			if v.nodeFilter != AnyNode && v.nodeFilter != originNodeName {
				continue
			}
			e, ok := p.Find(v.name, v.index)
			if !ok {
				continue
			}
			v.Value = e.Raw32()
			v.LastUpdateMs = nowMs
			v.updated = true
		}
		return
	}
}

// KindID returns the kind_id bucket v is registered under.
func (v *Variable) KindID() byte { return v.kindID }

// Name returns the entry name v watches within its bucket's packets.
func (v *Variable) Name() wire.Name { return v.name }

// Walk calls fn once per registered Variable, in table order. The
// table's intrusive lists have no other way for an outside package
// (pkg/busmetrics) to enumerate what they hold.
func (t *Table) Walk(fn func(v *Variable)) {
	for bucket := t.head; bucket != nil; bucket = bucket.nextDistinctKey {
		for v := bucket; v != nil; v = v.nextSameKey {
			fn(v)
		}
	}
}
