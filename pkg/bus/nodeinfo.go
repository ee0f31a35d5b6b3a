package bus

// NodeInfo is the per-peer state BusCore tracks, indexed by the peer's
// bus address in [0, NodeMax). ReceivedCount and LostCount are the
// counters the sequence-accounting rule maintains per peer.
type NodeInfo struct {
	Name        byte
	LastSeq     byte
	SanityBits  uint16
	ErrorCount  byte
	ErrorCode   [3]byte
	HeartbeatMs uint64
	Unique      uint32

	ReceivedCount uint32
	LostCount     uint32
}

// Alive reports whether this peer has been heard from recently enough.
func (n *NodeInfo) Alive(nowMs, timeoutMs uint64) bool {
	return n.HeartbeatMs != 0 && nowMs-n.HeartbeatMs < timeoutMs
}

func (n *NodeInfo) reset() {
	*n = NodeInfo{}
}
