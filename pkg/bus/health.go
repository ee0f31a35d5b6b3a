package bus

import "github.com/wasa-rockoon/wcbus/pkg/wire"

// RecordError increments the error counter and records the 3-byte ASCII
// code. This call never fails or panics -- framing and integrity errors
// are handled by dropping the offending data and continuing; the codes
// are telemetry for peers, not Go errors.
func (c *Core) RecordError(code [3]byte) {
	c.mu.Lock()
	c.recordError(code)
	c.mu.Unlock()
}

func (c *Core) recordError(code [3]byte) {
	c.errorCount++
	c.errorCode = code
}

// SelfErrorCount returns this node's own error_count, the same value
// GetErrorSummary stamps against its own node name.
func (c *Core) SelfErrorCount() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount
}

// SelfSanityBits returns this node's own sanity_bits, the same value
// GetSanitySummary stamps against its own node name.
func (c *Core) SelfSanityBits() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sanityBits
}

// SetSanity sets or clears a bit in the 16-bit sanity word; ok=true
// clears the bit (sane), ok=false sets it (insane). Bit 0 is reserved by
// Core itself (sweep) for "have >= 1 connected peer"; callers may use the
// remaining bits for their own health checks.
func (c *Core) SetSanity(bit int, ok bool) {
	c.mu.Lock()
	c.setSanity(bit, ok)
	c.mu.Unlock()
}

func (c *Core) setSanity(bit int, ok bool) {
	mask := uint16(1) << uint(bit)
	if ok {
		c.sanityBits &^= mask
	} else {
		c.sanityBits |= mask
	}
}

// errorSummaryName/sanitySummaryName build a per-node entry name from the
// node's one-byte name plus a fixed second character; 'e' and 's' both
// fall inside the wire's second-character block, so the pair is always a
// valid Name.
func errorSummaryName(nodeName byte) wire.Name  { return wire.Name{nodeName, 'e'} }
func sanitySummaryName(nodeName byte) wire.Name { return wire.Name{nodeName, 's'} }

// GetErrorSummary builds a telemetry packet (id IDErrorSummary) with one
// entry per alive node plus self, each carrying that node's error_count.
func (c *Core) GetErrorSummary(buf []byte) (*wire.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := wire.Empty(buf)
	if err := p.SetTelemetryLocal(IDErrorSummary, c.componentID); err != nil {
		return nil, err
	}
	if e, err := p.Append(errorSummaryName(c.selfName)); err == nil {
		e.SetInt(int64(c.errorCount))
	}
	now := c.host.NowMillis()
	for i := range c.nodes {
		n := &c.nodes[i]
		if !n.Alive(now, c.heartbeatTimeoutMs) {
			continue
		}
		e, err := p.Append(errorSummaryName(n.Name))
		if err != nil {
			return p, nil
		}
		e.SetInt(int64(n.ErrorCount))
	}
	return p, nil
}

// GetSanitySummary builds a telemetry packet (id IDSanitySummary) with
// one entry per alive node plus self, each carrying that node's
// sanity_bits.
func (c *Core) GetSanitySummary(buf []byte) (*wire.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := wire.Empty(buf)
	if err := p.SetTelemetryLocal(IDSanitySummary, c.componentID); err != nil {
		return nil, err
	}
	if e, err := p.Append(sanitySummaryName(c.selfName)); err == nil {
		e.SetInt(int64(c.sanityBits))
	}
	now := c.host.NowMillis()
	for i := range c.nodes {
		n := &c.nodes[i]
		if !n.Alive(now, c.heartbeatTimeoutMs) {
			continue
		}
		e, err := p.Append(sanitySummaryName(n.Name))
		if err != nil {
			return p, nil
		}
		e.SetInt(int64(n.SanityBits))
	}
	return p, nil
}
