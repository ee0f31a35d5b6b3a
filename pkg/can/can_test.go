package can

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
	"github.com/wasa-rockoon/wcbus/pkg/wire"
)

type fakeHost struct {
	now    uint64
	unique uint32
}

func (h *fakeHost) NowMillis() uint64                 { return h.now }
func (h *fakeHost) ReadPersistent(addr byte) byte     { return 0 }
func (h *fakeHost) WritePersistent(addr byte, v byte) {}
func (h *fakeHost) RandomUnique() uint32              { return h.unique }

// capturingDriver stores every frame handed to Send so a test can replay
// them into a second Adapter's Received.
type capturingDriver struct {
	frames [][]byte
	extIDs []uint32
}

func (d *capturingDriver) Init() error { return nil }

func (d *capturingDriver) SetFilter(id, mask byte) {}

func (d *capturingDriver) Send(extID uint32, data []byte, dlc int) bool {
	cp := make([]byte, dlc)
	copy(cp, data[:dlc])
	d.frames = append(d.frames, cp)
	d.extIDs = append(d.extIDs, extID)
	return true
}

func buildPacket(t *testing.T, kindID byte, entries int) *wire.Packet {
	t.Helper()
	buf := make([]byte, 64)
	p := wire.Empty(buf)
	require.NoError(t, p.SetTelemetryRemote(kindID&0x7F, 0, 9, 0, 1))
	for i := 0; i < entries; i++ {
		e, err := p.Append(wire.Name{'a', byte('a' + i)})
		require.NoError(t, err)
		// Values above 31 force the minimal-width multi-byte encoding
		// instead of the zero-payload short-int form, so a handful of
		// entries is enough to push the packet past one CAN frame.
		require.NoError(t, e.SetInt(int64((i+1)*10000)))
	}
	p.Seal()
	return p
}

// TestFramingAndReassembly: a multi-frame packet is split into at least
// three CAN frames by Send, and Received replays them into exactly
// one completed, checksum-valid packet -- after which a second Receive
// call finds nothing and releases the lock.
func TestFramingAndReassembly(t *testing.T) {
	kindID := byte(0x80 | 0x20)
	src := buildPacket(t, kindID, 4)
	require.GreaterOrEqual(t, len(src.Bytes()), 17, "want a multi-frame packet")

	txHost := &fakeHost{now: 1, unique: 1}
	txCore := bus.New(txHost, &shared.Table{})
	drv := &capturingDriver{}
	txAdapter := New(txCore, drv, make([]byte, 512))
	require.True(t, txAdapter.Send(src))
	require.GreaterOrEqual(t, len(drv.frames), 3)

	rxHost := &fakeHost{now: 1000, unique: 2}
	rxCore := bus.New(rxHost, &shared.Table{})
	rxCore.Listen(kindID)
	rxAdapter := New(rxCore, &capturingDriver{}, make([]byte, 512))

	for i, frame := range drv.frames {
		rxAdapter.Received(drv.extIDs[i], frame, len(frame))
	}

	p, ok := rxAdapter.Receive()
	require.True(t, ok)
	require.Equal(t, kindID, p.KindID())
	require.True(t, p.VerifyChecksum())

	n := rxCore.NodeInfo(9)
	require.EqualValues(t, 1, n.ReceivedCount)

	_, ok = rxAdapter.Receive()
	require.False(t, ok)
	require.False(t, rxAdapter.hasLocked)
}

// TestSingleFrameSharedOnlyDispatchesWithoutAllocating checks the fast path:
// a packet small enough for one frame, subscribed only via ListenShared (not
// Listen), is handed straight to bus.Core.Dispatch without ever touching the
// section ring.
func TestSingleFrameSharedOnlyDispatchesWithoutAllocating(t *testing.T) {
	kindID := byte(0x80 | 0x21)
	src := buildPacket(t, kindID, 0)
	require.LessOrEqual(t, len(src.Bytes()), 8)

	txHost := &fakeHost{now: 1, unique: 1}
	txCore := bus.New(txHost, &shared.Table{})
	drv := &capturingDriver{}
	txAdapter := New(txCore, drv, make([]byte, 512))
	require.True(t, txAdapter.Send(src))
	require.Len(t, drv.frames, 1)

	rxHost := &fakeHost{now: 1000, unique: 2}
	rxCore := bus.New(rxHost, &shared.Table{})
	rxCore.ListenShared(kindID)
	rxAdapter := New(rxCore, &capturingDriver{}, make([]byte, 512))

	rxAdapter.Received(drv.extIDs[0], drv.frames[0], len(drv.frames[0]))

	it := rxAdapter.ring.Iter()
	_, ok := it.Next()
	require.False(t, ok, "shared-only single-frame packet should not allocate a section")

	n := rxCore.NodeInfo(9)
	require.EqualValues(t, 1, n.ReceivedCount)
}
