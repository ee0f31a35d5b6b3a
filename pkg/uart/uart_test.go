package uart

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

// sideDriver is a test double standing in for a real pair of serial ports:
// Write appends to `out` (read by a test to ferry bytes to a peer's
// inbox), ReadByte drains `in` (fed by a test to simulate incoming bytes).
type sideDriver struct {
	out *[2][]byte // the queues this side writes into (the peer's inbox)
	in  *[2][]byte // the queues this side reads from (its own inbox)
}

func (d *sideDriver) Write(port Port, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.out[port] = append(d.out[port], cp...)
}

func (d *sideDriver) ReadByte(port Port) (byte, bool) {
	q := d.in[port]
	if len(q) == 0 {
		return 0, false
	}
	b := q[0]
	d.in[port] = q[1:]
	return b, true
}

func buildPacket(t *testing.T, kindID byte, origin byte) *wire.Packet {
	t.Helper()
	buf := make([]byte, 64)
	p := wire.Empty(buf)
	require.NoError(t, p.SetTelemetryRemote(kindID&0x7F, 0, origin, 0, 1))
	p.Seal()
	return p
}

// TestSendReceiveAndForward wires three nodes chained A-B-C through their
// upper/lower ports and checks that a packet sent by A reaches C's
// foreground receive queue after hopping through B, and that B only relays
// it once.
func TestSendReceiveAndForward(t *testing.T) {
	hostA := &fakeHost{now: 1, unique: 1}
	hostB := &fakeHost{now: 1, unique: 2}
	hostC := &fakeHost{now: 1, unique: 3}

	coreA := bus.New(hostA, &shared.Table{})
	coreB := bus.New(hostB, &shared.Table{})
	coreC := bus.New(hostC, &shared.Table{})

	kindID := byte(0x80 | 0x30)
	coreC.Listen(kindID)
	coreB.Listen(kindID)

	driverA := &sideDriver{}
	driverB := &sideDriver{}
	driverC := &sideDriver{}

	// A.Lower <-> B.Upper, B.Lower <-> C.Upper.
	driverA.out = &[2][]byte{}
	driverB.in = &[2][]byte{}
	driverB.out = &[2][]byte{}
	driverC.in = &[2][]byte{}
	driverA.in = &[2][]byte{}
	driverC.out = &[2][]byte{}

	adapterA := New(coreA, driverA, bus.SendQueueSize)
	adapterB := New(coreB, driverB, bus.SendQueueSize)
	adapterC := New(coreC, driverC, bus.SendQueueSize)

	src := buildPacket(t, kindID, 9)
	require.True(t, adapterA.Send(src))
	adapterA.Pump()

	// Ferry A's Lower-port output into B's Upper-port input.
	driverB.in[Upper] = append(driverB.in[Upper], driverA.out[Lower]...)
	adapterB.Poll(Upper)

	// B relayed onto its Lower port (the opposite of where it arrived);
	// ferry that into C's Upper-port input.
	require.NotEmpty(t, driverB.out[Lower])
	driverC.in[Upper] = append(driverC.in[Upper], driverB.out[Lower]...)
	adapterC.Poll(Upper)

	select {
	case p := <-coreC.ReceiveQueue():
		require.Equal(t, kindID, p.KindID())
	default:
		t.Fatal("C never received the forwarded packet")
	}

	nB := coreB.NodeInfo(9)
	require.EqualValues(t, 1, nB.ReceivedCount)

	// B must not have echoed the frame back out its Upper port (where it
	// arrived from).
	require.Empty(t, driverB.out[Upper])
}

// TestSendQueueFull exercises the "BSD" backpressure path: once the send
// ring cannot fit another frame, Send reports failure.
func TestSendQueueFull(t *testing.T) {
	host := &fakeHost{now: 1, unique: 1}
	core := bus.New(host, &shared.Table{})
	drv := &sideDriver{out: &[2][]byte{}}
	a := New(core, drv, 12) // tiny queue: at most one small frame fits

	p := buildPacket(t, 0x80|0x31, 9)
	require.True(t, a.Send(p))
	require.False(t, a.Send(p), "second enqueue should fail once the ring is full")
}

// TestCorruptFrameIsRejected feeds a frame whose leading COBS code byte has
// been inverted, so it no longer decodes, and checks it is rejected rather
// than dispatched or forwarded.
func TestCorruptFrameIsRejected(t *testing.T) {
	txHost := &fakeHost{now: 1, unique: 1}
	txCore := bus.New(txHost, &shared.Table{})
	txDrv := &sideDriver{out: &[2][]byte{}}
	tx := New(txCore, txDrv, bus.SendQueueSize)

	p := buildPacket(t, 0x80|0x32, 9)
	require.True(t, tx.Send(p))
	tx.Pump()
	frame := append([]byte(nil), txDrv.out[Upper]...)
	require.NotEmpty(t, frame)
	// Invert the first byte of the encoded frame (its COBS code byte).
	frame[0] ^= 0xFF

	rxHost := &fakeHost{now: 1, unique: 2}
	rxCore := bus.New(rxHost, &shared.Table{})
	rxCore.Listen(0x80 | 0x32)
	rxDrv := &sideDriver{in: &[2][]byte{frame, nil}, out: &[2][]byte{}}
	rx := New(rxCore, rxDrv, bus.SendQueueSize)

	rx.Poll(Upper)

	select {
	case <-rxCore.ReceiveQueue():
		t.Fatal("a corrupted frame must not be dispatched")
	default:
	}
	require.Empty(t, rxDrv.out[Lower], "a corrupted frame must not be forwarded")
}
