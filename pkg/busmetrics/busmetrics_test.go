package busmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
	"github.com/wasa-rockoon/wcbus/pkg/wire"
)

type fakeHost struct{ now uint64 }

func (h *fakeHost) NowMillis() uint64                 { return h.now }
func (h *fakeHost) ReadPersistent(addr byte) byte     { return 0 }
func (h *fakeHost) WritePersistent(addr byte, v byte) {}
func (h *fakeHost) RandomUnique() uint32              { return 1 }

func gatherByName(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}
	return nil
}

// TestCollectExposesSharedVariableAndSelfCounters checks that registering a
// Collector with Prometheus's own registry produces readable metric
// families for a SharedTable variable and Core's own error counter.
func TestCollectExposesSharedVariableAndSelfCounters(t *testing.T) {
	host := &fakeHost{now: 1000}
	table := &shared.Table{}
	core := bus.New(host, table)
	core.RecordError([3]byte{'B', 'C', 'R'})
	core.ListenShared(0x80 | 0x10)

	var v shared.Variable
	table.Add(&v, 0x80|0x10, wire.Name{'t', 'm'}, 0, shared.AnyOrigin, shared.AnyNode)

	buf := make([]byte, 32)
	p := wire.Empty(buf)
	require.NoError(t, p.SetTelemetryRemote(0x10, 0, 5, 0, 1))
	e, err := p.Append(wire.Name{'t', 'm'})
	require.NoError(t, err)
	require.NoError(t, e.SetInt(42))
	p.Seal()
	core.Dispatch(p)

	reg := prometheus.NewRegistry()
	reg.MustRegister(New(core, table, "node-a"))

	selfErr := gatherByName(t, reg, "wcbus_self_error_count")
	require.Len(t, selfErr, 1)
	require.EqualValues(t, 1, selfErr[0].GetGauge().GetValue())

	values := gatherByName(t, reg, "wcbus_shared_value")
	require.Len(t, values, 1)
	require.EqualValues(t, 42, values[0].GetGauge().GetValue())
}
