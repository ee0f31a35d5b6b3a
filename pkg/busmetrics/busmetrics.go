// Package busmetrics exports a bus.Core's error/sanity/loss telemetry and a
// shared.Table's variable freshness as Prometheus gauges -- the host-side
// analogue of the bus's own error/sanity summary packets, for a Prometheus
// scrape rather than (or alongside) a peer node.
package busmetrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wasa-rockoon/wcbus/pkg/bus"
	"github.com/wasa-rockoon/wcbus/pkg/shared"
)

// Collector implements prometheus.Collector, modeled on the pack's
// TCPInfoCollector: a small Describe/Collect pair walking a fixed set of
// live descriptors over live state rather than a registry of counters
// updated as events happen.
type Collector struct {
	core  *bus.Core
	table *shared.Table

	nodeAlive       *prometheus.Desc
	nodeErrorCount  *prometheus.Desc
	nodeSanityBits  *prometheus.Desc
	nodeReceived    *prometheus.Desc
	nodeLost        *prometheus.Desc
	selfErrorCount  *prometheus.Desc
	selfSanityBits  *prometheus.Desc
	filterBits      *prometheus.Desc
	sharedValue     *prometheus.Desc
	sharedAgeMs     *prometheus.Desc
	sharedValidBool *prometheus.Desc
}

// New builds a Collector over core and table, labeling every metric with
// node (typically the host's configured node name or hostname).
func New(core *bus.Core, table *shared.Table, node string) *Collector {
	constLabels := prometheus.Labels{"node": node}
	peerLabels := []string{"peer"}
	sharedLabels := []string{"kind_id", "name"}

	return &Collector{
		core:  core,
		table: table,

		nodeAlive: prometheus.NewDesc(
			"wcbus_peer_alive", "Whether a peer has heartbeated within the timeout window.",
			peerLabels, constLabels),
		nodeErrorCount: prometheus.NewDesc(
			"wcbus_peer_error_count", "Peer-reported error_count from its last heartbeat.",
			peerLabels, constLabels),
		nodeSanityBits: prometheus.NewDesc(
			"wcbus_peer_sanity_bits", "Peer-reported sanity_bits from its last heartbeat.",
			peerLabels, constLabels),
		nodeReceived: prometheus.NewDesc(
			"wcbus_peer_received_total", "Packets received from this peer and accepted as new.",
			peerLabels, constLabels),
		nodeLost: prometheus.NewDesc(
			"wcbus_peer_lost_total", "Packets counted as lost in this peer's sequence gaps.",
			peerLabels, constLabels),
		selfErrorCount: prometheus.NewDesc(
			"wcbus_self_error_count", "This node's own error_count.",
			nil, constLabels),
		selfSanityBits: prometheus.NewDesc(
			"wcbus_self_sanity_bits", "This node's own sanity_bits.",
			nil, constLabels),
		filterBits: prometheus.NewDesc(
			"wcbus_filter_bits", "The OR-reduced subscription filter word.",
			nil, constLabels),
		sharedValue: prometheus.NewDesc(
			"wcbus_shared_value", "A SharedTable variable's current raw32 value.",
			sharedLabels, constLabels),
		sharedAgeMs: prometheus.NewDesc(
			"wcbus_shared_age_ms", "Milliseconds since a SharedTable variable last updated.",
			sharedLabels, constLabels),
		sharedValidBool: prometheus.NewDesc(
			"wcbus_shared_valid", "Whether a SharedTable variable is still within its timeout.",
			sharedLabels, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.nodeAlive
	descs <- c.nodeErrorCount
	descs <- c.nodeSanityBits
	descs <- c.nodeReceived
	descs <- c.nodeLost
	descs <- c.selfErrorCount
	descs <- c.selfSanityBits
	descs <- c.filterBits
	descs <- c.sharedValue
	descs <- c.sharedAgeMs
	descs <- c.sharedValidBool
}

// Collect implements prometheus.Collector, reading current state straight
// off bus.Core/shared.Table -- there is nothing to lock here beyond what
// those types already guarantee for their own read paths.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	now := c.core.Now()

	for id := byte(0); id < bus.NodeMax; id++ {
		n := c.core.NodeInfo(id)
		if n == nil || !n.Alive(now, bus.HeartbeatTimeoutMs) {
			continue
		}
		peer := fmt.Sprintf("%02x", n.Name)
		metrics <- prometheus.MustNewConstMetric(c.nodeAlive, prometheus.GaugeValue, 1, peer)
		metrics <- prometheus.MustNewConstMetric(c.nodeErrorCount, prometheus.GaugeValue, float64(n.ErrorCount), peer)
		metrics <- prometheus.MustNewConstMetric(c.nodeSanityBits, prometheus.GaugeValue, float64(n.SanityBits), peer)
		metrics <- prometheus.MustNewConstMetric(c.nodeReceived, prometheus.CounterValue, float64(n.ReceivedCount), peer)
		metrics <- prometheus.MustNewConstMetric(c.nodeLost, prometheus.CounterValue, float64(n.LostCount), peer)
	}

	metrics <- prometheus.MustNewConstMetric(c.selfErrorCount, prometheus.GaugeValue, float64(c.core.SelfErrorCount()))
	metrics <- prometheus.MustNewConstMetric(c.selfSanityBits, prometheus.GaugeValue, float64(c.core.SelfSanityBits()))
	metrics <- prometheus.MustNewConstMetric(c.filterBits, prometheus.GaugeValue, float64(c.core.FilterBits()))

	if c.table != nil {
		c.table.Walk(func(v *shared.Variable) {
			name := v.Name()
			labels := []string{fmt.Sprintf("%02x", v.KindID()), fmt.Sprintf("%02x%02x", name[0], name[1])}
			metrics <- prometheus.MustNewConstMetric(c.sharedValue, prometheus.GaugeValue, float64(v.Value), labels...)
			age := float64(0)
			if v.LastUpdateMs != 0 && now >= v.LastUpdateMs {
				age = float64(now - v.LastUpdateMs)
			}
			metrics <- prometheus.MustNewConstMetric(c.sharedAgeMs, prometheus.GaugeValue, age, labels...)
			valid := float64(0)
			if v.Valid(now) {
				valid = 1
			}
			metrics <- prometheus.MustNewConstMetric(c.sharedValidBool, prometheus.GaugeValue, valid, labels...)
		})
	}
}
