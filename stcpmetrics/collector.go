// Package stcpmetrics exposes a registry of live STCP connections as a
// Prometheus collector, in the custom-Collector style of
// github.com/simeonmiteff/go-tcpinfo's pkg/exporter: metrics are computed
// on demand from the connections currently registered, rather than kept as
// counters updated on every state change.
package stcpmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nevivurn/stcp/stcp"
)

// Collector reports per-connection gauges for every *stcp.Context
// registered with it. The zero value is not usable; use NewCollector.
type Collector struct {
	mu    sync.Mutex
	conns map[string]*stcp.Context

	rto           *prometheus.Desc
	bytesInFlight *prometheus.Desc
	retransmits   *prometheus.Desc
	state         *prometheus.Desc
}

// NewCollector builds a Collector. connLabel names the label attached to
// each tracked connection (typically a short correlation id); constLabels
// are attached to every metric unconditionally (e.g. hostname, process).
func NewCollector(namespace string, connLabel string, constLabels prometheus.Labels) *Collector {
	labels := []string{connLabel}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(namespace+"_"+name, help, labels, constLabels)
	}
	return &Collector{
		conns:         make(map[string]*stcp.Context),
		rto:           desc("rto_seconds", "current retransmission timeout estimate"),
		bytesInFlight: desc("bytes_in_flight", "unacknowledged octets currently outstanding"),
		retransmits:   desc("retransmit_count", "transmission count of the oldest unacknowledged segment"),
		state:         desc("state", "current connection state, as its numeric stcp.State value"),
	}
}

// Add registers a connection under id, replacing any previous connection
// with the same id.
func (c *Collector) Add(id string, conn *stcp.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[id] = conn
}

// Remove stops reporting metrics for id.
func (c *Collector) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, id)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.rto
	descs <- c.bytesInFlight
	descs <- c.retransmits
	descs <- c.state
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, conn := range c.conns {
		metrics <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, conn.RTO().Seconds(), id)
		metrics <- prometheus.MustNewConstMetric(c.bytesInFlight, prometheus.GaugeValue, float64(conn.BytesInFlight()), id)
		metrics <- prometheus.MustNewConstMetric(c.retransmits, prometheus.GaugeValue, float64(conn.RetransmitCount()), id)
		metrics <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(conn.State()), id)
	}
}
