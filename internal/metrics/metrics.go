// Package metrics exposes the Prometheus counters the node engine
// updates as it handles protocol traffic.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the counters a Node updates while handling messages.
// A nil *Collector is valid and every method becomes a no-op, so
// wiring metrics is optional for callers that only want the protocol.
type Collector struct {
	MessagesHandled  *prometheus.CounterVec
	Relocations      prometheus.Counter
	PendingStalls    prometheus.Counter
	ReplicaSetSize   prometheus.Gauge
}

// New registers a fresh set of counters against reg and returns a
// Collector wired to them.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		MessagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorddht",
			Name:      "messages_handled_total",
			Help:      "Messages handled by the node engine, by kind.",
		}, []string{"kind"}),
		Relocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorddht",
			Name:      "replica_relocations_total",
			Help:      "Replica relocation events processed by this node.",
		}),
		PendingStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorddht",
			Name:      "pending_read_stalls_total",
			Help:      "Reads that blocked on an in-flight chain-replication commit.",
		}),
		ReplicaSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chorddht",
			Name:      "replica_ranges_size",
			Help:      "Current number of replica ranges this node tracks.",
		}),
	}
	reg.MustRegister(c.MessagesHandled, c.Relocations, c.PendingStalls, c.ReplicaSetSize)
	return c
}

func (c *Collector) CountMessage(kind string) {
	if c == nil {
		return
	}
	c.MessagesHandled.WithLabelValues(kind).Inc()
}

func (c *Collector) CountRelocation() {
	if c == nil {
		return
	}
	c.Relocations.Inc()
}

func (c *Collector) CountPendingStall() {
	if c == nil {
		return
	}
	c.PendingStalls.Inc()
}

func (c *Collector) SetReplicaSetSize(n int) {
	if c == nil {
		return
	}
	c.ReplicaSetSize.Set(float64(n))
}
