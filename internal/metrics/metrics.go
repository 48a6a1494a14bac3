// Package metrics exports the prometheus series this module emits,
// built with the promauto factory pattern and trimmed to only the
// series this module actually produces.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set is the collection of counters/gauges shared across Connections
// and Subscriptions. The tcpq and udpm providers all use the
// process-wide instance returned by Default.
type Set struct {
	ConnectionsActive    *prometheus.GaugeVec
	MessagesPublished    *prometheus.CounterVec
	MessagesDelivered    *prometheus.CounterVec
	SubscriptionsActive  *prometheus.GaugeVec
	QueueDropped         *prometheus.CounterVec
	FragmentBuffersOpen  prometheus.Gauge
	FragmentsDropped     prometheus.Counter
	HandshakeFailures    prometheus.Counter
	TransportErrors      *prometheus.CounterVec
}

var (
	defaultSet     *Set
	defaultSetOnce sync.Once
)

// Default returns the process-wide metrics set, registering it with the
// default prometheus registry on first use. Safe for concurrent use.
func Default() *Set {
	defaultSetOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// New builds a Set and registers its collectors against reg. Passing a
// fresh prometheus.NewRegistry() is useful in tests that construct
// multiple Sets in one process.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		ConnectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lcm_connections_active",
			Help: "Number of currently live connections, by provider.",
		}, []string{"provider"}),
		MessagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lcm_messages_published_total",
			Help: "Total number of messages published, by provider.",
		}, []string{"provider"}),
		MessagesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lcm_messages_delivered_total",
			Help: "Total number of messages delivered to subscription callbacks, by provider.",
		}, []string{"provider"}),
		SubscriptionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lcm_subscriptions_active",
			Help: "Number of currently active subscriptions, by provider.",
		}, []string{"provider"}),
		QueueDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lcm_subscription_queue_dropped_total",
			Help: "Messages dropped because a subscription's delivery queue was full.",
		}, []string{"provider"}),
		FragmentBuffersOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lcm_udpm_fragment_buffers_open",
			Help: "Number of in-flight udpm fragment reassembly buffers.",
		}),
		FragmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lcm_udpm_fragments_dropped_total",
			Help: "udpm fragments dropped: out-of-order index, no open reassembly buffer, or an incomplete buffer expired.",
		}),
		HandshakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lcm_tcpq_handshake_failures_total",
			Help: "tcpq handshake attempts that failed.",
		}),
		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lcm_transport_errors_total",
			Help: "I/O errors observed on a connection's transport, by provider.",
		}, []string{"provider"}),
	}
}
