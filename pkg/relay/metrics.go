package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// collector holds the relay's Prometheus metrics. Each Server carries its
// own registry so tests can run several relays in one process.
type collector struct {
	registry *prometheus.Registry

	clientsConnected prometheus.Gauge
	streamsActive    prometheus.Gauge
	framesRelayed    prometheus.Counter
	bytesRelayed     prometheus.Counter
	clientsDropped   prometheus.Counter
}

func newCollector() *collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &collector{
		registry: reg,

		clientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telecam_relay_clients_connected",
			Help: "Number of currently registered clients",
		}),
		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telecam_relay_streams_active",
			Help: "Number of stream ids with a registered streamer",
		}),
		framesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecam_relay_frames_relayed_total",
			Help: "Total frames routed from streamers to viewers",
		}),
		bytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecam_relay_bytes_relayed_total",
			Help: "Total frame bytes routed from streamers to viewers",
		}),
		clientsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecam_relay_slow_clients_dropped_total",
			Help: "Viewers disconnected because their send buffer overflowed",
		}),
	}
}
