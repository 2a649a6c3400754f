package router

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the router daemon's Prometheus instrumentation. They use
// the default registerer, so a single process can only host one Server
// — the router daemon is deployed one per host.
var (
	framesFannedOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "horus",
		Subsystem: "router",
		Name:      "frames_fanned_out_total",
		Help:      "Frames delivered to subscribers, by topic.",
	}, []string{"topic"})

	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "horus",
		Subsystem: "router",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because a subscriber's outbound queue was full, by topic.",
	}, []string{"topic"})

	subscribersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "horus",
		Subsystem: "router",
		Name:      "subscribers",
		Help:      "Currently connected subscribers, by topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(framesFannedOut, framesDropped, subscribersGauge)
}
