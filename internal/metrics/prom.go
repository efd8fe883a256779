package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "stompsock_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "client"},
		},
		[]string{"date", "sha", "version"},
	)

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stompsock_frames_sent_total",
			Help: "STOMP frames handed to the transport",
		},
		[]string{"command"},
	)

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stompsock_frames_received_total",
			Help: "STOMP frames parsed from inbound envelopes",
		},
		[]string{"command"},
	)

	envelopesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stompsock_envelopes_received_total",
			Help: "SockJS envelopes received, by kind",
		},
		[]string{"kind"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stompsock_errors_total",
			Help: "Errors reported to the delegate, by kind",
		},
		[]string{"kind"},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stompsock_active_subscriptions",
			Help: "Subscriptions currently registered on the session",
		},
	)

	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stompsock_sink_delivery_seconds",
			Help:    "Time spent delivering a message to a sink",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink", "outcome"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, framesSent, framesReceived, envelopesReceived, errorsTotal, activeSubscriptions, deliveryDuration)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordFrameSent increments the sent frame counter for a command.
func RecordFrameSent(command string) {
	framesSent.WithLabelValues(command).Inc()
}

// RecordFrameReceived increments the received frame counter for a command.
func RecordFrameReceived(command string) {
	framesReceived.WithLabelValues(command).Inc()
}

// RecordEnvelope increments the envelope counter for a kind.
func RecordEnvelope(kind string) {
	envelopesReceived.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter for a kind.
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}

// SetActiveSubscriptions sets the subscription gauge.
func SetActiveSubscriptions(n int) {
	activeSubscriptions.Set(float64(n))
}

// ObserveDelivery records how long a sink took to accept a message.
func ObserveDelivery(sink string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	deliveryDuration.WithLabelValues(sink, outcome).Observe(d.Seconds())
}
