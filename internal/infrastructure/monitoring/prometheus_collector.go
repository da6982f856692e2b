package monitoring

import (
	"perch/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	channelUp           prometheus.Gauge
	availableCameras    prometheus.Gauge
	activeMediaSessions prometheus.Gauge

	// Counters
	pairingAttemptsTotal  *prometheus.CounterVec
	reconnectsTotal       *prometheus.CounterVec
	channelEventsTotal    *prometheus.CounterVec
	stateTransitionsTotal *prometheus.CounterVec

	// Histograms
	pairingDuration *prometheus.HistogramVec
	connectDuration prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		channelUp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "perch_channel_up",
			Help: "Whether the control channel is currently connected (1) or not (0)",
		}),

		availableCameras: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "perch_available_cameras",
			Help: "Number of cameras currently visible to the viewer",
		}),

		activeMediaSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "perch_active_media_sessions",
			Help: "Number of active media sessions",
		}),

		pairingAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_pairing_attempts_total",
			Help: "Total number of pairing attempts by method and outcome",
		}, []string{"method", "outcome"}),

		reconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_reconnects_total",
			Help: "Total number of scheduled channel reconnects",
		}, []string{"trigger"}),

		channelEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_channel_events_total",
			Help: "Total number of control channel messages by direction and type",
		}, []string{"direction", "type"}),

		stateTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_session_state_transitions_total",
			Help: "Total number of session state transitions",
		}, []string{"from", "to"}),

		pairingDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perch_pairing_duration_seconds",
			Help:    "Duration of pairing attempts including the confirm round-trip",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"method"}),

		connectDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "perch_connect_duration_seconds",
			Help:    "Duration of successful connect and reconnect operations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

func (p *PrometheusCollector) SetChannelUp(up bool) {
	if up {
		p.channelUp.Set(1)
	} else {
		p.channelUp.Set(0)
	}
}

func (p *PrometheusCollector) SetAvailableCameras(n int) {
	p.availableCameras.Set(float64(n))
}

func (p *PrometheusCollector) SetActiveMediaSessions(n int) {
	p.activeMediaSessions.Set(float64(n))
}

func (p *PrometheusCollector) RecordPairingAttempt(method domain.PairingMethod, outcome string) {
	p.pairingAttemptsTotal.WithLabelValues(string(method), outcome).Inc()
}

func (p *PrometheusCollector) RecordPairingDuration(method domain.PairingMethod, seconds float64) {
	p.pairingDuration.WithLabelValues(string(method)).Observe(seconds)
}

func (p *PrometheusCollector) RecordConnectDuration(seconds float64) {
	p.connectDuration.Observe(seconds)
}

func (p *PrometheusCollector) RecordReconnectScheduled(attempt int, delaySeconds float64) {
	// Attempt 0 is the first schedule after a drop; later attempts are
	// retries of a reconnect that failed.
	trigger := "drop"
	if attempt > 0 {
		trigger = "retry"
	}
	p.reconnectsTotal.WithLabelValues(trigger).Inc()
}

func (p *PrometheusCollector) RecordChannelMessage(direction, messageType string) {
	p.channelEventsTotal.WithLabelValues(direction, messageType).Inc()
}

func (p *PrometheusCollector) RecordStateTransition(from, to domain.ConnectionStatus) {
	p.stateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
