package amcodec

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for hardware decode. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	packetsTotal       prometheus.Counter
	bufferedTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	picturesTotal      prometheus.Counter
	sequenceChanges    *prometheus.CounterVec
	opensTotal         *prometheus.CounterVec
	inflightHandles    prometheus.Gauge
	handlesInvalidated prometheus.Counter
}

// NewMetrics creates and registers the decoder metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		packetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amcodec_packets_total",
			Help: "Total number of packets passed to Decode",
		}),
		bufferedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amcodec_packets_buffered_total",
			Help: "Packets held back while waiting for a keyframe",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amcodec_decode_errors_total",
			Help: "Decode calls that returned an error status",
		}),
		picturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amcodec_pictures_total",
			Help: "Pictures returned by GetPicture",
		}),
		sequenceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amcodec_sequence_changes_total",
			Help: "In-band sequence header changes by codec family",
		}, []string{"family"}),
		opensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amcodec_opens_total",
			Help: "Decoder opens by codec and result",
		}, []string{"codec", "result"}),
		inflightHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amcodec_inflight_handles",
			Help: "Picture handles minted and not yet released",
		}),
		handlesInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amcodec_handles_invalidated_total",
			Help: "Outstanding handles cut loose by decoder teardown",
		}),
	}

	registry.MustRegister(
		m.packetsTotal,
		m.bufferedTotal,
		m.errorsTotal,
		m.picturesTotal,
		m.sequenceChanges,
		m.opensTotal,
		m.inflightHandles,
		m.handlesInvalidated,
	)
	return m
}

func (m *Metrics) incPackets() {
	if m != nil {
		m.packetsTotal.Inc()
	}
}

func (m *Metrics) incBuffered() {
	if m != nil {
		m.bufferedTotal.Inc()
	}
}

func (m *Metrics) incErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

func (m *Metrics) incPictures() {
	if m != nil {
		m.picturesTotal.Inc()
	}
}

func (m *Metrics) incSequenceChange(family string) {
	if m != nil {
		m.sequenceChanges.WithLabelValues(family).Inc()
	}
}

func (m *Metrics) incOpen(codec CodecID, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.opensTotal.WithLabelValues(codec.String(), result).Inc()
}

func (m *Metrics) addInflight(delta int) {
	if m != nil {
		m.inflightHandles.Add(float64(delta))
	}
}

func (m *Metrics) addInvalidated(n int) {
	if m != nil {
		m.handlesInvalidated.Add(float64(n))
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler that serves the decoder metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
