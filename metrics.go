package pcap

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pcapfilter"

// Metrics counters for compiling, installing and matching filters. A nil
// *Metrics records nothing.
type Metrics struct {
	compiles     *prometheus.CounterVec
	installs     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	livePrograms prometheus.Gauge
}

// NewMetrics create the metrics and register them with reg, if it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		compiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "compiles_total",
				Help:      "Filter compilations by mode (bound or unbound) and result",
			},
			[]string{"mode", "result"},
		),
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "installs_total",
				Help:      "Filter installations onto a live device by result",
			},
			[]string{"result"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_lookups_total",
				Help:      "Offline evaluator cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		livePrograms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "live_programs",
				Help:      "Compiled filter programs not yet released",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.compiles, m.installs, m.cacheLookups, m.livePrograms)
	}
	return m
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) compiled(mode string, err error) {
	if m == nil {
		return
	}
	m.compiles.WithLabelValues(mode, result(err)).Inc()
}

func (m *Metrics) installed(err error) {
	if m == nil {
		return
	}
	m.installs.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) programCreated() {
	if m == nil {
		return
	}
	m.livePrograms.Inc()
}

func (m *Metrics) programReleased() {
	if m == nil {
		return
	}
	m.livePrograms.Dec()
}
