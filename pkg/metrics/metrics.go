package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"node-pulse/pkg/model"
)

// Metrics holds the dashboard collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	checkDuration   *prometheus.HistogramVec
	checkResults    *prometheus.CounterVec
	checkTimeouts   *prometheus.CounterVec
	nodeStatus      *prometheus.GaugeVec
	collectDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "node_pulse_check_duration_seconds",
				Help:    "Duration of individual node checks",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service"},
		),
		checkResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "node_pulse_check_results_total",
				Help: "Check results by service and status",
			},
			[]string{"service", "status"},
		),
		checkTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "node_pulse_check_timeouts_total",
				Help: "Checks that exceeded their deadline",
			},
			[]string{"service"},
		),
		nodeStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "node_pulse_node_status",
				Help: "Overall node status of the latest snapshot (1=OK, 2=WARN, 3=FAIL)",
			},
			[]string{"node"},
		),
		collectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "node_pulse_collect_duration_seconds",
				Help:    "Duration of full fleet collections",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "node_pulse_cache_lookups_total",
				Help: "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "node_pulse_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	reg.MustRegister(
		m.checkDuration,
		m.checkResults,
		m.checkTimeouts,
		m.nodeStatus,
		m.collectDuration,
		m.cacheLookups,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) ObserveCheck(service model.ServiceName, status model.Status, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(string(service)).Observe(d.Seconds())
	m.checkResults.WithLabelValues(string(service), status.String()).Inc()
	if timedOut {
		m.checkTimeouts.WithLabelValues(string(service)).Inc()
	}
}

func (m *Metrics) ObserveSnapshot(s model.NodeSnapshot) {
	if m == nil {
		return
	}
	m.nodeStatus.WithLabelValues(s.Node.Name).Set(float64(s.OverallStatus))
}

func (m *Metrics) ObserveCollect(d time.Duration) {
	if m == nil {
		return
	}
	m.collectDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
