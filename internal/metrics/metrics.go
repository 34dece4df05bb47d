// Package metrics holds the Prometheus collectors for sync runs and the
// /metrics exporter. All helpers are nil-safe so components can run unobserved.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tender_sync"

type Metrics struct {
	notices       *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	sourceDur     *prometheus.SummaryVec
	lastSuccessTS *prometheus.GaugeVec
	httpReqs      *prometheus.CounterVec
	geocode       *prometheus.CounterVec
	sinkWrites    *prometheus.CounterVec
	seenSkipped   prometheus.Counter
	runDur        prometheus.Summary
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "Notices seen per source and pipeline stage (found, relevant, emitted)",
		}, []string{"source", "stage"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Source fetches that returned an error or panicked",
		}, []string{"source"}),
		sourceDur: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Time spent fetching one source",
		}, []string{"source"}),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last error-free fetch",
		}, []string{"source"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests by host and status",
		}, []string{"host", "status"}),
		geocode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Geocode lookups by result (postcode, outcode, miss, error, cached)",
		}, []string{"result"}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_total",
			Help:      "Records pushed to each sink by status",
		}, []string{"sink", "status"}),
		seenSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seen_skipped_total",
			Help:      "Records dropped because they were delivered in an earlier run",
		}),
		runDur: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full sync run",
		}),
	}
	reg.MustRegister(
		m.notices, m.sourceErrors, m.sourceDur, m.lastSuccessTS,
		m.httpReqs, m.geocode, m.sinkWrites, m.seenSkipped, m.runDur,
	)
	return m
}

func (m *Metrics) Notices(source, stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.notices.WithLabelValues(source, stage).Add(float64(n))
}

func (m *Metrics) SourceDone(source string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.sourceDur.WithLabelValues(source).Observe(took.Seconds())
	if err != nil {
		m.sourceErrors.WithLabelValues(source).Inc()
		return
	}
	m.lastSuccessTS.WithLabelValues(source).SetToCurrentTime()
}

// HTTPRequest records one outbound request. code 0 means a transport error.
func (m *Metrics) HTTPRequest(host string, code int) {
	if m == nil {
		return
	}
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	m.httpReqs.WithLabelValues(host, status).Inc()
}

func (m *Metrics) Geocode(result string) {
	if m == nil {
		return
	}
	m.geocode.WithLabelValues(result).Inc()
}

func (m *Metrics) SinkWrite(sink string, n int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sinkWrites.WithLabelValues(sink, status).Add(float64(n))
}

func (m *Metrics) SeenSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.seenSkipped.Add(float64(n))
}

func (m *Metrics) RunDone(took time.Duration) {
	if m == nil {
		return
	}
	m.runDur.Observe(took.Seconds())
}
