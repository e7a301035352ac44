// Package metrics exposes Prometheus collectors for the ingest and query paths.
//
// All recording methods are safe on a nil *Metrics so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "monexa"

type Metrics struct {
	registry *prometheus.Registry

	rowsIngested       *prometheus.CounterVec
	recordsCommitted   *prometheus.CounterVec
	duplicatesFlagged  prometheus.Counter
	queriesInterpreted *prometheus.CounterVec
	vocabularyWarmups  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rowsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Rows handed to a source adapter.",
		}, []string{"source"}),
		recordsCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_committed_total",
			Help:      "Canonical records written to the store.",
		}, []string{"source"}),
		duplicatesFlagged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_candidates_total",
			Help:      "Duplicate candidates reported by dedup previews.",
		}),
		queriesInterpreted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_interpreted_total",
			Help:      "Spending questions interpreted, by intent.",
		}, []string{"intent"}),
		vocabularyWarmups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vocabulary_warmups_total",
			Help:      "Scheduled keyword vocabulary refreshes.",
		}, []string{"result"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RowsIngested(source string, n int) {
	if m == nil {
		return
	}
	m.rowsIngested.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) RecordsCommitted(source string, n int) {
	if m == nil {
		return
	}
	m.recordsCommitted.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) DuplicatesFlagged(n int) {
	if m == nil {
		return
	}
	m.duplicatesFlagged.Add(float64(n))
}

func (m *Metrics) QueryInterpreted(intent string) {
	if m == nil {
		return
	}
	m.queriesInterpreted.WithLabelValues(intent).Inc()
}

func (m *Metrics) VocabularyWarmup(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.vocabularyWarmups.WithLabelValues(result).Inc()
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
