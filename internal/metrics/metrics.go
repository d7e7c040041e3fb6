package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for policy delivery and reporting.
type Metrics struct {
	HeadersEmitted      *prometheus.CounterVec
	UnsupportedBrowsers prometheus.Counter
	PolicyErrors        prometheus.Counter
	ViolationReports    *prometheus.CounterVec
	DuplicateReports    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HeadersEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csp_headers_emitted_total",
				Help: "Number of CSP headers set on responses, by header name",
			},
			[]string{"header"},
		),
		UnsupportedBrowsers: factory.NewCounter(prometheus.CounterOpts{
			Name: "csp_unsupported_browsers_total",
			Help: "Responses sent without a CSP header (unsupported browser or empty policy)",
		}),
		PolicyErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "csp_policy_errors_total",
			Help: "Policy builds that failed validation",
		}),
		ViolationReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csp_violation_reports_total",
				Help: "Accepted CSP violation reports, by effective directive",
			},
			[]string{"directive"},
		),
		DuplicateReports: factory.NewCounter(prometheus.CounterOpts{
			Name: "csp_violation_reports_duplicate_total",
			Help: "Violation reports dropped as duplicates",
		}),
		gatherer: gatherer,
	}
}

// RecordHeaders counts the headers set on one response.
func (m *Metrics) RecordHeaders(names []string) {
	if len(names) == 0 {
		m.UnsupportedBrowsers.Inc()
		return
	}
	for _, name := range names {
		m.HeadersEmitted.WithLabelValues(name).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
