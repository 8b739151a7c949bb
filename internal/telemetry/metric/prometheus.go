package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokdrop"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Access gate
	GateDecisions *prometheus.CounterVec

	// Batches and links
	Uploads            prometheus.Counter
	LinksIssued        prometheus.Counter
	ShortenerFallbacks prometheus.Counter

	// Delivery
	Deliveries           *prometheus.CounterVec
	RetractionsScheduled prometheus.Counter
	RetractionsDone      *prometheus.CounterVec
	RetractionsPending   prometheus.Gauge

	// Bot surface
	UpdatesTotal      *prometheus.CounterVec
	APIRequestSeconds *prometheus.HistogramVec

	// Ops HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus every TokDrop metric.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,

		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Access gate decisions by result.",
		}, []string{"result"}),

		Uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Files appended to open batches.",
		}),
		LinksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_issued_total",
			Help:      "Batches finalized into links.",
		}),
		ShortenerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortener_fallbacks_total",
			Help:      "Links published unshortened because the shortener failed.",
		}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-file delivery attempts by outcome.",
		}, []string{"outcome"}),
		RetractionsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retractions_scheduled_total",
			Help:      "Message deletions scheduled.",
		}),
		RetractionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retractions_total",
			Help:      "Message deletions attempted by outcome.",
		}, []string{"outcome"}),
		RetractionsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retractions_pending",
			Help:      "Message deletions waiting for their timer.",
		}),

		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Bot updates handled by command.",
		}, []string{"command"}),
		APIRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_request_duration_seconds",
			Help:      "Telegram Bot API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Ops requests by protocol, method and status.",
		}, []string{"protocol", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Ops request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol", "method"}),
	}

	reg.MustRegister(
		r.GateDecisions,
		r.Uploads,
		r.LinksIssued,
		r.ShortenerFallbacks,
		r.Deliveries,
		r.RetractionsScheduled,
		r.RetractionsDone,
		r.RetractionsPending,
		r.UpdatesTotal,
		r.APIRequestSeconds,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Registerer exposes the underlying registry for components that own
// their collectors (the badger engine, the store collector).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordGateDecision counts an access gate outcome.
func (r *Registry) RecordGateDecision(result string) {
	if r == nil {
		return
	}
	r.GateDecisions.WithLabelValues(result).Inc()
}

// IncUploads counts a file appended to a batch.
func (r *Registry) IncUploads() {
	if r == nil {
		return
	}
	r.Uploads.Inc()
}

// IncLinksIssued counts a published link.
func (r *Registry) IncLinksIssued() {
	if r == nil {
		return
	}
	r.LinksIssued.Inc()
}

// IncShortenerFallback counts a link published without shortening.
func (r *Registry) IncShortenerFallback() {
	if r == nil {
		return
	}
	r.ShortenerFallbacks.Inc()
}

// RecordDelivery counts one file delivery attempt ("sent", "unavailable", "send_failed").
func (r *Registry) RecordDelivery(outcome string) {
	if r == nil {
		return
	}
	r.Deliveries.WithLabelValues(outcome).Inc()
}

// IncRetractionScheduled counts a scheduled deletion.
func (r *Registry) IncRetractionScheduled() {
	if r == nil {
		return
	}
	r.RetractionsScheduled.Inc()
}

// RecordRetraction counts an attempted deletion ("deleted", "failed").
func (r *Registry) RecordRetraction(outcome string) {
	if r == nil {
		return
	}
	r.RetractionsDone.WithLabelValues(outcome).Inc()
}

// SetRetractionsPending sets the pending deletion gauge.
func (r *Registry) SetRetractionsPending(n int) {
	if r == nil {
		return
	}
	r.RetractionsPending.Set(float64(n))
}

// RecordUpdate counts a handled bot update.
func (r *Registry) RecordUpdate(command string) {
	if r == nil {
		return
	}
	r.UpdatesTotal.WithLabelValues(command).Inc()
}

// ObserveAPIRequest records one Bot API call.
func (r *Registry) ObserveAPIRequest(method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.APIRequestSeconds.WithLabelValues(method, status).Observe(d.Seconds())
}

// RecordRequest counts an ops request.
func (r *Registry) RecordRequest(protocol, method, status string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(protocol, method, status).Inc()
}

// ObserveRequestDuration records ops request latency in seconds.
func (r *Registry) ObserveRequestDuration(protocol, method string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(protocol, method).Observe(seconds)
}
