package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	KafkaPublish  *prometheus.CounterVec
	InventoryOps  *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}, []string{"route", "method", "status"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}, []string{"cache_type"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}, []string{"cache_type"}),
		KafkaPublish: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_publish_total",
			Help: "Total Kafka publish operations",
		}, []string{"topic", "status"}),
		InventoryOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_operations_total",
			Help: "Stock ledger operations by outcome",
		}, []string{"op", "result"}),
		Checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by outcome",
		}, []string{"result"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook events by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
