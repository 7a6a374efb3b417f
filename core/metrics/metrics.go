// Package metrics exposes Prometheus instrumentation for the bot runtime.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsbot"

// Collector records conversation, retrieval and transport counters.
type Collector struct {
	started      *prometheus.CounterVec
	ended        *prometheus.CounterVec
	validation   *prometheus.CounterVec
	documents    *prometheus.CounterVec
	evicted      prometheus.Counter
	fetchLatency *prometheus.HistogramVec
	fetchErrors  *prometheus.CounterVec
	rateLimited  prometheus.Counter
	updates      *prometheus.CounterVec

	sessions atomic.Pointer[func() int]
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_started_total",
			Help:      "Conversations started, by command.",
		}, []string{"command"}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_ended_total",
			Help:      "Conversations finished, by command and outcome.",
		}, []string{"command", "outcome"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Rejected replies, by conversation state.",
		}, []string{"state"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_sent_total",
			Help:      "News documents delivered, by format.",
		}, []string{"format"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "news_fetch_duration_seconds",
			Help:      "News retrieval latency, by request kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_fetch_errors_total",
			Help:      "Failed news retrievals, by request kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_handled_total",
			Help:      "Telegram updates handled, by handler and status.",
		}, []string{"handler", "status"}),
	}

	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Users currently inside a conversation.",
	}, func() float64 {
		if fn := c.sessions.Load(); fn != nil {
			return float64((*fn)())
		}
		return 0
	})

	reg.MustRegister(
		c.started,
		c.ended,
		c.validation,
		c.documents,
		c.evicted,
		c.fetchLatency,
		c.fetchErrors,
		c.rateLimited,
		c.updates,
		active,
	)
	return c
}

// TrackSessions sets the source of the active sessions gauge.
func (c *Collector) TrackSessions(fn func() int) {
	if fn == nil {
		return
	}
	c.sessions.Store(&fn)
}

func (c *Collector) ConversationStarted(flow string) {
	c.started.WithLabelValues(flow).Inc()
}

func (c *Collector) ConversationEnded(flow, outcome string) {
	c.ended.WithLabelValues(flow, outcome).Inc()
}

func (c *Collector) ValidationFailed(state string) {
	c.validation.WithLabelValues(state).Inc()
}

func (c *Collector) DocumentSent(format string) {
	c.documents.WithLabelValues(format).Inc()
}

func (c *Collector) SessionsEvicted(n int) {
	if n > 0 {
		c.evicted.Add(float64(n))
	}
}

// ObserveFetch records one news retrieval round trip.
func (c *Collector) ObserveFetch(kind string, took time.Duration, err error) {
	c.fetchLatency.WithLabelValues(kind).Observe(took.Seconds())
	if err != nil {
		c.fetchErrors.WithLabelValues(kind).Inc()
	}
}

// RateLimited counts an update rejected by the rate limiter.
func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// UpdateHandled counts a routed update by handler name and summary status.
func (c *Collector) UpdateHandled(handler, status string) {
	c.updates.WithLabelValues(handler, status).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
