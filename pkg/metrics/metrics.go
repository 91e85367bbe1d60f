package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vscltools/faceitfinder/pkg/platforms"
)

const namespace = "faceitfinder"

type Metrics struct {
	Registry *prometheus.Registry

	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	ratingLookups   *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry. cacheSize, when not
// nil, is exported as a gauge.
func New(cacheSize func() int) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		Registry: reg,

		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Resolutions answered from the cache",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Resolutions that had to go to the network",
		}),
		ratingLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_lookups_total",
			Help:      "Rating service calls by service and result",
		}, []string{"service", "result"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Finished resolutions by terminal state",
		}, []string{"state"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Handled messages by action and success",
		}, []string{"action", "success"}),
		messageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Message handling time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	if cacheSize != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Fresh entries in the resolution cache",
		}, func() float64 { return float64(cacheSize()) })
	}
	return m
}

func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) RatingLookup(service platforms.Service, result string) {
	m.ratingLookups.WithLabelValues(string(service), result).Inc()
}

func (m *Metrics) Resolution(state string) {
	m.resolutions.WithLabelValues(state).Inc()
}

func (m *Metrics) Message(action string, success bool, took time.Duration) {
	ok := "false"
	if success {
		ok = "true"
	}
	m.messages.WithLabelValues(action, ok).Inc()
	m.messageDuration.WithLabelValues(action).Observe(took.Seconds())
}
