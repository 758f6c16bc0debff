package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// requests
	CounterRequests           *prometheus.CounterVec
	CounterHandleRequestPanic prometheus.Counter
	GaugeRequests             prometheus.Gauge
	HistRequestDuration       *prometheus.HistogramVec

	// cache
	CounterCacheHits        *prometheus.CounterVec
	CounterCacheMisses      *prometheus.CounterVec
	CounterCacheFetches     *prometheus.CounterVec
	CounterCacheOptimistic  *prometheus.CounterVec
	CounterCacheRollbacks   *prometheus.CounterVec
	CounterCacheRevalidated *prometheus.CounterVec

	// workouts
	CounterWorkoutsSaved        prometheus.Counter
	CounterWorkoutsDeleted      prometheus.Counter
	CounterWorkoutPartialWrites prometheus.Counter
}

func NewTestManager() *Manager {
	return NewManager("fittrack", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fittrack", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Manager{
		CounterRequests:           counterVec("request", "The total number of incoming requests", "method", "status"),
		CounterHandleRequestPanic: counter("handle_request_panic", "The total number of serve request panics"),
		GaugeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_requests",
			Help:      "Current number of requests served",
		}),
		HistRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		}, []string{"route"}),

		CounterCacheHits:        counterVec("cache_hits", "Cache reads served without a fetch", "kind"),
		CounterCacheMisses:      counterVec("cache_misses", "Cache reads that needed a fetch", "kind"),
		CounterCacheFetches:     counterVec("cache_fetches", "Fetches actually issued after coalescing", "kind"),
		CounterCacheOptimistic:  counterVec("cache_optimistic_applies", "Optimistic updates applied", "kind"),
		CounterCacheRollbacks:   counterVec("cache_rollbacks", "Optimistic updates rolled back", "kind"),
		CounterCacheRevalidated: counterVec("cache_revalidations", "Entries re-fetched after a mutation", "kind"),

		CounterWorkoutsSaved:        counter("workouts_saved", "Workouts saved"),
		CounterWorkoutsDeleted:      counter("workouts_deleted", "Workouts deleted"),
		CounterWorkoutPartialWrites: counter("workout_partial_writes", "Workout saves that failed after the workout row was written"),
	}
}
