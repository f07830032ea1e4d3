// internal/engine/metrics.go
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds Prometheus metrics for the filter-matching engine.
type engineMetrics struct {
	eventsTotal     prometheus.Counter
	matchesTotal    prometheus.Counter
	evaluations     prometheus.Counter       // matcher invocations (cache misses only)
	faults          *prometheus.CounterVec   // by profile_id and reason (panic/timeout)
	degradedEvents  prometheus.Counter       // events that hit the overall deadline
	inconsistencies prometheus.Counter       // index entries with no matcher
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	candidateCount  prometheus.Histogram
	evalDuration    prometheus.Histogram
	profilesActive  prometheus.Gauge
}

// newEngineMetrics creates and registers engine metrics with the provided
// registry. A nil registry disables metrics.
func newEngineMetrics(registry prometheus.Registerer) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &engineMetrics{
		eventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Total number of events processed",
		}),
		matchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "matches_total",
			Help:      "Total number of profile matches emitted",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "evaluations_total",
			Help:      "Total number of candidate matcher invocations",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "evaluation_faults_total",
			Help:      "Matcher invocations that panicked or timed out",
		}, []string{"profile_id", "reason"}), // reason: panic, timeout
		degradedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "degraded_evaluations_total",
			Help:      "Events whose evaluation was cut short by the overall deadline",
		}),
		inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "index_inconsistencies_total",
			Help:      "Candidate index entries with no corresponding matcher",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Match cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Match cache misses",
		}),
		candidateCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "candidates_per_event",
			Help:      "Candidate set size after index pruning",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall-clock time to evaluate one event's candidate set",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		profilesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "killwatch",
			Subsystem: "engine",
			Name:      "profiles_active",
			Help:      "Number of enabled, compiled profiles",
		}),
	}

	collectors := []prometheus.Collector{
		m.eventsTotal, m.matchesTotal, m.evaluations, m.faults,
		m.degradedEvents, m.inconsistencies, m.cacheHits, m.cacheMisses,
		m.candidateCount, m.evalDuration, m.profilesActive,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Nil-safe increment helpers so the hot path never branches on metrics
// being enabled.

func (m *engineMetrics) incEvents() {
	if m != nil {
		m.eventsTotal.Inc()
	}
}

func (m *engineMetrics) addMatches(n int) {
	if m != nil {
		m.matchesTotal.Add(float64(n))
	}
}

func (m *engineMetrics) incEvaluations() {
	if m != nil {
		m.evaluations.Inc()
	}
}

func (m *engineMetrics) incFault(profileID, reason string) {
	if m != nil {
		m.faults.WithLabelValues(profileID, reason).Inc()
	}
}

func (m *engineMetrics) incDegraded() {
	if m != nil {
		m.degradedEvents.Inc()
	}
}

func (m *engineMetrics) incInconsistency() {
	if m != nil {
		m.inconsistencies.Inc()
	}
}

func (m *engineMetrics) incCacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *engineMetrics) incCacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *engineMetrics) observeCandidates(n int) {
	if m != nil {
		m.candidateCount.Observe(float64(n))
	}
}

func (m *engineMetrics) observeEvalDuration(seconds float64) {
	if m != nil {
		m.evalDuration.Observe(seconds)
	}
}

func (m *engineMetrics) setProfiles(n int) {
	if m != nil {
		m.profilesActive.Set(float64(n))
	}
}
