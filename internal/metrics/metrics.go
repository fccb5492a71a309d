// Package metrics registers the prometheus collectors shared by the trie
// store, block state, parallel executor and reserve-balance tracker.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the namespace-scoped collector set. A single Registry is
// constructed by the runloop and threaded into every component so that
// metric identity survives block-to-block component reconstruction.
type Registry struct {
	reg *prometheus.Registry

	MergeAttempts   prometheus.Counter
	MergeFailures   prometheus.Counter
	RetryCount      prometheus.Counter
	CircuitBreakerTrips prometheus.Counter

	BlockCommitSeconds prometheus.Histogram
	SlowBlockWarnings  prometheus.Counter

	TrieReadSeconds  prometheus.Histogram
	TrieWriteSeconds prometheus.Histogram
	TrieNodeCacheHits   prometheus.Counter
	TrieNodeCacheMisses prometheus.Counter

	ReserveViolations prometheus.Counter
	ReserveFailedSize prometheus.Gauge
}

// New creates a fresh Registry registered against its own prometheus
// registry (not the global default, so tests and multiple runloop
// instances in one process never collide).
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		MergeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "executor", Name: "merge_attempts_total",
			Help: "Total Block State merge attempts across all transactions.",
		}),
		MergeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "executor", Name: "merge_failures_total",
			Help: "Total merge attempts that failed can_merge and triggered a retry.",
		}),
		RetryCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "executor", Name: "retries_total",
			Help: "Total transaction re-executions caused by a failed merge.",
		}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "executor", Name: "circuit_breaker_trips_total",
			Help: "Blocks aborted because the retry circuit breaker was exceeded.",
		}),
		BlockCommitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "monad", Subsystem: "blockstate", Name: "commit_seconds",
			Help:    "Wall-clock time to execute a block and commit it to the Trie Store.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		SlowBlockWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "blockstate", Name: "slow_commit_total",
			Help: "Blocks whose execution plus commit exceeded the 500ms warning threshold.",
		}),
		TrieReadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "monad", Subsystem: "trie", Name: "read_seconds",
			Help:    "Latency of a single node read through the I/O ring.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		TrieWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "monad", Subsystem: "trie", Name: "write_seconds",
			Help:    "Latency of a single write-buffer flush through the I/O ring.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		TrieNodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "trie", Name: "node_cache_hits_total",
		}),
		TrieNodeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "trie", Name: "node_cache_misses_total",
		}),
		ReserveViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad", Subsystem: "reserve", Name: "violations_total",
			Help: "Transactions reverted post-execution by the Reserve-Balance Tracker.",
		}),
		ReserveFailedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "monad", Subsystem: "reserve", Name: "failed_set_size",
			Help: "Current size of the reserve-balance tracker's failed-account set.",
		}),
	}
	reg.MustRegister(
		r.MergeAttempts, r.MergeFailures, r.RetryCount, r.CircuitBreakerTrips,
		r.BlockCommitSeconds, r.SlowBlockWarnings,
		r.TrieReadSeconds, r.TrieWriteSeconds, r.TrieNodeCacheHits, r.TrieNodeCacheMisses,
		r.ReserveViolations, r.ReserveFailedSize,
	)
	return r
}

// Gatherer exposes the underlying prometheus registry for an HTTP /metrics
// handler wired up by the runloop.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
