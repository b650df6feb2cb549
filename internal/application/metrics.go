package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysisWrites counts record writes by analysis type and operation.
	AnalysisWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionlens",
		Name:      "analysis_writes_total",
		Help:      "Analysis record writes by type and operation.",
	}, []string{"type", "op"})

	// DecodeFailures counts stored fields that could not be decoded on read.
	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionlens",
		Name:      "analysis_decode_failures_total",
		Help:      "Stored analysis fields presented as absent because they failed to decode.",
	}, []string{"field"})

	// ClassifierCalls counts classifier attempts by outcome: ok, error, quota, malformed.
	ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionlens",
		Name:      "classifier_attempts_total",
		Help:      "Classifier attempts by outcome.",
	}, []string{"outcome"})

	// DegradedPairs counts (session, topic) pairs that exhausted their attempts.
	DegradedPairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionlens",
		Name:      "classification_degraded_pairs_total",
		Help:      "Session/topic pairs reported empty because every classifier attempt failed.",
	})

	// PersistenceWarnings counts per-session save failures inside a batch.
	PersistenceWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionlens",
		Name:      "classification_persistence_warnings_total",
		Help:      "Per-session search saves that failed without failing the batch.",
	})

	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sessionlens",
		Name:      "classifier_call_duration_seconds",
		Help:      "Latency of single classifier attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
