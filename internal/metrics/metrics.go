// Package metrics defines the Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscriptionResults counts transcription request outcomes.
	// result: cache_hit, cached_error, in_flight, success, failed,
	// rate_limited, invalid, skipped.
	TranscriptionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt2txt_transcription_results_total",
		Help: "Transcription request outcomes.",
	}, []string{"result"})

	// ExternalCalls counts calls actually made to external collaborators.
	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt2txt_external_calls_total",
		Help: "Calls to external collaborators.",
	}, []string{"collaborator"})

	// ExternalCallDuration observes latency of external calls.
	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yt2txt_external_call_duration_seconds",
		Help:    "Latency of external collaborator calls.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"collaborator"})

	// StaleReclaimed counts processing rows reclaimed by the reconciler.
	StaleReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt2txt_stale_processing_reclaimed_total",
		Help: "Orphaned processing rows swept back to pending.",
	})

	// JobsPublished counts async transcription jobs published to the queue.
	JobsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt2txt_transcription_jobs_published_total",
		Help: "Async transcription jobs published to the broker.",
	})

	// JobsConsumed counts async transcription jobs consumed by the worker.
	JobsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt2txt_transcription_jobs_consumed_total",
		Help: "Async transcription jobs consumed by the worker.",
	}, []string{"outcome"})
)

// Collaborator label values.
const (
	CollaboratorDownloader  = "downloader"
	CollaboratorTranscriber = "transcriber"
	CollaboratorGenerator   = "generator"
)
