package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the parx CLI and its pipelines.
type Metrics struct {
	// Run metrics (encode/verify/audit/repair invocations)
	RunsTotal       *prometheus.CounterVec
	RunsActive      prometheus.Gauge
	RunDuration     *prometheus.HistogramVec
	BytesProcessed  *prometheus.CounterVec
	ChunksHashed    prometheus.Counter
	ChunksMismatch  prometheus.Counter

	// Stripe/parity metrics
	StripesEncodedTotal   prometheus.Counter
	ShardsWrittenTotal    *prometheus.CounterVec
	InnerParityShards     prometheus.Gauge
	OuterParityShards     prometheus.Gauge
	ReconstructionsTotal  prometheus.Counter
	ReconstructFailsTotal prometheus.Counter

	// Integrity metrics
	MerkleVerificationsTotal *prometheus.CounterVec

	// Storage/volume metrics
	VolumeWriteDuration  prometheus.Histogram
	LockContentionsTotal prometheus.Counter
	ParityDirBytes       prometheus.Gauge

	activeRuns int64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parx_runs_total",
				Help: "Total pipeline runs by command and status",
			},
			[]string{"command", "status"},
		),

		RunsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "parx_runs_active",
				Help: "Currently active pipeline runs",
			},
		),

		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parx_run_duration_seconds",
				Help:    "Pipeline run completion time distribution",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"command"},
		),

		BytesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parx_bytes_processed_total",
				Help: "Total bytes read from source files during encode or verify",
			},
			[]string{"command"},
		),

		ChunksHashed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_chunks_hashed_total",
				Help: "Total chunks hashed",
			},
		),

		ChunksMismatch: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_chunks_mismatch_total",
				Help: "Chunks whose recomputed hash did not match the manifest",
			},
		),

		StripesEncodedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_stripes_encoded_total",
				Help: "Total stripes RS-encoded",
			},
		),

		ShardsWrittenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parx_shards_written_total",
				Help: "Parity shards appended to volumes",
			},
			[]string{"kind"}, // inner|outer
		),

		InnerParityShards: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "parx_inner_parity_shards",
				Help: "Configured inner parity shard count (M) for the current run",
			},
		),

		OuterParityShards: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "parx_outer_parity_shards",
				Help: "Configured outer parity shard count for the current run",
			},
		),

		ReconstructionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_reconstructions_total",
				Help: "Stripes successfully reconstructed via Reed-Solomon during repair",
			},
		),

		ReconstructFailsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_reconstruction_failures_total",
				Help: "Stripe reconstructions that failed for lack of shards",
			},
		),

		MerkleVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parx_merkle_verifications_total",
				Help: "Merkle root verifications by result",
			},
			[]string{"result"},
		),

		VolumeWriteDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "parx_volume_write_duration_seconds",
				Help:    "Per-volume finalize latency",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		LockContentionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parx_lock_contentions_total",
				Help: "Failed advisory lock acquisitions on volumes or the repair lock",
			},
		),

		ParityDirBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "parx_parity_dir_bytes",
				Help: "Total parity shard bytes indexed across the parity directory's volumes",
			},
		),
	}

	return m
}

// RecordRunStart increments active-run counters.
func (m *Metrics) RecordRunStart() {
	atomic.AddInt64(&m.activeRuns, 1)
	m.RunsActive.Set(float64(atomic.LoadInt64(&m.activeRuns)))
}

// RecordRunComplete records a pipeline run's completion.
func (m *Metrics) RecordRunComplete(command string, success bool, durationSeconds float64) {
	atomic.AddInt64(&m.activeRuns, -1)
	m.RunsActive.Set(float64(atomic.LoadInt64(&m.activeRuns)))

	status := "success"
	if !success {
		status = "failure"
	}

	m.RunsTotal.WithLabelValues(command, status).Inc()
	m.RunDuration.WithLabelValues(command).Observe(durationSeconds)
}

// RecordChunkHashed updates metrics for chunks hashed during encode or verify.
func (m *Metrics) RecordChunkHashed(command string, chunks uint64, bytes uint64) {
	m.ChunksHashed.Add(float64(chunks))
	m.BytesProcessed.WithLabelValues(command).Add(float64(bytes))
}

// RecordChunkMismatch increments the chunk-mismatch counter.
func (m *Metrics) RecordChunkMismatch() {
	m.ChunksMismatch.Inc()
}

// RecordStripeEncoded updates stripe/shard counters for one completed stripe.
func (m *Metrics) RecordStripeEncoded(innerShards, outerShards int) {
	m.StripesEncodedTotal.Inc()
	m.ShardsWrittenTotal.WithLabelValues("inner").Add(float64(innerShards))
	if outerShards > 0 {
		m.ShardsWrittenTotal.WithLabelValues("outer").Add(float64(outerShards))
	}
}

// SetParityShardCounts records the configured inner/outer parity shard counts.
func (m *Metrics) SetParityShardCounts(inner, outer int) {
	m.InnerParityShards.Set(float64(inner))
	m.OuterParityShards.Set(float64(outer))
}

// RecordReconstruction updates reconstruction counters for one stripe repair attempt.
func (m *Metrics) RecordReconstruction(success bool) {
	if success {
		m.ReconstructionsTotal.Inc()
	} else {
		m.ReconstructFailsTotal.Inc()
	}
}

// RecordMerkleVerification increments Merkle verification counters.
func (m *Metrics) RecordMerkleVerification(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.MerkleVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordLockContention increments the lock-contention counter.
func (m *Metrics) RecordLockContention() {
	m.LockContentionsTotal.Inc()
}

// SetParityDirBytes records the total indexed parity shard bytes across the
// parity directory's volumes.
func (m *Metrics) SetParityDirBytes(bytes int64) {
	m.ParityDirBytes.Set(float64(bytes))
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
