package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithRun adds run_id context to logger, scoping subsequent log lines to
// one encode/verify/audit/repair invocation.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("run_id", runID).Logger(),
	}
}

// WithVolume adds parity volume path context to logger.
func (l *Logger) WithVolume(path string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("volume", path).Logger(),
	}
}

// WithFile adds file context to logger.
func (l *Logger) WithFile(relPath string, fileSize int64) *Logger {
	return &Logger{
		logger: l.logger.With().
			Str("rel_path", relPath).
			Int64("file_size", fileSize).
			Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// EncodeStarted logs the start of an encode run.
func (l *Logger) EncodeStarted(root string, fileCount int, chunkSize, stripeK, parityPct int) {
	l.logger.Info().
		Str("root", root).
		Int("file_count", fileCount).
		Int("chunk_size", chunkSize).
		Int("stripe_k", stripeK).
		Int("parity_pct", parityPct).
		Msg("encode started")
}

// StripeEncoded logs one completed stripe's RS encode, at debug level since
// it fires once per stripe.
func (l *Logger) StripeEncoded(stripe uint32, parityShards int) {
	l.logger.Debug().
		Uint32("stripe", stripe).
		Int("parity_shards", parityShards).
		Msg("stripe encoded")
}

// EncodeCompleted logs encode completion.
func (l *Logger) EncodeCompleted(totalChunks uint64, totalBytes uint64, duration time.Duration) {
	l.logger.Info().
		Uint64("total_chunks", totalChunks).
		Uint64("total_bytes", totalBytes).
		Float64("duration_seconds", duration.Seconds()).
		Msg("encode completed")
}

// VerifyCompleted logs a verify run's outcome.
func (l *Logger) VerifyCompleted(chunksOK, chunksBad uint64, merkleOK bool, duration time.Duration) {
	l.logger.Info().
		Uint64("chunks_ok", chunksOK).
		Uint64("chunks_bad", chunksBad).
		Bool("merkle_ok", merkleOK).
		Float64("duration_seconds", duration.Seconds()).
		Msg("verify completed")
}

// ChunkMismatch logs a single bad chunk (hash mismatch or unreadable)
// detected during verify.
func (l *Logger) ChunkMismatch(relPath string, globalIdx uint64) {
	l.logger.Warn().
		Str("rel_path", relPath).
		Uint64("global_idx", globalIdx).
		Msg("chunk hash mismatch")
}

// StripeReconstructFailed logs a stripe repair attempt that fell short of
// the shards needed for reconstruction.
func (l *Logger) StripeReconstructFailed(stripe uint32, err error) {
	l.logger.Error().
		Uint32("stripe", stripe).
		Err(err).
		Msg("stripe reconstruction failed")
}

// RepairCompleted logs a repair run's outcome.
func (l *Logger) RepairCompleted(repairedChunks, failedChunks uint64, duration time.Duration) {
	l.logger.Info().
		Uint64("repaired_chunks", repairedChunks).
		Uint64("failed_chunks", failedChunks).
		Float64("duration_seconds", duration.Seconds()).
		Msg("repair completed")
}

// VolumeLockContended logs a failed fail-fast advisory lock acquisition on
// a parity volume or the repair lock file.
func (l *Logger) VolumeLockContended(path string) {
	l.logger.Warn().
		Str("path", path).
		Msg("volume lock contended")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
