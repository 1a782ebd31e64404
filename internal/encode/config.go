package encode

import (
	"errors"

	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/parxerr"
)

// Config holds the early-validated parameters of one encode run.
type Config struct {
	ChunkSize   int
	StripeK     int
	ParityPct   int
	Volumes     int
	OuterGroup  int
	OuterParity int
	Ordering    string // manifest.OrderingSequential | manifest.OrderingInterleaved
}

// Validate applies §4.8's early validation: chunk_size>0, K>0,
// parity_pct in [0,100], volumes in [1,256], K+M in [1,256].
func (c Config) Validate() error {
	const op = "encode.Config.Validate"
	if c.ChunkSize <= 0 {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("chunk_size must be > 0"))
	}
	if c.StripeK <= 0 {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("stripe_k must be > 0"))
	}
	if c.ParityPct < 0 || c.ParityPct > 100 {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("parity_pct must be in [0,100]"))
	}
	if c.Volumes < 1 || c.Volumes > 256 {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("volumes must be in [1,256]"))
	}
	m := ComputeM(c.StripeK, c.ParityPct)
	if c.StripeK+m < 1 || c.StripeK+m > 256 {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("k+m must be in [1,256]"))
	}
	switch c.Ordering {
	case "", manifest.OrderingSequential, manifest.OrderingInterleaved:
	default:
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("ordering must be sequential or interleaved"))
	}
	return nil
}

// ComputeM derives M per invariant M1; see manifest.ComputeM.
func ComputeM(k, parityPct int) int {
	return manifest.ComputeM(k, parityPct)
}
