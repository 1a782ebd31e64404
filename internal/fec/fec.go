// Package fec implements the systematic Reed-Solomon inner-stripe code over
// GF(2^8) used to protect stripes of K data chunks with M parity shards.
package fec

import (
	"errors"

	"github.com/klauspost/reedsolomon"

	"github.com/parxive/parx/internal/parxerr"
)

// Codec wraps a (K, M) Reed-Solomon configuration. Identical (K, M, data)
// always yield identical parity bytes (deterministic).
type Codec struct {
	k, m int
	rs   reedsolomon.Encoder
}

var errTooManyShards = errors.New("k+m exceeds 256 shards")

// New constructs a Codec for k data shards and m parity shards. It fails
// with KindBadConfig when k or m is non-positive or k+m > 256.
func New(k, m int) (*Codec, error) {
	const op = "fec.New"
	if k < 1 || m < 1 {
		return nil, parxerr.New(parxerr.KindBadConfig, op, errors.New("k and m must each be >= 1"))
	}
	if k+m > 256 {
		return nil, parxerr.New(parxerr.KindBadConfig, op, errTooManyShards)
	}
	rs, err := reedsolomon.New(k, m)
	if err != nil {
		return nil, parxerr.New(parxerr.KindBadConfig, op, err)
	}
	return &Codec{k: k, m: m, rs: rs}, nil
}

// K returns the configured data shard count.
func (c *Codec) K() int { return c.k }

// M returns the configured parity shard count.
func (c *Codec) M() int { return c.m }

// Encode fills shards[K:K+M] (the parity outputs) from shards[0:K] (the
// data inputs). All shards must have identical length.
func (c *Codec) Encode(shards [][]byte) error {
	const op = "fec.Encode"
	if len(shards) != c.k+c.m {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("shard count must equal k+m"))
	}
	if err := c.rs.Encode(shards); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	return nil
}

// Reconstruct fills any nil entries of shards in place, given at least K
// non-nil shards among the k+m total. It fails with KindInsufficientShards
// when fewer than K shards are present.
func (c *Codec) Reconstruct(shards [][]byte) error {
	const op = "fec.Reconstruct"
	if len(shards) != c.k+c.m {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("shard count must equal k+m"))
	}

	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < c.k {
		return parxerr.New(parxerr.KindInsufficientShards, op,
			errors.New("fewer than k shards available for reconstruction"))
	}

	if err := c.rs.Reconstruct(shards); err != nil {
		return parxerr.New(parxerr.KindInsufficientShards, op, err)
	}
	return nil
}
