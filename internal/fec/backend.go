package fec

import (
	"errors"

	"github.com/parxive/parx/internal/parxerr"
)

// StripeEncoder encodes one stripe's parity shards from its data shards.
// data has K entries, parityOut has M entries; every slice has equal length.
// Implementations must not retain references to data or parityOut after
// returning.
type StripeEncoder interface {
	EncodeStripe(data [][]byte, parityOut [][]byte) error
}

// CPUBackend is the default StripeEncoder, backed by a Codec.
type CPUBackend struct {
	codec *Codec
}

// NewCPUBackend constructs a CPUBackend for the given (k, m).
func NewCPUBackend(k, m int) (*CPUBackend, error) {
	codec, err := New(k, m)
	if err != nil {
		return nil, err
	}
	return &CPUBackend{codec: codec}, nil
}

// EncodeStripe fills parityOut from data using the wrapped Codec.
func (b *CPUBackend) EncodeStripe(data [][]byte, parityOut [][]byte) error {
	const op = "fec.CPUBackend.EncodeStripe"
	if len(data) != b.codec.k || len(parityOut) != b.codec.m {
		return parxerr.New(parxerr.KindBadConfig, op, errors.New("shard counts do not match backend configuration"))
	}

	shards := make([][]byte, b.codec.k+b.codec.m)
	copy(shards[:b.codec.k], data)
	copy(shards[b.codec.k:], parityOut)
	return b.codec.Encode(shards)
}

// NullGPUBackend is a placeholder for a GPU-accelerated StripeEncoder. No
// GPU toolchain is available in this build; it always reports unavailable
// rather than silently falling back, so callers can choose their own
// fallback policy instead of masking a misconfiguration.
type NullGPUBackend struct{}

var errGPUUnavailable = errors.New("gpu compute backend not built into this binary")

// EncodeStripe always fails with KindBadConfig; it does not fall back to
// CPUBackend.
func (NullGPUBackend) EncodeStripe(_ [][]byte, _ [][]byte) error {
	return parxerr.New(parxerr.KindBadConfig, "fec.NullGPUBackend.EncodeStripe", errGPUUnavailable)
}
