package fec

import (
	"bytes"
	"testing"
)

func TestFEC_EncodeDecode(t *testing.T) {
	k, m := 8, 2
	shards := make([][]byte, k+m)

	for i := 0; i < k; i++ {
		shards[i] = make([]byte, 1024)
		for j := range shards[i] {
			shards[i][j] = byte(i)
		}
	}

	codec, err := New(k, m)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}

	for i := k; i < k+m; i++ {
		shards[i] = make([]byte, 1024)
	}
	if err := codec.Encode(shards); err != nil {
		t.Fatalf("Encoding failed: %v", err)
	}

	original := make([][]byte, k)
	for i := 0; i < k; i++ {
		original[i] = append([]byte(nil), shards[i]...)
	}

	// Mark shards 3 and 7 as lost.
	shards[3] = nil
	shards[7] = nil

	if err := codec.Reconstruct(shards); err != nil {
		t.Fatalf("Reconstruction failed: %v", err)
	}

	if !bytes.Equal(shards[3], original[3]) {
		t.Error("Reconstructed shard 3 does not match original")
	}
	if !bytes.Equal(shards[7], original[7]) {
		t.Error("Reconstructed shard 7 does not match original")
	}
}

func TestFEC_TooManyLost(t *testing.T) {
	k, m := 8, 2
	shards := make([][]byte, k+m)
	for i := range shards {
		shards[i] = make([]byte, 1024)
	}

	codec, _ := New(k, m)
	if err := codec.Encode(shards); err != nil {
		t.Fatalf("Encoding failed: %v", err)
	}

	// Mark 3 shards as lost (more than m=2).
	shards[1] = nil
	shards[3] = nil
	shards[7] = nil

	if err := codec.Reconstruct(shards); err == nil {
		t.Error("Expected error when too many shards are lost")
	}
}

func TestFEC_NoMissing(t *testing.T) {
	k, m := 8, 2
	shards := make([][]byte, k+m)
	for i := range shards {
		shards[i] = make([]byte, 1024)
	}

	codec, _ := New(k, m)
	if err := codec.Encode(shards); err != nil {
		t.Fatalf("Encoding failed: %v", err)
	}

	if err := codec.Reconstruct(shards); err != nil {
		t.Errorf("Reconstruction should succeed with no missing shards: %v", err)
	}
}

func TestFEC_InvalidParameters(t *testing.T) {
	if _, err := New(0, 2); err == nil {
		t.Error("Expected error for k=0")
	}
	if _, err := New(300, 2); err == nil {
		t.Error("Expected error for k=300")
	}
	if _, err := New(8, 0); err == nil {
		t.Error("Expected error for m=0")
	}
	if _, err := New(8, 300); err == nil {
		t.Error("Expected error for m=300")
	}
}

func TestFEC_ShardCountMismatch(t *testing.T) {
	codec, _ := New(4, 2)
	if err := codec.Encode(make([][]byte, 5)); err == nil {
		t.Error("Expected error for wrong shard count in Encode")
	}
	if err := codec.Reconstruct(make([][]byte, 5)); err == nil {
		t.Error("Expected error for wrong shard count in Reconstruct")
	}
}
