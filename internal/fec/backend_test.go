package fec

import "testing"

func TestCPUBackend_EncodeStripe(t *testing.T) {
	backend, err := NewCPUBackend(4, 2)
	if err != nil {
		t.Fatalf("NewCPUBackend failed: %v", err)
	}

	data := make([][]byte, 4)
	for i := range data {
		data[i] = make([]byte, 256)
		for j := range data[i] {
			data[i][j] = byte(i + j)
		}
	}
	parity := make([][]byte, 2)
	for i := range parity {
		parity[i] = make([]byte, 256)
	}

	if err := backend.EncodeStripe(data, parity); err != nil {
		t.Fatalf("EncodeStripe failed: %v", err)
	}

	codec, _ := New(4, 2)
	shards := make([][]byte, 6)
	copy(shards[:4], data)
	copy(shards[4:], parity)
	shards[0] = nil
	if err := codec.Reconstruct(shards); err != nil {
		t.Fatalf("Reconstruct using backend-produced parity failed: %v", err)
	}
}

func TestCPUBackend_WrongShardCounts(t *testing.T) {
	backend, _ := NewCPUBackend(4, 2)
	if err := backend.EncodeStripe(make([][]byte, 3), make([][]byte, 2)); err == nil {
		t.Error("Expected error for mismatched data shard count")
	}
}

func TestNullGPUBackend_AlwaysFails(t *testing.T) {
	var b NullGPUBackend
	if err := b.EncodeStripe(nil, nil); err == nil {
		t.Error("Expected NullGPUBackend to always report unavailable")
	}
}
