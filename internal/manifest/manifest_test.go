package manifest

import (
	"encoding/json"
	"testing"

	"github.com/parxive/parx/internal/chunker"
)

func makeFileChunks(relPath string, n int) chunker.FileChunks {
	fc := chunker.FileChunks{RelPath: relPath, Size: int64(n * 4)}
	for i := 0; i < n; i++ {
		var h [32]byte
		h[0] = byte(i + 1)
		fc.Chunks = append(fc.Chunks, chunker.ChunkRef{
			LocalIdx:   i,
			FileOffset: uint64(i * 4),
			Len:        4,
			Hash:       h,
		})
	}
	return fc
}

func TestBuild_Sequential(t *testing.T) {
	files := []chunker.FileChunks{makeFileChunks("a.bin", 2), makeFileChunks("b.bin", 3)}

	entries, _, err := Build(files, OrderingSequential)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []uint64{0, 1, 2, 3, 4}
	var got []uint64
	for _, e := range entries {
		for _, c := range e.Chunks {
			got = append(got, c.GlobalIdx)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %d indices, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuild_Interleaved(t *testing.T) {
	files := []chunker.FileChunks{makeFileChunks("a.bin", 2), makeFileChunks("b.bin", 3)}

	entries, _, err := Build(files, OrderingInterleaved)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// rank 0: a[0]=0, b[0]=1 ; rank 1: a[1]=2, b[1]=3 ; rank 2: b[2]=4
	if entries[0].Chunks[0].GlobalIdx != 0 || entries[0].Chunks[1].GlobalIdx != 2 {
		t.Errorf("file a indices = %v, want [0 2]", entries[0].Chunks)
	}
	if entries[1].Chunks[0].GlobalIdx != 1 || entries[1].Chunks[1].GlobalIdx != 3 || entries[1].Chunks[2].GlobalIdx != 4 {
		t.Errorf("file b indices wrong: %v", entries[1].Chunks)
	}
}

func TestBuild_DenseNoGaps(t *testing.T) {
	files := []chunker.FileChunks{makeFileChunks("a.bin", 5), makeFileChunks("b.bin", 3), makeFileChunks("c.bin", 0)}

	for _, ordering := range []string{OrderingSequential, OrderingInterleaved} {
		entries, _, err := Build(files, ordering)
		if err != nil {
			t.Fatalf("Build(%s) failed: %v", ordering, err)
		}
		seen := make(map[uint64]bool)
		for _, e := range entries {
			for _, c := range e.Chunks {
				if seen[c.GlobalIdx] {
					t.Fatalf("%s: duplicate global index %d", ordering, c.GlobalIdx)
				}
				seen[c.GlobalIdx] = true
			}
		}
		for i := uint64(0); i < uint64(len(seen)); i++ {
			if !seen[i] {
				t.Fatalf("%s: gap at global index %d", ordering, i)
			}
		}
	}
}

func TestBuild_UnknownOrdering(t *testing.T) {
	if _, _, err := Build(nil, "random"); err == nil {
		t.Error("Expected error for unknown ordering mode")
	}
}

func TestManifest_JSONRoundTrip(t *testing.T) {
	files := []chunker.FileChunks{makeFileChunks("dir/a.bin", 2)}
	entries, root, err := Build(files, OrderingSequential)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := Manifest{
		ChunkSize:   4,
		StripeK:     8,
		ParityPct:   25,
		TotalBytes:  8,
		TotalChunks: 2,
		Files:       entries,
		MerkleRoot:  root,
		ParityDir:   "parity",
		Volumes:     1,
		Ordering:    OrderingSequential,
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("raw unmarshal failed: %v", err)
	}
	for _, field := range []string{"created_utc", "chunk_size", "stripe_k", "parity_pct", "total_bytes",
		"total_chunks", "files", "merkle_root_hex", "parity_dir", "volumes", "outer_group", "outer_parity"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing expected field %q", field)
		}
	}

	var back Manifest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.MerkleRoot != m.MerkleRoot {
		t.Error("round-tripped merkle root mismatch")
	}
	if len(back.Files) != 1 || back.Files[0].RelPath != "dir/a.bin" {
		t.Errorf("round-tripped files wrong: %+v", back.Files)
	}
	if back.Files[0].Chunks[0].Hash != entries[0].Chunks[0].Hash {
		t.Error("round-tripped chunk hash mismatch")
	}
}

func TestManifest_UnmarshalBadHash(t *testing.T) {
	bad := `{"merkle_root_hex":"not-hex","files":[]}`
	var m Manifest
	if err := json.Unmarshal([]byte(bad), &m); err == nil {
		t.Error("Expected error for invalid merkle_root_hex")
	}
}
