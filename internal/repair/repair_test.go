package repair

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parxive/parx/internal/encode"
	"github.com/parxive/parx/internal/verify"
)

func writeInput(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestRun_RepairsSingleCorruptedChunk(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")

	original := []byte("the quick brown fox jumps over the lazy dog, repeated so there are several chunks available for striping across the reed solomon parity encoder")
	writeInput(t, root, map[string][]byte{"doc.txt": original})

	cfg := encode.Config{ChunkSize: 16, StripeK: 4, ParityPct: 50, Volumes: 2}
	res, err := encode.Run(root, out, cfg, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	target := filepath.Join(root, "doc.txt")
	f, err := os.OpenFile(target, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	if _, err := f.WriteAt([]byte("CORRUPT!"), 0); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	f.Close()

	pre, err := verify.Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("pre-repair verify: %v", err)
	}
	if pre.ChunksBad == 0 {
		t.Fatal("expected corruption to be detected before repair")
	}

	report, err := Run(res.Manifest, root, out, nil, nil)
	if err != nil {
		t.Fatalf("repair.Run: %v", err)
	}
	if report.RepairedChunks == 0 {
		t.Error("expected at least one repaired chunk")
	}

	post, err := verify.Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("post-repair verify: %v", err)
	}
	if post.ChunksBad != 0 {
		t.Errorf("expected 0 bad chunks after repair, got %d", post.ChunksBad)
	}
	if !post.MerkleOK {
		t.Error("expected merkle root to match after repair")
	}

	if _, err := os.Stat(target + ".parx.bak"); err != nil {
		t.Errorf("expected one-shot backup file to exist: %v", err)
	}
}

func TestRun_RecreatesEntirelyMissingFile(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")

	original := []byte("the quick brown fox jumps over the lazy dog, repeated so there are several chunks available for striping across the reed solomon parity encoder")
	writeInput(t, root, map[string][]byte{"part-002.bin": original})

	// Losing the only file loses every data shard of each stripe, so M must
	// equal K (parity_pct=100) for the loss to stay within parity.
	cfg := encode.Config{ChunkSize: 16, StripeK: 4, ParityPct: 100, Volumes: 2}
	res, err := encode.Run(root, out, cfg, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	target := filepath.Join(root, "part-002.bin")
	if err := os.Remove(target); err != nil {
		t.Fatalf("remove: %v", err)
	}

	pre, err := verify.Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("pre-repair verify: %v", err)
	}
	if pre.ChunksBad == 0 {
		t.Fatal("expected removal to be detected before repair")
	}

	report, err := Run(res.Manifest, root, out, nil, nil)
	if err != nil {
		t.Fatalf("repair.Run: %v", err)
	}
	if report.RepairedChunks == 0 {
		t.Fatal("expected repair to recreate the missing file's chunks")
	}
	if report.FailedChunks != 0 {
		t.Errorf("expected 0 failed chunks, got %d", report.FailedChunks)
	}

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected file to be recreated on disk: %v", err)
	}

	post, err := verify.Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("post-repair verify: %v", err)
	}
	if post.ChunksBad != 0 {
		t.Errorf("expected 0 bad chunks after repair, got %d", post.ChunksBad)
	}
	if !post.MerkleOK {
		t.Error("expected merkle root to match after repair")
	}

	restored, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if len(restored) != len(original) {
		t.Errorf("expected restored file to have %d bytes, got %d", len(original), len(restored))
	}
}

func TestRun_NoParityConfigured(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("no parity here")})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 0, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	if _, err := Run(res.Manifest, root, out, nil, nil); err == nil {
		t.Error("expected error when parity_pct=0")
	}
}
