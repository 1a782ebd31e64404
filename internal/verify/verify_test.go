package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parxive/parx/internal/encode"
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

func TestRun_CleanTreeVerifiesOK(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{
		"a.txt":     []byte("some content for file a"),
		"sub/b.bin": []byte("other content entirely, longer than a chunk maybe"),
	})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 16, StripeK: 2, ParityPct: 50, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	report, err := Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("verify.Run: %v", err)
	}
	if report.ChunksBad != 0 {
		t.Errorf("expected 0 bad chunks, got %d", report.ChunksBad)
	}
	if !report.MerkleOK {
		t.Error("expected merkle root to match")
	}
	if report.ChunksOK != res.Manifest.TotalChunks {
		t.Errorf("expected %d ok chunks, got %d", res.Manifest.TotalChunks, report.ChunksOK)
	}
}

func TestRun_DetectsCorruption(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("some content for file a, long enough for chunks")})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 16, StripeK: 2, ParityPct: 50, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(root, "a.txt"), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	if _, err := f.WriteAt([]byte("X"), 0); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	f.Close()

	report, err := Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("verify.Run: %v", err)
	}
	if report.ChunksBad == 0 {
		t.Error("expected at least one bad chunk after corruption")
	}
	if report.MerkleOK {
		t.Error("expected merkle mismatch after corruption")
	}
	if len(report.BadChunks) == 0 {
		t.Error("expected BadChunks to list the damaged chunk")
	}
}

func TestRun_MissingFileCountsAsBadButRunCompletes(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{
		"a.txt": []byte("some content for file a, long enough for chunks"),
		"b.txt": []byte("other file content that survives just fine here"),
	})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 16, StripeK: 2, ParityPct: 50, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	report, err := Run(res.Manifest, root, nil, nil)
	if err != nil {
		t.Fatalf("verify.Run should tolerate a missing file, got error: %v", err)
	}
	if report.ChunksBad == 0 {
		t.Error("expected missing file's chunks to be counted bad")
	}
	if report.ChunksOK == 0 {
		t.Error("expected the surviving file's chunks to still verify ok")
	}
	if report.MerkleOK {
		t.Error("expected merkle mismatch with a missing file")
	}
	foundMissing := false
	for _, bc := range report.BadChunks {
		if bc.RelPath == "a.txt" {
			foundMissing = true
		}
	}
	if !foundMissing {
		t.Error("expected BadChunks to name the missing file")
	}
}

func TestRun_RejectsEscapingRelPath(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("content")})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 16, StripeK: 1, ParityPct: 0, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}
	res.Manifest.Files[0].RelPath = "../escape.txt"

	if _, err := Run(res.Manifest, root, nil, nil); err == nil {
		t.Error("expected error for escaping rel_path")
	}
}
