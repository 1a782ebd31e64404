package audit

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

func TestRun_EmptyDirReportsZeroVolumes(t *testing.T) {
	report, err := Run(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Volumes != 0 {
		t.Errorf("expected 0 volumes, got %d", report.Volumes)
	}
}

func TestRun_TalliesStripeCounts(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{
		"a.txt": []byte("some reasonably sized content for chunking across stripes here"),
	})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 100, Volumes: 2}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	report, err := Run(out, nil)
	if err != nil {
		t.Fatalf("audit.Run: %v", err)
	}
	if report.Volumes != 2 {
		t.Errorf("expected 2 volumes, got %d", report.Volumes)
	}
	if len(report.StripeParityCounts) == 0 {
		t.Error("expected non-empty stripe parity counts")
	}
	if report.TotalShardBytes == 0 {
		t.Error("expected nonzero total shard bytes")
	}
	_ = res
}

func TestRunDeep_ReadsShardBodies(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("content for deep audit pass over shards")})

	if _, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 100, Volumes: 1}, nil, nil); err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	report, err := RunDeep(out, nil)
	if err != nil {
		t.Fatalf("audit.RunDeep: %v", err)
	}
	if report.Volumes != 1 {
		t.Errorf("expected 1 volume, got %d", report.Volumes)
	}
}

func TestRun_ContinuesPastCorruptVolume(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{
		"a.txt": []byte("some reasonably sized content for chunking across stripes here"),
	})

	if _, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 100, Volumes: 2}, nil, nil); err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	// Truncate the trailing bytes of volume 0 so its trailer can't parse,
	// mirroring R3's "corrupt the trailing 8 KiB of any volume" scenario.
	vol0 := filepath.Join(out, "vol-000.parxv")
	info, err := os.Stat(vol0)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(vol0, info.Size()/2); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	report, err := Run(out, nil)
	if err != nil {
		t.Fatalf("audit.Run should not abort on a single bad volume: %v", err)
	}
	if report.Volumes != 2 {
		t.Fatalf("expected 2 volumes scanned, got %d", report.Volumes)
	}
	if len(report.VolumeStatuses) != 2 {
		t.Fatalf("expected 2 per-volume statuses, got %d", len(report.VolumeStatuses))
	}

	var sawBad, sawOK bool
	for _, vs := range report.VolumeStatuses {
		if vs.Path == vol0 {
			if vs.Status == VolumeOK {
				t.Error("truncated volume 0 should not report ok")
			}
			sawBad = true
		} else {
			if vs.Status != VolumeOK {
				t.Errorf("intact volume should report ok, got %q", vs.Status)
			}
			sawOK = true
		}
	}
	if !sawBad || !sawOK {
		t.Fatal("expected one bad and one ok volume status")
	}
}

func TestInspectVolume(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("content enough for a couple of stripes of data")})

	if _, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 100, Volumes: 1}, nil, nil); err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	insp, err := InspectVolume(filepath.Join(out, "vol-000.parxv"))
	if err != nil {
		t.Fatalf("InspectVolume: %v", err)
	}
	if insp.K != 2 {
		t.Errorf("expected K=2, got %d", insp.K)
	}
	if insp.EntryCount == 0 {
		t.Error("expected nonzero entry count")
	}
}
