package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parxive/parx/internal/encode"
)

func TestCheckRepairable_CleanTree(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	writeInput(t, root, map[string][]byte{"a.txt": []byte("clean content, nothing damaged here at all")})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 2, ParityPct: 100, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	result, err := CheckRepairable(res.Manifest, root)
	if err != nil {
		t.Fatalf("CheckRepairable: %v", err)
	}
	if !result.Repairable {
		t.Error("expected repairable=true for an undamaged tree")
	}
	if result.WorstDamage != 0 {
		t.Errorf("expected worst damage 0, got %d", result.WorstDamage)
	}
}

func TestCheckRepairable_UnrepairableWhenDamageExceedsM(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, ".parx")
	content := []byte("enough bytes to span multiple stripes of data for this repairable check test")
	writeInput(t, root, map[string][]byte{"a.txt": content})

	res, err := encode.Run(root, out, encode.Config{ChunkSize: 8, StripeK: 4, ParityPct: 25, Volumes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("encode.Run: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(root, "a.txt"), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteAt(make([]byte, 32), 0); err != nil {
		t.Fatalf("zero out first stripe: %v", err)
	}
	f.Close()

	result, err := CheckRepairable(res.Manifest, root)
	if err != nil {
		t.Fatalf("CheckRepairable: %v", err)
	}
	if result.Repairable {
		t.Error("expected repairable=false when damage in a stripe exceeds M")
	}
}
