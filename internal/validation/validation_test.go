package validation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateDirPath_EmptyRejected(t *testing.T) {
	if err := ValidateDirPath("", false); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestValidateDirPath_MustExist(t *testing.T) {
	root := t.TempDir()
	if err := ValidateDirPath(root, true); err != nil {
		t.Errorf("expected existing dir to validate, got %v", err)
	}
	if err := ValidateDirPath(filepath.Join(root, "missing"), true); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(root, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := ValidateDirPath(file, true); err == nil {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestValidateStringNonEmpty(t *testing.T) {
	if err := ValidateStringNonEmpty(""); err == nil {
		t.Error("expected error for empty string")
	}
	if err := ValidateStringNonEmpty("ok"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRangeInt(t *testing.T) {
	if err := ValidateRangeInt(5, 0, 10); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRangeInt(-1, 0, 10); err == nil {
		t.Error("expected error below range")
	}
	if err := ValidateRangeInt(11, 0, 10); err == nil {
		t.Error("expected error above range")
	}
}
