// Package validation holds the CLI's early flag and path checks, run before
// a subcommand touches the encode/verify/audit/repair pipelines.
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrInvalidPath   = errors.New("invalid file path")
	ErrPathNotExists = errors.New("path does not exist")
	ErrEmptyString   = errors.New("value must not be empty")
	ErrOutOfRange    = errors.New("value out of range")
)

// ValidateDirPath normalizes p and, when mustExist is true, confirms it
// names an existing directory.
func ValidateDirPath(p string, mustExist bool) error {
	if p == "" {
		return ErrInvalidPath
	}
	p = filepath.Clean(p)
	if mustExist {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPathNotExists, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, p)
		}
	}
	return nil
}

func ValidateStringNonEmpty(s string) error {
	if s == "" {
		return ErrEmptyString
	}
	return nil
}

func ValidateRangeInt(v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, min, max)
	}
	return nil
}
