// Package pathsafe validates that a manifest-relative path stays contained
// within its root before the verifier or repairer touches the filesystem.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/parxive/parx/internal/parxerr"
)

// Policy controls symlink handling during validation.
type Policy struct {
	FollowSymlinks bool
}

// Validate resolves rel against root and returns the absolute path to use,
// rejecting absolute paths, parent-traversal components, and (depending on
// policy) symlinks anywhere along the way.
func Validate(root, rel string, policy Policy) (string, error) {
	const op = "pathsafe.Validate"

	if filepath.IsAbs(rel) {
		return "", parxerr.New(parxerr.KindBadInput, op, fmt.Errorf("absolute path not allowed: %s", rel))
	}
	clean := filepath.ToSlash(rel)
	for _, comp := range strings.Split(clean, "/") {
		if comp == ".." {
			return "", parxerr.New(parxerr.KindBadInput, op, fmt.Errorf("parent traversal not allowed: %s", rel))
		}
	}

	candidate := filepath.Join(root, filepath.FromSlash(clean))

	if !policy.FollowSymlinks {
		if err := rejectSymlinkAncestors(root, clean); err != nil {
			return "", parxerr.New(parxerr.KindBadInput, op, err)
		}
		return candidate, nil
	}

	rootCanon, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", parxerr.New(parxerr.KindBadInput, op, err)
	}
	candCanon, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", parxerr.New(parxerr.KindBadInput, op, err)
	}
	if !contains(rootCanon, candCanon) {
		return "", parxerr.New(parxerr.KindBadInput, op, fmt.Errorf("path escapes root: %s", rel))
	}
	return candCanon, nil
}

// rejectSymlinkAncestors walks each path component under root and fails if
// any is a symlink (or, on Windows, a reparse point).
func rejectSymlinkAncestors(root, relSlash string) error {
	cur := root
	for _, comp := range strings.Split(relSlash, "/") {
		if comp == "" {
			continue
		}
		cur = filepath.Join(cur, comp)
		info, err := os.Lstat(cur)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if isSymlinkOrReparse(info) {
			return fmt.Errorf("symlink encountered (not following): %s", cur)
		}
	}
	return nil
}

func isSymlinkOrReparse(info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink != 0 {
		return true
	}
	// Windows reparse points surface through os.ModeSymlink too via Go's
	// os.Lstat for the common cases (symlinks, junctions); no extra check
	// is required beyond the ModeSymlink bit on this platform.
	return false
}

// contains reports whether cand is root or a descendant of root, comparing
// case-insensitively on Windows filesystems.
func contains(root, cand string) bool {
	if runtime.GOOS == "windows" {
		root = strings.ToLower(root)
		cand = strings.ToLower(cand)
	}
	rootWithSep := root
	if !strings.HasSuffix(rootWithSep, string(filepath.Separator)) {
		rootWithSep += string(filepath.Separator)
	}
	return cand == root || strings.HasPrefix(cand, rootWithSep)
}
