// Package parxerr defines the structured error taxonomy shared across the
// chunking, FEC, volume, encode, verify, audit, and repair packages.
package parxerr

import (
	"errors"
	"fmt"
	"os"
)

// Kind classifies an Error for exit-code mapping and caller dispatch.
type Kind int

const (
	// KindBadConfig marks parameters out of range; non-retryable.
	KindBadConfig Kind = iota
	// KindBadInput marks an unreadable source or invalid path.
	KindBadInput
	// KindFormat marks a bad magic, header decode, or trailer CRC mismatch.
	KindFormat
	// KindIntegrity marks a chunk/shard hash or Merkle mismatch.
	KindIntegrity
	// KindInsufficientShards marks a stripe with fewer than K usable shards.
	KindInsufficientShards
	// KindLockContended marks a failed fail-fast lock acquisition.
	KindLockContended
	// KindIO marks a fatal I/O failure.
	KindIO
	// KindPermission marks an OS-level permission-denied failure.
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindBadConfig:
		return "BadConfig"
	case KindBadInput:
		return "BadInput"
	case KindFormat:
		return "FormatError"
	case KindIntegrity:
		return "IntegrityError"
	case KindInsufficientShards:
		return "InsufficientShards"
	case KindLockContended:
		return "LockContended"
	case KindIO:
		return "FatalIO"
	case KindPermission:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// Error is the single structured error type surfaced at package boundaries.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "chunker.Hash", "volume.Open"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/kind wrapping cause (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Wrap is a convenience for the common "kind+op" path with a non-nil cause.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return New(kind, op, cause)
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if pe, isPE := err.(*Error); isPE {
			e = pe
			break
		}
		u, isU := err.(interface{ Unwrap() error })
		if !isU {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}

// ExitCode maps a Kind to the sysexits-style code spec'd in §6.4.
func ExitCode(kind Kind) int {
	switch kind {
	case KindBadConfig:
		return 64 // usage
	case KindBadInput:
		return 66 // no input
	case KindFormat, KindIntegrity:
		return 65 // data error
	case KindInsufficientShards:
		return 65
	case KindLockContended:
		return 73 // cannot create: another process holds the lock
	case KindIO:
		return 74 // I/O error
	case KindPermission:
		return 77 // permission denied
	default:
		return 70 // generic software error
	}
}

// Classify wraps cause with KindPermission when it (or an errors.Is/As
// target within it) indicates an OS permission failure, otherwise with
// fallback.
func Classify(fallback Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, os.ErrPermission) {
		return New(KindPermission, op, cause)
	}
	return New(fallback, op, cause)
}
