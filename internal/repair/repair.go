// Package repair detects damaged chunks against a manifest and reconstructs
// them from inner (and, where needed, outer) Reed-Solomon parity.
package repair

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/parxive/parx/internal/chunker"
	"github.com/parxive/parx/internal/fec"
	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/observability"
	"github.com/parxive/parx/internal/parxerr"
	"github.com/parxive/parx/internal/volume"
)

// Report summarizes one repair run.
type Report struct {
	RepairedChunks uint64
	FailedChunks   uint64
}

const lockFileName = ".parx.repair.lock"

var errNoParity = errors.New("no parity available (parity_pct=0)")

// Run holds a global advisory lock over parityDir for the duration of the
// repair, detects damaged chunks against mf, and reconstructs every stripe
// it can from the parity volumes under parityDir.
func Run(mf *manifest.Manifest, root, parityDir string, logger *observability.Logger, metrics *observability.Metrics) (*Report, error) {
	const op = "repair.Run"
	startedAt := time.Now()

	k := mf.StripeK
	innerM := manifest.ComputeM(mf.StripeK, mf.ParityPct)
	if innerM == 0 {
		return nil, parxerr.New(parxerr.KindBadConfig, op, errNoParity)
	}

	if err := os.MkdirAll(parityDir, 0o755); err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}
	lock := volume.NewFileLock(filepath.Join(parityDir, lockFileName))
	if err := lock.Lock(); err != nil {
		if logger != nil {
			logger.VolumeLockContended(filepath.Join(parityDir, lockFileName))
		}
		if metrics != nil {
			metrics.RecordLockContention()
		}
		return nil, err
	}
	defer lock.Unlock()

	innerParity, outerParity, err := collectParityShards(parityDir)
	if err != nil {
		return nil, err
	}

	locations := mf.ChunkLocationByIndex()
	damagedByStripe, err := detectDamage(mf, root, locations)
	if err != nil {
		return nil, err
	}

	codec, err := fec.New(k, innerM)
	if err != nil {
		return nil, err
	}
	var outerCodec *fec.Codec
	if mf.OuterParity > 0 {
		outerCodec, err = fec.New(innerM, mf.OuterParity)
		if err != nil {
			return nil, err
		}
	}

	report := &Report{}
	var bw backupWriter

	for stripe, missing := range damagedByStripe {
		dataShards := make([][]byte, k)
		for i := 0; i < k; i++ {
			idx := uint64(stripe)*uint64(k) + uint64(i)
			if containsInt(missing, i) {
				continue
			}
			loc, ok := locations[idx]
			if !ok {
				// Past total_chunks in the last stripe: a zero shard, as at encode.
				dataShards[i] = make([]byte, mf.ChunkSize)
				continue
			}
			buf, err := chunker.ReadChunk(filepath.Join(root, filepath.FromSlash(loc.RelPath)), loc.FileOffset, int(loc.Len), mf.ChunkSize)
			if err != nil {
				continue
			}
			dataShards[i] = buf
		}

		parityShards := make([][]byte, innerM)
		for pi := 0; pi < innerM; pi++ {
			if buf, ok := innerParity[stripe][uint16(pi)]; ok {
				parityShards[pi] = buf
			}
		}

		if countPresent(parityShards) < innerM && outerCodec != nil {
			reconstructInnerFromOuter(outerCodec, parityShards, outerParity[stripe], mf.ChunkSize)
		}

		shards := make([][]byte, k+innerM)
		copy(shards[:k], dataShards)
		copy(shards[k:], parityShards)

		if err := codec.Reconstruct(shards); err != nil {
			if logger != nil {
				logger.StripeReconstructFailed(stripe, err)
			}
			if metrics != nil {
				metrics.RecordReconstruction(false)
			}
			report.FailedChunks += uint64(len(missing))
			continue
		}
		if metrics != nil {
			metrics.RecordReconstruction(true)
		}

		for _, i := range missing {
			idx := uint64(stripe)*uint64(k) + uint64(i)
			loc, ok := locations[idx]
			if !ok {
				report.FailedChunks++
				continue
			}
			path := filepath.Join(root, filepath.FromSlash(loc.RelPath))
			if err := bw.replaceRange(path, loc.FileOffset, shards[i][:loc.Len]); err != nil {
				report.FailedChunks++
				continue
			}
			report.RepairedChunks++
		}
	}

	if logger != nil {
		logger.RepairCompleted(report.RepairedChunks, report.FailedChunks, time.Since(startedAt))
	}

	return report, nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func countPresent(shards [][]byte) int {
	n := 0
	for _, s := range shards {
		if s != nil {
			n++
		}
	}
	return n
}

// DetectDamage re-hashes every chunk in mf against root and groups
// mismatches by stripe; also used by the audit package to judge
// repairability without performing a repair.
func DetectDamage(mf *manifest.Manifest, root string) (map[uint32][]int, error) {
	return detectDamage(mf, root, mf.ChunkLocationByIndex())
}

func detectDamage(mf *manifest.Manifest, root string, locations map[uint64]manifest.ChunkLocation) (map[uint32][]int, error) {
	expected := make(map[uint64][32]byte, mf.TotalChunks)
	for _, fe := range mf.Files {
		for _, c := range fe.Chunks {
			expected[c.GlobalIdx] = c.Hash
		}
	}

	damaged := make(map[uint32][]int)
	for idx, loc := range locations {
		path := filepath.Join(root, filepath.FromSlash(loc.RelPath))
		buf, err := chunker.ReadChunk(path, loc.FileOffset, int(loc.Len), mf.ChunkSize)
		if err != nil {
			stripe := uint32(idx / uint64(mf.StripeK))
			dataIdx := int(idx % uint64(mf.StripeK))
			damaged[stripe] = append(damaged[stripe], dataIdx)
			continue
		}
		if blake3.Sum256(buf) != expected[idx] {
			stripe := uint32(idx / uint64(mf.StripeK))
			dataIdx := int(idx % uint64(mf.StripeK))
			damaged[stripe] = append(damaged[stripe], dataIdx)
		}
	}
	return damaged, nil
}

// collectParityShards scans every .parxv volume under parityDir and indexes
// inner parity shards by stripe/parity_idx and outer parity shards by the
// inner stripe they protect.
func collectParityShards(parityDir string) (inner map[uint32]map[uint16][]byte, outer map[uint32]map[uint16][]byte, err error) {
	const op = "repair.collectParityShards"
	inner = make(map[uint32]map[uint16][]byte)
	outer = make(map[uint32]map[uint16][]byte)

	matches, globErr := filepath.Glob(filepath.Join(parityDir, "*.parxv"))
	if globErr != nil {
		return nil, nil, parxerr.New(parxerr.KindBadInput, op, globErr)
	}

	for _, path := range matches {
		r, openErr := volume.Open(path)
		if openErr != nil {
			continue
		}
		trailer, trErr := r.ReadTrailer()
		if trErr != nil {
			r.Close()
			continue
		}
		entries, idxErr := r.ReadIndex(trailer, volume.DefaultIndexLimits())
		if idxErr != nil {
			r.Close()
			continue
		}
		for _, e := range entries {
			buf, readErr := r.ReadShard(e)
			if readErr != nil {
				continue
			}
			if e.IsOuter() {
				if e.OuterForStripe == nil {
					continue
				}
				if outer[*e.OuterForStripe] == nil {
					outer[*e.OuterForStripe] = make(map[uint16][]byte)
				}
				outer[*e.OuterForStripe][e.ParityIdx] = buf
			} else {
				if inner[e.Stripe] == nil {
					inner[e.Stripe] = make(map[uint16][]byte)
				}
				inner[e.Stripe][e.ParityIdx] = buf
			}
		}
		r.Close()
	}
	return inner, outer, nil
}

// reconstructInnerFromOuter fills gaps in parityShards (inner parity for one
// stripe) using that stripe's outer-parity shards, when enough are present.
func reconstructInnerFromOuter(outerCodec *fec.Codec, parityShards [][]byte, outerShards map[uint16][]byte, chunkSize int) {
	m := len(parityShards)
	o := outerCodec.M()
	combined := make([][]byte, m+o)
	copy(combined[:m], parityShards)
	for oi := 0; oi < o; oi++ {
		if buf, ok := outerShards[uint16(oi)]; ok {
			combined[m+oi] = buf
		}
	}
	if countPresent(combined) < outerCodec.K() {
		return
	}
	if err := outerCodec.Reconstruct(combined); err != nil {
		return
	}
	copy(parityShards, combined[:m])
}

// backupWriter performs a one-shot backup copy per file before its first
// repair write, then replaces the damaged byte range via a temp-file copy
// plus atomic rename so a crash mid-write never corrupts the original.
type backupWriter struct {
	mu       sync.Mutex
	backedUp map[string]bool
}

func (bw *backupWriter) replaceRange(path string, offset uint64, data []byte) error {
	const op = "repair.backupWriter.replaceRange"

	bw.mu.Lock()
	if bw.backedUp == nil {
		bw.backedUp = make(map[string]bool)
	}
	if !bw.backedUp[path] {
		if err := copyFile(path, path+".parx.bak"); err != nil {
			bw.mu.Unlock()
			return parxerr.New(parxerr.KindIO, op, err)
		}
		bw.backedUp[path] = true
	}
	bw.mu.Unlock()

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := copyFile(path, tmp); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}

	f, err := os.OpenFile(tmp, os.O_RDWR, 0)
	if err != nil {
		os.Remove(tmp)
		return parxerr.New(parxerr.KindIO, op, err)
	}
	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		f.Close()
		os.Remove(tmp)
		return parxerr.New(parxerr.KindIO, op, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return parxerr.New(parxerr.KindIO, op, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return parxerr.New(parxerr.KindIO, op, err)
	}
	return nil
}

// copyFile copies src to dst, creating dst's parent directory as needed. When
// src doesn't exist (the file was deleted entirely and repair is recreating
// it from parity), dst is created empty instead of erroring; replaceRange
// then extends it via WriteAt.
func copyFile(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			out, createErr := os.Create(dst)
			if createErr != nil {
				return createErr
			}
			return out.Close()
		}
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
