// Package verify recomputes chunk hashes and the Merkle root from a
// manifest against the files currently on disk, without touching parity.
package verify

import (
	"runtime"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/parxive/parx/internal/chunker"
	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/observability"
	"github.com/parxive/parx/internal/parxerr"
	"github.com/parxive/parx/internal/pathsafe"
)

// Report summarizes one verify run.
type Report struct {
	ChunksOK  uint64
	ChunksBad uint64
	MerkleOK  bool
	BadChunks []BadChunk
}

// BadChunk names one chunk whose on-disk bytes no longer hash to the value
// recorded in the manifest.
type BadChunk struct {
	RelPath   string
	GlobalIdx uint64
}

// Run verifies root against mf using the default (symlink-rejecting) path
// policy.
func Run(mf *manifest.Manifest, root string, logger *observability.Logger, metrics *observability.Metrics) (*Report, error) {
	return RunWithPolicy(mf, root, pathsafe.Policy{}, logger, metrics)
}

// RunWithPolicy verifies root against mf, re-hashing every chunk recorded in
// the manifest and recomputing the Merkle root over the manifest's global
// chunk order. Per-file hashing is parallelized, bounded by GOMAXPROCS; each
// file's result slot is filled independently so the recomputed Merkle root
// is order-stable regardless of goroutine completion order.
func RunWithPolicy(mf *manifest.Manifest, root string, policy pathsafe.Policy, logger *observability.Logger, metrics *observability.Metrics) (*Report, error) {
	const op = "verify.Run"
	startedAt := time.Now()

	leaves := make([][32]byte, mf.TotalChunks)
	badPerFile := make([][]BadChunk, len(mf.Files))
	okPerFile := make([]uint64, len(mf.Files))
	badPerFileCount := make([]uint64, len(mf.Files))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for fi := range mf.Files {
		fi := fi
		g.Go(func() error {
			fe := mf.Files[fi]
			// Path-safety failures (escaping/absolute rel paths) are fatal to
			// the whole run; an ordinary missing or unreadable file is not,
			// it's just every one of that file's chunks counted as bad.
			path, err := pathsafe.Validate(root, fe.RelPath, policy)
			if err != nil {
				return err
			}
			for _, c := range fe.Chunks {
				buf, err := chunker.ReadChunk(path, c.FileOffset, int(c.Len), mf.ChunkSize)
				if err != nil {
					badPerFileCount[fi]++
					badPerFile[fi] = append(badPerFile[fi], BadChunk{RelPath: fe.RelPath, GlobalIdx: c.GlobalIdx})
					if metrics != nil {
						metrics.RecordChunkMismatch()
					}
					continue
				}
				h := blake3.Sum256(buf)
				leaves[c.GlobalIdx] = h
				if metrics != nil {
					metrics.RecordChunkHashed("verify", 1, uint64(len(buf)))
				}
				if h == c.Hash {
					okPerFile[fi]++
				} else {
					badPerFileCount[fi]++
					badPerFile[fi] = append(badPerFile[fi], BadChunk{RelPath: fe.RelPath, GlobalIdx: c.GlobalIdx})
					if metrics != nil {
						metrics.RecordChunkMismatch()
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, parxerr.New(parxerr.KindBadInput, op, err)
	}

	report := &Report{}
	for fi := range mf.Files {
		report.ChunksOK += okPerFile[fi]
		report.ChunksBad += badPerFileCount[fi]
		report.BadChunks = append(report.BadChunks, badPerFile[fi]...)
	}
	report.MerkleOK = chunker.Root(leaves) == mf.MerkleRoot
	if metrics != nil {
		metrics.RecordMerkleVerification(report.MerkleOK)
	}

	if logger != nil {
		for _, bc := range report.BadChunks {
			logger.ChunkMismatch(bc.RelPath, bc.GlobalIdx)
		}
		logger.VerifyCompleted(report.ChunksOK, report.ChunksBad, report.MerkleOK, time.Since(startedAt))
	}

	return report, nil
}
