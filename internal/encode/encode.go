// Package encode implements the parallel encode pipeline: chunk+hash every
// input file, assign global chunk indices, RS-encode each stripe's parity,
// place shards round-robin across volumes, and emit the manifest.
package encode

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parxive/parx/internal/chunker"
	"github.com/parxive/parx/internal/fec"
	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/observability"
	"github.com/parxive/parx/internal/parxerr"
	"github.com/parxive/parx/internal/volume"
)

func osMkdirAll(path string) error { return os.MkdirAll(path, 0o755) }

func nowUTC() time.Time { return time.Now().UTC() }

// Result is the outcome of a successful encode run.
type Result struct {
	Manifest *manifest.Manifest
}

// Run executes stages (a)-(h) of §4.8 against root, writing volumes and the
// manifest under output.
func Run(root, output string, cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Result, error) {
	const op = "encode.Run"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := cfg.StripeK
	m := ComputeM(k, cfg.ParityPct)
	if metrics != nil {
		metrics.SetParityShardCounts(m, cfg.OuterParity)
	}

	if err := osMkdirAll(output); err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}

	startedAt := nowUTC()

	absPaths, relPaths, err := DiscoverFiles(root)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.EncodeStarted(root, len(absPaths), cfg.ChunkSize, k, cfg.ParityPct)
	}

	fileChunks, err := chunker.HashFiles(absPaths, relPaths, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	entries, merkleRoot, err := manifest.Build(fileChunks, cfg.Ordering)
	if err != nil {
		return nil, err
	}

	var totalBytes uint64
	var totalChunks uint64
	for _, fc := range fileChunks {
		totalBytes += uint64(fc.Size)
		totalChunks += uint64(len(fc.Chunks))
	}
	if metrics != nil {
		metrics.RecordChunkHashed("create", totalChunks, totalBytes)
	}

	mf := &manifest.Manifest{
		ChunkSize:   cfg.ChunkSize,
		StripeK:     k,
		ParityPct:   cfg.ParityPct,
		TotalBytes:  totalBytes,
		TotalChunks: totalChunks,
		Files:       entries,
		MerkleRoot:  merkleRoot,
		ParityDir:   output,
		Volumes:     cfg.Volumes,
		OuterGroup:  cfg.OuterGroup,
		OuterParity: cfg.OuterParity,
		Ordering:    cfg.Ordering,
	}
	mf.CreatedUTC = nowUTC()

	locations := mf.ChunkLocationByIndex()

	writers := make([]*volume.Writer, cfg.Volumes)
	for vid := 0; vid < cfg.Volumes; vid++ {
		w, err := volume.Create(filepath.Join(output, volume.Name(vid)), k, m)
		if err != nil {
			closeWriters(writers)
			return nil, err
		}
		writers[vid] = w
	}

	if m > 0 && totalChunks > 0 {
		if err := encodeStripes(root, locations, cfg, k, m, writers, logger, metrics); err != nil {
			closeWriters(writers)
			return nil, err
		}
	}

	manifestJSON, err := mf.MarshalJSON()
	if err != nil {
		closeWriters(writers)
		return nil, parxerr.New(parxerr.KindFormat, op, err)
	}

	for vid, w := range writers {
		var backup []byte
		if vid == 0 {
			backup = manifestJSON
		}
		if err := w.Finalize(backup); err != nil {
			closeWriters(writers)
			return nil, err
		}
	}
	if err := closeWriters(writers); err != nil {
		return nil, err
	}

	if err := mf.Save(filepath.Join(output, "manifest.json")); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.EncodeCompleted(mf.TotalChunks, mf.TotalBytes, time.Since(startedAt))
	}
	return &Result{Manifest: mf}, nil
}

// encodeStripes runs the per-stripe RS-encode fan-out described in §4.8(f):
// one goroutine per stripe, bounded by GOMAXPROCS, reading K chunks,
// encoding M parity shards (and O outer shards when configured), and
// appending to volumes under each volume's own append mutex.
func encodeStripes(root string, locations map[uint64]manifest.ChunkLocation, cfg Config, k, m int, writers []*volume.Writer, logger *observability.Logger, metrics *observability.Metrics) error {
	backend, err := fec.NewCPUBackend(k, m)
	if err != nil {
		return err
	}

	var outerCodec *fec.Codec
	if cfg.OuterParity > 0 {
		outerCodec, err = fec.New(m, cfg.OuterParity)
		if err != nil {
			return err
		}
	}

	var totalChunks uint64
	for idx := range locations {
		if idx+1 > totalChunks {
			totalChunks = idx + 1
		}
	}
	stripes := int((totalChunks + uint64(k) - 1) / uint64(k))

	volCount := len(writers)
	var placeMu sync.Mutex // serializes round-robin placement for reproducibility (§5)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for s := 0; s < stripes; s++ {
		s := s
		g.Go(func() error {
			data := make([][]byte, k)
			for i := 0; i < k; i++ {
				idx := uint64(s*k + i)
				loc, ok := locations[idx]
				if !ok {
					data[i] = make([]byte, cfg.ChunkSize)
					continue
				}
				buf, err := chunker.ReadChunk(filepath.Join(root, filepath.FromSlash(loc.RelPath)), loc.FileOffset, int(loc.Len), cfg.ChunkSize)
				if err != nil {
					return err
				}
				data[i] = buf
			}

			parity := make([][]byte, m)
			for i := range parity {
				parity[i] = make([]byte, cfg.ChunkSize)
			}
			if err := backend.EncodeStripe(data, parity); err != nil {
				return err
			}

			placeMu.Lock()
			defer placeMu.Unlock()
			for pi, pbuf := range parity {
				vid := pi % volCount
				if _, err := writers[vid].AppendShard(uint32(s), uint16(pi), pbuf, nil, nil); err != nil {
					return err
				}
			}

			if outerCodec != nil {
				outerShards := make([][]byte, m+cfg.OuterParity)
				copy(outerShards[:m], parity)
				for i := m; i < len(outerShards); i++ {
					outerShards[i] = make([]byte, cfg.ChunkSize)
				}
				if err := outerCodec.Encode(outerShards); err != nil {
					return err
				}
				sVal := uint32(s)
				for oi := 0; oi < cfg.OuterParity; oi++ {
					vid := (m + oi) % volCount
					if _, err := writers[vid].AppendShard(volume.OuterStripeSentinel, uint16(oi), outerShards[m+oi], nil, &sVal); err != nil {
						return err
					}
				}
			}
			if logger != nil {
				logger.StripeEncoded(uint32(s), m)
			}
			if metrics != nil {
				outerShards := 0
				if outerCodec != nil {
					outerShards = cfg.OuterParity
				}
				metrics.RecordStripeEncoded(m, outerShards)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

func closeWriters(writers []*volume.Writer) error {
	var firstErr error
	for _, w := range writers {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
