// Package manifest builds and serializes the immutable catalog of files,
// chunk references, and the global Merkle root produced by an encode run.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/parxive/parx/internal/chunker"
	"github.com/parxive/parx/internal/parxerr"
)

// ComputeM derives the inner parity shard count from k and parityPct:
// max(1, round(parity_pct/100 * k)) when parity_pct > 0, else 0.
func ComputeM(k, parityPct int) int {
	if parityPct == 0 {
		return 0
	}
	m := int(math.Round(float64(parityPct) / 100.0 * float64(k)))
	if m < 1 {
		m = 1
	}
	return m
}

// Ordering modes for global chunk-index assignment.
const (
	OrderingSequential  = "sequential"
	OrderingInterleaved = "interleaved"
)

// ChunkRef is a chunk reference carrying its assigned global index.
type ChunkRef struct {
	GlobalIdx  uint64
	FileOffset uint64
	Len        uint32
	Hash       [32]byte
}

// FileEntry is one source file's catalog entry.
type FileEntry struct {
	RelPath string
	Size    uint64
	Chunks  []ChunkRef
}

// Manifest is the immutable, JSON-serialized catalog written once per
// encode run.
type Manifest struct {
	CreatedUTC  time.Time
	ChunkSize   int
	StripeK     int
	ParityPct   int
	TotalBytes  uint64
	TotalChunks uint64
	Files       []FileEntry
	MerkleRoot  [32]byte
	ParityDir   string
	Volumes     int
	OuterGroup  int
	OuterParity int
	Ordering    string
}

var errUnknownOrdering = errors.New("unknown ordering mode")

// Build assigns global chunk indices to fileChunks (already sorted into the
// deterministic file order the caller wants for "sequential" ordering),
// computes the Merkle root over the resulting global order, and returns the
// file entries in global order alongside the root. Global indices are dense
// and gap-free regardless of ordering mode (invariant H2/I5).
func Build(fileChunks []chunker.FileChunks, ordering string) ([]FileEntry, [32]byte, error) {
	const op = "manifest.Build"

	var globalOrder []struct {
		fileIdx  int
		localIdx int
	}

	switch ordering {
	case OrderingSequential, "":
		for fi, fc := range fileChunks {
			for li := range fc.Chunks {
				globalOrder = append(globalOrder, struct {
					fileIdx  int
					localIdx int
				}{fi, li})
			}
		}
	case OrderingInterleaved:
		maxLen := 0
		for _, fc := range fileChunks {
			if len(fc.Chunks) > maxLen {
				maxLen = len(fc.Chunks)
			}
		}
		for rank := 0; rank < maxLen; rank++ {
			for fi, fc := range fileChunks {
				if rank < len(fc.Chunks) {
					globalOrder = append(globalOrder, struct {
						fileIdx  int
						localIdx int
					}{fi, rank})
				}
			}
		}
	default:
		return nil, [32]byte{}, parxerr.New(parxerr.KindBadConfig, op, fmt.Errorf("%w: %q", errUnknownOrdering, ordering))
	}

	entries := make([]FileEntry, len(fileChunks))
	for fi, fc := range fileChunks {
		entries[fi] = FileEntry{RelPath: fc.RelPath, Size: uint64(fc.Size)}
	}

	leaves := make([][32]byte, len(globalOrder))
	for globalIdx, pos := range globalOrder {
		c := fileChunks[pos.fileIdx].Chunks[pos.localIdx]
		entries[pos.fileIdx].Chunks = append(entries[pos.fileIdx].Chunks, ChunkRef{
			GlobalIdx:  uint64(globalIdx),
			FileOffset: c.FileOffset,
			Len:        c.Len,
			Hash:       c.Hash,
		})
		leaves[globalIdx] = c.Hash
	}

	return entries, chunker.Root(leaves), nil
}

type wireChunk struct {
	Idx        uint64 `json:"idx"`
	FileOffset uint64 `json:"file_offset"`
	Len        uint32 `json:"len"`
	HashHex    string `json:"hash_hex"`
}

type wireFile struct {
	RelPath string      `json:"rel_path"`
	Size    uint64      `json:"size"`
	Chunks  []wireChunk `json:"chunks"`
}

type wireManifest struct {
	CreatedUTC    time.Time  `json:"created_utc"`
	ChunkSize     int        `json:"chunk_size"`
	StripeK       int        `json:"stripe_k"`
	ParityPct     int        `json:"parity_pct"`
	TotalBytes    uint64     `json:"total_bytes"`
	TotalChunks   uint64     `json:"total_chunks"`
	Files         []wireFile `json:"files"`
	MerkleRootHex string     `json:"merkle_root_hex"`
	ParityDir     string     `json:"parity_dir"`
	Volumes       int        `json:"volumes"`
	OuterGroup    int        `json:"outer_group"`
	OuterParity   int        `json:"outer_parity"`
	Ordering      string     `json:"ordering,omitempty"`
}

// MarshalJSON produces the on-disk manifest.json shape: lowercase hex
// hashes, forward-slash paths (the caller is responsible for normalizing
// RelPath before Build), and exactly the field names spec'd for this format.
func (m Manifest) MarshalJSON() ([]byte, error) {
	w := wireManifest{
		CreatedUTC:    m.CreatedUTC,
		ChunkSize:     m.ChunkSize,
		StripeK:       m.StripeK,
		ParityPct:     m.ParityPct,
		TotalBytes:    m.TotalBytes,
		TotalChunks:   m.TotalChunks,
		MerkleRootHex: hex.EncodeToString(m.MerkleRoot[:]),
		ParityDir:     m.ParityDir,
		Volumes:       m.Volumes,
		OuterGroup:    m.OuterGroup,
		OuterParity:   m.OuterParity,
		Ordering:      m.Ordering,
	}
	w.Files = make([]wireFile, len(m.Files))
	for i, f := range m.Files {
		wf := wireFile{RelPath: f.RelPath, Size: f.Size, Chunks: make([]wireChunk, len(f.Chunks))}
		for j, c := range f.Chunks {
			wf.Chunks[j] = wireChunk{
				Idx:        c.GlobalIdx,
				FileOffset: c.FileOffset,
				Len:        c.Len,
				HashHex:    hex.EncodeToString(c.Hash[:]),
			}
		}
		w.Files[i] = wf
	}
	return json.MarshalIndent(w, "", "  ")
}

// UnmarshalJSON parses a manifest.json document produced by MarshalJSON.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	const op = "manifest.UnmarshalJSON"
	var w wireManifest
	if err := json.Unmarshal(data, &w); err != nil {
		return parxerr.New(parxerr.KindFormat, op, err)
	}

	root, err := decodeHash(w.MerkleRootHex)
	if err != nil {
		return parxerr.New(parxerr.KindFormat, op, fmt.Errorf("merkle_root_hex: %w", err))
	}

	*m = Manifest{
		CreatedUTC:  w.CreatedUTC,
		ChunkSize:   w.ChunkSize,
		StripeK:     w.StripeK,
		ParityPct:   w.ParityPct,
		TotalBytes:  w.TotalBytes,
		TotalChunks: w.TotalChunks,
		MerkleRoot:  root,
		ParityDir:   w.ParityDir,
		Volumes:     w.Volumes,
		OuterGroup:  w.OuterGroup,
		OuterParity: w.OuterParity,
		Ordering:    w.Ordering,
	}

	m.Files = make([]FileEntry, len(w.Files))
	for i, wf := range w.Files {
		fe := FileEntry{RelPath: wf.RelPath, Size: wf.Size, Chunks: make([]ChunkRef, len(wf.Chunks))}
		for j, wc := range wf.Chunks {
			h, err := decodeHash(wc.HashHex)
			if err != nil {
				return parxerr.New(parxerr.KindFormat, op, fmt.Errorf("%s chunk %d: %w", wf.RelPath, j, err))
			}
			fe.Chunks[j] = ChunkRef{GlobalIdx: wc.Idx, FileOffset: wc.FileOffset, Len: wc.Len, Hash: h}
		}
		m.Files[i] = fe
	}
	return nil
}

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Save writes the manifest as pretty-printed JSON to path.
func (m Manifest) Save(path string) error {
	const op = "manifest.Save"
	data, err := m.MarshalJSON()
	if err != nil {
		return parxerr.New(parxerr.KindFormat, op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	return nil
}

// ChunkLocation is the (file, offset, length) a global chunk index maps to.
type ChunkLocation struct {
	RelPath    string
	FileOffset uint64
	Len        uint32
}

// ChunkLocationByIndex builds the global_idx -> location map used by the
// encoder, verifier, and repairer to find a chunk's bytes without
// rescanning the manifest's file list.
func (m Manifest) ChunkLocationByIndex() map[uint64]ChunkLocation {
	loc := make(map[uint64]ChunkLocation, m.TotalChunks)
	for _, fe := range m.Files {
		for _, c := range fe.Chunks {
			loc[c.GlobalIdx] = ChunkLocation{RelPath: fe.RelPath, FileOffset: c.FileOffset, Len: c.Len}
		}
	}
	return loc
}

// Load reads and parses a manifest.json file.
func Load(path string) (*Manifest, error) {
	const op = "manifest.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parxerr.New(parxerr.KindBadInput, op, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
