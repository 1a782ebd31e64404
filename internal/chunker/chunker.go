// Package chunker splits source files into fixed-size, zero-padded chunks
// and computes their BLAKE3 content hashes.
package chunker

import (
	"errors"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/parxive/parx/internal/parxerr"
	"github.com/zeebo/blake3"
)

// Options configures chunking behavior.
type Options struct {
	ChunkSize int // must be > 0
}

// ChunkRef describes one chunk within its owning file, before a global
// index has been assigned by the manifest builder.
type ChunkRef struct {
	LocalIdx   int
	FileOffset uint64
	Len        uint32   // actual byte length, <= ChunkSize
	Hash       [32]byte // BLAKE3 over the zero-padded ChunkSize buffer
}

// FileChunks is the per-file output of HashFile.
type FileChunks struct {
	RelPath string
	Size    int64
	Chunks  []ChunkRef
}

var errInvalidChunkSize = errors.New("chunk size must be positive")

// HashFile reads path in chunkSize units, zero-pads the tail chunk, and
// returns one ChunkRef per chunk. A zero-byte file yields a single
// zero-length chunk whose hash is BLAKE3 of the all-zero buffer (invariant
// H1: the hash is always taken over the padded buffer).
func HashFile(path, relPath string, chunkSize int) (FileChunks, error) {
	const op = "chunker.HashFile"
	if chunkSize <= 0 {
		return FileChunks{}, parxerr.New(parxerr.KindBadConfig, op, errInvalidChunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return FileChunks{}, parxerr.New(parxerr.KindBadInput, op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileChunks{}, parxerr.New(parxerr.KindBadInput, op, err)
	}

	result := FileChunks{RelPath: relPath, Size: info.Size()}
	buf := make([]byte, chunkSize)
	var offset uint64
	idx := 0

	for {
		n, rerr := io.ReadFull(f, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return FileChunks{}, parxerr.New(parxerr.KindBadInput, op, rerr)
		}
		if n == 0 {
			break
		}

		padded := make([]byte, chunkSize)
		copy(padded, buf[:n])

		hash := blake3.Sum256(padded)
		result.Chunks = append(result.Chunks, ChunkRef{
			LocalIdx:   idx,
			FileOffset: offset,
			Len:        uint32(n),
			Hash:       hash,
		})
		idx++
		offset += uint64(n)

		if n < chunkSize {
			break
		}
	}

	if len(result.Chunks) == 0 {
		// Empty file: one zero-length chunk over an all-zero buffer.
		hash := blake3.Sum256(make([]byte, chunkSize))
		result.Chunks = append(result.Chunks, ChunkRef{Hash: hash})
	}

	return result, nil
}

// HashFiles hashes every (absPath, relPath) pair in parallel, one goroutine
// per file bounded by GOMAXPROCS, and returns results in input order
// regardless of completion order.
func HashFiles(absPaths, relPaths []string, chunkSize int) ([]FileChunks, error) {
	const op = "chunker.HashFiles"
	if len(absPaths) != len(relPaths) {
		return nil, parxerr.New(parxerr.KindBadConfig, op, errors.New("absPaths and relPaths must have equal length"))
	}

	out := make([]FileChunks, len(absPaths))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range absPaths {
		i := i
		g.Go(func() error {
			fc, err := HashFile(absPaths[i], relPaths[i], chunkSize)
			if err != nil {
				return err
			}
			out[i] = fc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadChunk reads length bytes at offset from path, zero-padded to
// chunkSize. Used by the verifier and repairer to re-read a single chunk.
func ReadChunk(path string, offset uint64, length, chunkSize int) ([]byte, error) {
	const op = "chunker.ReadChunk"
	f, err := os.Open(path)
	if err != nil {
		return nil, parxerr.New(parxerr.KindBadInput, op, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, parxerr.New(parxerr.KindBadInput, op, err)
	}
	if length > 0 {
		if _, err := io.ReadFull(f, buf[:length]); err != nil {
			return nil, parxerr.New(parxerr.KindBadInput, op, err)
		}
	}
	return buf, nil
}
