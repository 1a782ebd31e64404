package volume

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/parxive/parx/internal/parxerr"
)

// IndexLimits bounds decompression and entry count to guard against a
// malformed or hostile index blob.
type IndexLimits struct {
	MaxUncompressedBytes int
	MaxEntries           int
}

// DefaultIndexLimits matches §4.7's defaults.
func DefaultIndexLimits() IndexLimits {
	return IndexLimits{MaxUncompressedBytes: 32 * 1024 * 1024, MaxEntries: 5_000_000}
}

// Reader parses one volume file: header, shard bodies, index, and trailer.
type Reader struct {
	f      *os.File
	path   string
	Header Header
}

// Open reads and validates the fixed header. A bad or missing magic is a
// structured FormatError, never a panic.
func Open(path string) (*Reader, error) {
	const op = "volume.Open"
	f, err := os.Open(path)
	if err != nil {
		return nil, parxerr.New(parxerr.KindBadInput, op, err)
	}

	buf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, parxerr.New(parxerr.KindFormat, op, err)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, parxerr.New(parxerr.KindFormat, op, err)
	}

	return &Reader{f: f, path: path, Header: hdr}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// ReadTrailer locates the trailer at EOF. A short or malformed trailer
// returns a FormatError rather than crashing; callers treat that volume as
// having an empty index and continue (invariant I4).
func (r *Reader) ReadTrailer() (Trailer, error) {
	const op = "volume.Reader.ReadTrailer"
	info, err := r.f.Stat()
	if err != nil {
		return Trailer{}, parxerr.New(parxerr.KindIO, op, err)
	}
	if info.Size() < TrailerLen {
		return Trailer{}, parxerr.New(parxerr.KindFormat, op, errors.New("volume: file shorter than trailer"))
	}

	buf := make([]byte, TrailerLen)
	if _, err := r.f.ReadAt(buf, info.Size()-TrailerLen); err != nil {
		return Trailer{}, parxerr.New(parxerr.KindIO, op, err)
	}
	t, err := DecodeTrailer(buf)
	if err != nil {
		return Trailer{}, parxerr.New(parxerr.KindFormat, op, err)
	}
	return t, nil
}

// ReadIndex verifies the trailer's CRC and decodes the index entries,
// applying limits to the decompressed size and entry count.
func (r *Reader) ReadIndex(t Trailer, limits IndexLimits) ([]Entry, error) {
	const op = "volume.Reader.ReadIndex"
	buf := make([]byte, t.IndexLen)
	if _, err := r.f.ReadAt(buf, int64(t.IndexOff)); err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}

	if crc32.ChecksumIEEE(buf) != t.CRC32 {
		return nil, parxerr.New(parxerr.KindFormat, op, errors.New("volume: index CRC mismatch"))
	}

	payload := buf
	if _, rest, ok := SplitIndexDescriptor(buf); ok {
		payload = rest
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limits.MaxUncompressedBytes)))
	if err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, parxerr.New(parxerr.KindFormat, op, fmt.Errorf("zstd decompress index: %w", err))
	}
	if len(raw) > limits.MaxUncompressedBytes {
		return nil, parxerr.New(parxerr.KindFormat, op, errors.New("volume: index exceeds max uncompressed size"))
	}

	entries, err := DecodeEntries(raw)
	if err != nil {
		return nil, parxerr.New(parxerr.KindFormat, op, err)
	}
	if len(entries) > limits.MaxEntries {
		return nil, parxerr.New(parxerr.KindFormat, op, errors.New("volume: too many index entries"))
	}
	return entries, nil
}

// ReadManifestBackup scans just before the trailer for the manifest-backup
// TLV (volume 0 only) and, if present, returns the decompressed
// manifest.json bytes.
func (r *Reader) ReadManifestBackup() ([]byte, bool, error) {
	const op = "volume.Reader.ReadManifestBackup"
	info, err := r.f.Stat()
	if err != nil {
		return nil, false, parxerr.New(parxerr.KindIO, op, err)
	}
	if info.Size() < TrailerLen+MBTLVLen {
		return nil, false, nil
	}

	tlvOff := info.Size() - TrailerLen - MBTLVLen
	buf := make([]byte, MBTLVLen)
	if _, err := r.f.ReadAt(buf, tlvOff); err != nil {
		return nil, false, parxerr.New(parxerr.KindIO, op, err)
	}
	meta, err := DecodeManifestBackupMeta(buf)
	if err != nil {
		return nil, false, nil
	}

	blob := make([]byte, meta.Len)
	if _, err := r.f.ReadAt(blob, int64(meta.Off)); err != nil {
		return nil, false, parxerr.New(parxerr.KindIO, op, err)
	}
	if crc32.ChecksumIEEE(blob) != meta.CRC32 {
		return nil, false, parxerr.New(parxerr.KindFormat, op, errors.New("volume: manifest backup CRC mismatch"))
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, parxerr.New(parxerr.KindIO, op, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, parxerr.New(parxerr.KindFormat, op, fmt.Errorf("zstd decompress manifest backup: %w", err))
	}
	return out, true, nil
}

// ReadShard reads one shard's raw bytes from its index entry.
func (r *Reader) ReadShard(e Entry) ([]byte, error) {
	const op = "volume.Reader.ReadShard"
	buf := make([]byte, e.Len)
	if _, err := r.f.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}
	return buf, nil
}
