package volume

import (
	"hash/crc32"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/parxive/parx/internal/parxerr"
)

// Writer appends parity shards to one volume file under a per-volume mutex
// and a monotonically increasing offset counter (§5), then finalizes the
// index and trailer once encode completes.
type Writer struct {
	f    *os.File
	path string
	k, m int

	mu      sync.Mutex
	offset  uint64
	entries []Entry
}

// Create opens path with create+truncate, takes the volume's exclusive
// advisory lock, and reserves the fixed-size header at offset 0.
func Create(path string, k, m int) (*Writer, error) {
	const op = "volume.Create"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}
	if err := LockFD(f.Fd()); err != nil {
		f.Close()
		if err == errWouldBlock {
			return nil, parxerr.New(parxerr.KindLockContended, op, err)
		}
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}

	hdr := Header{K: uint32(k), M: uint32(m), EntriesLen: 0, HeaderVersion: HeaderVersion, HeaderLen: HeaderLen}
	if _, err := f.WriteAt(hdr.Encode(), 0); err != nil {
		UnlockFD(f.Fd())
		f.Close()
		return nil, parxerr.New(parxerr.KindIO, op, err)
	}

	return &Writer{f: f, path: path, k: k, m: m, offset: HeaderLen}, nil
}

// Path returns the volume file path.
func (w *Writer) Path() string { return w.path }

// AppendShard writes data (one shard body) at the writer's current offset
// and records its index entry. Safe for concurrent use; the per-volume
// mutex and offset counter give readers true on-disk offsets regardless of
// append order across goroutines.
func (w *Writer) AppendShard(stripe uint32, parityIdx uint16, data []byte, hash *[32]byte, outerForStripe *uint32) (uint64, error) {
	const op = "volume.Writer.AppendShard"
	w.mu.Lock()
	defer w.mu.Unlock()

	off := w.offset
	if _, err := w.f.WriteAt(data, int64(off)); err != nil {
		return 0, parxerr.New(parxerr.KindIO, op, err)
	}
	w.offset += uint64(len(data))
	w.entries = append(w.entries, Entry{
		Stripe:         stripe,
		ParityIdx:      parityIdx,
		Offset:         off,
		Len:            uint32(len(data)),
		Hash:           hash,
		OuterForStripe: outerForStripe,
	})
	return off, nil
}

// EntryCount returns the number of shards appended so far.
func (w *Writer) EntryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Finalize serializes the index, compresses it with zstd, appends it, then
// (when manifestJSON is non-nil — volume 0 only) a manifest-backup blob and
// TLV, then the CRC-protected trailer, then rewrites the header with the
// final entry count.
func (w *Writer) Finalize(manifestJSON []byte) error {
	const op = "volume.Writer.Finalize"
	w.mu.Lock()
	defer w.mu.Unlock()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	defer enc.Close()

	raw := EncodeEntries(w.entries)
	compressed := enc.EncodeAll(raw, nil)

	desc := IndexDescriptor{SchemaVersion: 1, CodecID: CodecZstd}.Encode()
	payload := append(desc, compressed...)

	idxOff := w.offset
	if _, err := w.f.WriteAt(payload, int64(idxOff)); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	crc := crc32.ChecksumIEEE(payload)
	idxLen := uint32(len(payload))
	nextOff := idxOff + uint64(idxLen)

	if manifestJSON != nil {
		mbCompressed := enc.EncodeAll(manifestJSON, nil)
		mbOff := nextOff
		if _, err := w.f.WriteAt(mbCompressed, int64(mbOff)); err != nil {
			return parxerr.New(parxerr.KindIO, op, err)
		}
		meta := ManifestBackupMeta{Off: mbOff, Len: uint32(len(mbCompressed)), CRC32: crc32.ChecksumIEEE(mbCompressed)}
		tlv := meta.Encode()
		if _, err := w.f.WriteAt(tlv, int64(mbOff+uint64(len(mbCompressed)))); err != nil {
			return parxerr.New(parxerr.KindIO, op, err)
		}
		nextOff = mbOff + uint64(len(mbCompressed)) + uint64(len(tlv))
	}

	trailer := Trailer{IndexOff: idxOff, IndexLen: idxLen, CRC32: crc}.Encode()
	if _, err := w.f.WriteAt(trailer, int64(nextOff)); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	finalLen := nextOff + uint64(len(trailer))

	hdr := Header{K: uint32(w.k), M: uint32(w.m), EntriesLen: uint32(len(w.entries)), HeaderVersion: HeaderVersion, HeaderLen: HeaderLen}
	if _, err := w.f.WriteAt(hdr.Encode(), 0); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}

	if err := w.f.Truncate(int64(finalLen)); err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	return nil
}

// Close releases the volume's exclusive lock and closes the file.
func (w *Writer) Close() error {
	const op = "volume.Writer.Close"
	unlockErr := UnlockFD(w.f.Fd())
	closeErr := w.f.Close()
	if unlockErr != nil {
		return parxerr.New(parxerr.KindIO, op, unlockErr)
	}
	if closeErr != nil {
		return parxerr.New(parxerr.KindIO, op, closeErr)
	}
	return nil
}
