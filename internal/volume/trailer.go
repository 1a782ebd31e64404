package volume

import (
	"encoding/binary"
	"errors"
)

// Trailer magic/layout: "PARXINDEX\0" + index_off(u64) + index_len(u32) + crc32(u32).
var trailerMagic = [10]byte{'P', 'A', 'R', 'X', 'I', 'N', 'D', 'E', 'X', 0}

// TrailerLen is the fixed trailer size at EOF.
const TrailerLen = 10 + 8 + 4 + 4

// Trailer locates and protects the compressed index payload.
type Trailer struct {
	IndexOff uint64
	IndexLen uint32
	CRC32    uint32
}

// Encode writes the trailer's fixed wire form.
func (t Trailer) Encode() []byte {
	buf := make([]byte, TrailerLen)
	copy(buf[0:10], trailerMagic[:])
	binary.LittleEndian.PutUint64(buf[10:18], t.IndexOff)
	binary.LittleEndian.PutUint32(buf[18:22], t.IndexLen)
	binary.LittleEndian.PutUint32(buf[22:26], t.CRC32)
	return buf
}

var errBadTrailerMagic = errors.New("volume: bad trailer magic")

// DecodeTrailer parses a TrailerLen-byte buffer. A bad magic is reported as
// an error, never a panic — callers treat a malformed trailer as "no index".
func DecodeTrailer(buf []byte) (Trailer, error) {
	if len(buf) < TrailerLen {
		return Trailer{}, errors.New("volume: trailer buffer too short")
	}
	var magic [10]byte
	copy(magic[:], buf[0:10])
	if magic != trailerMagic {
		return Trailer{}, errBadTrailerMagic
	}
	return Trailer{
		IndexOff: binary.LittleEndian.Uint64(buf[10:18]),
		IndexLen: binary.LittleEndian.Uint32(buf[18:22]),
		CRC32:    binary.LittleEndian.Uint32(buf[22:26]),
	}, nil
}

// Index descriptor, placed immediately before the compressed index payload:
// "PARXIDXD\0" + schema_version(u32) + codec_id(u32) + flags(u32).
var indexDescMagic = [9]byte{'P', 'A', 'R', 'X', 'I', 'D', 'X', 'D', 0}

// IndexDescLen is the fixed descriptor size.
const IndexDescLen = 9 + 4 + 4 + 4

// CodecZstd is the only index compression codec this writer produces.
const CodecZstd = 1

// IndexDescriptor precedes the compressed index bytes in the on-disk payload.
type IndexDescriptor struct {
	SchemaVersion uint32
	CodecID       uint32
	Flags         uint32
}

// Encode writes the descriptor's fixed wire form.
func (d IndexDescriptor) Encode() []byte {
	buf := make([]byte, IndexDescLen)
	copy(buf[0:9], indexDescMagic[:])
	binary.LittleEndian.PutUint32(buf[9:13], d.SchemaVersion)
	binary.LittleEndian.PutUint32(buf[13:17], d.CodecID)
	binary.LittleEndian.PutUint32(buf[17:21], d.Flags)
	return buf
}

var errNoIndexDescriptor = errors.New("volume: no index descriptor present")

// SplitIndexDescriptor detects a leading descriptor in payload and returns
// (descriptor, rest, true) if present, or (zero, payload, false) otherwise.
func SplitIndexDescriptor(payload []byte) (IndexDescriptor, []byte, bool) {
	if len(payload) < IndexDescLen {
		return IndexDescriptor{}, payload, false
	}
	var magic [9]byte
	copy(magic[:], payload[0:9])
	if magic != indexDescMagic {
		return IndexDescriptor{}, payload, false
	}
	d := IndexDescriptor{
		SchemaVersion: binary.LittleEndian.Uint32(payload[9:13]),
		CodecID:       binary.LittleEndian.Uint32(payload[13:17]),
		Flags:         binary.LittleEndian.Uint32(payload[17:21]),
	}
	return d, payload[IndexDescLen:], true
}

// Manifest-backup TLV, written in volume 0 just before the trailer:
// "PARXMBTL\0" + off(u64) + len(u32) + crc32(u32).
var mbTLVMagic = [9]byte{'P', 'A', 'R', 'X', 'M', 'B', 'T', 'L', 0}

// MBTLVLen is the fixed manifest-backup TLV size.
const MBTLVLen = 9 + 8 + 4 + 4

// ManifestBackupMeta locates the compressed manifest-backup blob.
type ManifestBackupMeta struct {
	Off   uint64
	Len   uint32
	CRC32 uint32
}

// Encode writes the TLV's fixed wire form.
func (m ManifestBackupMeta) Encode() []byte {
	buf := make([]byte, MBTLVLen)
	copy(buf[0:9], mbTLVMagic[:])
	binary.LittleEndian.PutUint64(buf[9:17], m.Off)
	binary.LittleEndian.PutUint32(buf[17:21], m.Len)
	binary.LittleEndian.PutUint32(buf[21:25], m.CRC32)
	return buf
}

// DecodeManifestBackupMeta parses an MBTLVLen-byte buffer, returning
// errNoIndexDescriptor when the buffer is short or the magic doesn't match
// (the caller treats "no TLV present" as a normal, non-fatal outcome).
func DecodeManifestBackupMeta(buf []byte) (ManifestBackupMeta, error) {
	if len(buf) < MBTLVLen {
		return ManifestBackupMeta{}, errNoIndexDescriptor
	}
	var magic [9]byte
	copy(magic[:], buf[0:9])
	if magic != mbTLVMagic {
		return ManifestBackupMeta{}, errNoIndexDescriptor
	}
	return ManifestBackupMeta{
		Off:   binary.LittleEndian.Uint64(buf[9:17]),
		Len:   binary.LittleEndian.Uint32(buf[17:21]),
		CRC32: binary.LittleEndian.Uint32(buf[21:25]),
	}, nil
}
