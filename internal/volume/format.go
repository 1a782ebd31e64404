// Package volume implements the self-describing ".parxv" binary parity
// volume format: a fixed header, a sequence of parity shard bodies, a
// zstd-compressed index, an optional manifest-backup blob, and a
// CRC32-protected trailer located at EOF.
package volume

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed on-disk header size in bytes.
const HeaderLen = 32

// HeaderVersion is the only header layout this writer produces.
const HeaderVersion = 1

// Magic is the current volume magic. MagicBV2/MagicBV1 are accepted on read
// for backward compatibility with earlier writer generations.
var (
	Magic     = [8]byte{'P', 'A', 'R', 'X', 'V', 'O', 'L', 0}
	MagicBV2  = [8]byte{'P', 'A', 'R', 'X', 'B', 'V', '2', 0}
	MagicBV1  = [8]byte{'P', 'A', 'R', 'X', 'B', 'V', '1', 0}
)

var errBadMagic = errors.New("volume: bad header magic")
var errShortHeader = errors.New("volume: file shorter than header")

// Header is the 32-byte fixed header at offset 0.
type Header struct {
	K             uint32
	M             uint32
	EntriesLen    uint32
	HeaderVersion uint32
	HeaderLen     uint32
	FeatureFlags  uint32
}

// Encode writes the header's 32-byte little-endian wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.K)
	binary.LittleEndian.PutUint32(buf[12:16], h.M)
	binary.LittleEndian.PutUint32(buf[16:20], h.EntriesLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.HeaderVersion)
	binary.LittleEndian.PutUint32(buf[24:28], h.HeaderLen)
	binary.LittleEndian.PutUint32(buf[28:32], h.FeatureFlags)
	return buf
}

// DecodeHeader parses a 32-byte header, accepting the current magic and the
// two legacy magics for read compatibility.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errShortHeader
	}
	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != Magic && magic != MagicBV2 && magic != MagicBV1 {
		return Header{}, errBadMagic
	}
	return Header{
		K:             binary.LittleEndian.Uint32(buf[8:12]),
		M:             binary.LittleEndian.Uint32(buf[12:16]),
		EntriesLen:    binary.LittleEndian.Uint32(buf[16:20]),
		HeaderVersion: binary.LittleEndian.Uint32(buf[20:24]),
		HeaderLen:     binary.LittleEndian.Uint32(buf[24:28]),
		FeatureFlags:  binary.LittleEndian.Uint32(buf[28:32]),
	}, nil
}
