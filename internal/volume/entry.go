package volume

import (
	"encoding/binary"
	"fmt"
)

// OuterStripeSentinel marks an index entry as an outer-parity shard; its
// real stripe number is then carried in OuterForStripe.
const OuterStripeSentinel = 0xFFFFFFFF

// Entry is one index entry, in 1:1 correspondence with an appended shard
// body (invariant V1).
type Entry struct {
	Stripe         uint32
	ParityIdx      uint16
	Offset         uint64
	Len            uint32
	Hash           *[32]byte
	OuterForStripe *uint32
}

// IsOuter reports whether this entry describes an outer-parity shard.
func (e Entry) IsOuter() bool { return e.Stripe == OuterStripeSentinel }

// EncodeEntries serializes entries with a length-prefixed custom binary
// codec: a u32 count, then per entry stripe/parity_idx/offset/len followed
// by presence-tagged optional hash and outer_for_stripe fields. This keeps
// the on-disk layout independent of any reading process's type registry,
// unlike gob.
func EncodeEntries(entries []Entry) []byte {
	size := 4
	for range entries {
		size += 4 + 2 + 8 + 4 + 1 + 1 // fixed fields + hash flag + outer flag
	}
	for _, e := range entries {
		if e.Hash != nil {
			size += 32
		}
		if e.OuterForStripe != nil {
			size += 4
		}
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(entries)))
	off += 4

	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:], e.Stripe)
		off += 4
		binary.LittleEndian.PutUint16(buf[off:], e.ParityIdx)
		off += 2
		binary.LittleEndian.PutUint64(buf[off:], e.Offset)
		off += 8
		binary.LittleEndian.PutUint32(buf[off:], e.Len)
		off += 4

		if e.Hash != nil {
			buf[off] = 1
			off++
			copy(buf[off:off+32], e.Hash[:])
			off += 32
		} else {
			buf[off] = 0
			off++
		}

		if e.OuterForStripe != nil {
			buf[off] = 1
			off++
			binary.LittleEndian.PutUint32(buf[off:], *e.OuterForStripe)
			off += 4
		} else {
			buf[off] = 0
			off++
		}
	}

	return buf
}

// DecodeEntries parses the wire form produced by EncodeEntries.
func DecodeEntries(buf []byte) ([]Entry, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("volume: entry payload too short for count")
	}
	count := binary.LittleEndian.Uint32(buf)
	off := 4

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4+2+8+4+1 > len(buf) {
			return nil, fmt.Errorf("volume: truncated entry %d", i)
		}
		var e Entry
		e.Stripe = binary.LittleEndian.Uint32(buf[off:])
		off += 4
		e.ParityIdx = binary.LittleEndian.Uint16(buf[off:])
		off += 2
		e.Offset = binary.LittleEndian.Uint64(buf[off:])
		off += 8
		e.Len = binary.LittleEndian.Uint32(buf[off:])
		off += 4

		hasHash := buf[off]
		off++
		if hasHash == 1 {
			if off+32 > len(buf) {
				return nil, fmt.Errorf("volume: truncated hash in entry %d", i)
			}
			var h [32]byte
			copy(h[:], buf[off:off+32])
			e.Hash = &h
			off += 32
		}

		if off >= len(buf) {
			return nil, fmt.Errorf("volume: truncated outer flag in entry %d", i)
		}
		hasOuter := buf[off]
		off++
		if hasOuter == 1 {
			if off+4 > len(buf) {
				return nil, fmt.Errorf("volume: truncated outer_for_stripe in entry %d", i)
			}
			v := binary.LittleEndian.Uint32(buf[off:])
			e.OuterForStripe = &v
			off += 4
		}

		entries = append(entries, e)
	}

	return entries, nil
}
