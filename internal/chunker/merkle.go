package chunker

import "github.com/zeebo/blake3"

// Root computes the Merkle root over leaves in order: Node = BLAKE3(left ||
// right); odd layers duplicate the last node. Root of zero leaves is
// BLAKE3 of the empty input; root of one leaf is that leaf, unhashed.
func Root(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return blake3.Sum256(nil)
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var combined [64]byte
			copy(combined[:32], level[i][:])
			if i+1 < len(level) {
				copy(combined[32:], level[i+1][:])
			} else {
				copy(combined[32:], level[i][:])
			}
			next = append(next, blake3.Sum256(combined[:]))
		}
		level = next
	}

	return level[0]
}
