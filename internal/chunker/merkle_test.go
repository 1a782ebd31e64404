package chunker

import (
	"testing"

	"github.com/zeebo/blake3"
)

func TestRoot_EmptyAndSingle(t *testing.T) {
	empty := Root(nil)
	if empty != blake3.Sum256(nil) {
		t.Error("empty root must equal BLAKE3(empty)")
	}

	leaf := blake3.Sum256([]byte("alpha"))
	single := Root([][32]byte{leaf})
	if single != leaf {
		t.Error("single-leaf root must equal the leaf itself")
	}
}

func TestRoot_PairAndTriplet(t *testing.T) {
	a := blake3.Sum256([]byte("a"))
	b := blake3.Sum256([]byte("b"))
	c := blake3.Sum256([]byte("c"))

	var ab [64]byte
	copy(ab[:32], a[:])
	copy(ab[32:], b[:])
	wantAB := blake3.Sum256(ab[:])

	if got := Root([][32]byte{a, b}); got != wantAB {
		t.Error("pair root must be BLAKE3(a||b)")
	}

	root3 := Root([][32]byte{a, b, c})
	if root3 == wantAB {
		t.Error("triplet root should differ from the pair root")
	}

	// Odd layer duplicates the last node: root([a,b,c]) == root([ab, cc_dup])
	var cc [64]byte
	copy(cc[:32], c[:])
	copy(cc[32:], c[:])
	wantLayer2 := blake3.Sum256(cc[:])
	var final [64]byte
	copy(final[:32], wantAB[:])
	copy(final[32:], wantLayer2[:])
	want3 := blake3.Sum256(final[:])
	if root3 != want3 {
		t.Error("odd-layer duplication does not match expected construction")
	}
}

func TestRoot_Deterministic(t *testing.T) {
	leaves := [][32]byte{
		blake3.Sum256([]byte("1")),
		blake3.Sum256([]byte("2")),
		blake3.Sum256([]byte("3")),
		blake3.Sum256([]byte("4")),
		blake3.Sum256([]byte("5")),
	}
	if Root(leaves) != Root(leaves) {
		t.Error("Root must be deterministic for identical input")
	}
}
