package jpegt

import (
	"testing"
)

func TestIdctDCOnly(t *testing.T) {
	// A block holding only a DC coefficient reconstructs to a flat patch
	// of dc/8 + 128.
	var blk [64]int32
	blk[0] = 256

	out := make([]byte, 64)
	idct(&blk, out, 0, 8)

	for i, v := range out {
		if v != 160 {
			t.Fatalf("sample %d = %d, want 160", i, v)
		}
	}
}

func TestIdctClipping(t *testing.T) {
	var blk [64]int32
	blk[0] = 1 << 14 // far above the representable range

	out := make([]byte, 64)
	idct(&blk, out, 0, 8)

	for i, v := range out {
		if v != 255 {
			t.Fatalf("sample %d = %d, want 255", i, v)
		}
	}

	blk = [64]int32{}
	blk[0] = -(1 << 14)
	idct(&blk, out, 0, 8)

	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}

func TestIdctHorizontalFrequency(t *testing.T) {
	// DC plus the lowest horizontal AC term: rows are identical and
	// values decrease monotonically left to right for a positive
	// coefficient.
	var blk [64]int32
	blk[0] = 512
	blk[1] = 256

	out := make([]byte, 64)
	idct(&blk, out, 0, 8)

	for y := 1; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if out[y*8+x] != out[x] {
				t.Fatalf("row %d differs from row 0 at column %d", y, x)
			}
		}
	}

	for x := 1; x < 8; x++ {
		if out[x] > out[x-1] {
			t.Fatalf("samples increase at column %d: %d > %d", x, out[x], out[x-1])
		}
	}
}

func TestIdctScaledMeanMatchesFull(t *testing.T) {
	// The reduced transforms must preserve block brightness: for a
	// DC-only block every scale yields the same flat value.
	var blk [64]int32
	blk[0] = 320

	// idct works in place, so give the full transform its own copy.
	fullBlk := blk
	full := make([]byte, 64)
	idct(&fullBlk, full, 0, 8)
	want := full[0]

	out4 := make([]byte, 16)
	idct8x8To4x4(&blk, out4, 0, 4)
	for i, v := range out4 {
		if !isClose(v, want, 1) {
			t.Fatalf("4x4 sample %d = %d, want %d", i, v, want)
		}
	}

	out2 := make([]byte, 4)
	idct8x8To2x2(&blk, out2, 0, 2)
	for i, v := range out2 {
		if !isClose(v, want, 1) {
			t.Fatalf("2x2 sample %d = %d, want %d", i, v, want)
		}
	}

	out1 := make([]byte, 1)
	idct8x8To1x1(&blk, out1, 0)
	if !isClose(out1[0], want, 1) {
		t.Fatalf("1x1 sample = %d, want %d", out1[0], want)
	}
}

func TestIdctScaledStride(t *testing.T) {
	// Writing through a larger stride must leave gap bytes untouched.
	var blk [64]int32
	blk[0] = 80

	out := make([]byte, 64)
	for i := range out {
		out[i] = 0xEE
	}

	idct8x8To2x2(&blk, out, 0, 16)

	for _, i := range []int{0, 1, 16, 17} {
		if out[i] == 0xEE {
			t.Fatalf("sample %d not written", i)
		}
	}
	for _, i := range []int{2, 15, 18, 32} {
		if out[i] != 0xEE {
			t.Fatalf("gap byte %d overwritten", i)
		}
	}
}
