package jpegt

// Reduced inverse transforms for scaled decoding. Each variant consumes the
// low-frequency corner of the coefficient block and produces a 4x4, 2x2 or
// 1x1 sample patch whose mean matches the full transform, so scaled output
// keeps the brightness of the full-size decode.

// idctScaled dispatches on the scale denominator (1, 2, 4 or 8).
func idctScaled(blk *[64]int32, out []byte, outOffset int, stride int, scaleDenom int) {
	switch scaleDenom {
	case 2:
		idct8x8To4x4(blk, out, outOffset, stride)
	case 4:
		idct8x8To2x2(blk, out, outOffset, stride)
	case 8:
		idct8x8To1x1(blk, out, outOffset)
	default:
		idct(blk, out, outOffset, stride)
	}
}

// idct8x8To1x1 reduces a block to its mean sample.
func idct8x8To1x1(blk *[64]int32, out []byte, outOffset int) {
	out[outOffset] = clip(((blk[0] + 4) >> 3) + 128)
}

// idct8x8To2x2 evaluates a 2x2 patch from the four lowest coefficients.
func idct8x8To2x2(blk *[64]int32, out []byte, outOffset int, stride int) {
	c00 := blk[0]
	c01 := blk[1]
	c10 := blk[8]
	c11 := blk[9]

	r0 := c00 + c01
	r1 := c00 - c01
	r2 := c10 + c11
	r3 := c10 - c11

	out[outOffset] = clip(((r0 + r2 + 4) >> 3) + 128)
	out[outOffset+1] = clip(((r1 + r3 + 4) >> 3) + 128)
	out[outOffset+stride] = clip(((r0 - r2 + 4) >> 3) + 128)
	out[outOffset+stride+1] = clip(((r1 - r3 + 4) >> 3) + 128)
}

// idct8x8To4x4 runs a 4-point butterfly over the top-left 4x4 coefficients.
func idct8x8To4x4(blk *[64]int32, out []byte, outOffset int, stride int) {
	var tmp [16]int32

	for i := 0; i < 4; i++ {
		s0 := blk[i*8+0]
		s1 := blk[i*8+1]
		s2 := blk[i*8+2]
		s3 := blk[i*8+3]

		t0 := s0 + s2
		t1 := s0 - s2
		t2 := (s1 >> 1) - s3
		t3 := s1 + (s3 >> 1)

		tmp[i*4+0] = t0 + t3
		tmp[i*4+1] = t1 + t2
		tmp[i*4+2] = t1 - t2
		tmp[i*4+3] = t0 - t3
	}

	for i := 0; i < 4; i++ {
		s0 := tmp[0*4+i]
		s1 := tmp[1*4+i]
		s2 := tmp[2*4+i]
		s3 := tmp[3*4+i]

		t0 := s0 + s2
		t1 := s0 - s2
		t2 := (s1 >> 1) - s3
		t3 := s1 + (s3 >> 1)

		out[outOffset+0*stride+i] = clip(((t0 + t3 + 4) >> 3) + 128)
		out[outOffset+1*stride+i] = clip(((t1 + t2 + 4) >> 3) + 128)
		out[outOffset+2*stride+i] = clip(((t1 - t2 + 4) >> 3) + 128)
		out[outOffset+3*stride+i] = clip(((t0 - t3 + 4) >> 3) + 128)
	}
}
