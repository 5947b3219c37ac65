package jpegt

// Row-band assembly. After the blocks of an MCU are reconstructed into the
// per-component sample buffers, emitMCU resolves chroma subsampling by
// nearest-neighbor mapping, converts to the requested pixel format and
// stores the result in the band buffer at the MCU's horizontal position.

// emitMCU writes the current MCU into the band buffer. bandRows is the
// number of valid output rows in this band, already clipped to the image
// bottom.
func (s *Session) emitMCU(mbx, bandRows int) {
	mcuW := s.ssxMax * s.bs
	x0 := mbx * mcuW

	cols := mcuW
	if x0+cols > s.outW {
		cols = s.outW - x0
	}
	if cols <= 0 {
		return
	}

	switch {
	case s.bpp == 1:
		s.emitGray(x0, cols, bandRows)
	case s.ncomp == 1:
		s.emitGrayAsRGB(x0, cols, bandRows)
	default:
		s.emitYCbCr(x0, cols, bandRows)
	}
}

// sampleRow returns the component sample row covering output band row py.
func (s *Session) sampleRow(c *component, py int) []byte {
	cy := py * c.ssY / s.ssyMax

	return c.mcuPix[cy*c.mcuStride:]
}

func (s *Session) emitGray(x0, cols, rows int) {
	c := &s.comp[0]

	for py := 0; py < rows; py++ {
		src := s.sampleRow(c, py)
		dst := s.band[py*s.bandStride+x0:]

		if c.ssX == s.ssxMax {
			copy(dst[:cols], src[:cols])

			continue
		}

		for px := 0; px < cols; px++ {
			dst[px] = src[px*c.ssX/s.ssxMax]
		}
	}
}

func (s *Session) emitGrayAsRGB(x0, cols, rows int) {
	c := &s.comp[0]

	for py := 0; py < rows; py++ {
		src := s.sampleRow(c, py)
		dst := s.band[py*s.bandStride+x0*3:]

		for px := 0; px < cols; px++ {
			v := src[px]
			dst[px*3+0] = v
			dst[px*3+1] = v
			dst[px*3+2] = v
		}
	}
}

// emitYCbCr converts one MCU of Y, Cb and Cr samples to packed RGB.
// Fixed-point BT.601 coefficients scaled by 256.
func (s *Session) emitYCbCr(x0, cols, rows int) {
	cy := &s.comp[0]
	ccb := &s.comp[1]
	ccr := &s.comp[2]

	for py := 0; py < rows; py++ {
		yRow := s.sampleRow(cy, py)
		cbRow := s.sampleRow(ccb, py)
		crRow := s.sampleRow(ccr, py)
		dst := s.band[py*s.bandStride+x0*3:]

		for px := 0; px < cols; px++ {
			y := int32(yRow[px*cy.ssX/s.ssxMax]) << 8
			cb := int32(cbRow[px*ccb.ssX/s.ssxMax]) - 128
			cr := int32(crRow[px*ccr.ssX/s.ssxMax]) - 128

			dst[px*3+0] = clip((y + 359*cr + 128) >> 8)
			dst[px*3+1] = clip((y - 88*cb - 183*cr + 128) >> 8)
			dst[px*3+2] = clip((y + 454*cb + 128) >> 8)
		}
	}
}
