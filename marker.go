package jpegt

// JPEG marker codes (the byte following 0xFF).
const (
	mSOF0 = 0xC0 // baseline DCT
	mDHT  = 0xC4
	mRST0 = 0xD0
	mSOI  = 0xD8
	mEOI  = 0xD9
	mSOS  = 0xDA
	mDQT  = 0xDB
	mDRI  = 0xDD
	mAPP0 = 0xE0
	mCOM  = 0xFE
)

// parseHeader reads the stream from SOI through SOS (or through SOF when
// configOnly is set), populating frame geometry and entropy tables.
func (s *Session) parseHeader(configOnly bool) error {
	b0, err := s.src.readByte()
	if err != nil {
		return ErrNoJPEG
	}
	b1, err := s.src.readByte()
	if err != nil {
		return ErrNoJPEG
	}
	if b0 != 0xFF || b1 != mSOI {
		return ErrNoJPEG
	}

	sofSeen := false

	for {
		marker, err := s.nextMarker()
		if err != nil {
			return err
		}

		switch {
		case marker == mSOF0:
			if sofSeen {
				return ErrSyntax
			}
			if err := s.parseSOF(); err != nil {
				return err
			}
			sofSeen = true
			if configOnly {
				return nil
			}

		case marker == mDQT:
			if err := s.parseDQT(); err != nil {
				return err
			}

		case marker == mDHT:
			if err := s.parseDHT(); err != nil {
				return err
			}

		case marker == mDRI:
			if err := s.parseDRI(); err != nil {
				return err
			}

		case marker == mSOS:
			if !sofSeen {
				return ErrSyntax
			}

			return s.parseSOS()

		case marker == mEOI:
			return ErrSyntax

		case marker >= 0xC0 && marker <= 0xCF:
			// Progressive, arithmetic and hierarchical frames.
			return ErrUnsupported

		case marker >= mRST0 && marker <= mRST0+7:
			// Stray restart markers carry no segment.

		default:
			// APPn, COM and anything else with a length field.
			if err := s.skipSegment(); err != nil {
				return err
			}
		}
	}
}

// nextMarker reads the next marker, tolerating fill bytes.
func (s *Session) nextMarker() (byte, error) {
	c, err := s.src.readByte()
	if err != nil {
		return 0, err
	}
	if c != 0xFF {
		return 0, ErrSyntax
	}

	for {
		c, err = s.src.readByte()
		if err != nil {
			return 0, err
		}
		if c != 0xFF {
			return c, nil
		}
	}
}

// segLength reads a segment length field and returns the payload size.
func (s *Session) segLength() (int, error) {
	hi, err := s.src.readByte()
	if err != nil {
		return 0, err
	}
	lo, err := s.src.readByte()
	if err != nil {
		return 0, err
	}

	n := int(hi)<<8 | int(lo)
	if n < 2 {
		return 0, ErrSyntax
	}

	return n - 2, nil
}

// readSeg materializes an n-byte segment payload in the segment scratch.
func (s *Session) readSeg(n int) ([]byte, error) {
	if n > len(s.src.seg) {
		return nil, ErrSyntax
	}

	seg := s.src.seg[:n]
	if err := s.src.readFull(seg); err != nil {
		return nil, err
	}

	return seg, nil
}

func (s *Session) skipSegment() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}

	return s.src.skipBytes(n)
}

func (s *Session) parseSOF() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}
	if n < 9 {
		return ErrSyntax
	}

	seg, err := s.readSeg(n)
	if err != nil {
		return err
	}

	if seg[0] != 8 {
		return ErrUnsupported // sample precision
	}

	s.height = int(seg[1])<<8 | int(seg[2])
	s.width = int(seg[3])<<8 | int(seg[4])
	if s.width == 0 || s.height == 0 {
		return ErrSyntax
	}

	s.ncomp = int(seg[5])
	switch s.ncomp {
	case 1, 3:
	default:
		return ErrUnsupported
	}
	if n < 6+3*s.ncomp {
		return ErrSyntax
	}

	blocks := 0
	for i := 0; i < s.ncomp; i++ {
		c := &s.comp[i]
		c.id = int(seg[6+3*i])

		ss := seg[7+3*i]
		c.ssX = int(ss >> 4)
		c.ssY = int(ss & 0x0F)
		if c.ssX < 1 || c.ssX > 4 || c.ssY < 1 || c.ssY > 4 {
			return ErrUnsupported
		}

		if seg[8+3*i]&0xFC != 0 {
			return ErrSyntax
		}
		c.qtSel = int(seg[8+3*i])

		blocks += c.ssX * c.ssY
	}

	if s.ncomp == 1 {
		// Grayscale streams sometimes carry odd sampling factors which
		// have no effect with a single component.
		s.comp[0].ssX, s.comp[0].ssY = 1, 1
		blocks = 1
	}
	if blocks > 10 {
		return ErrUnsupported
	}

	s.ssxMax, s.ssyMax = 0, 0
	for i := 0; i < s.ncomp; i++ {
		if s.comp[i].ssX > s.ssxMax {
			s.ssxMax = s.comp[i].ssX
		}
		if s.comp[i].ssY > s.ssyMax {
			s.ssyMax = s.comp[i].ssY
		}
	}

	s.mbSizeX = s.ssxMax * 8
	s.mbSizeY = s.ssyMax * 8
	s.mbWidth = (s.width + s.mbSizeX - 1) / s.mbSizeX
	s.mbHeight = (s.height + s.mbSizeY - 1) / s.mbSizeY

	return nil
}

func (s *Session) parseDQT() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}

	for n > 0 {
		pq, err := s.src.readByte()
		if err != nil {
			return err
		}
		n--

		// Only 8-bit tables with ids 0..3.
		if pq&0xFC != 0 {
			return ErrSyntax
		}
		if n < 64 {
			return ErrSyntax
		}

		tab := s.qtab[pq&3]
		if tab == nil {
			tab, err = s.arena.bytes(64)
			if err != nil {
				return err
			}
			s.qtab[pq&3] = tab
		}

		if err := s.src.readFull(tab); err != nil {
			return err
		}
		n -= 64
	}

	return nil
}

func (s *Session) parseDHT() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}

	for n >= 17 {
		tcth, err := s.src.readByte()
		if err != nil {
			return err
		}
		if tcth&0xEC != 0 {
			return ErrSyntax
		}
		class := int(tcth >> 4)
		id := int(tcth & 0x03)

		var counts [16]uint8
		if err := s.src.readFull(counts[:]); err != nil {
			return err
		}

		total := 0
		for _, c := range counts {
			total += int(c)
		}
		if total > 256 || total > n-17 {
			return ErrSyntax
		}

		values, err := s.readSeg(total)
		if err != nil {
			return err
		}

		tab, err := buildHuffTable(s.arena, &counts, values)
		if err != nil {
			return err
		}
		s.huff[class][id] = tab

		n -= 17 + total
	}

	if n != 0 {
		return ErrSyntax
	}

	return nil
}

func (s *Session) parseDRI() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}
	if n < 2 {
		return ErrSyntax
	}

	seg, err := s.readSeg(n)
	if err != nil {
		return err
	}

	s.rstInterval = int(seg[0])<<8 | int(seg[1])

	return nil
}

func (s *Session) parseSOS() error {
	n, err := s.segLength()
	if err != nil {
		return err
	}
	if n < 4+2*s.ncomp {
		return ErrSyntax
	}

	seg, err := s.readSeg(n)
	if err != nil {
		return err
	}

	if int(seg[0]) != s.ncomp {
		return ErrUnsupported
	}

	for i := 0; i < s.ncomp; i++ {
		c := &s.comp[i]
		if int(seg[1+2*i]) != c.id {
			return ErrSyntax
		}

		sel := seg[2+2*i]
		if sel&0xCC != 0 {
			return ErrSyntax
		}
		c.dcTabSel = int(sel >> 4)
		c.acTabSel = int(sel & 0x03)

		// Every referenced table must be defined by now.
		if s.huff[0][c.dcTabSel] == nil || s.huff[1][c.acTabSel] == nil || s.qtab[c.qtSel] == nil {
			return ErrSyntax
		}
	}

	// Baseline spectral selection and successive approximation.
	if seg[1+2*s.ncomp] != 0 || seg[2+2*s.ncomp] != 63 || seg[3+2*s.ncomp] != 0 {
		return ErrUnsupported
	}

	return nil
}
