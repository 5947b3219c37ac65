package jpegt

import (
	"fmt"
)

// errDecode is used for internal panics during the hot decoding path.
type errDecode struct{ error }

// zigzag maps zig-zag scan order to natural (row-major) block order.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10, 17, 24, 32, 25, 18, 11, 4, 5, 12, 19, 26, 33,
	40, 48, 41, 34, 27, 20, 13, 6, 7, 14, 21, 28, 35, 42, 49, 56, 57, 50,
	43, 36, 29, 22, 15, 23, 30, 37, 44, 51, 58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// component holds the per-component state of the frame being decoded.
type component struct {
	id       int
	ssX, ssY int
	qtSel    int
	dcTabSel int
	acTabSel int
	dcPred   int

	// mcuPix holds the reconstructed samples of the current MCU at output
	// scale, ssX*bs columns by ssY*bs rows.
	mcuPix    []byte
	mcuStride int
}

// Session decodes one baseline JPEG image. Prepare parses the header and
// allocates all decode state; Decompress runs the scan and delivers pixel
// row-bands to a sink. A session decodes a single image and cannot be
// reused.
type Session struct {
	src   *bitReader
	arena *arena
	opts  Options

	width  int // source pixels
	height int
	ncomp  int
	comp   [3]component

	ssxMax, ssyMax int
	mbWidth        int // MCUs per row
	mbHeight       int // MCU rows
	mbSizeX        int // source pixels per MCU
	mbSizeY        int

	scaleDenom int
	bs         int // block sample size at output scale, 8/scaleDenom

	outW, outH int
	bpp        int

	qtab [4][]byte
	huff [2][4]*huffTable

	rstInterval int

	block [64]int32

	// band stages one MCU row of output pixels between scan decoding and
	// sink delivery.
	band       []byte
	bandStride int

	done bool
}

func newSession(src ByteSource, work []byte, opts *Options) (*Session, error) {
	s := &Session{arena: newArena(work)}
	if opts != nil {
		s.opts = *opts
	}

	br, err := newBitReader(src, s.arena)
	if err != nil {
		return nil, err
	}
	s.src = br

	return s, nil
}

// Prepare parses the JPEG header from src and returns a session ready for
// Decompress. All decoder state, including the row-band buffer, is
// allocated from work; if the work area is too small Prepare fails with
// ErrWorkArea before any pixel is produced. A nil work area allocates from
// the heap instead, with WorkUsed still reporting the fixed-area
// requirement.
func Prepare(src ByteSource, work []byte, opts *Options) (*Session, error) {
	s, err := newSession(src, work, opts)
	if err != nil {
		return nil, err
	}

	switch s.opts.ScaleDenom {
	case 0:
		s.opts.ScaleDenom = 1
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("scale denominator %d: %w", s.opts.ScaleDenom, ErrUnsupported)
	}

	s.scaleDenom = s.opts.ScaleDenom

	if err := s.parseHeader(false); err != nil {
		return nil, err
	}

	if err := s.allocDecodeBuffers(); err != nil {
		return nil, err
	}

	return s, nil
}

// Width returns the output image width in pixels, after scaling.
func (s *Session) Width() int { return s.outW }

// Height returns the output image height in pixels, after scaling.
func (s *Session) Height() int { return s.outH }

// SourceWidth returns the encoded image width before scaling.
func (s *Session) SourceWidth() int { return s.width }

// SourceHeight returns the encoded image height before scaling.
func (s *Session) SourceHeight() int { return s.height }

// Components returns the number of color components (1 or 3).
func (s *Session) Components() int { return s.ncomp }

// MCUGrid returns the MCU grid dimensions of the scan.
func (s *Session) MCUGrid() (int, int) { return s.mbWidth, s.mbHeight }

// WorkUsed reports how many bytes of the work area the session consumed,
// including alignment padding.
func (s *Session) WorkUsed() int { return s.arena.used() }

// panic signals a decoding error from the hot path.
func (s *Session) panic(err error) {
	panic(errDecode{err})
}

// allocDecodeBuffers sizes the per-component MCU buffers and the row-band
// buffer once frame geometry and scan parameters are known.
func (s *Session) allocDecodeBuffers() error {
	s.bs = 8 / s.scaleDenom
	s.outW = (s.width + s.scaleDenom - 1) / s.scaleDenom
	s.outH = (s.height + s.scaleDenom - 1) / s.scaleDenom

	for i := 0; i < s.ncomp; i++ {
		c := &s.comp[i]
		w := c.ssX * s.bs
		h := c.ssY * s.bs

		pix, err := s.arena.bytes(w * h)
		if err != nil {
			return err
		}

		c.mcuPix = pix
		c.mcuStride = w
	}

	s.bpp = 3
	if s.opts.Format == Gray8 {
		s.bpp = 1
	}

	s.bandStride = s.outW * s.bpp

	band, err := s.arena.bytes(s.bandStride * s.ssyMax * s.bs)
	if err != nil {
		return err
	}
	s.band = band

	return nil
}

// Decompress decodes the scan and delivers each MCU row-band to sink, top
// to bottom. The rectangles partition the output exactly. Decompress
// returns ErrCancelled if the sink declines a band; pixel data already
// delivered stays valid regardless of the outcome.
func (s *Session) Decompress(sink PixelSink) (err error) {
	if sink == nil {
		return fmt.Errorf("nil sink: %w", ErrInternal)
	}
	if s.done {
		return fmt.Errorf("session already consumed: %w", ErrInternal)
	}
	s.done = true

	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(errDecode); ok {
				err = de.error
			} else {
				panic(r)
			}
		}
	}()

	for i := 0; i < s.ncomp; i++ {
		s.comp[i].dcPred = 0
	}
	s.src.resetBits()

	rstCount := s.rstInterval
	nextRst := 0
	bandH := s.ssyMax * s.bs

	for mby := 0; mby < s.mbHeight; mby++ {
		top := mby * bandH
		rows := bandH
		if top+rows > s.outH {
			rows = s.outH - top
		}

		for mbx := 0; mbx < s.mbWidth; mbx++ {
			s.decodeMCU()
			s.emitMCU(mbx, rows)

			if s.rstInterval != 0 {
				rstCount--
				last := mby == s.mbHeight-1 && mbx == s.mbWidth-1
				if rstCount == 0 && !last {
					s.restart(nextRst)
					nextRst = (nextRst + 1) & 7
					rstCount = s.rstInterval
				}
			}
		}

		r := Rect{Left: 0, Top: top, Right: s.outW - 1, Bottom: top + rows - 1}
		if !sink.Receive(s.band[:rows*s.bandStride], r) {
			return ErrCancelled
		}
	}

	return nil
}

// decodeMCU decodes and reconstructs all blocks of one MCU into the
// per-component sample buffers.
func (s *Session) decodeMCU() {
	for i := 0; i < s.ncomp; i++ {
		c := &s.comp[i]

		for sby := 0; sby < c.ssY; sby++ {
			for sbx := 0; sbx < c.ssX; sbx++ {
				s.decodeBlock(c)

				off := sby*s.bs*c.mcuStride + sbx*s.bs
				idctScaled(&s.block, c.mcuPix, off, c.mcuStride, s.scaleDenom)
			}
		}
	}
}

// decodeBlock entropy-decodes one 8x8 block into s.block in natural order,
// dequantized. Errors panic and are recovered in Decompress.
func (s *Session) decodeBlock(c *component) {
	s.block = [64]int32{}

	qt := s.qtab[c.qtSel]
	_ = qt[63]

	// DC coefficient.
	size := int(s.decodeHuff(s.huff[0][c.dcTabSel]))
	if size > 11 {
		s.panic(ErrSyntax)
	}
	if size > 0 {
		c.dcPred += s.receiveExtend(size)
	}
	s.block[0] = int32(c.dcPred) * int32(qt[0])

	// AC coefficients.
	coef := 1
	for coef <= 63 {
		sym := s.decodeHuff(s.huff[1][c.acTabSel])
		if sym == 0 {
			break // EOB
		}

		size := int(sym & 0x0F)
		if size == 0 {
			if sym != 0xF0 {
				s.panic(ErrSyntax)
			}
			coef += 16

			continue
		}

		coef += int(sym >> 4)
		if coef > 63 {
			s.panic(ErrSyntax)
		}

		s.block[zigzag[coef]] = int32(s.receiveExtend(size)) * int32(qt[coef])
		coef++
	}
}

func (s *Session) decodeHuff(t *huffTable) uint8 {
	v, err := t.decode(s.src)
	if err != nil {
		s.panic(err)
	}

	return v
}

// receiveExtend reads an n-bit coefficient magnitude and sign-extends it
// per the JPEG EXTEND procedure.
func (s *Session) receiveExtend(n int) int {
	v, err := s.src.getBits(n)
	if err != nil {
		s.panic(err)
	}
	if v < 1<<(n-1) {
		v += (-1 << n) + 1
	}

	return v
}

// restart consumes an RSTn marker at a restart interval boundary and
// resets the entropy state and DC predictors.
func (s *Session) restart(next int) {
	s.src.byteAlign()

	m, err := s.src.readRestartMarker()
	if err != nil {
		s.panic(err)
	}
	if m&0xF8 != 0xD0 || int(m&7) != next {
		s.panic(ErrSyntax)
	}

	for i := 0; i < s.ncomp; i++ {
		s.comp[i].dcPred = 0
	}
}
