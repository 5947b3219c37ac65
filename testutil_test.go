package jpegt

import (
	"math/bits"
	"testing"
)

// Hand-rolled baseline JPEG writer for fixtures. It emits DC-only blocks
// (every AC coefficient zero) through a flat quantization table, so the
// decoded value of each block is exactly dc/8 + 128. That makes expected
// pixels easy to state while still exercising Huffman decoding, byte
// stuffing, predictors and restart markers.

// stuffWriter packs bits MSB-first into entropy-coded bytes with 0xFF00
// stuffing.
type stuffWriter struct {
	out  []byte
	acc  uint32
	nacc int
}

func (w *stuffWriter) emit(b byte) {
	w.out = append(w.out, b)
	if b == 0xFF {
		w.out = append(w.out, 0x00)
	}
}

func (w *stuffWriter) writeBits(v uint32, n int) {
	w.acc = w.acc<<n | v&(1<<n-1)
	w.nacc += n

	for w.nacc >= 8 {
		w.nacc -= 8
		w.emit(byte(w.acc >> w.nacc))
	}
}

// flushAlign pads the current byte with 1 bits, as encoders do before a
// marker.
func (w *stuffWriter) flushAlign() {
	if w.nacc > 0 {
		pad := 8 - w.nacc
		w.writeBits(1<<pad-1, pad)
	}
}

// raw appends marker bytes without stuffing.
func (w *stuffWriter) raw(b ...byte) {
	w.out = append(w.out, b...)
}

// huffSpec is a canonical Huffman table as it appears in a DHT segment.
type huffSpec struct {
	counts [16]byte
	values []byte
}

// stdDCSpec is the standard luminance DC table from Annex K.
var stdDCSpec = huffSpec{
	counts: [16]byte{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
	values: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// eobACSpec assigns the single code "0" to the EOB symbol, all a DC-only
// scan ever needs.
var eobACSpec = huffSpec{
	counts: [16]byte{1},
	values: []byte{0x00},
}

type huffCode struct {
	code uint32
	bits int
}

// codeMap assigns canonical codes to the table's symbols.
func (h huffSpec) codeMap() map[byte]huffCode {
	m := make(map[byte]huffCode)

	code := uint32(0)
	idx := 0
	for l := 1; l <= 16; l++ {
		for k := 0; k < int(h.counts[l-1]); k++ {
			m[h.values[idx]] = huffCode{code: code, bits: l}
			idx++
			code++
		}
		code <<= 1
	}

	return m
}

func (h huffSpec) segment(class, id byte) []byte {
	seg := []byte{0xFF, 0xC4, 0, 0, class<<4 | id}
	seg = append(seg, h.counts[:]...)
	seg = append(seg, h.values...)

	n := len(seg) - 2
	seg[2], seg[3] = byte(n>>8), byte(n)

	return seg
}

// dcFixture describes a DC-only baseline JPEG.
type dcFixture struct {
	width, height int
	gray          bool
	ssx, ssy      int // luma sampling factors, color only
	restart       int // DRI interval in MCUs, 0 disables

	// dcY lists the DC value of each luma block in scan order. Missing
	// entries decode as the last listed value.
	dcY []int

	// dcCb and dcCr give one chroma DC per MCU, defaulting to 0
	// (neutral chroma).
	dcCb, dcCr []int
}

func (fx *dcFixture) lumaDC(i int) int {
	if len(fx.dcY) == 0 {
		return 0
	}
	if i >= len(fx.dcY) {
		return fx.dcY[len(fx.dcY)-1]
	}

	return fx.dcY[i]
}

func pick(vals []int, i int) int {
	if i < len(vals) {
		return vals[i]
	}

	return 0
}

// encodeDC writes one DC difference followed by EOB.
func encodeDC(w *stuffWriter, dc map[byte]huffCode, ac map[byte]huffCode, diff int) {
	mag := diff
	if mag < 0 {
		mag = -mag
	}
	size := bits.Len(uint(mag))

	c := dc[byte(size)]
	w.writeBits(c.code, c.bits)

	if size > 0 {
		v := diff
		if v < 0 {
			v += 1<<size - 1
		}
		w.writeBits(uint32(v), size)
	}

	eob := ac[0x00]
	w.writeBits(eob.code, eob.bits)
}

// encode builds the complete JPEG byte stream.
func (fx *dcFixture) encode() []byte {
	ssx, ssy := fx.ssx, fx.ssy
	if ssx == 0 {
		ssx = 1
	}
	if ssy == 0 {
		ssy = 1
	}
	if fx.gray {
		ssx, ssy = 1, 1
	}

	mbw := (fx.width + ssx*8 - 1) / (ssx * 8)
	mbh := (fx.height + ssy*8 - 1) / (ssy * 8)

	var out []byte

	// SOI
	out = append(out, 0xFF, 0xD8)

	// DQT, table 0, all ones
	out = append(out, 0xFF, 0xDB, 0x00, 0x43, 0x00)
	for i := 0; i < 64; i++ {
		out = append(out, 0x01)
	}

	// SOF0
	ncomp := 3
	if fx.gray {
		ncomp = 1
	}
	sof := []byte{
		0xFF, 0xC0, 0x00, byte(8 + 3*ncomp), 0x08,
		byte(fx.height >> 8), byte(fx.height),
		byte(fx.width >> 8), byte(fx.width),
		byte(ncomp),
	}
	sof = append(sof, 0x01, byte(ssx<<4|ssy), 0x00)
	if !fx.gray {
		sof = append(sof, 0x02, 0x11, 0x00, 0x03, 0x11, 0x00)
	}
	out = append(out, sof...)

	// DHT
	out = append(out, stdDCSpec.segment(0, 0)...)
	out = append(out, eobACSpec.segment(1, 0)...)

	// DRI
	if fx.restart > 0 {
		out = append(out, 0xFF, 0xDD, 0x00, 0x04, byte(fx.restart>>8), byte(fx.restart))
	}

	// SOS
	sos := []byte{0xFF, 0xDA, 0x00, byte(6 + 2*ncomp), byte(ncomp)}
	for i := 0; i < ncomp; i++ {
		sos = append(sos, byte(i+1), 0x00)
	}
	sos = append(sos, 0x00, 0x3F, 0x00)
	out = append(out, sos...)

	// Entropy-coded scan.
	dc := stdDCSpec.codeMap()
	ac := eobACSpec.codeMap()

	w := &stuffWriter{}
	var pred [3]int
	mcu := 0
	lumaBlock := 0
	rst := 0

	for my := 0; my < mbh; my++ {
		for mx := 0; mx < mbw; mx++ {
			for b := 0; b < ssx*ssy; b++ {
				v := fx.lumaDC(lumaBlock)
				lumaBlock++
				encodeDC(w, dc, ac, v-pred[0])
				pred[0] = v
			}

			if !fx.gray {
				cb := pick(fx.dcCb, mcu)
				encodeDC(w, dc, ac, cb-pred[1])
				pred[1] = cb

				cr := pick(fx.dcCr, mcu)
				encodeDC(w, dc, ac, cr-pred[2])
				pred[2] = cr
			}

			mcu++
			if fx.restart > 0 && mcu < mbw*mbh {
				if rst++; rst == fx.restart {
					w.flushAlign()
					w.raw(0xFF, 0xD0|byte((mcu/fx.restart-1)&7))
					pred = [3]int{}
					rst = 0
				}
			}
		}
	}

	w.flushAlign()
	out = append(out, w.out...)

	// EOI
	out = append(out, 0xFF, 0xD9)

	return out
}

// decodeBands runs a full prepare/decompress cycle, returning the
// assembled frame and the delivered rectangles.
func decodeBands(t *testing.T, data []byte, work []byte, opts *Options) ([]byte, []Rect, *Session) {
	t.Helper()

	s, err := Prepare(NewBytesSource(data), work, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	bpp := 3
	if opts != nil && opts.Format == Gray8 {
		bpp = 1
	}

	frame := make([]byte, s.Width()*s.Height()*bpp)
	var rects []Rect

	err = s.Decompress(PixelSinkFunc(func(pix []byte, r Rect) bool {
		rects = append(rects, r)
		copy(frame[r.Top*s.Width()*bpp:], pix)

		return true
	}))
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}

	return frame, rects, s
}

const defaultTolerance = 2

// isClose checks if two component values are within the allowed tolerance.
func isClose(a, b, tol uint8) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}

	return d <= int(tol)
}
