package jpegt

// streamBufSize is the size of the input window pulled from the ByteSource.
const streamBufSize = 512

// segBufSize bounds the header segment scratch. Marker segments larger than
// this that need to be materialized are rejected; skippable segments (APPn,
// COM) have no size limit.
const segBufSize = 512

// bitReader layers bit-level entropy access on top of a small window pulled
// from a ByteSource. Header parsing uses the raw byte methods; scan data
// goes through the entropy methods, which undo 0xFF00 byte stuffing and
// latch markers.
//
// Once a marker is latched the entropy layer yields 0xFF padding instead of
// consuming further input, so a Huffman decode that straddles the end of a
// scan terminates without reading past the marker.
type bitReader struct {
	src ByteSource

	win  []byte
	wpos int
	wlen int

	seg []byte

	bits uint64
	cnt  int

	marker     byte
	haveMarker bool
	eof        bool
}

func newBitReader(src ByteSource, a *arena) (*bitReader, error) {
	win, err := a.bytes(streamBufSize)
	if err != nil {
		return nil, err
	}

	seg, err := a.bytes(segBufSize)
	if err != nil {
		return nil, err
	}

	return &bitReader{src: src, win: win, seg: seg}, nil
}

// fillWindow pulls the next chunk from the source if the window is empty.
func (b *bitReader) fillWindow() error {
	if b.wpos < b.wlen || b.eof {
		return nil
	}

	n, err := b.src.Pull(b.win)
	if err != nil {
		return err
	}

	b.wpos, b.wlen = 0, n
	if n == 0 {
		b.eof = true
	}

	return nil
}

// readByte returns the next raw stream byte.
func (b *bitReader) readByte() (byte, error) {
	if err := b.fillWindow(); err != nil {
		return 0, err
	}
	if b.wpos >= b.wlen {
		return 0, ErrTruncated
	}

	c := b.win[b.wpos]
	b.wpos++

	return c, nil
}

// readFull fills dst with raw stream bytes.
func (b *bitReader) readFull(dst []byte) error {
	for len(dst) > 0 {
		if err := b.fillWindow(); err != nil {
			return err
		}
		if b.wpos >= b.wlen {
			return ErrTruncated
		}

		n := copy(dst, b.win[b.wpos:b.wlen])
		b.wpos += n
		dst = dst[n:]
	}

	return nil
}

// skipBytes discards n raw stream bytes, delegating to the source once the
// window is drained.
func (b *bitReader) skipBytes(n int) error {
	avail := b.wlen - b.wpos
	if n <= avail {
		b.wpos += n

		return nil
	}

	n -= avail
	b.wpos = b.wlen

	for n > 0 && !b.eof {
		k, err := b.src.Skip(n)
		if err != nil {
			return err
		}
		if k == 0 {
			b.eof = true

			break
		}
		n -= k
	}

	if n > 0 {
		return ErrTruncated
	}

	return nil
}

// entropyByte returns the next byte of scan data. Stuffed 0xFF00 pairs
// collapse to 0xFF; any other 0xFF pair latches the marker and yields a
// 0xFF pad byte, as does every call after a marker has been latched.
func (b *bitReader) entropyByte() (byte, error) {
	if b.haveMarker {
		return 0xFF, nil
	}

	c, err := b.readByte()
	if err != nil {
		return 0, err
	}
	if c != 0xFF {
		return c, nil
	}

	c2, err := b.readByte()
	if err != nil {
		return 0, err
	}
	if c2 == 0x00 {
		return 0xFF, nil
	}

	b.marker = c2
	b.haveMarker = true

	return 0xFF, nil
}

func (b *bitReader) fillBits(want int) error {
	for b.cnt < want && b.cnt <= 56 {
		c, err := b.entropyByte()
		if err != nil {
			return err
		}

		b.bits = b.bits<<8 | uint64(c)
		b.cnt += 8
	}

	return nil
}

// showBits returns the next n bits without consuming them.
func (b *bitReader) showBits(n int) (int, error) {
	if b.cnt < n {
		if err := b.fillBits(n); err != nil {
			return 0, err
		}
	}

	return int(b.bits>>(b.cnt-n)) & (1<<n - 1), nil
}

// skipBits consumes n bits previously made visible by showBits.
func (b *bitReader) skipBits(n int) {
	b.cnt -= n
}

// getBits consumes and returns the next n bits.
func (b *bitReader) getBits(n int) (int, error) {
	v, err := b.showBits(n)
	if err != nil {
		return 0, err
	}
	b.skipBits(n)

	return v, nil
}

// byteAlign discards bits up to the next byte boundary.
func (b *bitReader) byteAlign() {
	b.cnt &^= 7
}

// resetBits clears the bit buffer and any latched marker, so the next
// entropy read starts fresh on a byte boundary.
func (b *bitReader) resetBits() {
	b.bits, b.cnt = 0, 0
	b.marker, b.haveMarker = 0, false
}

// nextAligned returns the next whole byte, preferring bytes already staged
// in the bit buffer. The caller must be byte aligned.
func (b *bitReader) nextAligned() (byte, error) {
	if b.cnt >= 8 {
		b.cnt -= 8

		return byte(b.bits >> b.cnt), nil
	}

	return b.readByte()
}

// readRestartMarker consumes a marker at a restart boundary and returns its
// code byte. The bit buffer must already be byte aligned.
func (b *bitReader) readRestartMarker() (byte, error) {
	if b.haveMarker {
		m := b.marker
		b.resetBits()

		return m, nil
	}

	c, err := b.nextAligned()
	if err != nil {
		return 0, err
	}
	if c != 0xFF {
		return 0, ErrSyntax
	}

	m, err := b.nextAligned()
	if err != nil {
		return 0, err
	}

	b.resetBits()

	return m, nil
}
