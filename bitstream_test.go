package jpegt

import (
	"errors"
	"testing"
)

func newTestBitReader(data []byte) *bitReader {
	br, err := newBitReader(NewBytesSource(data), newArena(nil))
	if err != nil {
		panic(err)
	}

	return br
}

func TestBitReaderShowAndSkip(t *testing.T) {
	br := newTestBitReader([]byte{0b10110100, 0b01100001})

	v, err := br.showBits(3)
	if err != nil || v != 0b101 {
		t.Fatalf("showBits(3) = %d, %v", v, err)
	}

	// Peeking must not consume.
	v, err = br.showBits(3)
	if err != nil || v != 0b101 {
		t.Fatalf("second showBits(3) = %d, %v", v, err)
	}

	br.skipBits(3)

	v, err = br.getBits(5)
	if err != nil || v != 0b10100 {
		t.Fatalf("getBits(5) = %d, %v", v, err)
	}

	v, err = br.getBits(8)
	if err != nil || v != 0b01100001 {
		t.Fatalf("getBits(8) = %d, %v", v, err)
	}
}

func TestBitReaderByteStuffing(t *testing.T) {
	// 0xFF00 in the scan decodes as a literal 0xFF data byte.
	br := newTestBitReader([]byte{0xFF, 0x00, 0xAB})

	v, err := br.getBits(16)
	if err != nil {
		t.Fatalf("getBits failed: %v", err)
	}
	if v != 0xFFAB {
		t.Fatalf("got %04x, want ffab", v)
	}
}

func TestBitReaderMarkerLatch(t *testing.T) {
	// A marker in the scan stops consumption; further reads see 0xFF
	// padding and the marker stays retrievable.
	br := newTestBitReader([]byte{0x12, 0xFF, 0xD9, 0x34})

	if v, err := br.getBits(8); err != nil || v != 0x12 {
		t.Fatalf("getBits(8) = %02x, %v", v, err)
	}

	// These bits come from the pad, not from bytes after the marker.
	if v, err := br.getBits(16); err != nil || v != 0xFFFF {
		t.Fatalf("pad read = %04x, %v", v, err)
	}

	br.byteAlign()

	m, err := br.readRestartMarker()
	if err != nil {
		t.Fatalf("readRestartMarker failed: %v", err)
	}
	if m != 0xD9 {
		t.Fatalf("marker = %02x, want d9", m)
	}
}

func TestBitReaderRestartMarkerFromStream(t *testing.T) {
	// Marker read directly from the byte stream when nothing is latched.
	br := newTestBitReader([]byte{0xFF, 0xD3})

	m, err := br.readRestartMarker()
	if err != nil {
		t.Fatalf("readRestartMarker failed: %v", err)
	}
	if m != 0xD3 {
		t.Fatalf("marker = %02x, want d3", m)
	}
}

func TestBitReaderTruncation(t *testing.T) {
	br := newTestBitReader([]byte{0xAA})

	if _, err := br.getBits(8); err != nil {
		t.Fatalf("getBits failed: %v", err)
	}

	if _, err := br.getBits(1); !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestBitReaderLoneFFAtEnd(t *testing.T) {
	// A dangling 0xFF with no marker byte is a truncated stream.
	br := newTestBitReader([]byte{0xFF})

	if _, err := br.getBits(8); !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestSkipBytesAcrossWindow(t *testing.T) {
	data := make([]byte, 3*streamBufSize)
	data[2*streamBufSize+5] = 0x7E

	br := newTestBitReader(data)

	// Prime the window, then skip past it.
	if _, err := br.readByte(); err != nil {
		t.Fatalf("readByte failed: %v", err)
	}
	if err := br.skipBytes(2*streamBufSize + 4); err != nil {
		t.Fatalf("skipBytes failed: %v", err)
	}

	c, err := br.readByte()
	if err != nil {
		t.Fatalf("readByte failed: %v", err)
	}
	if c != 0x7E {
		t.Fatalf("got %02x, want 7e", c)
	}
}

func TestSkipBytesPastEnd(t *testing.T) {
	br := newTestBitReader(make([]byte, 10))

	if err := br.skipBytes(11); !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}
