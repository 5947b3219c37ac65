// Package bmp writes uncompressed 24-bit Windows bitmaps. It covers just
// what the jpg2bmp tool needs to persist decoded frames.
package bmp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40

	// 72 DPI in pixels per meter.
	resolution = 2835
)

type fileHeader struct {
	Type      uint16
	Size      uint32
	Reserved1 uint16
	Reserved2 uint16
	OffBits   uint32
}

type infoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// Encode writes pix as a 24-bit bottom-up BMP. pix holds packed RGB rows,
// top to bottom, width*height*3 bytes.
func Encode(w io.Writer, pix []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("bmp: invalid dimensions")
	}
	if len(pix) < width*height*3 {
		return errors.New("bmp: pixel buffer too small")
	}

	rowSize := (width*3 + 3) &^ 3
	imageSize := rowSize * height

	bw := bufio.NewWriter(w)

	fh := fileHeader{
		Type:    0x4D42, // "BM"
		Size:    uint32(fileHeaderSize + infoHeaderSize + imageSize),
		OffBits: fileHeaderSize + infoHeaderSize,
	}
	if err := binary.Write(bw, binary.LittleEndian, &fh); err != nil {
		return err
	}

	ih := infoHeader{
		Size:          infoHeaderSize,
		Width:         int32(width),
		Height:        int32(height),
		Planes:        1,
		BitCount:      24,
		SizeImage:     uint32(imageSize),
		XPelsPerMeter: resolution,
		YPelsPerMeter: resolution,
	}
	if err := binary.Write(bw, binary.LittleEndian, &ih); err != nil {
		return err
	}

	row := make([]byte, rowSize)

	// Rows are stored bottom-up with channels swapped to BGR.
	for y := height - 1; y >= 0; y-- {
		src := pix[y*width*3:]

		for x := 0; x < width; x++ {
			row[x*3+0] = src[x*3+2]
			row[x*3+1] = src[x*3+1]
			row[x*3+2] = src[x*3+0]
		}

		if _, err := bw.Write(row); err != nil {
			return err
		}
	}

	return bw.Flush()
}
