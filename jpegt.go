// Package jpegt implements a baseline JPEG decoder with a pull-based
// streaming interface. The decoder reads compressed data on demand from a
// ByteSource, reconstructs the image one MCU row-band at a time inside a
// caller-supplied fixed work area, and pushes each completed band to a
// PixelSink. Peak memory is bounded by the work area regardless of image
// height.
package jpegt

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

// Standard error types for JPEG decoding.
var (
	ErrNoJPEG      = errors.New("not a JPEG file")
	ErrSyntax      = errors.New("syntax error")
	ErrUnsupported = errors.New("unsupported format")
	ErrWorkArea    = errors.New("insufficient work area")
	ErrTruncated   = errors.New("truncated input")
	ErrCancelled   = errors.New("cancelled by output sink")
	ErrInternal    = errors.New("internal error")
)

// PixelFormat selects the layout of the pixel data delivered to the sink.
type PixelFormat int

const (
	// RGB888 delivers 3 bytes per pixel. Grayscale sources are replicated
	// into all three channels.
	RGB888 PixelFormat = iota
	// Gray8 delivers 1 byte per pixel. For color sources only the luma
	// channel is emitted.
	Gray8
)

// Options specifies decoding parameters.
type Options struct {
	// Format selects the pixel layout handed to the sink.
	Format PixelFormat
	// ScaleDenom selects output scaling: 1 (or 0) for full size,
	// 2, 4 or 8 for 1/2, 1/4 and 1/8 size. Scaled dimensions round up.
	ScaleDenom int
}

// Rect is the bounding box of a delivered row-band in output pixel
// coordinates. All edges are inclusive.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns the number of pixel columns covered by the rectangle.
func (r Rect) Width() int { return r.Right - r.Left + 1 }

// Height returns the number of pixel rows covered by the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top + 1 }

// ByteSource supplies compressed JPEG data to a Session on demand.
// A short or zero-length result signals end of data; errors are reserved
// for real device failures.
type ByteSource interface {
	// Pull reads up to len(dst) bytes into dst and reports how many bytes
	// were obtained.
	Pull(dst []byte) (int, error)
	// Skip advances the source by up to n bytes without materializing them
	// and reports how many bytes were skipped.
	Skip(n int) (int, error)
}

// PixelSink receives reconstructed pixel row-bands during decompression.
type PixelSink interface {
	// Receive is invoked once per MCU row-band, top to bottom. The pixel
	// slice is owned by the session and must not be retained past the
	// call. Returning false aborts the decode.
	Receive(pix []byte, r Rect) bool
}

// PixelSinkFunc adapts a function to the PixelSink interface.
type PixelSinkFunc func(pix []byte, r Rect) bool

// Receive calls f(pix, r).
func (f PixelSinkFunc) Receive(pix []byte, r Rect) bool { return f(pix, r) }

// bytesSource is a ByteSource over an in-memory JPEG image.
type bytesSource struct {
	data []byte
	pos  int
}

// NewBytesSource returns a ByteSource reading from b.
func NewBytesSource(b []byte) ByteSource {
	return &bytesSource{data: b}
}

func (s *bytesSource) Pull(dst []byte) (int, error) {
	n := copy(dst, s.data[s.pos:])
	s.pos += n

	return n, nil
}

func (s *bytesSource) Skip(n int) (int, error) {
	if rest := len(s.data) - s.pos; n > rest {
		n = rest
	}
	s.pos += n

	return n, nil
}

// readerSource adapts an io.Reader to the ByteSource contract. If the
// reader also implements io.Seeker, Skip seeks instead of reading.
type readerSource struct {
	r io.Reader
}

// NewReaderSource returns a ByteSource reading from r.
func NewReaderSource(r io.Reader) ByteSource {
	return &readerSource{r: r}
}

func (s *readerSource) Pull(dst []byte) (int, error) {
	n, err := s.r.Read(dst)
	if err == io.EOF {
		err = nil
	}

	return n, err
}

func (s *readerSource) Skip(n int) (int, error) {
	if sk, ok := s.r.(io.Seeker); ok {
		if _, err := sk.Seek(int64(n), io.SeekCurrent); err != nil {
			return 0, err
		}

		return n, nil
	}

	k, err := io.CopyN(io.Discard, s.r, int64(n))
	if err == io.EOF {
		err = nil
	}

	return int(k), err
}

// RecommendedWorkArea returns a work area size sufficient for decoding
// images up to maxWidth pixels wide with common (up to 2x2) sampling
// layouts and worst-case Huffman tables.
func RecommendedWorkArea(maxWidth int) int {
	return 64<<10 + 96*maxWidth
}

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// readAllData reads data from r, pre-allocating if the size is known.
func readAllData(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	return io.ReadAll(r)
}

// Decode reads a baseline JPEG image from r and returns it as an
// [image.Image]. It accepts an optional Options struct to control pixel
// format and scaling. Decode buffers the input and runs a Session with an
// internally allocated work area; use Prepare directly for bounded-memory
// streaming decodes.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	var o Options
	if len(opts) > 0 && opts[0] != nil {
		o = *opts[0]
	}

	s, err := Prepare(NewBytesSource(data), nil, &o)
	if err != nil {
		return nil, err
	}

	w, h := s.Width(), s.Height()
	rect := image.Rect(0, 0, w, h)

	if o.Format == Gray8 {
		img := image.NewGray(rect)

		err = s.Decompress(PixelSinkFunc(func(pix []byte, r Rect) bool {
			rw := r.Width()
			for y := r.Top; y <= r.Bottom; y++ {
				src := pix[(y-r.Top)*rw:]
				copy(img.Pix[y*img.Stride+r.Left:], src[:rw])
			}

			return true
		}))
		if err != nil {
			return nil, err
		}

		return img, nil
	}

	img := image.NewRGBA(rect)

	err = s.Decompress(PixelSinkFunc(func(pix []byte, r Rect) bool {
		rw := r.Width()
		for y := r.Top; y <= r.Bottom; y++ {
			src := pix[(y-r.Top)*rw*3:]
			dst := img.Pix[y*img.Stride+r.Left*4:]
			for x := 0; x < rw; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 255
			}
		}

		return true
	}))
	if err != nil {
		return nil, err
	}

	return img, nil
}

// DecodeConfig returns the color model and dimensions of a JPEG image
// without decoding the image data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := readAllData(r)
	if err != nil {
		return image.Config{}, err
	}

	s, err := newSession(NewBytesSource(data), nil, &Options{})
	if err != nil {
		return image.Config{}, err
	}
	if err := s.parseHeader(true); err != nil {
		return image.Config{}, err
	}

	var cm color.Model
	switch s.ncomp {
	case 1:
		cm = color.GrayModel
	case 3:
		cm = color.YCbCrModel
	default:
		return image.Config{}, ErrUnsupported
	}

	return image.Config{
		ColorModel: cm,
		Width:      s.width,
		Height:     s.height,
	}, nil
}

// init registers the JPEG format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("jpeg", "\xff\xd8", decodeWrapper, DecodeConfig)
}
