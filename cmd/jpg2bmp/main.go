// Command jpg2bmp decodes baseline JPEG files into 24-bit BMP images using
// a fixed-size work area, demonstrating the streaming decoder on
// memory-constrained settings. Inputs compressed with zstd (.jpg.zst) are
// decompressed transparently.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/gen2brain/jpegt"
	"github.com/gen2brain/jpegt/bmp"
)

var (
	version = "0.1.0"

	flagScale int
	flagGray  bool
	flagWork  int
	flagHash  bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "jpg2bmp <input.jpg> [output.bmp]",
	Short: "Convert baseline JPEG images to 24-bit BMP",
	Long: `jpg2bmp decodes a baseline JPEG file band by band inside a fixed
work area and writes the result as an uncompressed 24-bit BMP.

Inputs ending in .zst are decompressed on the fly.`,
	Version: version,
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runConvert,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().IntVar(&flagWork, "work", 0, "work area size in bytes (0 = unbounded heap)")
	rootCmd.Flags().IntVar(&flagScale, "scale", 1, "scale denominator: 1, 2, 4 or 8")
	rootCmd.Flags().BoolVar(&flagGray, "gray", false, "decode luma only")
	rootCmd.Flags().BoolVar(&flagHash, "hash", false, "print xxhash64 of the decoded pixels")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"jpg2bmp %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[jpg2bmp] "+format+"\n", args...)
	}
}

// openSource opens path as a ByteSource, layering zstd decompression for
// .zst inputs. The returned closer releases the file and decoder.
func openSource(path string) (jpegt.ByteSource, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()

			return nil, nil, fmt.Errorf("zstd: %w", err)
		}

		return jpegt.NewReaderSource(zr), func() { zr.Close(); f.Close() }, nil
	}

	return jpegt.NewReaderSource(f), func() { f.Close() }, nil
}

// outputName derives the BMP path from the input path.
func outputName(in string) string {
	base := strings.TrimSuffix(in, ".zst")
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	return base + ".bmp"
}

func prepare(src jpegt.ByteSource, opts *jpegt.Options) (*jpegt.Session, error) {
	var work []byte
	if flagWork > 0 {
		work = make([]byte, flagWork)
	}

	s, err := jpegt.Prepare(src, work, opts)
	if err != nil {
		if errors.Is(err, jpegt.ErrWorkArea) {
			return nil, fmt.Errorf("work area of %d bytes is too small: %w", flagWork, err)
		}

		return nil, err
	}

	return s, nil
}

func runConvert(_ *cobra.Command, args []string) error {
	in := args[0]

	out := outputName(in)
	if len(args) == 2 {
		out = args[1]
	}

	src, closeSrc, err := openSource(in)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := &jpegt.Options{ScaleDenom: flagScale}
	if flagGray {
		opts.Format = jpegt.Gray8
	}

	s, err := prepare(src, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	w, h := s.Width(), s.Height()
	logVerbose("%s: %dx%d, %d component(s), work area %d bytes",
		in, w, h, s.Components(), s.WorkUsed())

	bpp := 3
	if flagGray {
		bpp = 1
	}
	frame := make([]byte, w*h*bpp)

	err = s.Decompress(jpegt.PixelSinkFunc(func(pix []byte, r jpegt.Rect) bool {
		copy(frame[r.Top*w*bpp:], pix)

		return true
	}))
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	if flagHash {
		fmt.Printf("%016x  %s\n", xxhash.Sum64(frame), in)
	}

	if flagGray {
		frame = grayToRGB(frame)
	}

	return writeBMP(out, frame, w, h)
}

// grayToRGB replicates a luma plane into packed RGB for the BMP writer.
func grayToRGB(gray []byte) []byte {
	rgb := make([]byte, len(gray)*3)
	for i, v := range gray {
		rgb[i*3+0] = v
		rgb[i*3+1] = v
		rgb[i*3+2] = v
	}

	return rgb
}

func writeBMP(path string, pix []byte, w, h int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := bmp.Encode(f, pix, w, h); err != nil {
		f.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return err
	}

	logVerbose("wrote %s", path)

	return nil
}
