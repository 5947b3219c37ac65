package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gen2brain/jpegt"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.jpg>",
	Short: "Print image geometry and work area requirements",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().IntVar(&flagScale, "scale", 1, "scale denominator: 1, 2, 4 or 8")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(_ *cobra.Command, args []string) error {
	in := args[0]

	src, closeSrc, err := openSource(in)
	if err != nil {
		return err
	}
	defer closeSrc()

	s, err := prepare(src, &jpegt.Options{ScaleDenom: flagScale})
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	mbw, mbh := s.MCUGrid()

	fmt.Printf("  Source size:  %dx%d\n", s.SourceWidth(), s.SourceHeight())
	fmt.Printf("  Output size:  %dx%d (1/%d)\n", s.Width(), s.Height(), flagScale)
	fmt.Printf("  Components:   %d\n", s.Components())
	fmt.Printf("  MCU grid:     %dx%d\n", mbw, mbh)
	fmt.Printf("  Work area:    %d bytes\n", s.WorkUsed())

	return nil
}
