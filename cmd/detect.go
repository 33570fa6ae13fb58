// cmd/detect.go
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rjlutz/CCSCGoertzel/internal/audio"
	"github.com/rjlutz/CCSCGoertzel/internal/dsp"
	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

// ErrKeyNotFound is returned by detect --expect when no window ranks the key first
var ErrKeyNotFound = errors.New("expected key not found")

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Report DTMF keys found in a WAV file",
		Long: `Splits the file into non-overlapping windows of --bin samples and prints
the strongest key of every window in which both a row and a column tone exceed
--threshold. The file's own sample rate is used for analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().String("expect", "", "only check that this key is ranked first in some window")
	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	s, err := settings()
	if err != nil {
		return err
	}

	buf, err := audio.LoadWAV(args[0])
	if err != nil {
		return err
	}
	if buf.SampleRate != s.SampleRate {
		zap.L().Debug("using file sample rate",
			zap.Float64("file_rate", buf.SampleRate),
			zap.Float64("configured_rate", s.SampleRate),
		)
	}

	filter, err := dsp.NewKeyFilter(dsp.FilterConfig{SampleRate: buf.SampleRate, Threshold: s.Threshold})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if expect, _ := cmd.Flags().GetString("expect"); expect != "" {
		keys, err := keypad.ParseKeys(expect)
		if err != nil {
			return err
		}
		if len(keys) != 1 {
			return fmt.Errorf("--expect takes a single key, got %q", expect)
		}
		found, err := filter.ScanForKey(buf.Samples, s.BinSize, keys[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s in %s", ErrKeyNotFound, keys[0], args[0])
		}
		fmt.Fprintf(out, "key %s found in %s\n", keys[0], args[0])
		return nil
	}

	results, err := filter.Scan(buf.Samples, s.BinSize)
	if err != nil {
		return err
	}
	zap.L().Debug("file scanned",
		zap.String("file", args[0]),
		zap.Int("samples", len(buf.Samples)),
		zap.Int("windows", len(results)),
	)

	printWindows(out, results, buf.SampleRate)
	return nil
}

func printWindows(w io.Writer, results []dsp.WindowResult, sampleRate float64) {
	matched := 0
	for _, r := range results {
		if len(r.Readings) == 0 {
			continue
		}
		matched++
		top := r.Readings[0]
		fmt.Fprintf(w, "window %4d  %8.1f ms  key %s  row %6.2f dB  col %6.2f dB\n",
			r.Index, float64(r.Offset)*1000/sampleRate, top.Key(), top.RowPower, top.ColumnPower)
	}

	if matched == 0 {
		fmt.Fprintln(w, "no keys detected")
		return
	}
	fmt.Fprintf(w, "%d of %d windows matched\n", matched, len(results))
}
