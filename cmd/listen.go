// cmd/listen.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rjlutz/CCSCGoertzel/internal/audio"
	"github.com/rjlutz/CCSCGoertzel/internal/dsp"
)

// keyEventBuffer bounds detections queued between the audio thread and the printer
const keyEventBuffer = 64

func newListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Detect DTMF keys from a live input device until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runListen,
	}

	cmd.Flags().IntP("device", "d", -1, "audio device index (-1 for default)")
	cmd.Flags().Int("overlap", 0, "window overlap percentage (0-99)")
	cmd.Flags().Bool("list", false, "list capture devices and exit")
	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
	s, err := settings()
	if err != nil {
		return err
	}

	capture := audio.NewCapture(audio.CaptureConfig{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(math.Round(s.SampleRate)),
		BufferSize:  uint32(s.BufferSize),
	})
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer func() { _ = capture.Close() }()

	if list, _ := cmd.Flags().GetBool("list"); list {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		for i, d := range devices {
			fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", i, d.Name())
		}
		return nil
	}

	filter, err := dsp.NewKeyFilter(dsp.FilterConfig{
		SampleRate: float64(capture.Config().SampleRate),
		Threshold:  s.Threshold,
	})
	if err != nil {
		return err
	}
	stream, err := dsp.NewStream(filter, dsp.StreamConfig{BinSize: s.BinSize, OverlapPct: s.OverlapPct})
	if err != nil {
		return err
	}

	events := make(chan dsp.WindowEvent, keyEventBuffer)
	stream.SetCallback(func(e dsp.WindowEvent) {
		select {
		case events <- e:
		default:
			// drop when the printer falls behind
		}
	})
	capture.SetCallback(stream.Process)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	zap.L().Info("listening",
		zap.Uint32("sample_rate", capture.Config().SampleRate),
		zap.Int("bin_size", s.BinSize),
		zap.Int("hop_size", stream.HopSize()),
		zap.Float64("threshold", s.Threshold),
	)

	return printKeys(ctx, cmd.OutOrStdout(), events, float64(capture.Config().SampleRate))
}

// printKeys prints the top key of each window unless the previous window
// already reported the same key.
func printKeys(ctx context.Context, w io.Writer, events <-chan dsp.WindowEvent, sampleRate float64) error {
	var held bool
	var last dsp.PowerReading
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("stopped")
			return nil
		case e := <-events:
			top, ok := e.Top()
			if !ok {
				held = false
				continue
			}
			zap.L().Debug("window",
				zap.Int("index", e.Index),
				zap.Stringer("key", top.Key()),
				zap.Float64("row_db", top.RowPower),
				zap.Float64("col_db", top.ColumnPower),
			)
			if held && top.Key() == last.Key() {
				continue
			}
			held, last = true, top
			fmt.Fprintf(w, "%10.1f ms  key %s\n", float64(e.Offset)*1000/sampleRate, top.Key())
		}
	}
}
