// cmd/generate.go
package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rjlutz/CCSCGoertzel/internal/audio"
	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
	"github.com/rjlutz/CCSCGoertzel/internal/tone"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate KEYS",
		Short: "Synthesize a key sequence into a 16-bit mono WAV file",
		Example: `  dtmfdecoder generate 555-0123 -o call.wav
  dtmfdecoder generate "*#A" -o codes.wav --duration 100 --gap 40 --rate 44100`,
		Args: cobra.ExactArgs(1),
		RunE: runGenerate,
	}

	cmd.Flags().StringP("output", "o", "", "output WAV file")
	cmd.Flags().Int("duration", 200, "tone length per key in milliseconds")
	cmd.Flags().Int("gap", 50, "silence between keys in milliseconds")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := settings()
	if err != nil {
		return err
	}
	if s.SampleRate != math.Trunc(s.SampleRate) {
		return fmt.Errorf("WAV output needs a whole sample rate, got %v", s.SampleRate)
	}

	keys, err := keypad.ParseKeys(args[0])
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys in %q", args[0])
	}

	samples, err := tone.SynthesizeSequence(s.SampleRate, keys, s.ToneDurationMs, s.GapDurationMs)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if err := audio.SaveWAV(output, tone.Quantize(samples), int(s.SampleRate)); err != nil {
		return err
	}

	zap.L().Debug("sequence written",
		zap.String("file", output),
		zap.Int("keys", len(keys)),
		zap.Int("samples", len(samples)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d keys (%d samples at %.0f Hz) to %s\n",
		len(keys), len(samples), s.SampleRate, output)
	return nil
}
