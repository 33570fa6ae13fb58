// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rjlutz/CCSCGoertzel/internal/config"
	"github.com/rjlutz/CCSCGoertzel/internal/logging"
)

// flagKeys maps command line flags to the config keys they override
var flagKeys = map[string]string{
	"rate":       "sample_rate",
	"threshold":  "threshold",
	"bin":        "bin_size",
	"debug":      "debug",
	"log-format": "log_format",
	"duration":   "tone_duration_ms",
	"gap":        "gap_duration_ms",
	"device":     "device_index",
	"overlap":    "overlap_pct",
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	// restoreLogger flushes the command's logger and reinstates the previous global
	restoreLogger := func() {}

	root := &cobra.Command{
		Use:   "dtmfdecoder",
		Short: "DTMF tone generator and Goertzel decoder",
		Long: `Generates touch-tone (DTMF) signals and detects keypad presses in
recorded or live audio using a bank of eight Goertzel filters.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			restore, err := initConfig(cmd)
			if err != nil {
				return err
			}
			restoreLogger = restore
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			restoreLogger()
			restoreLogger = func() {}
			return nil
		},
	}

	// Global flags (override config file)
	root.PersistentFlags().Float64P("rate", "r", 8000, "sample rate in Hz")
	root.PersistentFlags().Float64P("threshold", "t", 25, "detection threshold in dB for row and column tones")
	root.PersistentFlags().IntP("bin", "b", 256, "samples per detection window")
	root.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
	root.PersistentFlags().String("log-format", "console", "log encoding (console or json)")

	root.AddCommand(newGenerateCmd(), newDetectCmd(), newListenCmd(), newKeysCmd())
	return root
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the config file, applies flag overrides and installs the
// logger. The returned func undoes the logger install.
func initConfig(cmd *cobra.Command) (func(), error) {
	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	bindFlags(cmd.Flags())

	s, err := settings()
	if err != nil {
		return nil, err
	}

	logger, restore, err := logging.Setup(logging.Options{
		Debug:  s.Debug,
		Format: s.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.Debug("configuration loaded",
		zap.String("file", viper.ConfigFileUsed()),
		zap.Float64("sample_rate", s.SampleRate),
		zap.Int("bin_size", s.BinSize),
		zap.Float64("threshold", s.Threshold),
	)
	return restore, nil
}

// bindFlags binds every known flag present on the running command
func bindFlags(flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// settings returns the validated configuration for a running command
func settings() (*config.Settings, error) {
	s, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}
