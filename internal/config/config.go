// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

const (
	AppName       = "dtmfdecoder"
	ConfigType    = "yaml"
	DefaultConfig = `# DTMF Decoder Configuration

# Signal settings
sample_rate: 8000       # Sample rate in Hz for synthesis and capture
bin_size: 256           # Samples per detection window
threshold: 25.0         # Goertzel power (dB) both row and column must exceed
overlap_pct: 0          # Window overlap percentage for live listening (0-99)

# Synthesis
tone_duration_ms: 200   # Length of each generated key tone
gap_duration_ms: 50     # Silence between generated keys

# Audio device settings
device_index: -1        # -1 for default device
buffer_size: 512        # Frames per capture callback

# Output
log_format: "console"   # console or json
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Signal settings
	SampleRate float64 `mapstructure:"sample_rate"`
	BinSize    int     `mapstructure:"bin_size"`
	Threshold  float64 `mapstructure:"threshold"`
	OverlapPct int     `mapstructure:"overlap_pct"`

	// Synthesis
	ToneDurationMs int `mapstructure:"tone_duration_ms"`
	GapDurationMs  int `mapstructure:"gap_duration_ms"`

	// Audio device settings
	DeviceIndex int `mapstructure:"device_index"`
	BufferSize  int `mapstructure:"buffer_size"`

	// Output
	LogFormat string `mapstructure:"log_format"`
	Debug     bool   `mapstructure:"debug"`
}

// SetDefaults registers every key's default value with viper
func SetDefaults() {
	viper.SetDefault("sample_rate", 8000)
	viper.SetDefault("bin_size", 256)
	viper.SetDefault("threshold", 25.0)
	viper.SetDefault("overlap_pct", 0)
	viper.SetDefault("tone_duration_ms", 200)
	viper.SetDefault("gap_duration_ms", 50)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("log_format", "console")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/dtmfdecoder/
func Init() error {
	SetDefaults()

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Signal settings
	if s.SampleRate < 4000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 4000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.BinSize < 16 || s.BinSize > 65536 {
		errs = append(errs, fmt.Errorf("bin_size must be between 16 and 65536, got %d", s.BinSize))
	}
	if math.IsNaN(s.Threshold) || math.IsInf(s.Threshold, 0) {
		errs = append(errs, fmt.Errorf("threshold must be finite, got %v", s.Threshold))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}

	// Synthesis
	if s.ToneDurationMs < 1 || s.ToneDurationMs > 60000 {
		errs = append(errs, fmt.Errorf("tone_duration_ms must be between 1 and 60000, got %d", s.ToneDurationMs))
	}
	if s.GapDurationMs < 0 || s.GapDurationMs > 60000 {
		errs = append(errs, fmt.Errorf("gap_duration_ms must be between 0 and 60000, got %d", s.GapDurationMs))
	}

	// Audio device settings
	if s.DeviceIndex < -1 {
		errs = append(errs, fmt.Errorf("device_index must be -1 or a device number, got %d", s.DeviceIndex))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Output
	if s.LogFormat != "console" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", s.LogFormat))
	}

	// Nyquist check: the highest column tone must be representable
	top := keypad.ColumnFrequencies()[keypad.Columns-1]
	if top >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("sample_rate (%v Hz) must be more than twice the highest DTMF tone (%v Hz)", s.SampleRate, top))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
