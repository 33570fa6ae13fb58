package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rjlutz/CCSCGoertzel/internal/audio"
	"github.com/rjlutz/CCSCGoertzel/internal/config"
	"github.com/rjlutz/CCSCGoertzel/internal/dsp"
	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

// setupTest isolates viper, the zap global and the user config directory
func setupTest(t *testing.T) string {
	t.Helper()
	viper.Reset()

	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tmpDir
}

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	configDir := filepath.Join(home, ".config", "dtmfdecoder")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

// execute runs a fresh command tree and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := newRootCmd().PersistentFlags()

	tests := []struct {
		name         string
		shorthand    string
		defaultValue string
	}{
		{"rate", "r", "8000"},
		{"threshold", "t", "25"},
		{"bin", "b", "256"},
		{"debug", "D", "false"},
		{"log-format", "", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "dtmfdecoder" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "dtmfdecoder")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}

	want := map[string]bool{"generate": false, "detect": false, "listen": false, "keys": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestFlagKeys_BoundToConfig(t *testing.T) {
	setupTest(t)
	config.SetDefaults()

	for flag, key := range flagKeys {
		if !viper.IsSet(key) {
			t.Errorf("flag %q binds unknown config key %q", flag, key)
		}
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	setupTest(t)

	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	for _, want := range []string{"dtmfdecoder", "generate", "detect", "listen", "--threshold", "--bin"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestKeysCmd(t *testing.T) {
	setupTest(t)

	out, err := execute(t, "keys")
	if err != nil {
		t.Fatalf("keys error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := [][]string{
		{"Hz", "1209", "1336", "1477", "1633"},
		{"697", "1", "2", "3", "A"},
		{"770", "4", "5", "6", "B"},
		{"852", "7", "8", "9", "C"},
		{"941", "*", "0", "#", "D"},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i, fields := range want {
		if got := strings.Fields(lines[i]); strings.Join(got, " ") != strings.Join(fields, " ") {
			t.Errorf("line %d = %q, want %v", i, lines[i], fields)
		}
	}
}

func TestGenerateDetect_RoundTrip(t *testing.T) {
	home := setupTest(t)
	wavPath := filepath.Join(home, "keys.wav")

	out, err := execute(t, "generate", "1 2 #", "-o", wavPath)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	// three 200 ms tones and two 50 ms gaps at 8000 Hz
	if !strings.Contains(out, "wrote 3 keys (5600 samples at 8000 Hz)") {
		t.Errorf("generate output = %q", out)
	}

	out, err = execute(t, "detect", wavPath)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	for _, want := range []string{"key 1", "key 2", "key #", "windows matched"} {
		if !strings.Contains(out, want) {
			t.Errorf("detect output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "key 5") {
		t.Errorf("detect reported a key that was never generated:\n%s", out)
	}
}

func TestDetect_Expect(t *testing.T) {
	home := setupTest(t)
	wavPath := filepath.Join(home, "keys.wav")

	if _, err := execute(t, "generate", "12#", "-o", wavPath); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	out, err := execute(t, "detect", wavPath, "--expect", "#")
	if err != nil {
		t.Fatalf("detect --expect # error = %v", err)
	}
	if !strings.Contains(out, "key # found") {
		t.Errorf("detect output = %q", out)
	}

	if _, err := execute(t, "detect", wavPath, "--expect", "5"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("detect --expect 5 error = %v, want ErrKeyNotFound", err)
	}
	if _, err := execute(t, "detect", wavPath, "--expect", "12"); err == nil {
		t.Error("detect --expect with two keys should fail")
	}
	if _, err := execute(t, "detect", wavPath, "--expect", "X"); !errors.Is(err, keypad.ErrUnknownKey) {
		t.Errorf("detect --expect X error = %v, want ErrUnknownKey", err)
	}
}

func TestDetect_ThresholdFlagOverridesConfig(t *testing.T) {
	home := setupTest(t)
	writeConfig(t, home, "threshold: 25\n")
	wavPath := filepath.Join(home, "seven.wav")

	if _, err := execute(t, "generate", "7", "-o", wavPath); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	// pure tones peak well below 60 dB in a 256 sample window
	out, err := execute(t, "detect", wavPath, "--threshold", "60")
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	if !strings.Contains(out, "no keys detected") {
		t.Errorf("detect with --threshold 60 output = %q", out)
	}
}

func TestGenerate_FlagsAndRate(t *testing.T) {
	home := setupTest(t)
	wavPath := filepath.Join(home, "nine.wav")

	if _, err := execute(t, "generate", "9", "-o", wavPath, "--rate", "44100", "--duration", "100"); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	buf, err := audio.LoadWAV(wavPath)
	if err != nil {
		t.Fatalf("LoadWAV() error = %v", err)
	}
	if buf.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", buf.SampleRate)
	}
	if len(buf.Samples) != 4410 {
		t.Errorf("len(Samples) = %d, want 4410", len(buf.Samples))
	}
}

func TestGenerate_Errors(t *testing.T) {
	home := setupTest(t)
	wavPath := filepath.Join(home, "bad.wav")

	if _, err := execute(t, "generate", "12X", "-o", wavPath); !errors.Is(err, keypad.ErrUnknownKey) {
		t.Errorf("generate 12X error = %v, want ErrUnknownKey", err)
	}
	if _, err := execute(t, "generate", "123"); err == nil || !strings.Contains(err.Error(), "output") {
		t.Errorf("generate without -o error = %v, want required flag error", err)
	}
	if _, err := execute(t, "generate", " - ", "-o", wavPath); err == nil {
		t.Error("generate with only separators should fail")
	}
	if _, err := execute(t, "generate", "1", "-o", wavPath, "--rate", "8000.5"); err == nil {
		t.Error("generate with a fractional rate should fail")
	}
}

func TestDetect_MissingFile(t *testing.T) {
	home := setupTest(t)

	_, err := execute(t, "detect", filepath.Join(home, "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("detect missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	home := setupTest(t)
	writeConfig(t, home, "bin_size: 0\n")

	_, err := execute(t, "keys")
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}

func TestRootCmd_InvalidFlagValue(t *testing.T) {
	setupTest(t)

	_, err := execute(t, "keys", "--bin", "4")
	if err == nil || !strings.Contains(err.Error(), "bin_size") {
		t.Errorf("--bin 4 error = %v, want bin_size validation error", err)
	}
}

func TestInitConfig_DebugLogging(t *testing.T) {
	setupTest(t)

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"keys", "--debug", "--log-format", "json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(errOut.String(), `"msg":"configuration loaded"`) {
		t.Errorf("debug log missing from stderr: %q", errOut.String())
	}
	if !viper.GetBool("debug") {
		t.Error("--debug not bound to viper")
	}
}

func TestRootCmd_RestoresGlobalLoggerAfterRun(t *testing.T) {
	setupTest(t)

	before := zap.NewNop()
	zap.ReplaceGlobals(before)

	var installed *zap.Logger
	root := newRootCmd()
	keys, _, err := root.Find([]string{"keys"})
	if err != nil {
		t.Fatalf("Find(keys) error = %v", err)
	}
	run := keys.RunE
	keys.RunE = func(cmd *cobra.Command, args []string) error {
		installed = zap.L()
		return run(cmd, args)
	}

	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"keys"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if installed == nil || installed == before {
		t.Error("command ran without its own logger installed")
	}
	if zap.L() != before {
		t.Error("global logger not restored after the command finished")
	}
}

func reading(t *testing.T, k keypad.Key) dsp.PowerReading {
	t.Helper()
	e, err := keypad.Lookup(k)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", k, err)
	}
	return dsp.PowerReading{Entry: e, RowPower: 30, ColumnPower: 30}
}

func TestPrintKeys(t *testing.T) {
	events := make(chan dsp.WindowEvent)
	ctx, cancel := context.WithCancel(context.Background())

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- printKeys(ctx, &out, events, 8000)
	}()

	sequence := []dsp.WindowEvent{
		{Index: 0, Offset: 0, Readings: []dsp.PowerReading{reading(t, '1')}},
		{Index: 1, Offset: 256, Readings: []dsp.PowerReading{reading(t, '1')}},
		{Index: 2, Offset: 512},
		{Index: 3, Offset: 768, Readings: []dsp.PowerReading{reading(t, '1')}},
		{Index: 4, Offset: 1024, Readings: []dsp.PowerReading{reading(t, '2'), reading(t, '1')}},
	}
	for _, e := range sequence {
		events <- e
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("printKeys() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"0.0 ms  key 1", "96.0 ms  key 1", "128.0 ms  key 2"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out.String())
	}
	for i := range want {
		if strings.TrimSpace(lines[i]) != want[i] {
			t.Errorf("line %d = %q, want %q", i, strings.TrimSpace(lines[i]), want[i])
		}
	}
}
