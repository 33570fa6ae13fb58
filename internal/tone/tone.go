// internal/tone/tone.go
// Package tone synthesizes composite sine waveforms for DTMF keys.
package tone

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

// PCMScale maps a normalized sample to signed 16-bit PCM
const PCMScale = 32767.0

var (
	// ErrInvalidConfiguration is wrapped by every parameter error in this package
	ErrInvalidConfiguration = errors.New("invalid tone configuration")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfiguration)
	// ErrInvalidDuration indicates duration must not be negative
	ErrInvalidDuration = fmt.Errorf("%w: duration must not be negative", ErrInvalidConfiguration)
)

// SampleCount returns floor(durationMs / 1000 * sampleRate).
func SampleCount(sampleRate float64, durationMs int) int {
	return int(math.Floor(float64(durationMs) * sampleRate / 1000.0))
}

// Synthesize returns the equal-weight mix of sine tones at the given frequencies.
// Each sample n is the mean of sin(2*pi*f*n/sampleRate) over all frequencies.
// With no frequencies the result is silence of the requested length. The output
// is not clamped; its peak depends on how the tones interfere.
func Synthesize(sampleRate float64, durationMs int, frequencies ...float64) ([]float64, error) {
	if err := validate(sampleRate, durationMs); err != nil {
		return nil, err
	}

	n := SampleCount(sampleRate, durationMs)
	mix := make([]float64, n)
	if len(frequencies) == 0 {
		return mix, nil
	}

	partial := make([]float64, n)
	for _, f := range frequencies {
		for i := range partial {
			partial[i] = math.Sin(2 * math.Pi * f * float64(i) / sampleRate)
		}
		floats.Add(mix, partial)
	}
	floats.Scale(1.0/float64(len(frequencies)), mix)

	return mix, nil
}

// SynthesizeKey synthesizes the two tones of key and quantizes to 16-bit PCM.
func SynthesizeKey(sampleRate float64, key keypad.Key, durationMs int) ([]int16, error) {
	samples, err := KeyWaveform(sampleRate, key, durationMs)
	if err != nil {
		return nil, err
	}
	return Quantize(samples), nil
}

// KeyWaveform synthesizes the two tones of key as normalized samples.
func KeyWaveform(sampleRate float64, key keypad.Key, durationMs int) ([]float64, error) {
	entry, err := keypad.Lookup(key)
	if err != nil {
		return nil, err
	}
	row, col := entry.Frequencies()
	return Synthesize(sampleRate, durationMs, row, col)
}

// Silence returns a zero-filled buffer of the given duration.
func Silence(sampleRate float64, durationMs int) ([]float64, error) {
	return Synthesize(sampleRate, durationMs)
}

// SynthesizeSequence renders keys one after another, each toneMs long and
// followed by gapMs of silence. The last key is not followed by a gap.
func SynthesizeSequence(sampleRate float64, keys []keypad.Key, toneMs, gapMs int) ([]float64, error) {
	if err := validate(sampleRate, toneMs); err != nil {
		return nil, err
	}
	if gapMs < 0 {
		return nil, fmt.Errorf("gap: %w", ErrInvalidDuration)
	}

	gap := make([]float64, SampleCount(sampleRate, gapMs))
	out := make([]float64, 0, len(keys)*(SampleCount(sampleRate, toneMs)+len(gap)))
	for i, k := range keys {
		samples, err := KeyWaveform(sampleRate, k, toneMs)
		if err != nil {
			return nil, err
		}
		out = append(out, samples...)
		if i < len(keys)-1 {
			out = append(out, gap...)
		}
	}
	return out, nil
}

// Quantize converts normalized samples to 16-bit PCM using round(v * 32767).
// Values outside [-1, 1] saturate.
func Quantize(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		q := math.Round(v * PCMScale)
		switch {
		case q > math.MaxInt16:
			q = math.MaxInt16
		case q < math.MinInt16:
			q = math.MinInt16
		}
		out[i] = int16(q)
	}
	return out
}

func validate(sampleRate float64, durationMs int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return ErrInvalidSampleRate
	}
	if durationMs < 0 {
		return ErrInvalidDuration
	}
	return nil
}
