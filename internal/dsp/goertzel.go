// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfiguration is wrapped by every configuration error in this package
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfiguration)
	// ErrNoFrequencies indicates at least one target frequency is required
	ErrNoFrequencies = fmt.Errorf("%w: at least one frequency is required", ErrInvalidConfiguration)
	// ErrInvalidBinSize indicates bin size must be positive
	ErrInvalidBinSize = fmt.Errorf("%w: bin size must be positive", ErrInvalidConfiguration)
)

// GoertzelConfig holds configuration for a bank of Goertzel filters.
type GoertzelConfig struct {
	// Frequencies to evaluate in Hz; results keep this order
	Frequencies []float64
	// SampleRate is the rate the samples were recorded at in Hz
	SampleRate float64
}

// Goertzel evaluates signal power at a fixed set of frequencies.
//
// The output stage uses the real decay factor w = exp(-2*pi*f/fs) in place of the
// complex twiddle exp(-j*2*pi*f/fs) of the textbook algorithm, so the result is
// 20*log10(|s[N-1] - w*s[N-2]|). Readings are phase dependent and are not a true
// DFT bin magnitude. Detection thresholds are calibrated against this form.
//
// A Goertzel holds only precomputed coefficients and may be shared between goroutines.
type Goertzel struct {
	config       GoertzelConfig
	coefficients []float64 // 2 * cos(2*pi*f/fs)
	decays       []float64 // exp(-2*pi*f/fs)
}

// NewGoertzel creates a filter bank for the configured frequencies.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	if len(cfg.Frequencies) == 0 {
		return nil, ErrNoFrequencies
	}

	freqs := append([]float64(nil), cfg.Frequencies...)
	g := &Goertzel{
		config:       GoertzelConfig{Frequencies: freqs, SampleRate: cfg.SampleRate},
		coefficients: make([]float64, len(freqs)),
		decays:       make([]float64, len(freqs)),
	}
	for i, f := range freqs {
		omega := 2 * math.Pi * f / cfg.SampleRate
		g.coefficients[i] = 2 * math.Cos(omega)
		g.decays[i] = math.Exp(-omega)
	}
	return g, nil
}

// Power returns one dB reading per configured frequency, in configuration order.
// A silent or empty window yields -Inf, which compares below any threshold.
func (g *Goertzel) Power(samples []float64) []float64 {
	powers := make([]float64, len(g.coefficients))
	for j := range g.coefficients {
		powers[j] = g.powerAt(j, samples)
	}
	return powers
}

// PowerFloat32 is Power for single precision input.
func (g *Goertzel) PowerFloat32(samples []float32) []float64 {
	return g.Power(upconvert(samples))
}

// powerAt runs the recurrence for frequency j
func (g *Goertzel) powerAt(j int, samples []float64) float64 {
	var current, previous, oldest float64
	coeff := g.coefficients[j]

	for _, v := range samples {
		oldest = previous
		previous = current
		current = coeff*previous - oldest + v
	}

	return 20 * math.Log10(math.Abs(current-g.decays[j]*previous))
}

// Config returns a copy of the configuration
func (g *Goertzel) Config() GoertzelConfig {
	return GoertzelConfig{
		Frequencies: append([]float64(nil), g.config.Frequencies...),
		SampleRate:  g.config.SampleRate,
	}
}

// Coefficients returns the pre-computed 2*cos(omega) values (for testing)
func (g *Goertzel) Coefficients() []float64 {
	return append([]float64(nil), g.coefficients...)
}

// Decays returns the pre-computed exp(-omega) values (for testing)
func (g *Goertzel) Decays() []float64 {
	return append([]float64(nil), g.decays...)
}

// Power evaluates samples against frequencies without keeping a filter bank.
func Power(samples []float64, frequencies []float64, sampleRate float64) ([]float64, error) {
	g, err := NewGoertzel(GoertzelConfig{Frequencies: frequencies, SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}
	return g.Power(samples), nil
}

func upconvert(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = float64(v)
	}
	return out
}
