// internal/dsp/filter.go
package dsp

import (
	"math"
	"sort"

	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

// PowerReading associates a detected key with the power of its two tones.
type PowerReading struct {
	Entry       keypad.Entry
	RowPower    float64 // dB
	ColumnPower float64 // dB
}

// Key returns the detected key
func (p PowerReading) Key() keypad.Key {
	return p.Entry.Key
}

// AveragePower is the mean of the row and column power in dB.
func (p PowerReading) AveragePower() float64 {
	return (p.RowPower + p.ColumnPower) / 2
}

// TotalPower is the ranking score, RowPower + ColumnPower.
func (p PowerReading) TotalPower() float64 {
	return p.RowPower + p.ColumnPower
}

// SortReadings orders readings strongest first by total power. Readings with
// equal totals keep their relative order.
func SortReadings(readings []PowerReading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].TotalPower() > readings[j].TotalPower()
	})
}

// FilterConfig holds configuration for the key filter.
type FilterConfig struct {
	// SampleRate of the analysed audio in Hz (from config: sample_rate)
	SampleRate float64
	// Threshold in dB both tones of a key must exceed (from config: threshold)
	Threshold float64
}

// KeyFilter finds DTMF keys in a window of samples. It evaluates the four row
// and four column tones and reports every key whose row and column power both
// exceed the threshold.
type KeyFilter struct {
	config  FilterConfig
	rows    *Goertzel
	columns *Goertzel
}

// NewKeyFilter creates a key filter for the given sample rate and threshold.
func NewKeyFilter(cfg FilterConfig) (*KeyFilter, error) {
	rowFreqs := keypad.RowFrequencies()
	colFreqs := keypad.ColumnFrequencies()

	rows, err := NewGoertzel(GoertzelConfig{Frequencies: rowFreqs[:], SampleRate: cfg.SampleRate})
	if err != nil {
		return nil, err
	}
	columns, err := NewGoertzel(GoertzelConfig{Frequencies: colFreqs[:], SampleRate: cfg.SampleRate})
	if err != nil {
		return nil, err
	}

	return &KeyFilter{config: cfg, rows: rows, columns: columns}, nil
}

// Powers returns the dB reading of each row and column tone for the window.
func (f *KeyFilter) Powers(samples []float64) (rows [keypad.Rows]float64, columns [keypad.Columns]float64) {
	copy(rows[:], f.rows.Power(samples))
	copy(columns[:], f.columns.Power(samples))
	return rows, columns
}

// Detect returns the keys present in samples, strongest first. A key matches
// only when its row and its column power are both above the threshold; a lone
// strong tone never matches. Non-finite readings from silence fail the comparison.
func (f *KeyFilter) Detect(samples []float64) []PowerReading {
	rows, columns := f.Powers(samples)
	threshold := f.config.Threshold

	var readings []PowerReading
	for _, e := range keypad.Entries() {
		rp, cp := rows[e.Row], columns[e.Column]
		if rp > threshold && cp > threshold {
			readings = append(readings, PowerReading{Entry: e, RowPower: rp, ColumnPower: cp})
		}
	}

	SortReadings(readings)
	return readings
}

// DetectFloat32 is Detect for single precision input.
func (f *KeyFilter) DetectFloat32(samples []float32) []PowerReading {
	return f.Detect(upconvert(samples))
}

// Strongest returns the top ranked reading of a window, if any.
func (f *KeyFilter) Strongest(samples []float64) (PowerReading, bool) {
	readings := f.Detect(samples)
	if len(readings) == 0 {
		return PowerReading{}, false
	}
	return readings[0], true
}

// Config returns the current configuration
func (f *KeyFilter) Config() FilterConfig {
	return f.config
}

// Detect runs a one-off key filter over samples.
func Detect(samples []float64, sampleRate, threshold float64) ([]PowerReading, error) {
	f, err := NewKeyFilter(FilterConfig{SampleRate: sampleRate, Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return f.Detect(samples), nil
}

// IsAudible reports whether a dB reading is a finite level rather than the
// -Inf produced by silence.
func IsAudible(power float64) bool {
	return !math.IsInf(power, 0) && !math.IsNaN(power)
}
