// internal/dsp/scanner.go
package dsp

import (
	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

// WindowResult holds the ranked readings of one scanned window.
type WindowResult struct {
	// Index is the zero-based window number
	Index int
	// Offset is the position of the first sample of the window
	Offset int
	// Length is the number of samples in the window; the last window may be short
	Length int
	// Readings are the matches for this window, strongest first
	Readings []PowerReading
}

// Scan splits samples into consecutive non-overlapping windows of binSize and
// runs the filter on each. A trailing partial window is analysed as-is.
func (f *KeyFilter) Scan(samples []float64, binSize int) ([]WindowResult, error) {
	if binSize <= 0 {
		return nil, ErrInvalidBinSize
	}

	results := make([]WindowResult, 0, (len(samples)+binSize-1)/binSize)
	eachWindow(samples, binSize, func(index, offset int, window []float64) bool {
		results = append(results, WindowResult{
			Index:    index,
			Offset:   offset,
			Length:   len(window),
			Readings: f.Detect(window),
		})
		return true
	})
	return results, nil
}

// ScanForKey reports whether expected is the strongest key of any window.
// Only the top ranked reading of each window counts: if another key outranks
// expected in a window, that window is not a hit even though expected matched.
// Empty input returns false.
func (f *KeyFilter) ScanForKey(samples []float64, binSize int, expected keypad.Key) (bool, error) {
	if binSize <= 0 {
		return false, ErrInvalidBinSize
	}

	found := false
	eachWindow(samples, binSize, func(_, _ int, window []float64) bool {
		if top, ok := f.Strongest(window); ok && top.Key() == expected {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

// ScanForKey builds a key filter and scans samples for expected.
func ScanForKey(samples []float64, binSize int, sampleRate, threshold float64, expected keypad.Key) (bool, error) {
	if binSize <= 0 {
		return false, ErrInvalidBinSize
	}
	f, err := NewKeyFilter(FilterConfig{SampleRate: sampleRate, Threshold: threshold})
	if err != nil {
		return false, err
	}
	return f.ScanForKey(samples, binSize, expected)
}

// eachWindow calls fn for every window until fn returns false.
func eachWindow(samples []float64, binSize int, fn func(index, offset int, window []float64) bool) {
	for i, offset := 0, 0; offset < len(samples); i, offset = i+1, offset+binSize {
		end := min(offset+binSize, len(samples))
		if !fn(i, offset, samples[offset:end]) {
			return
		}
	}
}
