// internal/dsp/stream.go
package dsp

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrInvalidOverlap indicates overlap percentage must be 0-99
	ErrInvalidOverlap = errors.New("overlap percentage must be between 0 and 99")
	// ErrFilterRequired indicates a key filter instance is required
	ErrFilterRequired = errors.New("key filter instance is required")
)

// WindowEvent describes one analysed window of a stream.
type WindowEvent struct {
	// Index counts windows since the stream was created or reset
	Index int
	// Offset is the stream position of the first sample of the window
	Offset int64
	// Readings are the keys matched in the window, strongest first
	Readings []PowerReading
}

// Top returns the strongest reading of the window, if any.
func (e WindowEvent) Top() (PowerReading, bool) {
	if len(e.Readings) == 0 {
		return PowerReading{}, false
	}
	return e.Readings[0], true
}

// WindowCallback receives every analysed window.
// It runs on the goroutine calling Process and must not block.
type WindowCallback func(event WindowEvent)

// StreamConfig holds configuration for streaming detection.
type StreamConfig struct {
	// BinSize is the number of samples per window (from config: bin_size)
	BinSize int
	// OverlapPct is the window overlap percentage 0-99 (from config: overlap_pct)
	OverlapPct int
}

// Stream cuts a continuous sample stream into fixed-size windows and runs a key
// filter on each. It applies no debouncing; every window is reported.
// Process and Reset must be called from a single goroutine.
type Stream struct {
	config StreamConfig
	filter *KeyFilter

	buffer  []float64
	hopSize int

	index    int
	position int64 // stream offset of buffer[0]

	callbackPtr atomic.Pointer[WindowCallback]
}

// NewStream creates a stream around filter.
func NewStream(filter *KeyFilter, cfg StreamConfig) (*Stream, error) {
	if filter == nil {
		return nil, ErrFilterRequired
	}
	if cfg.BinSize <= 0 {
		return nil, ErrInvalidBinSize
	}
	if cfg.OverlapPct < 0 || cfg.OverlapPct >= 100 {
		return nil, ErrInvalidOverlap
	}

	overlap := (cfg.BinSize * cfg.OverlapPct) / 100
	return &Stream{
		config:  cfg,
		filter:  filter,
		buffer:  make([]float64, 0, cfg.BinSize*2),
		hopSize: cfg.BinSize - overlap,
	}, nil
}

// SetCallback sets the callback for window events. nil disables it.
func (s *Stream) SetCallback(cb WindowCallback) {
	if cb == nil {
		s.callbackPtr.Store(nil)
	} else {
		s.callbackPtr.Store(&cb)
	}
}

// Process appends samples and analyses every complete window. Samples left
// over stay buffered for the next call.
func (s *Stream) Process(samples []float32) {
	for _, v := range samples {
		s.buffer = append(s.buffer, float64(v))
	}
	s.drain()
}

// ProcessFloat64 is Process for double precision input.
func (s *Stream) ProcessFloat64(samples []float64) {
	s.buffer = append(s.buffer, samples...)
	s.drain()
}

func (s *Stream) drain() {
	binSize := s.config.BinSize
	for len(s.buffer) >= binSize {
		s.emit(WindowEvent{
			Index:    s.index,
			Offset:   s.position,
			Readings: s.filter.Detect(s.buffer[:binSize]),
		})
		s.index++

		// Slide the buffer by hopSize
		n := copy(s.buffer, s.buffer[s.hopSize:])
		s.buffer = s.buffer[:n]
		s.position += int64(s.hopSize)
	}
}

func (s *Stream) emit(event WindowEvent) {
	if cb := s.callbackPtr.Load(); cb != nil {
		(*cb)(event)
	}
}

// Buffered returns the number of samples waiting for a complete window
func (s *Stream) Buffered() int {
	return len(s.buffer)
}

// HopSize returns the number of samples between window starts
func (s *Stream) HopSize() int {
	return s.hopSize
}

// Reset discards buffered samples and restarts window numbering.
func (s *Stream) Reset() {
	s.buffer = s.buffer[:0]
	s.index = 0
	s.position = 0
}

// Config returns the current configuration
func (s *Stream) Config() StreamConfig {
	return s.config
}
