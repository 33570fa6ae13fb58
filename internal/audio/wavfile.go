// internal/audio/wavfile.go
// Package audio moves samples between the DTMF core and the outside world:
// WAV files and live input devices.
package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	dspwav "github.com/mjibson/go-dsp/wav"
	"github.com/youpy/go-wav"
)

// PCM encoding written by WriteWAV
const (
	BitsPerSample = 16
	MonoChannels  = 1
)

// WAV fmt chunk audio formats
const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

var (
	// ErrInvalidHeader indicates a fmt chunk with zero channels, rate or sample width
	ErrInvalidHeader = errors.New("malformed wav header")
	// ErrInvalidSampleRate indicates a zero or negative sample rate
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrUnsupportedFormat indicates an encoding other than 8/16-bit PCM or 32-bit float
	ErrUnsupportedFormat = errors.New("unsupported wav encoding")
)

// Buffer is a decoded mono signal normalized to [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate float64
}

// DurationMs returns the buffer length in milliseconds
func (b Buffer) DurationMs() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) * 1000 / b.SampleRate
}

// ReadWAV decodes a PCM or float WAV stream into samples in [-1, 1].
// Multi-channel input is reduced to its first channel.
func ReadWAV(r io.Reader) (Buffer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("read wav: %w", err)
	}

	br := bytes.NewReader(raw)
	w, err := readHeader(br)
	if err != nil {
		return Buffer{}, fmt.Errorf("read wav header: %w", err)
	}
	if !supportedFormat(w.Header) {
		return Buffer{}, fmt.Errorf("%w: format %d with %d bits per sample",
			ErrUnsupportedFormat, w.AudioFormat, w.BitsPerSample)
	}

	// New stops at the start of the data payload, right after its size field.
	// w.Samples rounds the size down to 16 bytes so it cannot be trusted.
	start := len(raw) - br.Len()
	size := int(binary.LittleEndian.Uint32(raw[start-4 : start]))
	if size > br.Len() {
		size = br.Len()
	}
	channels := int(w.NumChannels)
	frameBytes := int(w.BitsPerSample) / 8 * channels
	n := size / frameBytes * channels

	var interleaved []float64
	if n > 0 {
		data, err := w.ReadSamples(n)
		if err != nil {
			return Buffer{}, fmt.Errorf("read wav data: %w", err)
		}
		if interleaved, err = normalize(data); err != nil {
			return Buffer{}, err
		}
	}

	samples := make([]float64, 0, len(interleaved)/channels)
	for i := 0; i+channels <= len(interleaved); i += channels {
		samples = append(samples, interleaved[i])
	}

	return Buffer{Samples: samples, SampleRate: float64(w.SampleRate)}, nil
}

// readHeader parses up to the data payload. dspwav.New divides by the channel
// count, sample rate and sample width, so zeros there surface as a panic.
func readHeader(r io.Reader) (w *dspwav.Wav, err error) {
	defer func() {
		if p := recover(); p != nil {
			w, err = nil, fmt.Errorf("%w: %v", ErrInvalidHeader, p)
		}
	}()
	w, err = dspwav.New(r)
	if err == nil && (w.NumChannels == 0 || w.SampleRate == 0) {
		return nil, ErrInvalidHeader
	}
	return w, err
}

func supportedFormat(h dspwav.Header) bool {
	switch h.AudioFormat {
	case formatPCM:
		return h.BitsPerSample == 8 || h.BitsPerSample == 16
	case formatIEEEFloat:
		return h.BitsPerSample == 32
	}
	return false
}

// normalize maps raw samples onto [-1, 1]. 8-bit PCM is unsigned with 128 as
// its zero line.
func normalize(data interface{}) ([]float64, error) {
	switch d := data.(type) {
	case []uint8:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = (float64(v) - 128) / 128
		}
		return out, nil
	case []int16:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v) / -math.MinInt16
		}
		return out, nil
	case []float32:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: sample type %T", ErrUnsupportedFormat, data)
}

// LoadWAV decodes the WAV file at path.
func LoadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	return ReadWAV(f)
}

// WriteWAV encodes pcm as a mono 16-bit WAV stream.
func WriteWAV(w io.Writer, pcm []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	samples := make([]wav.Sample, len(pcm))
	for i, v := range pcm {
		samples[i].Values[0] = int(v)
	}

	writer := wav.NewWriter(w, uint32(len(pcm)), MonoChannels, uint32(sampleRate), BitsPerSample)
	if err := writer.WriteSamples(samples); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// SaveWAV writes pcm to a new WAV file at path.
func SaveWAV(path string, pcm []int16, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close wav: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := WriteWAV(bw, pcm, sampleRate); err != nil {
		return err
	}
	return bw.Flush()
}
