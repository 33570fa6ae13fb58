// internal/audio/capture.go
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
	ErrClosed         = errors.New("audio capture closed")
)

// CaptureConfig holds microphone capture configuration
type CaptureConfig struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 8000
	BufferSize  uint32 // frames per callback
}

// DefaultCaptureConfig returns telephone-band defaults for DTMF listening
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceIndex: -1,
		SampleRate:  8000,
		BufferSize:  512,
	}
}

// SampleCallback receives mono float32 samples in [-1, 1].
// It is called from the audio thread and must be non-blocking and fast.
type SampleCallback func(samples []float32)

// Capture records mono audio from an input device
type Capture struct {
	config   CaptureConfig
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	closed   bool
	mu       sync.RWMutex
	callback SampleCallback
}

// NewCapture creates a capture instance. Call Init before Start.
func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{config: cfg}
}

// SetCallback sets the sample callback. Set before calling Start.
func (c *Capture) SetCallback(cb SampleCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins capture. It stops when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.RLock()
	switch {
	case c.closed:
		c.mu.RUnlock()
		return ErrClosed
	case c.running:
		c.mu.RUnlock()
		return ErrAlreadyRunning
	case c.ctx == nil:
		c.mu.RUnlock()
		return ErrNotInitialized
	}
	c.mu.RUnlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1

	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			c.mu.RLock()
			cb := c.callback
			c.mu.RUnlock()
			if cb != nil {
				cb(bytesToFloat32(input))
			}
		},
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// Stop stops capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	c.stopDevice()
	return nil
}

// Close stops capture and releases the audio backend. Further calls are no-ops.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.running {
		c.stopDevice()
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// stopDevice must be called with mu held
func (c *Capture) stopDevice() {
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Config returns the capture configuration
func (c *Capture) Config() CaptureConfig {
	return c.config
}

// bytesToFloat32 decodes little-endian IEEE 754 float32 frames.
// Trailing bytes that do not form a whole sample are ignored.
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
