// Package malgo provides microphone capture and speaker playback devices
// backed by the miniaudio library via the gen2brain/malgo bindings.
//
// Capture runs on miniaudio's own real-time callback thread and hands frames
// to the processing side through a bounded drop-oldest buffer, so a stalled
// consumer can never block the device clock.
package malgo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// CaptureConfig holds the audio format for a capture session.
type CaptureConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// FrameDuration is the length of each emitted frame. Default: 1s.
	FrameDuration time.Duration

	// BufferFrames is the capacity of the capture buffer crossing into the
	// processing context. Default: 16.
	BufferFrames int
}

func (c *CaptureConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = time.Second
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = 16
	}
}

// Compile-time assertion that Capture satisfies audio.FrameSource.
var _ audio.FrameSource = (*Capture)(nil)

// Capture implements [audio.FrameSource] using the default system microphone.
// A Capture is restartable: after Stop (or a device failure) Start may be
// called again for a fresh session with a new buffer and timestamp origin.
type Capture struct {
	cfg CaptureConfig

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	buf     *audio.CaptureBuffer
	err     error
	running bool

	// accum collects device callback samples until a full frame is ready.
	// Touched only from the miniaudio callback thread.
	accum   []float32
	started time.Time
	elapsed time.Duration
}

// NewCapture creates a capture source with the given configuration.
// The device is not opened until Start.
func NewCapture(cfg CaptureConfig) *Capture {
	cfg.applyDefaults()
	return &Capture{cfg: cfg}
}

// Start opens the default capture device and begins producing frames.
// Fails fast with [audio.ErrDeviceUnavailable] if the device cannot be
// opened — there is no point listening to a microphone that isn't there.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("malgo: capture already running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", audio.ErrDeviceUnavailable, err)
	}

	frameSamples := int(c.cfg.FrameDuration.Seconds() * float64(c.cfg.SampleRate))
	c.buf = audio.NewCaptureBuffer(c.cfg.BufferFrames)
	c.accum = make([]float32, 0, frameSamples)
	c.elapsed = 0
	c.err = nil

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if frameCount == 0 {
				return
			}
			c.onSamples(audio.BytesToFloat32(input[:frameCount*4]), frameSamples)
		},
		Stop: func() {
			// Invoked by miniaudio when the device halts outside our control
			// (unplugged, backend failure). A clean Stop closes the buffer
			// first, so reaching here with an open buffer means mid-stream
			// failure.
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.running {
				c.err = audio.ErrDeviceStopped
				c.running = false
				c.buf.Close()
				slog.Error("capture device stopped mid-stream")
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: init device: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: start device: %v", audio.ErrDeviceUnavailable, err)
	}

	c.mctx = mctx
	c.device = device
	c.started = time.Now()
	c.running = true
	slog.Info("capture started",
		"sample_rate", c.cfg.SampleRate,
		"frame_duration", c.cfg.FrameDuration,
	)
	return nil
}

// onSamples runs on the miniaudio callback thread. It slices the incoming
// samples into fixed-size frames and pushes them without blocking.
func (c *Capture) onSamples(samples []float32, frameSamples int) {
	c.accum = append(c.accum, samples...)
	for len(c.accum) >= frameSamples {
		frame := audio.Frame{
			Samples:    append([]float32(nil), c.accum[:frameSamples]...),
			SampleRate: c.cfg.SampleRate,
			Timestamp:  c.elapsed,
		}
		c.accum = append(c.accum[:0], c.accum[frameSamples:]...)
		c.elapsed += frame.Duration()
		if !c.buf.Push(frame) {
			slog.Warn("capture buffer overflowed, dropped oldest frame",
				"dropped_total", c.buf.Dropped())
		}
	}
}

// Frames returns the frame delivery channel for the current session.
func (c *Capture) Frames() <-chan audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		// Start was never called; return a closed channel rather than nil so
		// callers ranging over it terminate instead of blocking forever.
		ch := make(chan audio.Frame)
		close(ch)
		return ch
	}
	return c.buf.Frames()
}

// Err returns the error that stopped the source, or nil after a clean Stop.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Dropped returns the number of frames evicted by the capture buffer.
func (c *Capture) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return 0
	}
	return c.buf.Dropped()
}

// Stop halts capture, releases the device, and closes the frame channel.
// Safe to call more than once.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.buf.Close()
	device, mctx := c.device, c.mctx
	c.device, c.mctx = nil, nil
	c.mu.Unlock()

	// Device teardown happens outside the lock: miniaudio joins its callback
	// thread here, and the Stop callback takes the same mutex.
	if device != nil {
		device.Uninit()
	}
	if mctx != nil {
		_ = mctx.Uninit()
		mctx.Free()
	}
	slog.Info("capture stopped")
}
