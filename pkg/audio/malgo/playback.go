package malgo

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// Compile-time assertion that Playback satisfies audio.OutputDevice.
var _ audio.OutputDevice = (*Playback)(nil)

// Playback implements [audio.OutputDevice] using the default system speaker.
//
// miniaudio playback is pull-based: the device callback drains an internal
// sample queue and plays silence on underrun. Write appends to that queue but
// blocks while the backlog exceeds one device period, so the queue depth
// tracks real playout time and Drain can tell when sound has actually
// stopped. Halt discards the queue and stops the device synchronously, so
// when Halt returns the speaker is genuinely quiet.
type Playback struct {
	mu         sync.Mutex
	mctx       *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	open       bool

	qmu     sync.Mutex
	cond    *sync.Cond
	queue   []float32
	limit   int
	running bool
}

// NewPlayback creates a playback device. The device is not opened until Open.
func NewPlayback() *Playback {
	p := &Playback{}
	p.cond = sync.NewCond(&p.qmu)
	return p
}

// Open prepares the device for playout at the given sample rate. If the
// device is already open at a different rate it is torn down and reopened —
// synthesis sessions may legitimately change rates between turns.
func (p *Playback) Open(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("malgo: invalid sample rate %d", sampleRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open && p.sampleRate == sampleRate {
		return nil
	}
	if p.open {
		slog.Info("playback sample rate changed, reopening device",
			"from", p.sampleRate, "to", sampleRate)
		p.teardownLocked()
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", audio.ErrOutputUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			p.fill(output, int(frameCount))
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: init device: %v", audio.ErrOutputUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: start device: %v", audio.ErrOutputUnavailable, err)
	}

	p.mctx = mctx
	p.device = device
	p.sampleRate = sampleRate
	p.open = true

	p.qmu.Lock()
	// One device period of backlog; Write blocks beyond this.
	p.limit = sampleRate / 10
	p.running = true
	p.qmu.Unlock()
	return nil
}

// fill runs on the miniaudio callback thread: copy queued samples into the
// device buffer as little-endian float32, zero-filling on underrun.
func (p *Playback) fill(output []byte, frameCount int) {
	p.qmu.Lock()
	n := min(frameCount, len(p.queue))
	for i := range n {
		bits := floatBits(p.queue[i])
		output[i*4+0] = byte(bits)
		output[i*4+1] = byte(bits >> 8)
		output[i*4+2] = byte(bits >> 16)
		output[i*4+3] = byte(bits >> 24)
	}
	p.queue = p.queue[n:]
	if n > 0 {
		p.cond.Broadcast()
	}
	p.qmu.Unlock()
	for i := n * 4; i < frameCount*4; i++ {
		output[i] = 0
	}
}

// Write queues samples for playout. Returns an error if the device is not
// open. While the queued backlog exceeds one device period Write blocks until
// the callback has drained it, so the caller can never run ahead of the
// speaker by more than a period plus one chunk.
func (p *Playback) Write(samples []float32) error {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if !p.running {
		return fmt.Errorf("malgo: playback device not open")
	}
	for len(p.queue) > p.limit {
		p.cond.Wait()
		if !p.running {
			return fmt.Errorf("malgo: playback device not open")
		}
	}
	p.queue = append(p.queue, samples...)
	return nil
}

// Drain blocks until the callback has consumed every queued sample, or the
// device is halted or closed. The residual still sounding when Drain returns
// is at most miniaudio's own period buffer.
func (p *Playback) Drain() error {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	for p.running && len(p.queue) > 0 {
		p.cond.Wait()
	}
	return nil
}

// Halt discards all queued samples and stops the device. malgo's Stop is
// synchronous — it returns after the backend has stopped the stream — so the
// no-overlap guarantee holds when Halt returns. The device stays open and
// can be restarted by the next Write-preceding Open.
func (p *Playback) Halt() error {
	p.qmu.Lock()
	p.queue = nil
	p.running = false
	p.cond.Broadcast()
	p.qmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.teardownLocked()
	return nil
}

// Close releases the device. Safe to call more than once.
func (p *Playback) Close() error {
	p.qmu.Lock()
	p.queue = nil
	p.running = false
	p.cond.Broadcast()
	p.qmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.teardownLocked()
	}
	return nil
}

func (p *Playback) teardownLocked() {
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	if p.mctx != nil {
		_ = p.mctx.Uninit()
		p.mctx.Free()
		p.mctx = nil
	}
	p.open = false
}

func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}
