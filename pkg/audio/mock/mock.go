// Package mock provides test doubles for the audio package interfaces.
//
// Source replays a scripted sequence of frames on Start; Device records every
// Open/Write/Halt call so tests can assert on playout behaviour.
package mock

import (
	"context"
	"sync"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// Source is a scripted implementation of audio.FrameSource. Frames pushed
// via Emit (or preloaded in Script) are delivered on the Frames channel.
type Source struct {
	// Script, if non-empty, is emitted in order as soon as Start is called,
	// after which the channel closes (unless HoldOpen is set).
	Script []audio.Frame

	// HoldOpen keeps the Frames channel open after the script drains so the
	// test can Emit further frames manually.
	HoldOpen bool

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// StopErr is reported from Err after the source stops.
	StopErr error

	mu      sync.Mutex
	ch      chan audio.Frame
	started bool
	stopped bool
}

// Start begins replaying the script. Returns StartErr if set.
func (s *Source) Start(_ context.Context) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	s.ch = make(chan audio.Frame, len(s.Script)+16)
	s.started = true
	for _, f := range s.Script {
		s.ch <- f
	}
	if !s.HoldOpen {
		close(s.ch)
		s.stopped = true
	}
	s.mu.Unlock()
	return nil
}

// Emit delivers one additional frame. Panics if the source was started
// without HoldOpen or already stopped, which indicates a broken test.
func (s *Source) Emit(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch <- f
}

// Frames returns the scripted frame channel.
func (s *Source) Frames() <-chan audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		ch := make(chan audio.Frame)
		close(ch)
		return ch
	}
	return s.ch
}

// Err returns StopErr once the source has stopped.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		return nil
	}
	return s.StopErr
}

// Dropped always returns 0 for the scripted source.
func (s *Source) Dropped() uint64 { return 0 }

// Stop closes the frame channel. Safe to call more than once.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ch == nil {
		s.stopped = true
		return
	}
	s.stopped = true
	close(s.ch)
}

// WriteCall records a single invocation of Device.Write.
type WriteCall struct {
	// Samples is the slice passed to Write.
	Samples []float32
}

// Compile-time assertion that Device satisfies audio.OutputDevice.
var _ audio.OutputDevice = (*Device)(nil)

// Device is a recording implementation of audio.OutputDevice.
type Device struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned from Open.
	OpenErr error

	// WriteErr, if non-nil, is returned from Write.
	WriteErr error

	// OpenCalls records the sample rate of every Open call in order.
	OpenCalls []int

	// WriteCalls records every Write call in order.
	WriteCalls []WriteCall

	// HaltCalls counts Halt invocations.
	HaltCalls int

	// DrainCalls counts Drain invocations.
	DrainCalls int

	// DrainRelease, when non-nil, makes Drain block until the channel is
	// closed or yields a value, simulating written audio still sounding
	// through the speaker. A Halt unblocks a pending Drain, as discarding
	// the queue does on the real device.
	DrainRelease chan struct{}

	// Opened reports whether the device is currently open.
	Opened bool

	// drainHalt is closed by Halt to release a Drain in progress.
	drainHalt chan struct{}
}

// Open records the call and returns OpenErr.
func (d *Device) Open(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, sampleRate)
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.Opened = true
	return nil
}

// Write records the call and returns WriteErr.
func (d *Device) Write(samples []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteErr != nil {
		return d.WriteErr
	}
	cp := append([]float32(nil), samples...)
	d.WriteCalls = append(d.WriteCalls, WriteCall{Samples: cp})
	return nil
}

// Drain records the call and simulates playout: with DrainRelease set it
// blocks until the release fires or Halt discards the queue.
func (d *Device) Drain() error {
	d.mu.Lock()
	d.DrainCalls++
	release := d.DrainRelease
	var halted chan struct{}
	if release != nil {
		halted = make(chan struct{})
		d.drainHalt = halted
	}
	d.mu.Unlock()

	if release == nil {
		return nil
	}
	select {
	case <-release:
	case <-halted:
	}
	return nil
}

// Halt records the call, releases any Drain in progress, and marks the
// device closed.
func (d *Device) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HaltCalls++
	d.Opened = false
	if d.drainHalt != nil {
		close(d.drainHalt)
		d.drainHalt = nil
	}
	return nil
}

// Close marks the device closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opened = false
	return nil
}

// Drains returns the number of Drain calls so far. Thread-safe.
func (d *Device) Drains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.DrainCalls
}

// Written returns the total number of samples delivered via Write.
// Thread-safe.
func (d *Device) Written() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, c := range d.WriteCalls {
		n += len(c.Samples)
	}
	return n
}
