// Package audio defines the types and interfaces for audio capture and
// playback within voiceloop.
//
// The two primary abstractions are:
//
//   - [FrameSource] — a restartable producer of fixed-duration [Frame] values
//     driven by a capture device's own clock.
//   - [OutputDevice] — a playback sink that accepts PCM samples and can be
//     halted promptly.
//
// Implementations are provided by device-specific packages (e.g.,
// audio/malgo). The interfaces are intentionally narrow so that the pipeline
// stays decoupled from device details; test code supplies the doubles in
// audio/mock.
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrDeviceUnavailable is returned by [FrameSource.Start] when the capture
// device cannot be opened. It is fatal to the session: there is no audio to
// listen to, so the caller must surface the error rather than retry silently.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// ErrDeviceStopped is reported via [FrameSource.Err] when the device fails
// mid-stream. The source does not restart itself — consuming silence from a
// half-dead device would be worse than stopping — so the caller must detect
// the closed frame channel and restart explicitly.
var ErrDeviceStopped = errors.New("audio: capture device stopped")

// FrameSource produces a lazy, infinite sequence of fixed-duration frames
// from a capture device. A source is restartable: after Stop (or a device
// failure) a new session may be started with Start.
//
// The capture callback runs on the device's own real-time thread and must
// never block on downstream consumers; implementations push frames through a
// bounded drop-oldest [CaptureBuffer].
type FrameSource interface {
	// Start opens the device and begins producing frames. It fails fast with
	// [ErrDeviceUnavailable] if the device cannot be opened. The supplied ctx
	// bounds the open attempt only; once started, the source runs until Stop
	// is called or the device fails.
	Start(ctx context.Context) error

	// Frames returns the channel on which captured frames are delivered.
	// The channel is closed when the source stops — either via Stop or a
	// mid-stream device failure (check Err to distinguish the two).
	Frames() <-chan Frame

	// Err returns the error that stopped the source, or nil after a clean
	// Stop. Valid once the Frames channel is closed.
	Err() error

	// Dropped returns the number of frames discarded because the processing
	// side fell behind the capture clock.
	Dropped() uint64

	// Stop halts capture and closes the Frames channel. Safe to call more
	// than once; subsequent calls are no-ops.
	Stop()
}

// CaptureBuffer is a bounded frame queue crossing the capture/processing
// boundary. The capture side pushes without ever blocking: when the buffer is
// full the oldest unread frame is dropped and the overflow counter
// incremented. Capture is wall-clock driven — stalling it would lose audio at
// the device level instead, invisibly.
//
// Push must only be called from a single producer goroutine (the capture
// callback). Frames may be consumed concurrently.
type CaptureBuffer struct {
	ch      chan Frame
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewCaptureBuffer creates a buffer holding at most capacity frames.
// Capacity must be at least 1.
func NewCaptureBuffer(capacity int) *CaptureBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CaptureBuffer{ch: make(chan Frame, capacity)}
}

// Push enqueues a frame, evicting the oldest queued frame if the buffer is
// full. Never blocks. Returns false if the frame was enqueued at the cost of
// dropping another.
func (b *CaptureBuffer) Push(f Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- f:
		return true
	default:
	}
	// Full: evict the oldest unread frame, then retry. The single-producer
	// contract guarantees the retry cannot race another Push.
	select {
	case <-b.ch:
		b.dropped.Add(1)
	default:
	}
	select {
	case b.ch <- f:
	default:
	}
	return false
}

// Frames returns the consumer side of the buffer. Closed by Close.
func (b *CaptureBuffer) Frames() <-chan Frame { return b.ch }

// Dropped returns the total number of evicted frames.
func (b *CaptureBuffer) Dropped() uint64 { return b.dropped.Load() }

// Close closes the frame channel. Queued frames remain readable. Safe to
// call more than once.
func (b *CaptureBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
