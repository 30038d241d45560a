package audio

import "time"

// Frame is a single fixed-duration block of audio flowing through the
// pipeline. Frames are the atomic unit of transport — captured from the
// microphone, scored for speech activity, fed to the transcriber, and
// discarded. A Frame is immutable once produced: ownership transfers
// frame-by-frame from the capture context to the processing context and is
// never shared between goroutines.
type Frame struct {
	// Samples holds mono PCM samples normalised to [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for speech-to-text input).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	// Derived from the monotonic clock, so frame timestamps are strictly
	// increasing within a session.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame's audio.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
