// Package scorer defines the Scorer interface for per-frame speech-activity
// scoring and its built-in strategies.
//
// A Scorer turns an audio frame into a speech-likelihood score consumed by
// the endpointer's state machine. Three strategies are provided:
//
//   - [Energy] — RMS energy, no model dependency; the cheap fallback.
//   - [Windowed] — a pluggable acoustic [Model] run per fixed-size sub-window
//     with moving-average smoothing; the usual choice (e.g., a VAD network).
//   - [KeywordGated] — wraps another scorer with a wake-phrase [Spotter] so
//     that an utterance can only begin with the wake word.
//
// Scorers keep at most a small bounded rolling history and are driven by a
// single goroutine (the processing loop); they are not safe for concurrent
// use.
package scorer

import (
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// Activity is the speech-likelihood result for one frame.
type Activity struct {
	// Score is the speech likelihood in [0, 1] for model-backed scorers, or
	// the raw RMS energy for [Energy]. The endpointer compares it against the
	// configured activity threshold.
	Score float64

	// Timestamp is copied from the scored frame.
	Timestamp time.Duration

	// WakeWord is true when a wake phrase forced this frame to count as
	// speech regardless of Score.
	WakeWord bool

	// Frame is the frame to forward downstream. Usually the input unchanged;
	// a keyword-gated scorer truncates it to the post-keyword samples so the
	// wake phrase itself is never transcribed.
	Frame audio.Frame
}

// Scorer computes a speech-activity score per frame.
//
// Score must tolerate partial frames (e.g., the last frame before a device
// stops): implementations zero-pad rather than fail. Reset clears any rolling
// state (smoothing history, wake-word gate) when the pipeline returns to
// idle between utterances.
type Scorer interface {
	Score(frame audio.Frame) (Activity, error)
	Reset()
}

// Model is an opaque acoustic inference backend scoring fixed-size sample
// windows. Voice-activity networks and similar detectors implement this; the
// pipeline never sees past the interface.
type Model interface {
	// WindowSize returns the exact number of samples the model accepts per
	// inference call.
	WindowSize() int

	// Infer returns the speech probability in [0, 1] for one window. The
	// window length always equals WindowSize (callers zero-pad).
	Infer(window []float32) (float64, error)
}

// Spotter detects a wake phrase in fixed-size windows of 16-bit samples.
type Spotter interface {
	// FrameLength returns the exact number of samples per detection window.
	FrameLength() int

	// Detect processes one window and reports whether the wake phrase
	// completed within it.
	Detect(window []int16) (bool, error)
}
