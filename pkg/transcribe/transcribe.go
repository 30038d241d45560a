// Package transcribe defines the incremental transcriber consumed by the
// pipeline's processing loop.
//
// A Transcriber accumulates one utterance's audio frame by frame and exposes
// a best-effort rolling hypothesis while the utterance is still open. Feed
// and Finish are called from the single processing goroutine; Partial may be
// called from other goroutines (status surfaces, logging) and never blocks on
// inference.
package transcribe

import (
	"errors"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// ErrClosed is returned by Feed and Finish after the transcriber has been
// closed.
var ErrClosed = errors.New("transcribe: transcriber is closed")

// Transcriber converts one utterance's frames into text.
//
// The lifecycle is Feed* → Finish, repeated per utterance: Finish flushes the
// remaining audio, returns the complete transcript, and resets the
// transcriber for the next utterance.
type Transcriber interface {
	// Feed appends one frame of utterance audio.
	Feed(frame audio.Frame) error

	// Partial returns the current rolling hypothesis without blocking. The
	// hypothesis may lag the audio fed so far and may be revised.
	Partial() string

	// Finish flushes buffered audio, returns the final transcript for the
	// utterance, and resets internal state for reuse.
	Finish() (string, error)
}
