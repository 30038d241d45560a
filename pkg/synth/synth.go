// Package synth defines the streaming speech synthesizer interface.
//
// A Synthesizer turns reply text into an ordered stream of PCM chunks. The
// stream surface mirrors the audio frame source: a channel of chunks that
// closes when synthesis ends, with the terminal error retrievable afterwards.
package synth

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned when writing to or reading from a synthesis
// stream that has been closed.
var ErrStreamClosed = errors.New("synth: stream is closed")

// Chunk is one piece of synthesized speech.
type Chunk struct {
	// SampleRate is the chunk's sample rate in Hz. It may differ between
	// streams (and in principle between chunks); the playback layer reopens
	// the output device on change.
	SampleRate int

	// Samples is mono float32 PCM in [-1, 1].
	Samples []float32

	// Index is the chunk's zero-based position within the stream.
	Index int
}

// Stream is one live synthesis of a single text.
type Stream interface {
	// Chunks returns the channel emitting chunks in order. It is closed when
	// the synthesizer signals the end of the stream, on error, and on Close.
	Chunks() <-chan Chunk

	// Err reports the terminal error, if any. Valid once Chunks is closed.
	Err() error

	// Close abandons the stream and releases its resources. Safe to call
	// more than once and concurrently with reads.
	Close() error
}

// Synthesizer opens streaming syntheses.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Stream, error)
}
