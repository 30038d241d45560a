// Package mock provides scripted synth.Synthesizer and synth.Stream doubles
// for tests.
package mock

import (
	"context"
	"sync"

	"github.com/SulavKhadka/voiceloop/pkg/synth"
)

// Compile-time assertions.
var (
	_ synth.Synthesizer = (*Synthesizer)(nil)
	_ synth.Stream      = (*Stream)(nil)
)

// Synthesizer is a scripted synthesizer double. Each Synthesize call records
// the text and returns a new Stream preloaded with Script.
type Synthesizer struct {
	// Script is the chunk sequence every stream emits.
	Script []synth.Chunk

	// StartErr, when set, is returned by Synthesize.
	StartErr error

	// StreamErr, when set, becomes each stream's terminal error after the
	// script is drained.
	StreamErr error

	// HoldOpen keeps each stream's channel open after the script until the
	// stream is closed or Finish is called on it.
	HoldOpen bool

	mu      sync.Mutex
	texts   []string
	streams []*Stream
}

// Synthesize records text and returns a fresh scripted stream.
func (s *Synthesizer) Synthesize(_ context.Context, text string) (synth.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.StartErr != nil {
		return nil, s.StartErr
	}

	st := &Stream{err: s.StreamErr, chunks: make(chan synth.Chunk, len(s.Script)+1)}
	for _, c := range s.Script {
		st.chunks <- c
	}
	if !s.HoldOpen {
		close(st.chunks)
		st.closed = true
	}
	s.streams = append(s.streams, st)
	return st, nil
}

// Texts returns the texts synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Streams returns the streams handed out so far.
func (s *Synthesizer) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Stream(nil), s.streams...)
}

// Stream is a scripted synthesis stream.
type Stream struct {
	mu         sync.Mutex
	chunks     chan synth.Chunk
	err        error
	closed     bool
	closeCalls int
}

// Chunks returns the scripted chunk channel.
func (s *Stream) Chunks() <-chan synth.Chunk { return s.chunks }

// Err returns the scripted terminal error.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the chunk channel and counts the call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
	return nil
}

// Emit pushes an extra chunk onto an open stream.
func (s *Stream) Emit(c synth.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.chunks <- c
	}
}

// Finish closes the chunk channel without counting as a consumer Close.
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
}

// CloseCalls returns how many times Close has been called.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
