// Package porcupine provides a wake-phrase Spotter backed by the Picovoice
// Porcupine engine. Porcupine consumes fixed 16-bit sample windows (512
// samples at 16 kHz) and reports the index of any detected built-in keyword.
package porcupine

import (
	"errors"
	"fmt"
	"strings"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/SulavKhadka/voiceloop/pkg/scorer"
)

// Compile-time assertion that Spotter satisfies scorer.Spotter.
var _ scorer.Spotter = (*Spotter)(nil)

// Spotter implements [scorer.Spotter] using Porcupine built-in keywords.
// Not safe for concurrent use; the processing loop is the sole caller.
type Spotter struct {
	engine pv.Porcupine
}

// New creates a Porcupine spotter for the given built-in keyword names
// (e.g., "porcupine", "jarvis"). accessKey is the Picovoice console key.
// The caller must Close the spotter to release the native engine.
func New(accessKey string, keywords []string) (*Spotter, error) {
	if accessKey == "" {
		return nil, errors.New("porcupine: accessKey must not be empty")
	}
	if len(keywords) == 0 {
		return nil, errors.New("porcupine: at least one keyword is required")
	}

	builtins := make([]pv.BuiltInKeyword, len(keywords))
	for i, kw := range keywords {
		builtins[i] = pv.BuiltInKeyword(strings.ToLower(strings.TrimSpace(kw)))
	}

	s := &Spotter{engine: pv.Porcupine{
		AccessKey:       accessKey,
		BuiltInKeywords: builtins,
	}}
	if err := s.engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init engine: %w", err)
	}
	return s, nil
}

// FrameLength returns Porcupine's fixed detection window size in samples.
func (s *Spotter) FrameLength() int { return pv.FrameLength }

// SampleRate returns the sample rate Porcupine expects (16 kHz).
func (s *Spotter) SampleRate() int { return pv.SampleRate }

// Detect processes one window and reports whether any configured keyword
// completed within it.
func (s *Spotter) Detect(window []int16) (bool, error) {
	idx, err := s.engine.Process(window)
	if err != nil {
		return false, fmt.Errorf("porcupine: process: %w", err)
	}
	return idx >= 0, nil
}

// Close releases the native engine.
func (s *Spotter) Close() error {
	return s.engine.Delete()
}
