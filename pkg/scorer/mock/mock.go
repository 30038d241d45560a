// Package mock provides scripted scorer.Model and scorer.Spotter doubles for
// tests.
package mock

import (
	"github.com/SulavKhadka/voiceloop/pkg/scorer"
)

// Compile-time assertions.
var (
	_ scorer.Model   = (*Model)(nil)
	_ scorer.Spotter = (*Spotter)(nil)
)

// Model is a scripted acoustic model. Each Infer call pops the next score
// from Scores; when the script runs out the last score repeats. All windows
// passed to Infer are recorded.
type Model struct {
	// Window is the value WindowSize returns.
	Window int

	// Scores is the script of probabilities returned in order.
	Scores []float64

	// Err, when set, is returned by every Infer call.
	Err error

	// Calls records every window passed to Infer.
	Calls [][]float32

	next int
}

// WindowSize returns the configured window size.
func (m *Model) WindowSize() int { return m.Window }

// Infer records the window and returns the next scripted score.
func (m *Model) Infer(window []float32) (float64, error) {
	m.Calls = append(m.Calls, append([]float32(nil), window...))
	if m.Err != nil {
		return 0, m.Err
	}
	if len(m.Scores) == 0 {
		return 0, nil
	}
	i := min(m.next, len(m.Scores)-1)
	m.next++
	return m.Scores[i], nil
}

// Spotter is a scripted wake-phrase detector. Detect reports a hit on the
// call whose zero-based index equals HitAt; a negative HitAt never fires.
type Spotter struct {
	// Frame is the value FrameLength returns.
	Frame int

	// HitAt is the zero-based Detect call index that reports a detection.
	HitAt int

	// Err, when set, is returned by every Detect call.
	Err error

	// Calls records every window passed to Detect.
	Calls [][]int16
}

// FrameLength returns the configured detection window size.
func (s *Spotter) FrameLength() int { return s.Frame }

// Detect records the window and fires on the scripted call index.
func (s *Spotter) Detect(window []int16) (bool, error) {
	idx := len(s.Calls)
	s.Calls = append(s.Calls, append([]int16(nil), window...))
	if s.Err != nil {
		return false, s.Err
	}
	return s.HitAt >= 0 && idx == s.HitAt, nil
}
