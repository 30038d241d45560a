package scorer

import "github.com/SulavKhadka/voiceloop/pkg/audio"

// Compile-time assertion that Energy satisfies Scorer.
var _ Scorer = (*Energy)(nil)

// Energy scores frames by RMS energy. It carries no model dependency and no
// state, which makes it the fallback when no acoustic model is configured.
// Pair it with an activity threshold calibrated to the microphone (the
// default 0.01 suits a typical close-talking mic).
type Energy struct{}

// NewEnergy creates an energy scorer.
func NewEnergy() *Energy { return &Energy{} }

// Score returns the frame's RMS energy as the activity score.
func (e *Energy) Score(frame audio.Frame) (Activity, error) {
	return Activity{
		Score:     audio.RMS(frame.Samples),
		Timestamp: frame.Timestamp,
		Frame:     frame,
	}, nil
}

// Reset is a no-op; the energy scorer is stateless.
func (e *Energy) Reset() {}
