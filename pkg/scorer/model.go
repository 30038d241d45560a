package scorer

import (
	"fmt"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// smoothingWindow is the number of consecutive sub-window scores averaged
// before the frame maximum is taken. Smoothing amortises per-window model
// jitter so a single noisy sub-window cannot flip the endpointing decision.
const smoothingWindow = 5

// Compile-time assertion that Windowed satisfies Scorer.
var _ Scorer = (*Windowed)(nil)

// Windowed scores frames with a pluggable acoustic [Model]. The frame is
// segmented into sub-windows of the model's native input size (the final
// partial sub-window is zero-padded), each sub-window is scored, scores are
// smoothed with a moving average of width 5, and the frame's score is the
// maximum smoothed value.
//
// The scorer keeps the last few raw sub-window scores across frames so the
// moving average spans frame boundaries; this is its only state.
type Windowed struct {
	model Model

	// history holds the trailing smoothingWindow-1 raw scores from the
	// previous frame. Bounded by construction.
	history []float64
}

// NewWindowed creates a model-backed scorer.
func NewWindowed(model Model) *Windowed {
	return &Windowed{model: model}
}

// Score runs the model over every sub-window of the frame and returns the
// maximum smoothed speech probability.
func (w *Windowed) Score(frame audio.Frame) (Activity, error) {
	size := w.model.WindowSize()
	if size <= 0 {
		return Activity{}, fmt.Errorf("scorer: model window size %d is invalid", size)
	}

	raw := append([]float64(nil), w.history...)
	carried := len(raw)
	for off := 0; off < len(frame.Samples); off += size {
		end := min(off+size, len(frame.Samples))
		window := audio.ZeroPad(frame.Samples[off:end], size)
		p, err := w.model.Infer(window)
		if err != nil {
			return Activity{}, fmt.Errorf("scorer: infer sub-window at %d: %w", off, err)
		}
		raw = append(raw, p)
	}
	if len(raw) == carried {
		// Empty frame: nothing new to score.
		return Activity{Timestamp: frame.Timestamp, Frame: frame}, nil
	}

	// Retain the trailing scores for the next frame's smoothing run.
	keep := min(smoothingWindow-1, len(raw))
	w.history = append(w.history[:0], raw[len(raw)-keep:]...)

	return Activity{
		Score:     maxSmoothed(raw),
		Timestamp: frame.Timestamp,
		Frame:     frame,
	}, nil
}

// Reset drops the rolling score history.
func (w *Windowed) Reset() {
	w.history = w.history[:0]
}

// maxSmoothed returns the maximum moving average of width smoothingWindow
// over scores. When fewer than smoothingWindow scores exist, the plain mean
// is used so short frames still produce a score.
func maxSmoothed(scores []float64) float64 {
	if len(scores) < smoothingWindow {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	}
	var best float64
	var window float64
	for i, s := range scores {
		window += s
		if i >= smoothingWindow {
			window -= scores[i-smoothingWindow]
		}
		if i >= smoothingWindow-1 {
			if avg := window / smoothingWindow; avg > best {
				best = avg
			}
		}
	}
	return best
}
