package scorer_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/scorer"
	"github.com/SulavKhadka/voiceloop/pkg/scorer/mock"
)

func frame(samples []float32, rate int, ts time.Duration) audio.Frame {
	return audio.Frame{Samples: samples, SampleRate: rate, Timestamp: ts}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEnergy_ScoreIsRMS(t *testing.T) {
	t.Parallel()

	e := scorer.NewEnergy()
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	act, err := e.Score(frame(samples, 16000, 3*time.Second))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !almostEqual(act.Score, 0.5) {
		t.Errorf("Score = %v, want 0.5", act.Score)
	}
	if act.Timestamp != 3*time.Second {
		t.Errorf("Timestamp = %v, want 3s", act.Timestamp)
	}
	if act.WakeWord {
		t.Error("WakeWord = true for plain energy scorer")
	}
}

func TestWindowed_SegmentsAndPads(t *testing.T) {
	t.Parallel()

	m := &mock.Model{Window: 4, Scores: []float64{0.1, 0.9, 0.2}}
	w := scorer.NewWindowed(m)

	// 10 samples with window 4: two full sub-windows and one padded.
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 0.25
	}
	act, err := w.Score(frame(samples, 16000, 0))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if len(m.Calls) != 3 {
		t.Fatalf("Infer calls = %d, want 3", len(m.Calls))
	}
	last := m.Calls[2]
	if len(last) != 4 {
		t.Fatalf("final sub-window length = %d, want 4", len(last))
	}
	if last[2] != 0 || last[3] != 0 {
		t.Errorf("final sub-window tail = %v, want zero padding", last[2:])
	}

	// Fewer than five scores: the plain mean is the frame score.
	want := (0.1 + 0.9 + 0.2) / 3
	if !almostEqual(act.Score, want) {
		t.Errorf("Score = %v, want %v", act.Score, want)
	}
}

func TestWindowed_SmoothingSpansFrames(t *testing.T) {
	t.Parallel()

	m := &mock.Model{Window: 2, Scores: []float64{0, 0, 1, 1, 1, 1}}
	w := scorer.NewWindowed(m)

	if _, err := w.Score(frame(make([]float32, 4), 16000, 0)); err != nil {
		t.Fatalf("Score frame 1: %v", err)
	}
	act, err := w.Score(frame(make([]float32, 8), 16000, time.Second))
	if err != nil {
		t.Fatalf("Score frame 2: %v", err)
	}

	// Frame 2 smooths over [0 0 1 1 1 1]: windows average 0.6 and 0.8.
	if !almostEqual(act.Score, 0.8) {
		t.Errorf("Score = %v, want 0.8", act.Score)
	}
}

func TestWindowed_ResetDropsHistory(t *testing.T) {
	t.Parallel()

	m := &mock.Model{Window: 2, Scores: []float64{1, 1, 0, 0}}
	w := scorer.NewWindowed(m)

	if _, err := w.Score(frame(make([]float32, 4), 16000, 0)); err != nil {
		t.Fatalf("Score frame 1: %v", err)
	}
	w.Reset()
	act, err := w.Score(frame(make([]float32, 4), 16000, time.Second))
	if err != nil {
		t.Fatalf("Score frame 2: %v", err)
	}
	// Without the carried ones the second frame's mean is zero.
	if act.Score != 0 {
		t.Errorf("Score after Reset = %v, want 0", act.Score)
	}
}

func TestWindowed_EmptyFrame(t *testing.T) {
	t.Parallel()

	m := &mock.Model{Window: 4, Scores: []float64{0.9}}
	w := scorer.NewWindowed(m)

	act, err := w.Score(frame(nil, 16000, 2*time.Second))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if act.Score != 0 {
		t.Errorf("Score = %v, want 0 for empty frame", act.Score)
	}
	if len(m.Calls) != 0 {
		t.Errorf("Infer calls = %d, want 0", len(m.Calls))
	}
}

func TestWindowed_InferErrorSurfaces(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model exploded")
	w := scorer.NewWindowed(&mock.Model{Window: 4, Err: wantErr})
	if _, err := w.Score(frame(make([]float32, 4), 16000, 0)); !errors.Is(err, wantErr) {
		t.Errorf("Score error = %v, want wrapped %v", err, wantErr)
	}
}

func TestKeywordGated_ClosedGateMutes(t *testing.T) {
	t.Parallel()

	sp := &mock.Spotter{Frame: 4, HitAt: -1}
	k := scorer.NewKeywordGated(scorer.NewEnergy(), sp)

	loud := []float32{0.9, -0.9, 0.9, -0.9, 0.9, -0.9, 0.9, -0.9}
	act, err := k.Score(frame(loud, 16000, 0))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if act.Score != 0 {
		t.Errorf("Score = %v, want 0 while gate armed", act.Score)
	}
	if act.WakeWord {
		t.Error("WakeWord = true with no detection")
	}
	if len(sp.Calls) != 2 {
		t.Errorf("Detect calls = %d, want 2", len(sp.Calls))
	}
}

func TestKeywordGated_DetectionTruncatesFrame(t *testing.T) {
	t.Parallel()

	// Detection fires on the second sub-window, i.e. sample offset 4.
	sp := &mock.Spotter{Frame: 4, HitAt: 1}
	k := scorer.NewKeywordGated(scorer.NewEnergy(), sp)

	samples := make([]float32, 12)
	for i := range samples {
		samples[i] = float32(i)
	}
	act, err := k.Score(frame(samples, 4, 10*time.Second))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if !act.WakeWord {
		t.Fatal("WakeWord = false, want true")
	}
	if act.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", act.Score)
	}
	if got := len(act.Frame.Samples); got != 8 {
		t.Fatalf("trimmed frame length = %d, want 8", got)
	}
	if act.Frame.Samples[0] != 4 {
		t.Errorf("trimmed frame starts at sample %v, want 4", act.Frame.Samples[0])
	}
	// Offset 4 at 4 Hz is one second past the frame start.
	if act.Frame.Timestamp != 11*time.Second {
		t.Errorf("trimmed Timestamp = %v, want 11s", act.Frame.Timestamp)
	}
}

func TestKeywordGated_DelegatesAfterFiring(t *testing.T) {
	t.Parallel()

	sp := &mock.Spotter{Frame: 2, HitAt: 0}
	k := scorer.NewKeywordGated(scorer.NewEnergy(), sp)

	if _, err := k.Score(frame(make([]float32, 2), 16000, 0)); err != nil {
		t.Fatalf("Score (wake): %v", err)
	}

	loud := []float32{0.5, -0.5, 0.5, -0.5}
	act, err := k.Score(frame(loud, 16000, time.Second))
	if err != nil {
		t.Fatalf("Score (speech): %v", err)
	}
	if !almostEqual(act.Score, 0.5) {
		t.Errorf("Score = %v, want inner RMS 0.5", act.Score)
	}
	if act.WakeWord {
		t.Error("WakeWord = true on delegated frame")
	}
	// The spotter is out of the loop once the gate has fired.
	if len(sp.Calls) != 1 {
		t.Errorf("Detect calls = %d, want 1", len(sp.Calls))
	}
}

func TestKeywordGated_ResetRearms(t *testing.T) {
	t.Parallel()

	sp := &mock.Spotter{Frame: 2, HitAt: 0}
	k := scorer.NewKeywordGated(scorer.NewEnergy(), sp)

	if _, err := k.Score(frame(make([]float32, 2), 16000, 0)); err != nil {
		t.Fatalf("Score (wake): %v", err)
	}
	k.Reset()

	loud := []float32{0.5, -0.5}
	act, err := k.Score(frame(loud, 16000, time.Second))
	if err != nil {
		t.Fatalf("Score (after reset): %v", err)
	}
	if act.Score != 0 {
		t.Errorf("Score = %v, want 0 with re-armed gate", act.Score)
	}
	if len(sp.Calls) != 2 {
		t.Errorf("Detect calls = %d, want 2", len(sp.Calls))
	}
}

func TestKeywordGated_PadsPartialWindow(t *testing.T) {
	t.Parallel()

	sp := &mock.Spotter{Frame: 4, HitAt: -1}
	k := scorer.NewKeywordGated(scorer.NewEnergy(), sp)

	if _, err := k.Score(frame(make([]float32, 6), 16000, 0)); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(sp.Calls) != 2 {
		t.Fatalf("Detect calls = %d, want 2", len(sp.Calls))
	}
	if got := len(sp.Calls[1]); got != 4 {
		t.Errorf("partial window length = %d, want padded to 4", got)
	}
}
