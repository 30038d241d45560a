package whisper

import (
	"errors"
	"testing"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/transcribe"
)

// newScripted builds a transcriber whose inference returns the scripted texts
// in order, bypassing model loading.
func newScripted(maxWindow time.Duration, texts ...string) (*Transcriber, *[]int) {
	t := &Transcriber{language: defaultLanguage, maxWindow: maxWindow}
	var calls []int
	i := 0
	t.infer = func(samples []float32) (string, error) {
		calls = append(calls, len(samples))
		if i >= len(texts) {
			return "", nil
		}
		text := texts[i]
		i++
		return text, nil
	}
	return t, &calls
}

// oneSecFrame is 8 samples at 8 Hz.
func oneSecFrame(ts time.Duration) audio.Frame {
	return audio.Frame{Samples: make([]float32, 8), SampleRate: 8, Timestamp: ts}
}

func TestTranscriber_RollingHypothesis(t *testing.T) {
	t.Parallel()

	tr, calls := newScripted(time.Minute, "hello", "hello world")
	if err := tr.Feed(oneSecFrame(0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got := tr.Partial(); got != "hello" {
		t.Errorf("Partial = %q, want %q", got, "hello")
	}

	if err := tr.Feed(oneSecFrame(time.Second)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got := tr.Partial(); got != "hello world" {
		t.Errorf("Partial = %q, want %q", got, "hello world")
	}

	// The live window grows across feeds: 8 then 16 samples.
	if got := *calls; len(got) != 2 || got[0] != 8 || got[1] != 16 {
		t.Errorf("inference sample counts = %v, want [8 16]", got)
	}
}

func TestTranscriber_CommitsOnWindowOverflow(t *testing.T) {
	t.Parallel()

	tr, calls := newScripted(2*time.Second, "one", "one two", "three", "one two three four")
	tr.Feed(oneSecFrame(0))
	tr.Feed(oneSecFrame(time.Second)) // window hits 2s, commits "one two"

	if got := tr.Partial(); got != "one two" {
		t.Errorf("Partial after commit = %q, want %q", got, "one two")
	}

	// The next feed starts a fresh window of 8 samples.
	tr.Feed(oneSecFrame(2 * time.Second))
	if got := *calls; got[len(got)-1] != 8 {
		t.Errorf("post-commit window = %d samples, want 8", got[len(got)-1])
	}
	if got := tr.Partial(); got != "one two three" {
		t.Errorf("Partial = %q, want %q", got, "one two three")
	}
}

func TestTranscriber_FinishJoinsAndResets(t *testing.T) {
	t.Parallel()

	tr, _ := newScripted(2*time.Second,
		"first part", "first part", "tail", "tail", "tail", "tail")
	tr.Feed(oneSecFrame(0))
	tr.Feed(oneSecFrame(time.Second)) // commit "first part"
	tr.Feed(oneSecFrame(2 * time.Second))

	text, err := tr.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if text != "first part tail" {
		t.Errorf("Finish = %q, want %q", text, "first part tail")
	}
	if got := tr.Partial(); got != "" {
		t.Errorf("Partial after Finish = %q, want empty", got)
	}

	// Reusable for the next utterance.
	if err := tr.Feed(oneSecFrame(10 * time.Second)); err != nil {
		t.Fatalf("Feed after Finish: %v", err)
	}
	text, err = tr.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if text != "tail" {
		t.Errorf("second utterance = %q, want %q", text, "tail")
	}
}

func TestTranscriber_FinishEmptyUtterance(t *testing.T) {
	t.Parallel()

	tr, calls := newScripted(time.Minute)
	text, err := tr.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if text != "" {
		t.Errorf("Finish = %q, want empty", text)
	}
	if len(*calls) != 0 {
		t.Errorf("inference ran %d times on empty utterance, want 0", len(*calls))
	}
}

func TestTranscriber_InferErrorSurfaces(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("inference failed")
	tr := &Transcriber{language: defaultLanguage, maxWindow: time.Minute}
	tr.infer = func([]float32) (string, error) { return "", wantErr }

	if err := tr.Feed(oneSecFrame(0)); !errors.Is(err, wantErr) {
		t.Errorf("Feed error = %v, want wrapped %v", err, wantErr)
	}
}

func TestTranscriber_ClosedRejectsWork(t *testing.T) {
	t.Parallel()

	tr, _ := newScripted(time.Minute, "x")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Feed(oneSecFrame(0)); !errors.Is(err, transcribe.ErrClosed) {
		t.Errorf("Feed after Close = %v, want ErrClosed", err)
	}
	if _, err := tr.Finish(); !errors.Is(err, transcribe.ErrClosed) {
		t.Errorf("Finish after Close = %v, want ErrClosed", err)
	}
}

func TestNew_EmptyModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") succeeded, want error")
	}
}
