// Package whisper implements the incremental transcriber on the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// whisper.cpp is a batch engine, so incrementality is simulated: the
// utterance's audio accumulates in a live window that is re-inferred after
// each frame to refresh the rolling hypothesis. When the live window exceeds
// a maximum duration its text is committed and the audio dropped, bounding
// both memory and per-frame inference cost during long utterances.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/transcribe"
)

const (
	defaultLanguage  = "en"
	defaultMaxWindow = 10 * time.Second
)

// Compile-time assertion that Transcriber satisfies transcribe.Transcriber.
var _ transcribe.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithMaxWindow sets the maximum live-window duration before buffered audio
// is committed and dropped. Defaults to 10s.
func WithMaxWindow(d time.Duration) Option {
	return func(t *Transcriber) { t.maxWindow = d }
}

// Transcriber implements transcribe.Transcriber using whisper.cpp. The model
// is loaded once; each inference runs in a fresh whisper context (contexts
// are not thread-safe, the model is shareable).
//
// Feed and Finish follow the interface's single-caller contract. Partial is
// safe to call from any goroutine.
type Transcriber struct {
	model     whisperlib.Model
	language  string
	maxWindow time.Duration

	// infer runs one batch inference. Swapped out in tests.
	infer func(samples []float32) (string, error)

	// Live-window state, owned by the feeding goroutine.
	buf        []float32
	sampleRate int
	committed  []string
	closed     bool

	// partial is the cached rolling hypothesis.
	mu      sync.Mutex
	partial string
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:     model,
		language:  defaultLanguage,
		maxWindow: defaultMaxWindow,
	}
	t.infer = t.inferModel
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	t.closed = true
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Feed appends one frame to the live window and refreshes the rolling
// hypothesis. When the window exceeds the maximum duration its text is
// committed and the audio dropped.
func (t *Transcriber) Feed(frame audio.Frame) error {
	if t.closed {
		return transcribe.ErrClosed
	}
	if t.sampleRate == 0 {
		t.sampleRate = frame.SampleRate
	}
	t.buf = append(t.buf, frame.Samples...)

	if t.windowDuration() >= t.maxWindow {
		text, err := t.infer(t.buf)
		if err != nil {
			return fmt.Errorf("whisper: commit window: %w", err)
		}
		if text != "" {
			t.committed = append(t.committed, text)
		}
		t.buf = t.buf[:0]
		t.setPartial(strings.Join(t.committed, " "))
		return nil
	}

	text, err := t.infer(t.buf)
	if err != nil {
		return fmt.Errorf("whisper: refresh hypothesis: %w", err)
	}
	t.setPartial(joinParts(t.committed, text))
	return nil
}

// Partial returns the cached rolling hypothesis without blocking.
func (t *Transcriber) Partial() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}

// Finish flushes the live window, returns the complete transcript, and
// resets the transcriber for the next utterance.
func (t *Transcriber) Finish() (string, error) {
	if t.closed {
		return "", transcribe.ErrClosed
	}

	var tail string
	if len(t.buf) > 0 {
		text, err := t.infer(t.buf)
		if err != nil {
			t.reset()
			return "", fmt.Errorf("whisper: final inference: %w", err)
		}
		tail = text
	}

	full := joinParts(t.committed, tail)
	t.reset()
	return full, nil
}

func (t *Transcriber) reset() {
	t.buf = t.buf[:0]
	t.committed = t.committed[:0]
	t.sampleRate = 0
	t.setPartial("")
}

func (t *Transcriber) setPartial(text string) {
	t.mu.Lock()
	t.partial = text
	t.mu.Unlock()
}

func (t *Transcriber) windowDuration() time.Duration {
	if t.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(t.buf)) * time.Second / time.Duration(t.sampleRate)
}

// inferModel runs one batch inference over samples using a fresh whisper
// context and returns the concatenated segment text.
func (t *Transcriber) inferModel(samples []float32) (string, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", t.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func joinParts(committed []string, tail string) string {
	if tail == "" {
		return strings.Join(committed, " ")
	}
	if len(committed) == 0 {
		return tail
	}
	return strings.Join(committed, " ") + " " + tail
}
