// Package endpoint segments the scored frame stream into utterances.
//
// The Endpointer is a three-state machine (idle, speaking, trailing silence)
// with hysteresis: a single quiet frame never ends an utterance, only silence
// sustained for the configured duration does. Frames are forwarded to the
// transcriber in both speaking and trailing-silence states; idle withholds
// them.
package endpoint

import (
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/scorer"
)

// State is the endpointer's position in the utterance lifecycle.
type State int

const (
	// StateIdle means no utterance is in progress.
	StateIdle State = iota

	// StateSpeaking means an utterance is accumulating and the most recent
	// frame was active.
	StateSpeaking

	// StateTrailingSilence means an utterance is accumulating but recent
	// frames were quiet; the silence countdown is running.
	StateTrailingSilence
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateTrailingSilence:
		return "trailing_silence"
	default:
		return "unknown"
	}
}

// Utterance describes one finalized stretch of user speech. Text is filled in
// by the pipeline once the transcriber has finished; the endpointer only
// knows timing.
type Utterance struct {
	// Text is the final transcript. Empty until transcription completes.
	Text string

	// Start is the timestamp of the first frame of the utterance.
	Start time.Duration

	// End is the end timestamp of the last frame of the utterance.
	End time.Duration

	// Frames is the number of frames the utterance spans, trailing silence
	// included.
	Frames int

	// WakeWord is true when the utterance was opened by a wake phrase.
	WakeWord bool
}

// Decision is the outcome of advancing the endpointer by one scored frame.
type Decision struct {
	// State is the state after the transition.
	State State

	// Started is true exactly when this frame moved the machine from idle to
	// speaking. The barge-in coordinator keys off this flag.
	Started bool

	// Forward is true when the frame belongs to the current utterance and
	// must be fed to the transcriber.
	Forward bool

	// Finalize is true when the utterance completed on this frame.
	Finalize bool

	// Utterance is the completed utterance. Valid only when Finalize is true.
	Utterance Utterance
}

// Config holds the endpointer's tuning knobs.
type Config struct {
	// Threshold is the activity score at or above which a frame counts as
	// speech. Defaults to 0.01.
	Threshold float64

	// SilenceDuration is how long silence must be sustained before the
	// utterance finalizes. Defaults to 2s.
	SilenceDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 0.01
	}
	if c.SilenceDuration == 0 {
		c.SilenceDuration = 2 * time.Second
	}
}

// Endpointer turns per-frame activity scores into utterance boundaries.
// Driven by a single goroutine; not safe for concurrent use.
type Endpointer struct {
	cfg   Config
	state State

	// current is the utterance under construction while not idle.
	current Utterance

	// lastActiveEnd is the end timestamp of the most recent active frame.
	// Silence is measured from here, so the silent frame's own duration
	// counts toward the countdown.
	lastActiveEnd time.Duration
}

// New creates an endpointer. Zero config fields take the documented defaults.
func New(cfg Config) *Endpointer {
	cfg.applyDefaults()
	return &Endpointer{cfg: cfg}
}

// State returns the current state.
func (e *Endpointer) State() State { return e.state }

// Advance consumes one scored frame and returns the resulting transition.
func (e *Endpointer) Advance(act scorer.Activity) Decision {
	active := act.WakeWord || act.Score >= e.cfg.Threshold
	frameEnd := act.Timestamp + act.Frame.Duration()

	switch e.state {
	case StateIdle:
		if !active {
			return Decision{State: StateIdle}
		}
		e.state = StateSpeaking
		e.current = Utterance{
			Start:    act.Timestamp,
			End:      frameEnd,
			Frames:   1,
			WakeWord: act.WakeWord,
		}
		e.lastActiveEnd = frameEnd
		return Decision{State: StateSpeaking, Started: true, Forward: true}

	case StateSpeaking:
		e.extend(act, frameEnd)
		if active {
			e.lastActiveEnd = frameEnd
			return Decision{State: StateSpeaking, Forward: true}
		}
		e.state = StateTrailingSilence
		return e.countdown(frameEnd)

	default: // StateTrailingSilence
		e.extend(act, frameEnd)
		if active {
			// Speech resumed before the countdown elapsed; same utterance.
			e.state = StateSpeaking
			e.lastActiveEnd = frameEnd
			return Decision{State: StateSpeaking, Forward: true}
		}
		return e.countdown(frameEnd)
	}
}

// Flush force-finalizes the utterance in progress, if any. Called when the
// frame stream ends while the machine is not idle.
func (e *Endpointer) Flush() (Utterance, bool) {
	if e.state == StateIdle {
		return Utterance{}, false
	}
	utt := e.current
	e.reset()
	return utt, true
}

// Reset returns the machine to idle, discarding any utterance in progress.
func (e *Endpointer) Reset() { e.reset() }

func (e *Endpointer) extend(act scorer.Activity, frameEnd time.Duration) {
	e.current.Frames++
	e.current.End = frameEnd
	if act.WakeWord {
		e.current.WakeWord = true
	}
}

func (e *Endpointer) countdown(frameEnd time.Duration) Decision {
	if frameEnd-e.lastActiveEnd >= e.cfg.SilenceDuration {
		utt := e.current
		e.reset()
		return Decision{State: StateIdle, Forward: true, Finalize: true, Utterance: utt}
	}
	return Decision{State: StateTrailingSilence, Forward: true}
}

func (e *Endpointer) reset() {
	e.state = StateIdle
	e.current = Utterance{}
	e.lastActiveEnd = 0
}
