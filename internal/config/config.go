// Package config provides the configuration schema and loader for the
// voiceloop pipeline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ScorerKind selects the activity-scoring strategy.
type ScorerKind string

const (
	// ScorerEnergy scores frames by RMS energy.
	ScorerEnergy ScorerKind = "energy"

	// ScorerModel scores frames with an acoustic model over sub-windows.
	ScorerModel ScorerKind = "model"
)

// IsValid reports whether s is a recognised scorer kind.
func (s ScorerKind) IsValid() bool {
	return s == ScorerEnergy || s == ScorerModel
}

// AgentKind selects the remote agent client implementation.
type AgentKind string

const (
	// AgentHTTP talks to a chatbot server over HTTP.
	AgentHTTP AgentKind = "http"

	// AgentOpenAI talks to the OpenAI chat API directly.
	AgentOpenAI AgentKind = "openai"
)

// IsValid reports whether a is a recognised agent kind.
func (a AgentKind) IsValid() bool {
	return a == AgentHTTP || a == AgentOpenAI
}

// Duration is a time.Duration that decodes from YAML strings like "2s" or
// "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	Audio      AudioConfig      `yaml:"audio"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	WakeWord   WakeWordConfig   `yaml:"wake_word"`
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Agent      AgentConfig      `yaml:"agent"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Playback   PlaybackConfig   `yaml:"playback"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	// SampleRate is the capture sample rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameDuration is the fixed frame cadence. Default: 1s.
	FrameDuration Duration `yaml:"frame_duration"`

	// BufferFrames bounds the capture buffer; when full the oldest frame is
	// dropped. Default: 16.
	BufferFrames int `yaml:"buffer_frames"`
}

// ScoringConfig selects and tunes the activity scorer.
type ScoringConfig struct {
	// Scorer selects the strategy. Default: energy.
	Scorer ScorerKind `yaml:"scorer"`

	// Threshold is the activity score at or above which a frame counts as
	// speech. Default: 0.01.
	Threshold float64 `yaml:"threshold"`
}

// WakeWordConfig gates utterances on a spoken keyword.
type WakeWordConfig struct {
	// Enabled turns the wake-word gate on. Default: false.
	Enabled bool `yaml:"enabled"`

	// AccessKey is the Picovoice console access key. Required when enabled.
	AccessKey string `yaml:"access_key"`

	// Keywords lists the built-in keyword names to listen for.
	// Default: ["porcupine"].
	Keywords []string `yaml:"keywords"`
}

// EndpointConfig tunes utterance finalization.
type EndpointConfig struct {
	// SilenceDuration is how long silence must be sustained before the
	// utterance finalizes. Default: 2s.
	SilenceDuration Duration `yaml:"silence_duration"`
}

// TranscribeConfig configures the whisper transcriber.
type TranscribeConfig struct {
	// ModelPath is the whisper.cpp model file. Required.
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 language code. Default: "en".
	Language string `yaml:"language"`

	// MaxWindow bounds the live re-inference window. Default: 10s.
	MaxWindow Duration `yaml:"max_window"`
}

// AgentConfig configures the remote agent and the turn dispatcher.
type AgentConfig struct {
	// Kind selects the client implementation. Default: http.
	Kind AgentKind `yaml:"kind"`

	// URL is the chatbot server endpoint. Required for kind http.
	URL string `yaml:"url"`

	// APIKey authenticates against the OpenAI API. Required for kind openai.
	APIKey string `yaml:"api_key"`

	// Model is the OpenAI model name. Required for kind openai.
	Model string `yaml:"model"`

	// UserID identifies the speaker on every turn. Default: "voiceloop".
	UserID string `yaml:"user_id"`

	// Timeout is the hard per-attempt deadline. Default: 120s.
	Timeout Duration `yaml:"timeout"`

	// RetryBackoff is the pause before the single retry. Default: 500ms.
	RetryBackoff Duration `yaml:"retry_backoff"`

	// QueueSize bounds the turns waiting for the dispatcher worker.
	// Default: 8.
	QueueSize int `yaml:"queue_size"`

	// BreakerTrip is the consecutive-failure count that opens the agent
	// circuit breaker. Default: 3.
	BreakerTrip int `yaml:"breaker_trip"`

	// BreakerCooldown is how long the breaker stays open. Default: 30s.
	BreakerCooldown Duration `yaml:"breaker_cooldown"`
}

// SynthesisConfig configures the TTS client.
type SynthesisConfig struct {
	// URL is the WebSocket TTS server endpoint. Required.
	URL string `yaml:"url"`

	// Description is the voice prompt sent with every request.
	Description string `yaml:"description"`
}

// PlaybackConfig tunes reply playback.
type PlaybackConfig struct {
	// QueueSize bounds chunks buffered ahead of the output device.
	// Default: 32.
	QueueSize int `yaml:"queue_size"`

	// PollInterval is the playback goroutine's idle wakeup interval, capped
	// at 100ms. Default: 100ms.
	PollInterval Duration `yaml:"poll_interval"`
}
