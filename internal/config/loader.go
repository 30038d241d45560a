package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults documented on the schema fields.
const (
	defaultSampleRate      = 16000
	defaultFrameDuration   = time.Second
	defaultBufferFrames    = 16
	defaultThreshold       = 0.01
	defaultSilenceDuration = 2 * time.Second
	defaultLanguage        = "en"
	defaultMaxWindow       = 10 * time.Second
	defaultUserID          = "voiceloop"
	defaultAgentTimeout    = 120 * time.Second
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultQueueSize       = 8
	defaultBreakerTrip     = 3
	defaultBreakerCooldown = 30 * time.Second
	defaultPlaybackQueue   = 32
	defaultPollInterval    = 100 * time.Millisecond
)

// defaultDescription matches the voice prompt the TTS server was tuned with.
const defaultDescription = "Jon is monotonically while speaking naturally."

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with the documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	if cfg.Audio.FrameDuration == 0 {
		cfg.Audio.FrameDuration = Duration(defaultFrameDuration)
	}
	if cfg.Audio.BufferFrames == 0 {
		cfg.Audio.BufferFrames = defaultBufferFrames
	}
	if cfg.Scoring.Scorer == "" {
		cfg.Scoring.Scorer = ScorerEnergy
	}
	if cfg.Scoring.Threshold == 0 {
		cfg.Scoring.Threshold = defaultThreshold
	}
	if len(cfg.WakeWord.Keywords) == 0 {
		cfg.WakeWord.Keywords = []string{"porcupine"}
	}
	if cfg.Endpoint.SilenceDuration == 0 {
		cfg.Endpoint.SilenceDuration = Duration(defaultSilenceDuration)
	}
	if cfg.Transcribe.Language == "" {
		cfg.Transcribe.Language = defaultLanguage
	}
	if cfg.Transcribe.MaxWindow == 0 {
		cfg.Transcribe.MaxWindow = Duration(defaultMaxWindow)
	}
	if cfg.Agent.Kind == "" {
		cfg.Agent.Kind = AgentHTTP
	}
	if cfg.Agent.UserID == "" {
		cfg.Agent.UserID = defaultUserID
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = Duration(defaultAgentTimeout)
	}
	if cfg.Agent.RetryBackoff == 0 {
		cfg.Agent.RetryBackoff = Duration(defaultRetryBackoff)
	}
	if cfg.Agent.QueueSize == 0 {
		cfg.Agent.QueueSize = defaultQueueSize
	}
	if cfg.Agent.BreakerTrip == 0 {
		cfg.Agent.BreakerTrip = defaultBreakerTrip
	}
	if cfg.Agent.BreakerCooldown == 0 {
		cfg.Agent.BreakerCooldown = Duration(defaultBreakerCooldown)
	}
	if cfg.Synthesis.Description == "" {
		cfg.Synthesis.Description = defaultDescription
	}
	if cfg.Playback.QueueSize == 0 {
		cfg.Playback.QueueSize = defaultPlaybackQueue
	}
	if cfg.Playback.PollInterval == 0 {
		cfg.Playback.PollInterval = Duration(defaultPollInterval)
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameDuration <= 0 {
		errs = append(errs, errors.New("audio.frame_duration must be positive"))
	}
	if cfg.Audio.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_frames %d must be positive", cfg.Audio.BufferFrames))
	}
	if !cfg.Scoring.Scorer.IsValid() {
		errs = append(errs, fmt.Errorf("scoring.scorer %q is invalid; valid values: energy, model", cfg.Scoring.Scorer))
	}
	if cfg.Scoring.Threshold < 0 {
		errs = append(errs, fmt.Errorf("scoring.threshold %g must not be negative", cfg.Scoring.Threshold))
	}
	if cfg.WakeWord.Enabled {
		if cfg.WakeWord.AccessKey == "" {
			errs = append(errs, errors.New("wake_word.access_key is required when wake_word.enabled is true"))
		}
		if len(cfg.WakeWord.Keywords) == 0 {
			errs = append(errs, errors.New("wake_word.keywords must not be empty when wake_word.enabled is true"))
		}
	}
	if cfg.Endpoint.SilenceDuration <= 0 {
		errs = append(errs, errors.New("endpoint.silence_duration must be positive"))
	}
	if cfg.Transcribe.ModelPath == "" {
		errs = append(errs, errors.New("transcribe.model_path is required"))
	}
	if !cfg.Agent.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("agent.kind %q is invalid; valid values: http, openai", cfg.Agent.Kind))
	}
	switch cfg.Agent.Kind {
	case AgentHTTP:
		if cfg.Agent.URL == "" {
			errs = append(errs, errors.New("agent.url is required when agent.kind is http"))
		}
	case AgentOpenAI:
		if cfg.Agent.APIKey == "" {
			errs = append(errs, errors.New("agent.api_key is required when agent.kind is openai"))
		}
		if cfg.Agent.Model == "" {
			errs = append(errs, errors.New("agent.model is required when agent.kind is openai"))
		}
	}
	if cfg.Synthesis.URL == "" {
		errs = append(errs, errors.New("synthesis.url is required"))
	}
	if cfg.Playback.PollInterval.Std() > defaultPollInterval {
		errs = append(errs, fmt.Errorf("playback.poll_interval %s exceeds the 100ms cap", cfg.Playback.PollInterval.Std()))
	}

	return errors.Join(errs...)
}
