package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
transcribe:
  model_path: /models/ggml-base.en.bin
agent:
  url: http://localhost:8000/chat
synthesis:
  url: ws://localhost:8765
`

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FrameDuration.Std() != time.Second {
		t.Errorf("FrameDuration = %v, want 1s", cfg.Audio.FrameDuration.Std())
	}
	if cfg.Scoring.Scorer != ScorerEnergy {
		t.Errorf("Scorer = %q, want energy", cfg.Scoring.Scorer)
	}
	if cfg.Scoring.Threshold != 0.01 {
		t.Errorf("Threshold = %g, want 0.01", cfg.Scoring.Threshold)
	}
	if cfg.WakeWord.Enabled {
		t.Error("WakeWord.Enabled = true, want false by default")
	}
	if len(cfg.WakeWord.Keywords) != 1 || cfg.WakeWord.Keywords[0] != "porcupine" {
		t.Errorf("Keywords = %v, want [porcupine]", cfg.WakeWord.Keywords)
	}
	if cfg.Endpoint.SilenceDuration.Std() != 2*time.Second {
		t.Errorf("SilenceDuration = %v, want 2s", cfg.Endpoint.SilenceDuration.Std())
	}
	if cfg.Agent.Kind != AgentHTTP {
		t.Errorf("Agent.Kind = %q, want http", cfg.Agent.Kind)
	}
	if cfg.Agent.Timeout.Std() != 120*time.Second {
		t.Errorf("Agent.Timeout = %v, want 120s", cfg.Agent.Timeout.Std())
	}
	if cfg.Synthesis.Description == "" {
		t.Error("Synthesis.Description default not applied")
	}
	if cfg.Playback.PollInterval.Std() != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", cfg.Playback.PollInterval.Std())
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: debug
audio:
  sample_rate: 8000
  frame_duration: 500ms
scoring:
  scorer: model
  threshold: 0.25
endpoint:
  silence_duration: 3s
transcribe:
  model_path: /models/ggml-small.bin
  language: de
agent:
  kind: openai
  api_key: sk-test
  model: gpt-4o-mini
  user_id: alice
synthesis:
  url: ws://tts:8765
  description: warm and slow
playback:
  poll_interval: 50ms
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 8000 || cfg.Audio.FrameDuration.Std() != 500*time.Millisecond {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Scoring.Scorer != ScorerModel || cfg.Scoring.Threshold != 0.25 {
		t.Errorf("scoring = %+v", cfg.Scoring)
	}
	if cfg.Endpoint.SilenceDuration.Std() != 3*time.Second {
		t.Errorf("SilenceDuration = %v", cfg.Endpoint.SilenceDuration.Std())
	}
	if cfg.Transcribe.Language != "de" {
		t.Errorf("Language = %q", cfg.Transcribe.Language)
	}
	if cfg.Agent.Kind != AgentOpenAI || cfg.Agent.UserID != "alice" {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Synthesis.Description != "warm and slow" {
		t.Errorf("Description = %q", cfg.Synthesis.Description)
	}
	if cfg.Playback.PollInterval.Std() != 50*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Playback.PollInterval.Std())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("bogus_field: 1\n" + minimalYAML)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: verbose
scoring:
  scorer: psychic
wake_word:
  enabled: true
agent:
  kind: http
playback:
  poll_interval: 1s
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	msg := err.Error()
	for _, want := range []string{
		"log_level",
		"scoring.scorer",
		"wake_word.access_key",
		"transcribe.model_path",
		"agent.url",
		"synthesis.url",
		"poll_interval",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidate_OpenAIRequiresCredentials(t *testing.T) {
	t.Parallel()

	yaml := `
transcribe:
  model_path: /m.bin
agent:
  kind: openai
synthesis:
  url: ws://tts:8765
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("openai agent without credentials accepted")
	}
	for _, want := range []string{"agent.api_key", "agent.model"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()

	yaml := `
audio:
  frame_duration: 250ms
` + minimalYAML
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Audio.FrameDuration.Std() != 250*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 250ms", cfg.Audio.FrameDuration.Std())
	}
}

func TestDuration_RejectsBareNumber(t *testing.T) {
	t.Parallel()

	yaml := `
audio:
  frame_duration: one second
` + minimalYAML
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("malformed duration accepted")
	}
}
