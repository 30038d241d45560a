// Command voiceloop is a push-free voice assistant loop: it listens on the
// default microphone, endpoints utterances, transcribes them, sends each turn
// to a remote agent, and speaks the reply until the user barges in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SulavKhadka/voiceloop/internal/config"
	"github.com/SulavKhadka/voiceloop/internal/observe"
	"github.com/SulavKhadka/voiceloop/internal/pipeline"
	"github.com/SulavKhadka/voiceloop/internal/resilience"
	"github.com/SulavKhadka/voiceloop/pkg/agent"
	"github.com/SulavKhadka/voiceloop/pkg/agent/httpclient"
	"github.com/SulavKhadka/voiceloop/pkg/agent/openai"
	audiomalgo "github.com/SulavKhadka/voiceloop/pkg/audio/malgo"
	"github.com/SulavKhadka/voiceloop/pkg/endpoint"
	"github.com/SulavKhadka/voiceloop/pkg/playback"
	"github.com/SulavKhadka/voiceloop/pkg/scorer"
	"github.com/SulavKhadka/voiceloop/pkg/scorer/porcupine"
	"github.com/SulavKhadka/voiceloop/pkg/synth/wsstream"
	"github.com/SulavKhadka/voiceloop/pkg/transcribe/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	metricsAddr := flag.String("metrics", "", "optional listen address for the Prometheus /metrics endpoint")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voiceloop: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voiceloop: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("voiceloop starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
		"scorer", cfg.Scoring.Scorer,
		"agent", cfg.Agent.Kind,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Capture + scoring ─────────────────────────────────────────────────────
	capture := audiomalgo.NewCapture(audiomalgo.CaptureConfig{
		SampleRate:    cfg.Audio.SampleRate,
		FrameDuration: cfg.Audio.FrameDuration.Std(),
		BufferFrames:  cfg.Audio.BufferFrames,
	})

	frameScorer, cleanupScorer, err := buildScorer(cfg)
	if err != nil {
		slog.Error("failed to build activity scorer", "err", err)
		return 1
	}
	defer cleanupScorer()

	// ── Transcription ─────────────────────────────────────────────────────────
	transcriber, err := whisper.New(cfg.Transcribe.ModelPath,
		whisper.WithLanguage(cfg.Transcribe.Language),
		whisper.WithMaxWindow(cfg.Transcribe.MaxWindow.Std()),
	)
	if err != nil {
		slog.Error("failed to load whisper model", "model", cfg.Transcribe.ModelPath, "err", err)
		return 1
	}
	defer transcriber.Close()

	// ── Agent ─────────────────────────────────────────────────────────────────
	client, err := buildAgentClient(cfg)
	if err != nil {
		slog.Error("failed to build agent client", "err", err)
		return 1
	}
	guarded := resilience.Guard(client, resilience.BreakerConfig{
		Trip:     cfg.Agent.BreakerTrip,
		Cooldown: cfg.Agent.BreakerCooldown.Std(),
	})
	dispatcher := agent.NewTurnDispatcher(guarded, agent.DispatcherConfig{
		UserID:       cfg.Agent.UserID,
		QueueSize:    cfg.Agent.QueueSize,
		SendTimeout:  cfg.Agent.Timeout.Std(),
		RetryBackoff: cfg.Agent.RetryBackoff.Std(),
		// Ctrl+C abandons the turn in flight instead of waiting out its
		// timeout.
		BaseContext: ctx,
	})

	// ── Synthesis + playback ──────────────────────────────────────────────────
	synthesizer, err := wsstream.New(cfg.Synthesis.URL, wsstream.WithDescription(cfg.Synthesis.Description))
	if err != nil {
		slog.Error("failed to build synthesis client", "err", err)
		return 1
	}
	speaker := playback.New(synthesizer, audiomalgo.NewPlayback(), playback.Config{
		QueueSize:    cfg.Playback.QueueSize,
		PollInterval: cfg.Playback.PollInterval.Std(),
	})
	defer func() {
		if err := speaker.Close(); err != nil {
			slog.Warn("closing playback failed", "err", err)
		}
	}()

	var scrubber *pipeline.WakeScrubber
	if cfg.WakeWord.Enabled {
		scrubber = pipeline.NewWakeScrubber(cfg.WakeWord.Keywords)
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	pipe := pipeline.New(pipeline.Deps{
		Source: capture,
		Scorer: frameScorer,
		Endpointer: endpoint.New(endpoint.Config{
			Threshold:       cfg.Scoring.Threshold,
			SilenceDuration: cfg.Endpoint.SilenceDuration.Std(),
		}),
		Transcriber: transcriber,
		Dispatcher:  dispatcher,
		Speaker:     speaker,
		Scrubber:    scrubber,
	})

	slog.Info("listening — press Ctrl+C to stop")
	if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("pipeline stopped", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildScorer assembles the activity scorer the config names, wrapping it in
// the wake-word gate when one is enabled. The returned cleanup releases the
// keyword engine, if any.
func buildScorer(cfg *config.Config) (scorer.Scorer, func(), error) {
	var base scorer.Scorer
	switch cfg.Scoring.Scorer {
	case config.ScorerEnergy:
		base = scorer.NewEnergy()
	case config.ScorerModel:
		// The windowed scorer needs an acoustic backend compiled in; none
		// ships with this binary. Embedders wire their own scorer.Model and
		// assemble the pipeline directly.
		return nil, nil, fmt.Errorf("scorer %q requires an embedded acoustic model; use %q", config.ScorerModel, config.ScorerEnergy)
	default:
		return nil, nil, fmt.Errorf("unknown scorer %q", cfg.Scoring.Scorer)
	}

	if !cfg.WakeWord.Enabled {
		return base, func() {}, nil
	}

	spotter, err := porcupine.New(cfg.WakeWord.AccessKey, cfg.WakeWord.Keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("init keyword spotter: %w", err)
	}
	if spotter.SampleRate() != cfg.Audio.SampleRate {
		slog.Warn("keyword spotter sample rate differs from capture",
			"spotter", spotter.SampleRate(), "capture", cfg.Audio.SampleRate)
	}
	cleanup := func() {
		if err := spotter.Close(); err != nil {
			slog.Warn("closing keyword spotter failed", "err", err)
		}
	}
	return scorer.NewKeywordGated(base, spotter), cleanup, nil
}

// buildAgentClient creates the remote agent client the config names.
func buildAgentClient(cfg *config.Config) (agent.Client, error) {
	switch cfg.Agent.Kind {
	case config.AgentHTTP:
		return httpclient.New(cfg.Agent.URL, httpclient.WithTimeout(cfg.Agent.Timeout.Std()))
	case config.AgentOpenAI:
		opts := []openai.Option{openai.WithTimeout(cfg.Agent.Timeout.Std())}
		if cfg.Agent.URL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Agent.URL))
		}
		return openai.New(cfg.Agent.APIKey, cfg.Agent.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown agent kind %q", cfg.Agent.Kind)
	}
}

// serveMetrics exposes the Prometheus bridge on addr.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "err", err)
	}
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
