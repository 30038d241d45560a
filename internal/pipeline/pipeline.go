// Package pipeline wires capture, scoring, endpointing, transcription, turn
// dispatch, and reply playback into the full turn-taking loop.
//
// Two goroutines do the work. The processing loop consumes capture frames,
// drives the scorer and the endpointer, feeds the transcriber, and hands
// finalized utterances to the dispatcher. The reply loop consumes agent
// replies and plays them, one session at a time. Barge-in crosses the two:
// when speech starts mid-reply the processing loop synchronously stops the
// session before going on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SulavKhadka/voiceloop/internal/observe"
	"github.com/SulavKhadka/voiceloop/pkg/agent"
	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/endpoint"
	"github.com/SulavKhadka/voiceloop/pkg/playback"
	"github.com/SulavKhadka/voiceloop/pkg/scorer"
	"github.com/SulavKhadka/voiceloop/pkg/transcribe"
)

// Deps bundles the components the pipeline runs.
type Deps struct {
	Source      audio.FrameSource
	Scorer      scorer.Scorer
	Endpointer  *endpoint.Endpointer
	Transcriber transcribe.Transcriber
	Dispatcher  *agent.TurnDispatcher
	Speaker     *playback.Stream

	// Scrubber removes leaked wake phrases from transcripts. Optional.
	Scrubber *WakeScrubber

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Pipeline is the assembled turn-taking loop.
type Pipeline struct {
	source      audio.FrameSource
	scorer      scorer.Scorer
	endpointer  *endpoint.Endpointer
	transcriber transcribe.Transcriber
	dispatcher  *agent.TurnDispatcher
	speaker     *playback.Stream
	bargeIn     *BargeInCoordinator
	scrubber    *WakeScrubber
	metrics     *observe.Metrics
}

// New assembles a pipeline from its components.
func New(deps Deps) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		source:      deps.Source,
		scorer:      deps.Scorer,
		endpointer:  deps.Endpointer,
		transcriber: deps.Transcriber,
		dispatcher:  deps.Dispatcher,
		speaker:     deps.Speaker,
		bargeIn:     NewBargeInCoordinator(deps.Speaker, deps.Metrics),
		scrubber:    deps.Scrubber,
		metrics:     deps.Metrics,
	}
}

// Run starts capture and blocks until the frame stream ends, a device error
// occurs, or ctx is cancelled. A device error is fatal; everything else is
// handled in-loop.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.source.Start(ctx); err != nil {
		return fmt.Errorf("pipeline: start capture: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	framesDone := make(chan struct{})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			p.source.Stop()
		case <-framesDone:
		}
		return nil
	})
	g.Go(func() error {
		defer close(framesDone)
		defer p.dispatcher.Close()
		return p.processFrames(ctx)
	})
	g.Go(func() error {
		return p.replyLoop(ctx)
	})
	return g.Wait()
}

// processFrames is the processing loop: score, endpoint, transcribe,
// finalize.
func (p *Pipeline) processFrames(ctx context.Context) error {
	var lastDropped uint64
	for frame := range p.source.Frames() {
		if dropped := p.source.Dropped(); dropped > lastDropped {
			p.metrics.DroppedFrames.Add(ctx, int64(dropped-lastDropped))
			slog.Warn("capture frames dropped", "total", dropped)
			lastDropped = dropped
		}

		started := time.Now()
		act, err := p.scorer.Score(frame)
		p.metrics.ScoreDuration.Record(ctx, time.Since(started).Seconds())
		if err != nil {
			slog.Error("scoring frame failed, treating as silence",
				"timestamp", frame.Timestamp, "error", err)
			act = scorer.Activity{Timestamp: frame.Timestamp, Frame: frame}
		}

		d := p.endpointer.Advance(act)
		if d.Started {
			// Stop any reply in progress before this utterance's first frame
			// reaches the transcriber.
			p.bargeIn.OnSpeechStart(ctx)
			slog.Debug("utterance started", "timestamp", act.Timestamp)
		}
		if d.Forward {
			started = time.Now()
			if err := p.transcriber.Feed(act.Frame); err != nil {
				slog.Error("transcriber feed failed", "error", err)
			}
			p.metrics.TranscribeDuration.Record(ctx, time.Since(started).Seconds())
		}
		if d.Finalize {
			p.finalize(ctx, d.Utterance, "silence")
		}
	}

	// Frame stream ended. Never drop an utterance in progress.
	if utt, ok := p.endpointer.Flush(); ok {
		p.finalize(ctx, utt, "flush")
	}

	if err := p.source.Err(); err != nil {
		return fmt.Errorf("pipeline: capture stream: %w", err)
	}
	return nil
}

// finalize closes out one utterance: finish transcription, scrub, reset,
// dispatch.
func (p *Pipeline) finalize(ctx context.Context, utt endpoint.Utterance, reason string) {
	text, err := p.transcriber.Finish()
	if err != nil {
		slog.Error("transcription failed, dropping utterance",
			"start", utt.Start, "end", utt.End, "error", err)
		text = ""
	}
	if utt.WakeWord && p.scrubber != nil {
		text = p.scrubber.Scrub(text)
	}
	p.scorer.Reset()
	p.metrics.RecordUtterance(ctx, reason)

	if text == "" {
		slog.Info("utterance produced no text, skipping dispatch",
			"start", utt.Start, "end", utt.End)
		return
	}
	utt.Text = text

	slog.Info("utterance finalized",
		"start", utt.Start, "end", utt.End, "frames", utt.Frames, "text", text)
	if _, err := p.dispatcher.Dispatch(utt); err != nil {
		slog.Error("dispatch rejected, dropping turn", "error", err)
		p.metrics.DispatchErrors.Add(ctx, 1)
	}
}

// replyLoop plays agent replies in order, one session at a time.
func (p *Pipeline) replyLoop(ctx context.Context) error {
	for reply := range p.dispatcher.Replies() {
		p.metrics.DispatchDuration.Record(ctx, reply.Elapsed.Seconds())
		if reply.Err != nil {
			slog.Error("agent turn failed", "error", reply.Err)
			p.metrics.DispatchErrors.Add(ctx, 1)
			continue
		}
		if reply.Text == "" {
			continue
		}

		started := time.Now()
		sess, err := p.speaker.Begin(ctx, reply.Text)
		if err != nil {
			slog.Error("reply playback failed to start", "error", err)
			continue
		}
		p.metrics.ActiveSessions.Add(ctx, 1)

		select {
		case <-sess.Done():
			p.metrics.ActiveSessions.Add(ctx, -1)
			p.metrics.SynthesisDuration.Record(ctx, time.Since(started).Seconds())
			if err := sess.Err(); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("reply playback failed", "error", err)
			}
		case <-ctx.Done():
			sess.Stop()
			p.metrics.ActiveSessions.Add(ctx, -1)
			// Keep the dispatcher's drain from blocking on a departed
			// consumer.
			go audio.Drain(p.dispatcher.Replies())
			return nil
		}
	}
	return nil
}
