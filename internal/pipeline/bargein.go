package pipeline

import (
	"context"
	"log/slog"

	"github.com/SulavKhadka/voiceloop/internal/observe"
	"github.com/SulavKhadka/voiceloop/pkg/playback"
)

// BargeInCoordinator cuts reply playback off when the user starts speaking.
//
// OnSpeechStart is called from the processing loop on every idle-to-speaking
// transition, before the frame that caused it reaches the transcriber. The
// stop is synchronous: when it returns the output device has halted, so the
// assistant's own voice cannot bleed into the new utterance's audio beyond
// the frame already captured.
type BargeInCoordinator struct {
	speaker *playback.Stream
	metrics *observe.Metrics
}

// NewBargeInCoordinator creates a coordinator watching speaker.
func NewBargeInCoordinator(speaker *playback.Stream, metrics *observe.Metrics) *BargeInCoordinator {
	return &BargeInCoordinator{speaker: speaker, metrics: metrics}
}

// OnSpeechStart stops the active playback session, if any.
func (b *BargeInCoordinator) OnSpeechStart(ctx context.Context) {
	sess := b.speaker.Session()
	if sess == nil || !sess.Active() {
		return
	}
	slog.Info("user started speaking, stopping playback")
	sess.Stop()
	b.metrics.BargeIns.Add(ctx, 1)
}
