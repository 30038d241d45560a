package scorer

import (
	"fmt"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
)

// Compile-time assertion that KeywordGated satisfies Scorer.
var _ Scorer = (*KeywordGated)(nil)

// KeywordGated wraps an inner scorer with a wake-phrase gate. While the gate
// is armed, every frame is scanned by the [Spotter]; no speech can begin
// until the wake phrase is heard. On detection the scorer reports a forced
// speech start and truncates the frame to the samples after the keyword so
// the wake phrase itself is never transcribed. Once the gate has fired the
// inner scorer takes over until [KeywordGated.Reset] re-arms it at the end
// of the utterance.
type KeywordGated struct {
	inner   Scorer
	spotter Spotter
	armed   bool
}

// NewKeywordGated creates a wake-phrase-gated scorer around inner.
func NewKeywordGated(inner Scorer, spotter Spotter) *KeywordGated {
	return &KeywordGated{inner: inner, spotter: spotter, armed: true}
}

// Score scans for the wake phrase while armed, delegating to the inner
// scorer once the gate has fired.
func (k *KeywordGated) Score(frame audio.Frame) (Activity, error) {
	if !k.armed {
		return k.inner.Score(frame)
	}

	size := k.spotter.FrameLength()
	if size <= 0 {
		return Activity{}, fmt.Errorf("scorer: spotter frame length %d is invalid", size)
	}

	pcm := audio.Float32ToInt16(frame.Samples)
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		window := pcm[off:end]
		if len(window) < size {
			padded := make([]int16, size)
			copy(padded, window)
			window = padded
		}

		hit, err := k.spotter.Detect(window)
		if err != nil {
			return Activity{}, fmt.Errorf("scorer: wake-phrase detect at %d: %w", off, err)
		}
		if !hit {
			continue
		}

		// Wake phrase completed inside this sub-window: disarm the gate and
		// hand downstream only the audio from the detection window onward.
		k.armed = false
		k.inner.Reset()
		offset := min(off, len(frame.Samples))
		trimmed := audio.Frame{
			Samples:    append([]float32(nil), frame.Samples[offset:]...),
			SampleRate: frame.SampleRate,
			Timestamp:  frame.Timestamp + sampleOffset(offset, frame.SampleRate),
		}
		return Activity{
			Score:     1.0,
			Timestamp: frame.Timestamp,
			WakeWord:  true,
			Frame:     trimmed,
		}, nil
	}

	// Gate closed: whatever the acoustics say, this is not the user
	// addressing us.
	return Activity{Timestamp: frame.Timestamp, Frame: frame}, nil
}

// Reset re-arms the wake-phrase gate and resets the inner scorer.
func (k *KeywordGated) Reset() {
	k.armed = true
	k.inner.Reset()
}

func sampleOffset(samples, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
