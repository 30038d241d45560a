// Package mock provides a scripted transcribe.Transcriber double for tests.
package mock

import (
	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/transcribe"
)

// Compile-time assertion.
var _ transcribe.Transcriber = (*Transcriber)(nil)

// Transcriber is a scripted transcriber double. It records every fed frame
// and returns scripted partials and finals.
type Transcriber struct {
	// PartialText is returned by every Partial call.
	PartialText string

	// FinishTexts is the script of transcripts returned by successive Finish
	// calls; when exhausted Finish returns the last entry, or "" if empty.
	FinishTexts []string

	// FeedErr, when set, is returned by every Feed call.
	FeedErr error

	// FinishErr, when set, is returned by every Finish call.
	FinishErr error

	// Fed records every frame passed to Feed.
	Fed []audio.Frame

	// FinishCalls counts Finish invocations.
	FinishCalls int
}

// Feed records the frame.
func (t *Transcriber) Feed(frame audio.Frame) error {
	t.Fed = append(t.Fed, frame)
	return t.FeedErr
}

// Partial returns the scripted hypothesis.
func (t *Transcriber) Partial() string { return t.PartialText }

// Finish returns the next scripted transcript.
func (t *Transcriber) Finish() (string, error) {
	i := t.FinishCalls
	t.FinishCalls++
	if t.FinishErr != nil {
		return "", t.FinishErr
	}
	if len(t.FinishTexts) == 0 {
		return "", nil
	}
	if i >= len(t.FinishTexts) {
		i = len(t.FinishTexts) - 1
	}
	return t.FinishTexts[i], nil
}
