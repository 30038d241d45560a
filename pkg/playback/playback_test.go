package playback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	audiomock "github.com/SulavKhadka/voiceloop/pkg/audio/mock"
	"github.com/SulavKhadka/voiceloop/pkg/playback"
	"github.com/SulavKhadka/voiceloop/pkg/synth"
	synthmock "github.com/SulavKhadka/voiceloop/pkg/synth/mock"
)

func waitDone(t *testing.T, sess *playback.Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback to finish")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_NaturalCompletion(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{Script: []synth.Chunk{
		{SampleRate: 22050, Samples: make([]float32, 3), Index: 0},
		{SampleRate: 22050, Samples: make([]float32, 2), Index: 1},
	}}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "hello from the agent")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !sess.Active() {
		t.Error("Active = false right after Begin")
	}

	waitDone(t, sess)
	if sess.Active() {
		t.Error("Active = true after completion")
	}
	if err := sess.Err(); err != nil {
		t.Fatalf("session error: %v", err)
	}

	if got := synthesizer.Texts(); len(got) != 1 || got[0] != "hello from the agent" {
		t.Errorf("synthesized texts = %v", got)
	}
	if len(device.OpenCalls) != 1 || device.OpenCalls[0] != 22050 {
		t.Errorf("OpenCalls = %v, want [22050]", device.OpenCalls)
	}
	if got := device.Written(); got != 5 {
		t.Errorf("Written = %d samples, want 5", got)
	}
}

func TestSession_ActiveUntilDeviceDrains(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{Script: []synth.Chunk{
		{SampleRate: 22050, Samples: make([]float32, 4), Index: 0},
	}}
	release := make(chan struct{})
	device := &audiomock.Device{DrainRelease: release}
	s := playback.New(synthesizer, device, playback.Config{PollInterval: time.Millisecond})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "slow speaker")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	// All chunks are written and the stream has ended, but the speaker is
	// still sounding out the queued audio.
	waitFor(t, "device drain to start", func() bool {
		return device.Drains() == 1
	})
	if !sess.Active() {
		t.Fatal("Active = false while written audio is still draining")
	}
	select {
	case <-sess.Done():
		t.Fatal("Done closed while written audio is still draining")
	default:
	}

	close(release)
	waitDone(t, sess)
	if sess.Active() {
		t.Error("Active = true after playout drained")
	}
	if err := sess.Err(); err != nil {
		t.Fatalf("session error: %v", err)
	}
}

func TestSession_StopDuringDrainHalts(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{Script: []synth.Chunk{
		{SampleRate: 22050, Samples: make([]float32, 4), Index: 0},
	}}
	device := &audiomock.Device{DrainRelease: make(chan struct{})}
	s := playback.New(synthesizer, device, playback.Config{PollInterval: time.Millisecond})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "interrupted tail")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	waitFor(t, "device drain to start", func() bool {
		return device.Drains() == 1
	})

	// Barge-in on the tail of the reply: Stop must not wait out the drain.
	sess.Stop()
	if sess.Active() {
		t.Error("Active = true after Stop returned")
	}
	if device.HaltCalls != 1 {
		t.Errorf("HaltCalls = %d, want 1", device.HaltCalls)
	}
}

func TestSession_StopBeforeChunks(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{HoldOpen: true}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{PollInterval: 5 * time.Millisecond})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "cut off")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sess.Stop()

	if sess.Active() {
		t.Error("Active = true after Stop returned")
	}
	if got := device.Written(); got != 0 {
		t.Errorf("Written = %d samples after immediate stop, want 0", got)
	}
	if device.HaltCalls != 1 {
		t.Errorf("HaltCalls = %d, want 1", device.HaltCalls)
	}
	if streams := synthesizer.Streams(); len(streams) != 1 || streams[0].CloseCalls() == 0 {
		t.Error("synthesis stream was not closed on Stop")
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{HoldOpen: true}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{PollInterval: 5 * time.Millisecond})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "stop twice")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sess.Stop()
	sess.Stop()

	if device.HaltCalls != 1 {
		t.Errorf("HaltCalls = %d, want 1", device.HaltCalls)
	}
}

func TestSession_SampleRateChangeReopensDevice(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{Script: []synth.Chunk{
		{SampleRate: 22050, Samples: make([]float32, 2), Index: 0},
		{SampleRate: 44100, Samples: make([]float32, 2), Index: 1},
	}}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "rate change")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	waitDone(t, sess)

	if len(device.OpenCalls) != 2 || device.OpenCalls[0] != 22050 || device.OpenCalls[1] != 44100 {
		t.Errorf("OpenCalls = %v, want [22050 44100]", device.OpenCalls)
	}
}

func TestSession_SynthesisErrorSurfaces(t *testing.T) {
	t.Parallel()

	streamErr := errors.New("tts server went away")
	synthesizer := &synthmock.Synthesizer{
		Script:    []synth.Chunk{{SampleRate: 22050, Samples: make([]float32, 2)}},
		StreamErr: streamErr,
	}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{})
	t.Cleanup(func() { s.Close() })

	sess, err := s.Begin(context.Background(), "doomed reply")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	waitDone(t, sess)

	if got := sess.Err(); !errors.Is(got, streamErr) {
		t.Errorf("session error = %v, want wrapped %v", got, streamErr)
	}
	// The chunks before the failure still played.
	if got := device.Written(); got != 2 {
		t.Errorf("Written = %d, want 2", got)
	}
}

func TestStream_BeginStopsPreviousSession(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{HoldOpen: true}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{PollInterval: 5 * time.Millisecond})
	t.Cleanup(func() { s.Close() })

	first, err := s.Begin(context.Background(), "first reply")
	if err != nil {
		t.Fatalf("Begin first: %v", err)
	}
	second, err := s.Begin(context.Background(), "second reply")
	if err != nil {
		t.Fatalf("Begin second: %v", err)
	}

	if first.Active() {
		t.Error("first session still active after second Begin")
	}
	if !second.Active() {
		t.Error("second session not active")
	}
	if s.Session() != second {
		t.Error("Stream.Session is not the second session")
	}
}

func TestStream_BeginAfterClose(t *testing.T) {
	t.Parallel()

	synthesizer := &synthmock.Synthesizer{}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.Begin(context.Background(), "late"); !errors.Is(err, playback.ErrStreamClosed) {
		t.Fatalf("Begin after Close = %v, want ErrStreamClosed", err)
	}
}

func TestStream_SynthesizeFailureSurfaces(t *testing.T) {
	t.Parallel()

	startErr := errors.New("dial refused")
	synthesizer := &synthmock.Synthesizer{StartErr: startErr}
	device := &audiomock.Device{}
	s := playback.New(synthesizer, device, playback.Config{})
	t.Cleanup(func() { s.Close() })

	if _, err := s.Begin(context.Background(), "no stream"); !errors.Is(err, startErr) {
		t.Fatalf("Begin = %v, want wrapped %v", err, startErr)
	}
}
