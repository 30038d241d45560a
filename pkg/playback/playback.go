// Package playback speaks synthesized replies through an output device.
//
// A Stream owns the device and runs at most one Session at a time. Each
// Session pumps chunks from a synthesis stream through a bounded queue to a
// dedicated playback goroutine. Stop is synchronous: when it returns, the
// device has halted and Active reports false, which is what makes barge-in
// cut the assistant off before the user's next frame is processed. On
// natural completion the session stays active until the device has drained
// the written audio, so Active never reports false while sound is still
// coming out of the speaker.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/synth"
)

const (
	defaultQueueSize    = 32
	defaultPollInterval = 100 * time.Millisecond
)

// ErrStreamClosed is returned by Begin after Close.
var ErrStreamClosed = errors.New("playback: stream is closed")

// Config holds the Stream's tuning knobs.
type Config struct {
	// QueueSize bounds the chunks buffered between the synthesis pump and
	// the playback goroutine. Defaults to 32.
	QueueSize int

	// PollInterval is the playback goroutine's wakeup interval while the
	// queue is empty, capped at 100ms so a Stop never waits longer than that
	// on an idle queue. Defaults to 100ms.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.PollInterval <= 0 || c.PollInterval > defaultPollInterval {
		c.PollInterval = defaultPollInterval
	}
}

// Stream runs reply playback sessions against one output device.
// Begin/Close are driven by the pipeline's reply loop; Stop may additionally
// be called from the processing loop on barge-in.
type Stream struct {
	synth  synth.Synthesizer
	device audio.OutputDevice
	cfg    Config

	mu      sync.Mutex
	current *Session
	closed  bool
}

// New creates a Stream speaking through device.
func New(synthesizer synth.Synthesizer, device audio.OutputDevice, cfg Config) *Stream {
	cfg.applyDefaults()
	return &Stream{synth: synthesizer, device: device, cfg: cfg}
}

// Begin stops any session still running, opens a synthesis stream for text,
// and starts playing it. The returned Session is already active.
func (s *Stream) Begin(ctx context.Context, text string) (*Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	prev := s.current
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	st, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("playback: open synthesis: %w", err)
	}

	sess := &Session{
		stream: st,
		device: s.device,
		poll:   s.cfg.PollInterval,
		queue:  make(chan synth.Chunk, s.cfg.QueueSize),
		stop:   make(chan struct{}),
		played: make(chan struct{}),
	}
	sess.active.Store(true)

	go sess.pump()
	go sess.play()

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, nil
}

// Session returns the most recently begun session, or nil.
func (s *Stream) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close stops the running session, if any, and closes the output device.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cur := s.current
	s.mu.Unlock()

	if cur != nil {
		cur.Stop()
	}
	return s.device.Close()
}

// ─── Session ─────────────────────────────────────────────────────────────────

// Session is one reply being spoken.
type Session struct {
	stream synth.Stream
	device audio.OutputDevice
	poll   time.Duration

	queue chan synth.Chunk

	stop   chan struct{}
	once   sync.Once
	played chan struct{}
	active atomic.Bool

	errMu sync.Mutex
	err   error
}

// Active reports whether the session is still producing sound. It turns
// false only after the output device has actually stopped.
func (p *Session) Active() bool { return p.active.Load() }

// Done returns a channel closed when playback has finished, naturally or via
// Stop.
func (p *Session) Done() <-chan struct{} { return p.played }

// Err reports the terminal error, if any. Valid once Done is closed.
func (p *Session) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stop halts the session: the synthesis stream is abandoned, queued and
// in-flight chunks are discarded, and the output device is halted. Stop
// blocks until the device has stopped and is safe to call more than once.
func (p *Session) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.stream.Close()
	})
	<-p.played
}

func (p *Session) setErr(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

// pump moves chunks from the synthesis stream into the bounded queue.
func (p *Session) pump() {
	defer close(p.queue)
	for {
		select {
		case <-p.stop:
			return
		case c, ok := <-p.stream.Chunks():
			if !ok {
				return
			}
			select {
			case p.queue <- c:
			case <-p.stop:
				return
			}
		}
	}
}

// play is the dedicated playback goroutine. It polls the queue, writes
// chunks to the device, and reopens the device when the sample rate changes.
func (p *Session) play() {
	defer close(p.played)
	defer p.active.Store(false)

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	openRate := 0
	for {
		select {
		case <-p.stop:
			if err := p.device.Halt(); err != nil {
				slog.Error("halting output device failed", "error", err)
			}
			return

		case chunk, ok := <-p.queue:
			if !ok {
				// Natural end of the reply. Written audio may still be
				// draining through the device; Active must hold until it has.
				if err := p.stream.Err(); err != nil {
					p.setErr(fmt.Errorf("playback: synthesis stream: %w", err))
					slog.Error("synthesis stream failed mid-reply", "error", err)
				}
				p.drainDevice()
				return
			}
			if chunk.SampleRate != openRate {
				if err := p.device.Open(chunk.SampleRate); err != nil {
					p.setErr(fmt.Errorf("playback: open device at %d Hz: %w", chunk.SampleRate, err))
					return
				}
				openRate = chunk.SampleRate
			}
			if err := p.device.Write(chunk.Samples); err != nil {
				p.setErr(fmt.Errorf("playback: write chunk %d: %w", chunk.Index, err))
				return
			}

		case <-ticker.C:
			// Idle wakeup so a pending stop is noticed promptly.
		}
	}
}

// drainDevice waits for the device to finish playing the queued audio. A
// Stop arriving mid-drain (barge-in on the tail of a reply) halts instead of
// waiting it out.
func (p *Session) drainDevice() {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if err := p.device.Drain(); err != nil {
			slog.Error("draining output device failed", "error", err)
		}
	}()

	select {
	case <-drained:
	case <-p.stop:
		if err := p.device.Halt(); err != nil {
			slog.Error("halting output device failed", "error", err)
		}
		<-drained
	}
}
