package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/endpoint"
)

const (
	defaultQueueSize    = 8
	defaultSendTimeout  = 120 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond
)

// Reply is the agent's answer to one dispatched utterance. Exactly one Reply
// is emitted per accepted Dispatch, in finalization order.
type Reply struct {
	// Utterance is the utterance the turn was built from.
	Utterance endpoint.Utterance

	// Message is the turn as sent to the agent.
	Message TurnMessage

	// Text is the agent's spoken-text reply. Empty when Err is set.
	Text string

	// Err is non-nil when delivery failed after the retry; it wraps
	// [ErrDispatchFailed].
	Err error

	// Elapsed is the wall-clock time spent delivering the turn, retry
	// included.
	Elapsed time.Duration
}

// DispatcherConfig holds the TurnDispatcher's tuning knobs.
type DispatcherConfig struct {
	// UserID identifies the speaker on every turn message.
	UserID string

	// Metadata is attached to every turn message unchanged.
	Metadata map[string]string

	// QueueSize bounds the number of turns waiting for the worker.
	// Defaults to 8.
	QueueSize int

	// SendTimeout is the hard per-attempt deadline. Defaults to 120s.
	SendTimeout time.Duration

	// RetryBackoff is the pause before the single retry. Defaults to 500ms.
	RetryBackoff time.Duration

	// BaseContext is the parent context of every delivery attempt. Cancel it
	// to abandon in-flight and drained turns on shutdown instead of letting
	// each run out its SendTimeout. Defaults to context.Background().
	BaseContext context.Context
}

func (c *DispatcherConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
}

// TurnDispatcher owns the bounded turn queue and the single worker that
// drains it. One turn is in flight at a time; a second utterance finalized
// while the agent is still answering waits its turn in FIFO order.
type TurnDispatcher struct {
	client Client
	cfg    DispatcherConfig

	queue   chan Reply
	replies chan Reply

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewTurnDispatcher creates a dispatcher and starts its worker. The caller
// must call Close to stop the worker and close the Replies channel.
func NewTurnDispatcher(client Client, cfg DispatcherConfig) *TurnDispatcher {
	cfg.applyDefaults()
	d := &TurnDispatcher{
		client:  client,
		cfg:     cfg,
		queue:   make(chan Reply, cfg.QueueSize),
		// One extra slot so draining on Close can never block on a departed
		// consumer.
		replies: make(chan Reply, cfg.QueueSize+1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// Dispatch builds the turn message for a finalized utterance and enqueues it.
// It never blocks: when the queue is full the turn is rejected with
// [ErrQueueFull] and the caller decides what to drop.
func (d *TurnDispatcher) Dispatch(utt endpoint.Utterance) (TurnMessage, error) {
	msg := TurnMessage{
		UserID:     d.cfg.UserID,
		ClientType: ClientTypeVoice,
		Message:    utt.Text,
		Metadata:   d.cfg.Metadata,
	}

	select {
	case <-d.done:
		return msg, ErrDispatcherClosed
	default:
	}

	select {
	case d.queue <- Reply{Utterance: utt, Message: msg}:
		return msg, nil
	default:
		return msg, ErrQueueFull
	}
}

// Replies returns the channel carrying one Reply per accepted Dispatch, in
// order. The channel is closed by Close after the in-flight turn completes.
func (d *TurnDispatcher) Replies() <-chan Reply { return d.replies }

// Close stops accepting turns, lets the worker finish the turn in flight
// and any turns already queued, then closes the Replies channel. Safe to
// call more than once.
func (d *TurnDispatcher) Close() {
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *TurnDispatcher) worker() {
	defer d.wg.Done()
	defer close(d.replies)

	for {
		select {
		case <-d.done:
			// Drain turns accepted before Close.
			for {
				select {
				case turn := <-d.queue:
					d.replies <- d.deliver(turn)
				default:
					return
				}
			}
		case turn := <-d.queue:
			d.replies <- d.deliver(turn)
		}
	}
}

func (d *TurnDispatcher) deliver(turn Reply) Reply {
	started := time.Now()
	turn.Text, turn.Err = d.send(turn.Message)
	turn.Elapsed = time.Since(started)
	return turn
}

// send delivers one turn with a hard timeout per attempt, retrying exactly
// once after a short backoff.
func (d *TurnDispatcher) send(msg TurnMessage) (string, error) {
	text, err := d.attempt(msg)
	if err == nil {
		return text, nil
	}

	slog.Warn("agent turn failed, retrying once",
		"user_id", msg.UserID, "error", err)
	select {
	case <-time.After(d.cfg.RetryBackoff):
	case <-d.done:
		return "", fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	text, retryErr := d.attempt(msg)
	if retryErr == nil {
		return text, nil
	}
	return "", fmt.Errorf("%w: %w", ErrDispatchFailed, retryErr)
}

func (d *TurnDispatcher) attempt(msg TurnMessage) (string, error) {
	ctx, cancel := context.WithTimeout(d.cfg.BaseContext, d.cfg.SendTimeout)
	defer cancel()
	return d.client.Send(ctx, msg)
}
