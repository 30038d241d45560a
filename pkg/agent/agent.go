// Package agent defines the remote conversational-agent client and the
// TurnDispatcher that bridges finalized utterances to it.
//
// The pipeline finalizes utterances faster than a remote agent can answer
// them, so the dispatcher decouples the two: Dispatch enqueues onto a bounded
// queue and returns immediately, a single worker drains the queue in FIFO
// order, and replies come back on the Replies channel in finalization order.
package agent

import (
	"context"
	"errors"
)

// ClientTypeVoice is the client_type value stamped on every turn message.
const ClientTypeVoice = "voice"

// ErrDispatchFailed is the sentinel wrapped into a Reply when a turn could
// not be delivered after the retry.
var ErrDispatchFailed = errors.New("agent: dispatch failed")

// ErrQueueFull is returned by Dispatch when the turn queue is at capacity.
var ErrQueueFull = errors.New("agent: turn queue is full")

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("agent: dispatcher is closed")

// TurnMessage is one user turn as sent to the remote agent.
type TurnMessage struct {
	UserID     string            `json:"user_id"`
	ClientType string            `json:"client_type"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"user_metadata"`
}

// Client delivers one turn to the conversational agent and returns its
// spoken-text reply. Implementations must honour ctx cancellation and
// deadlines.
type Client interface {
	Send(ctx context.Context, msg TurnMessage) (string, error)
}
