// Package mock provides a scripted agent.Client double for tests.
package mock

import (
	"context"
	"sync"

	"github.com/SulavKhadka/voiceloop/pkg/agent"
)

// Compile-time assertion.
var _ agent.Client = (*Client)(nil)

// Call records one Send invocation.
type Call struct {
	Message agent.TurnMessage
}

// Client is a scripted agent double. Each Send pops the next Result; when
// the script is exhausted the last Result repeats. Safe for concurrent use.
type Client struct {
	// Results is the script of replies returned in order.
	Results []Result

	// Delay, when set, makes each Send block until ctx is done or a value is
	// received on it. Used to hold a turn in flight.
	Delay chan struct{}

	mu    sync.Mutex
	calls []Call
	next  int
}

// Result is one scripted Send outcome.
type Result struct {
	Text string
	Err  error
}

// Send records the call and returns the next scripted result.
func (c *Client) Send(ctx context.Context, msg agent.TurnMessage) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Message: msg})
	var r Result
	if len(c.Results) > 0 {
		i := min(c.next, len(c.Results)-1)
		c.next++
		r = c.Results[i]
	}
	delay := c.Delay
	c.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.Text, r.Err
}

// Calls returns a copy of the recorded Send invocations.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}
