package resilience

import (
	"context"

	"github.com/SulavKhadka/voiceloop/pkg/agent"
)

// Compile-time assertion that GuardedClient satisfies agent.Client.
var _ agent.Client = (*GuardedClient)(nil)

// GuardedClient wraps an agent.Client with a [Breaker] so that turns fail
// fast while the agent is down instead of each burning the full send timeout.
type GuardedClient struct {
	inner   agent.Client
	breaker *Breaker
}

// Guard wraps client with a breaker built from cfg.
func Guard(client agent.Client, cfg BreakerConfig) *GuardedClient {
	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	return &GuardedClient{inner: client, breaker: NewBreaker(cfg)}
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedClient) Breaker() *Breaker { return g.breaker }

// Send forwards the turn through the breaker.
func (g *GuardedClient) Send(ctx context.Context, msg agent.TurnMessage) (string, error) {
	var text string
	err := g.breaker.Execute(func() error {
		var sendErr error
		text, sendErr = g.inner.Send(ctx, msg)
		return sendErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
