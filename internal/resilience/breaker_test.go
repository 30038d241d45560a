package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SulavKhadka/voiceloop/internal/resilience"
	"github.com/SulavKhadka/voiceloop/pkg/agent"
	"github.com/SulavKhadka/voiceloop/pkg/agent/mock"
)

var errDown = errors.New("agent down")

func failing() error { return errDown }
func working() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Trip: 3, Cooldown: time.Hour})
	for i := range 3 {
		if err := b.Execute(failing); !errors.Is(err, errDown) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if err := b.Execute(working); !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("open breaker returned %v, want ErrOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Trip: 2, Cooldown: time.Hour})
	b.Execute(failing)
	b.Execute(working)
	b.Execute(failing)
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state = %v, want closed after interleaved success", got)
	}
}

func TestBreaker_ProbeClosesOnSuccess(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Trip: 1, Cooldown: 10 * time.Millisecond})
	b.Execute(failing)
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if err := b.Execute(working); err != nil {
		t.Fatalf("probe returned %v", err)
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after successful probe = %v, want closed", got)
	}
}

func TestBreaker_ProbeReopensOnFailure(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Trip: 1, Cooldown: 10 * time.Millisecond})
	b.Execute(failing)
	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(failing); !errors.Is(err, errDown) {
		t.Fatalf("probe returned %v", err)
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after failed probe = %v, want open", got)
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Trip: 1, Cooldown: time.Hour})
	b.Execute(failing)
	b.Reset()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after Reset = %v, want closed", got)
	}
	if err := b.Execute(working); err != nil {
		t.Fatalf("Execute after Reset: %v", err)
	}
}

func TestGuardedClient_FailsFastWhileOpen(t *testing.T) {
	t.Parallel()

	client := &mock.Client{Results: []mock.Result{
		{Err: errDown},
		{Err: errDown},
		{Text: "never reached"},
	}}
	g := resilience.Guard(client, resilience.BreakerConfig{Trip: 2, Cooldown: time.Hour})

	msg := agent.TurnMessage{Message: "hi"}
	g.Send(context.Background(), msg)
	g.Send(context.Background(), msg)

	if _, err := g.Send(context.Background(), msg); !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("Send with open breaker = %v, want ErrOpen", err)
	}
	if got := len(client.Calls()); got != 2 {
		t.Errorf("inner Send calls = %d, want 2", got)
	}
}

func TestGuardedClient_PassesThrough(t *testing.T) {
	t.Parallel()

	client := &mock.Client{Results: []mock.Result{{Text: "pong"}}}
	g := resilience.Guard(client, resilience.BreakerConfig{})

	text, err := g.Send(context.Background(), agent.TurnMessage{Message: "ping"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if text != "pong" {
		t.Errorf("reply = %q, want %q", text, "pong")
	}
}
