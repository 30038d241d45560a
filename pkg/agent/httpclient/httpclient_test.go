package httpclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SulavKhadka/voiceloop/pkg/agent"
	"github.com/SulavKhadka/voiceloop/pkg/agent/httpclient"
)

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var got agent.TurnMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("Sure, I can help with that.\n"))
	}))
	t.Cleanup(srv.Close)

	c, err := httpclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reply, err := c.Send(context.Background(), agent.TurnMessage{
		UserID:     "u-1",
		ClientType: agent.ClientTypeVoice,
		Message:    "hello world",
		Metadata:   map[string]string{"locale": "en-US"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if reply != "Sure, I can help with that." {
		t.Errorf("reply = %q", reply)
	}
	if got.UserID != "u-1" || got.ClientType != "voice" || got.Message != "hello world" {
		t.Errorf("server saw %+v", got)
	}
	if got.Metadata["locale"] != "en-US" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestClient_SendServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, err := httpclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Send(context.Background(), agent.TurnMessage{Message: "x"}); err == nil {
		t.Fatal("Send succeeded against a 500 response")
	}
}

func TestClient_SendHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c, err := httpclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Send(ctx, agent.TurnMessage{Message: "x"}); err == nil {
		t.Fatal("Send succeeded with a cancelled context")
	}
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := httpclient.New(""); err == nil {
		t.Fatal("New(\"\") succeeded, want error")
	}
}
