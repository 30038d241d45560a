// Package wsstream implements the speech synthesizer against a WebSocket
// TTS server. The wire format is JSON: the client sends one request
// {"text": ..., "description": ...}, the server answers with a sequence of
// {"sampling_rate": ..., "chunk_size": ..., "audio_data": <base64 float32
// little-endian PCM>} messages and terminates the stream with {"end": true}.
package wsstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/SulavKhadka/voiceloop/pkg/audio"
	"github.com/SulavKhadka/voiceloop/pkg/synth"
)

// defaultDescription is the voice prompt sent when none is configured.
const defaultDescription = "Jon is monotonically while speaking naturally."

// Compile-time assertion that Client satisfies synth.Synthesizer.
var _ synth.Synthesizer = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithDescription sets the voice description sent with every request.
func WithDescription(desc string) Option {
	return func(c *Client) { c.description = desc }
}

// Client opens one WebSocket connection per synthesis.
type Client struct {
	serverURL   string
	description string
}

// New creates a Client for the TTS server at serverURL (a ws:// or wss://
// URL).
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("wsstream: serverURL must not be empty")
	}
	c := &Client{serverURL: serverURL, description: defaultDescription}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// request is the single JSON message sent to the server.
type request struct {
	Text        string `json:"text"`
	Description string `json:"description"`
}

// response covers both chunk messages and the end marker.
type response struct {
	SamplingRate int    `json:"sampling_rate"`
	ChunkSize    int    `json:"chunk_size"`
	AudioData    string `json:"audio_data"`
	End          bool   `json:"end"`
}

// Synthesize dials the server, sends the request, and returns a stream fed
// by a reader goroutine. ctx governs the dial, the request write, and all
// subsequent reads; cancelling it tears the stream down.
func (c *Client) Synthesize(ctx context.Context, text string) (synth.Stream, error) {
	conn, _, err := websocket.Dial(ctx, c.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wsstream: dial %s: %w", c.serverURL, err)
	}

	req, err := json.Marshal(request{Text: text, Description: c.description})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode request")
		return nil, fmt.Errorf("wsstream: encode request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
		conn.Close(websocket.StatusInternalError, "send request")
		return nil, fmt.Errorf("wsstream: send request: %w", err)
	}

	s := &stream{
		conn:   conn,
		chunks: make(chan synth.Chunk, 32),
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx)
	return s, nil
}

// ─── stream ──────────────────────────────────────────────────────────────────

// stream is one live synthesis over a dedicated WebSocket connection.
type stream struct {
	conn   *websocket.Conn
	chunks chan synth.Chunk

	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// Chunks returns the ordered chunk channel.
func (s *stream) Chunks() <-chan synth.Chunk { return s.chunks }

// Err reports the terminal error. Valid once Chunks is closed.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream. The reader goroutine unblocks via the closed
// connection.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "done")
	})
	return nil
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// readLoop decodes chunk messages until the end marker, an error, or Close.
func (s *stream) readLoop(ctx context.Context) {
	defer close(s.chunks)
	defer s.Close()

	for index := 0; ; index++ {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Closed by the consumer; not an error.
			default:
				s.setErr(fmt.Errorf("wsstream: read chunk: %w", err))
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.setErr(fmt.Errorf("wsstream: decode chunk: %w", err))
			return
		}
		if resp.End {
			return
		}

		pcm, err := base64.StdEncoding.DecodeString(resp.AudioData)
		if err != nil {
			s.setErr(fmt.Errorf("wsstream: decode audio data: %w", err))
			return
		}
		samples := audio.BytesToFloat32(pcm)
		if resp.ChunkSize > 0 && len(samples) != resp.ChunkSize {
			slog.Warn("synthesis chunk size mismatch",
				"declared", resp.ChunkSize, "decoded", len(samples))
		}

		select {
		case s.chunks <- synth.Chunk{
			SampleRate: resp.SamplingRate,
			Samples:    samples,
			Index:      index,
		}:
		case <-s.done:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}
