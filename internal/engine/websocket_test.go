package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeflow/panel/internal/logstream"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketDialer_StreamsIntoClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []string
	}{
		{"short lines", []string{"action started", "llm call", "action finished"}},
		{"line over a mebibyte", []string{"short", strings.Repeat("x", 2<<20), "after"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, status := streamLines(t, tt.lines)
			if len(entries) != len(tt.lines) {
				t.Fatalf("entries = %d, want %d (status %+v)", len(entries), len(tt.lines), status)
			}
			for i, e := range entries {
				if e.Seq != uint64(i) || e.Text != tt.lines[i] {
					t.Fatalf("entry %d = seq %d len %d, want seq %d len %d", i, e.Seq, len(e.Text), i, len(tt.lines[i]))
				}
			}
			if status.Err != nil {
				t.Fatalf("normal close recorded error: %v", status.Err)
			}
		})
	}
}

// streamLines serves lines over a websocket, closes normally, and returns
// what the client buffered once it reached Closed.
func streamLines(t *testing.T, lines []string) ([]logstream.Entry, logstream.Status) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, line := range lines {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		// Wait for the client's close reply.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)

	client := logstream.New(logstream.Options{Addr: wsURL(server), Dialer: NewWebsocketDialer()})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		changed := client.Changed()
		st := client.ConnectionState()
		if st == logstream.Closed || st == logstream.Failed {
			break
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("stream not closed; status %+v", client.Status())
		}
	}
	return client.Entries(), client.Status()
}

func TestWebsocketDialer_SendAndUserAgent(t *testing.T) {
	t.Parallel()

	received := make(chan string, 1)
	agents := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)

	conn, err := NewWebsocketDialer().Dial(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	if err := conn.WriteText("ping"); err != nil {
		t.Fatalf("WriteText returned error: %v", err)
	}

	select {
	case got := <-received:
		if got != "ping" {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not receive message")
	}
	if ua := <-agents; ua != defaultUserAgent {
		t.Fatalf("User-Agent = %q", ua)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	_ = conn.Close()
}

func TestWebsocketDialer_HandshakeFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := NewWebsocketDialer().Dial(context.Background(), wsURL(server))
	if err == nil || !strings.Contains(err.Error(), "handshake status 403") {
		t.Fatalf("Dial error = %v, want handshake status 403", err)
	}
}
