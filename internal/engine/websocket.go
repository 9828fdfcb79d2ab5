package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeflow/panel/internal/logstream"
)

// Send timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 5 * time.Second
)

// WebsocketDialer opens log streams over gorilla/websocket.
type WebsocketDialer struct {
	Header http.Header

	// ReadLimit caps a single message in bytes. Zero means no limit; log
	// events can be arbitrarily long.
	ReadLimit int64

	userAgent string
	dialer    websocket.Dialer
}

var _ logstream.Dialer = (*WebsocketDialer)(nil)

// NewWebsocketDialer returns a dialer with the default handshake timeout.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		userAgent: defaultUserAgent,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial performs the websocket handshake against addr.
func (d *WebsocketDialer) Dial(ctx context.Context, addr string) (logstream.Conn, error) {
	header := http.Header{}
	for k, v := range d.Header {
		header[k] = append([]string(nil), v...)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", d.userAgent)
	}

	conn, resp, err := d.dialer.DialContext(ctx, addr, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: handshake status %d: %w", addr, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla connection to logstream.Conn. gorilla allows one
// concurrent writer, so writes are serialised.
type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadText() (string, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) WriteText(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
