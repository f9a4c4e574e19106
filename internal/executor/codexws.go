package executor

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// CodexStream wraps the duplex websocket connection Codex's upstream uses
// for streaming completions (spec §4.7's "duplex: half" note — the gateway
// only ever reads from this connection after writing one request frame).
type CodexStream struct {
	conn *websocket.Conn
}

// DialCodexWebsocket opens a websocket connection to Codex's streaming
// endpoint, translating an https:// URL to wss:// as the upstream expects.
func DialCodexWebsocket(ctx context.Context, endpoint, accessToken string) (*CodexStream, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, apierror.Retryable(err, 0, "invalid codex websocket endpoint")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, apierror.Retryable(err, status, "failed to open codex websocket")
	}
	return &CodexStream{conn: conn}, nil
}

// WriteJSON sends one request frame.
func (c *CodexStream) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

// ReadMessage blocks for the next frame. It returns (nil, nil) once the
// upstream closes the connection with a normal or going-away close frame;
// any other read failure is returned as the error.
func (c *CodexStream) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Close terminates the connection, sending a normal-closure frame first.
func (c *CodexStream) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	return c.conn.Close()
}

func isWebsocketScheme(s string) bool {
	return strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://")
}
