package sockjs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func dialWebsocket(ctx context.Context, dialer *websocket.Dialer, sessionURL string, header http.Header) (*wsTransport, error) {
	conn, resp, err := dialer.DialContext(ctx, websocketURL(sessionURL)+"/websocket", header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) name() string { return TransportWebsocket }

// each websocket message carries exactly one sockjs frame
func (t *wsTransport) receive(ctx context.Context, handle func(string) bool) error {
	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if !handle(string(message)) {
			return nil
		}
	}
}

func (t *wsTransport) send(_ context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) close() error {
	t.mu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.mu.Unlock()
	return t.conn.Close()
}
