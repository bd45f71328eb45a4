package connectors

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const handshakeTimeout = 10 * time.Second

// WS is a text-frame websocket connection safe for one reader and many
// writers.
type WS struct {
	conn *websocket.Conn

	wmux      sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (ws *WS) Connect(ctx context.Context, url string) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			body, errR := io.ReadAll(resp.Body)
			resp.Body.Close()
			if errR != nil {
				return errors.Wrap(err, "failed to read websocket connect response")
			}

			err = errors.Wrapf(err, "got message connecting to ws (status %d): %q", resp.StatusCode, string(body))
		}

		return err
	}

	ws.conn = conn
	return nil
}

// Read blocks until the next data frame arrives or the connection fails.
func (ws *WS) Read() ([]byte, error) {
	_, msg, err := ws.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "websocket read")
	}
	return msg, nil
}

// SetReadDeadline bounds the next Read. A zero time clears the deadline.
func (ws *WS) SetReadDeadline(t time.Time) error {
	return ws.conn.SetReadDeadline(t)
}

// Write sends one text frame. The context deadline, if any, bounds the write.
func (ws *WS) Write(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.wmux.Lock()
	defer ws.wmux.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := ws.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "websocket set write deadline")
	}

	if err := ws.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errors.Wrap(err, "websocket write")
	}
	return nil
}

// Close sends a normal-closure frame, waits up to grace for the peer to close
// its side (observed through peerGone, which may be nil), then releases the
// socket. Safe to call more than once.
func (ws *WS) Close(grace time.Duration, peerGone <-chan struct{}) error {
	ws.closeOnce.Do(func() {
		if ws.conn == nil {
			return
		}

		_ = ws.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(grace),
		)

		if peerGone != nil {
			select {
			case <-peerGone:
			case <-time.After(grace):
			}
		}

		ws.closeErr = ws.conn.Close()
	})
	return ws.closeErr
}

// IsClosedError reports whether err came from an orderly or local close rather
// than a broken transport.
func IsClosedError(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
