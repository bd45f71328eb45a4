package connectors

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

func serve(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				return
			}
			t.Logf("recv: %s", message)
			err = c.WriteMessage(mt, message)
			if err != nil {
				t.Errorf("write: %v", err)
				break
			}
		}
	}
}

func startServer(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		t.Fatal(err)
	}

	s := &http.Server{Handler: serve(t)}
	go func() {
		if err := s.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				t.Errorf("server returner error: %v", err)
				return
			}
		}
	}()
	t.Cleanup(func() { s.Close() })

	return "ws://" + l.Addr().String()
}

func TestWS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := &WS{}
	if err := ws.Connect(ctx, startServer(t)); err != nil {
		t.Fatalf("unexpected error in ws.Connect: %v", err)
	}
	defer ws.Close(time.Second, nil)

	ch := make(chan []byte)
	go func() {
		for {
			msg, err := ws.Read()
			if err != nil {
				return
			}
			ch <- msg
		}
	}()

	expected := []byte("test")
	if err := ws.Write(ctx, expected); err != nil {
		t.Fatalf("unexpected error in ws.Write: %v", err)
	}

	select {
	case msg := <-ch:
		if !bytes.Equal(expected, msg) {
			t.Errorf("expected to got %q, but got %q", string(expected), string(msg))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestWSCloseIsIdempotent(t *testing.T) {
	ws := &WS{}
	if err := ws.Connect(context.Background(), startServer(t)); err != nil {
		t.Fatalf("unexpected error in ws.Connect: %v", err)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, err := ws.Read(); err != nil {
				return
			}
		}
	}()

	first := ws.Close(time.Second, readerDone)
	second := ws.Close(time.Second, readerDone)
	if first != second {
		t.Errorf("expected repeated Close to return the same result, got %v and %v", first, second)
	}

	select {
	case <-readerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after close")
	}
}

func TestWSConnectFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ws := &WS{}
	if err := ws.Connect(ctx, "ws://127.0.0.1:1/nothing"); err == nil {
		t.Fatal("expected error dialing a closed port")
	}
}

func TestIsClosedError(t *testing.T) {
	cases := []struct {
		err    error
		closed bool
	}{
		{nil, false},
		{errors.Wrap(&websocket.CloseError{Code: websocket.CloseNormalClosure}, "websocket read"), true},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{errors.Wrap(websocket.ErrCloseSent, "write"), true},
		{&websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{errors.Wrap(net.ErrClosed, "websocket read"), false},
	}
	for _, c := range cases {
		if got := IsClosedError(c.err); got != c.closed {
			t.Errorf("IsClosedError(%v) = %v, want %v", c.err, got, c.closed)
		}
	}
}
