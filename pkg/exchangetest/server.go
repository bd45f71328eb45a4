// Package exchangetest runs an in-process exchange speaking the trading
// protocol over websockets, for tests.
package exchangetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is a client message as the exchange sees it.
type Frame struct {
	Type       string   `json:"type"`
	Token      string   `json:"token"`
	ClOrdID    string   `json:"clOrdID"`
	Side       string   `json:"side"`
	Mode       string   `json:"mode"`
	Product    string   `json:"product"`
	Qty        int      `json:"qty"`
	LimitPrice *float64 `json:"limitPrice"`
	Quantity   int      `json:"quantity"`
}

// Msg is a server message; it is sent as a JSON object.
type Msg map[string]any

// Conn is the server side of one client connection.
type Conn struct {
	ws  *websocket.Conn
	wmu sync.Mutex

	mu     sync.Mutex
	token  string
	frames []Frame
}

// Send writes one message to the client.
func (c *Conn) Send(m Msg) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *Conn) SendRaw(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Token is the token the client logged in with.
func (c *Conn) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Frames returns every frame received so far.
func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func (c *Conn) record(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.Type == "LOGIN" {
		c.token = f.Token
	}
	c.frames = append(c.frames, f)
}

// Drop closes the connection without a close handshake.
func (c *Conn) Drop() {
	_ = c.ws.UnderlyingConn().Close()
}

// Hangup ends the connection with a normal close frame.
func (c *Conn) Hangup() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// HandlerFunc is called on the connection's read goroutine for each frame.
type HandlerFunc func(c *Conn, f Frame)

type Server struct {
	URL string

	srv     *httptest.Server
	handler HandlerFunc

	mu    sync.Mutex
	conns []*Conn
}

// NewServer starts an exchange that hands every inbound frame to h. It is
// shut down when the test ends.
func NewServer(t testing.TB, h HandlerFunc) *Server {
	s := &Server{handler: h}
	upgrader := websocket.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		c := &Conn{ws: ws}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Logf("bad frame %q: %v", data, err)
				continue
			}
			c.record(f)
			s.handler(c, f)
		}
	}))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")

	t.Cleanup(s.Close)
	return s
}

// Conns returns the connections accepted so far.
func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Conn(nil), s.conns...)
}

// WaitConns blocks until n connections have been accepted or d elapses.
func (s *Server) WaitConns(n int, d time.Duration) []*Conn {
	deadline := time.Now().Add(d)
	for {
		conns := s.Conns()
		if len(conns) >= n || time.Now().After(deadline) {
			return conns
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) Close() {
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.ws.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}
