package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradeprobe/pkg/exchangetest"
	"tradeprobe/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDumpWritesTickers(t *testing.T) {
	srv := exchangetest.NewServer(t, func(c *exchangetest.Conn, f exchangetest.Frame) {
		if f.Type != "LOGIN" {
			return
		}
		exchangetest.LoginOK(c, f)
		_ = c.Send(exchangetest.Msg{"type": "TICKER", "product": "FOSFO", "bestBid": 9.5, "bestAsk": 10.5, "mid": 10, "volume24h": 7, "serverTime": "2025-01-02T03:04:05Z"})
		_ = c.Send(exchangetest.Msg{"type": "BROADCAST_NOTIFICATION", "message": "hello"})
		_ = c.Send(exchangetest.Msg{"type": "TICKER", "product": "PITA", "bestAsk": 3, "volume24h": 1})
		_ = c.Send(exchangetest.Msg{"type": "TICKER", "product": "FOSFO", "bestBid": 9, "bestAsk": 11, "mid": 10, "volume24h": 8})
	})

	s, err := session.Open(context.Background(), srv.URL, "alpha", session.Options{CloseGrace: 100 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	dir := filepath.Join(t.TempDir(), "ticks")
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	require.NoError(t, dump(ctx, s, dir, zap.NewNop()))

	fosfo, err := os.ReadFile(filepath.Join(dir, "FOSFO-ticker.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(fosfo)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1735787045000,9.5,10.5,10,7", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",9,11,10,8"), lines[1])

	pita, err := os.ReadFile(filepath.Join(dir, "PITA-ticker.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(pita)), ",,3,,1"))
}

func TestDumpStopsWhenSessionIsLost(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	s, err := session.Open(context.Background(), srv.URL, "alpha", session.Options{CloseGrace: 100 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	srv.WaitConns(1, time.Second)[0].Drop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, dump(ctx, s, t.TempDir(), zap.NewNop()), session.ErrTransport)
}

func TestDumperRequiresToken(t *testing.T) {
	cmd := newDumperCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	assert.Error(t, cmd.Execute())
}
