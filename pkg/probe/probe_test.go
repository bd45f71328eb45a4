package probe

import (
	"bytes"
	"context"
	"testing"
	"time"

	"tradeprobe/pkg/exchangetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statuses(r Result) map[string]Status {
	out := make(map[string]Status, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Name] = c.Status
	}
	return out
}

func options() Options {
	return Options{Timeout: 500 * time.Millisecond, ProductionGrace: 200 * time.Millisecond}
}

func TestProbeCooperativeExchange(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{Ack: true}.Handler())

	r := Run(context.Background(), srv.URL, "alpha", options())
	assert.Equal(t, "team-alpha", r.Team)
	assert.Equal(t, map[string]Status{
		"login":      Pass,
		"ping":       Pass,
		"market-buy": Pass,
		"production": Pass,
	}, statuses(r))
	assert.False(t, r.Failed())

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "market-buy")
	assert.Contains(t, buf.String(), "FOSFO: ORDER_ACK")
}

func TestProbeRejectedOrder(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{RejectOrders: true, IgnoreProduction: true}.Handler())

	r := Run(context.Background(), srv.URL, "alpha", options())
	got := statuses(r)
	assert.Equal(t, Fail, got["market-buy"])
	assert.Equal(t, Inconclusive, got["production"], "silence is not failure")
	assert.True(t, r.Failed())
}

func TestProbeLoginFailure(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())

	r := Run(context.Background(), srv.URL, "bad-token", options())
	require.Len(t, r.Checks, 4)
	assert.Equal(t, Fail, r.Checks[0].Status)
	for _, c := range r.Checks[1:] {
		assert.Equal(t, Inconclusive, c.Status, c.Name)
	}
	assert.True(t, r.Failed())
}
