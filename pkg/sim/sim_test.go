package sim

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tradeprobe/pkg/exchangetest"
	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"
	"tradeprobe/pkg/strategies"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	phases, err := Plan(nil, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, phases, 3)
	assert.Equal(t, "burst-production", phases[0].Name)
	assert.Equal(t, 2*time.Minute, phases[0].Duration)
	assert.Equal(t, 10*time.Minute, phases[1].Duration)
	assert.Equal(t, 3*time.Minute, phases[2].Duration)
	assert.Same(t, strategies.CompetitiveTrading, phases[2].Generator)
	assert.Equal(t, 15*time.Minute, Total(phases))

	phases, err = Plan([]PhaseSpec{
		{Name: "warmup", Generator: "strategy", Duration: time.Minute},
		{Name: "mixed-trading", Weight: 1},
		{Name: "finale", Generator: "competitive-trading", Weight: 3},
	}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, phases[0].Duration)
	assert.Same(t, strategies.MixedTrading, phases[1].Generator, "the name doubles as generator")
	assert.Equal(t, time.Minute, phases[1].Duration)
	assert.Equal(t, 3*time.Minute, phases[2].Duration)

	for name, specs := range map[string][]PhaseSpec{
		"unknown generator": {{Name: "x", Generator: "nope", Weight: 1}},
		"no length":         {{Name: "strategy"}},
		"negative":          {{Name: "strategy", Duration: -time.Second}},
		"nothing left":      {{Name: "strategy", Duration: time.Hour}, {Name: "strategy", Weight: 1}},
	} {
		_, err := Plan(specs, time.Minute)
		assert.Error(t, err, name)
	}
}

func teams(tokens ...string) []models.StrategyProfile {
	profiles := make([]models.StrategyProfile, 0, len(tokens))
	for i, tok := range tokens {
		profiles = append(profiles, models.StrategyProfile{
			Token:              tok,
			Name:               tok,
			Kind:               models.StrategyKinds[i%len(models.StrategyKinds)],
			Risk:               models.RiskMedium,
			Products:           []string{models.ProductFosfo, models.ProductPita},
			ProductionInterval: 20 * time.Millisecond,
			TradingInterval:    15 * time.Millisecond,
		})
	}
	return profiles
}

func testConfig(url string, profiles []models.StrategyProfile, phases []Phase) Config {
	return Config{
		URL:     url,
		Teams:   profiles,
		Phases:  phases,
		Stagger: 2 * time.Millisecond,
		Seed:    42,
		Session: session.Options{
			LoginTimeout: time.Second,
			CloseGrace:   200 * time.Millisecond,
		},
		Engine: strategies.Config{
			OrderTimeout:    200 * time.Millisecond,
			ProductionGrace: 50 * time.Millisecond,
		},
	}
}

func TestRunTwelveSessionsThroughThreePhases(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{Ack: true, Ticker: models.ProductFosfo}.Handler())

	tokens := make([]string, 12)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%02d", i)
	}
	phases, err := Plan([]PhaseSpec{
		{Name: "burst-production", Duration: 150 * time.Millisecond},
		{Name: "mixed-trading", Duration: 150 * time.Millisecond},
		{Name: "competitive-trading", Duration: 150 * time.Millisecond},
	}, 0)
	require.NoError(t, err)

	o, err := New(testConfig(srv.URL, teams(tokens...), phases))
	require.NoError(t, err)

	start := time.Now()
	report, err := o.Run(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, Total(phases))
	assert.Less(t, elapsed, Total(phases)+2*time.Second, "phases run back to back")

	assert.Equal(t, 12, report.Attempted)
	assert.Equal(t, 12, report.Connected)
	assert.Empty(t, report.Failures)
	assert.Positive(t, report.Totals.OrdersSent)
	assert.Positive(t, report.Totals.ProductionsSent)

	for _, s := range report.Sessions {
		assert.Equal(t, s.OrdersSent, s.OrdersSucceeded+s.OrdersFailed+s.OrdersInconclusive, s.Team)
		assert.Equal(t, s.ProductionsSent, s.ProductionsSucceeded+s.ProductionsFailed+s.ProductionsInconclusive, s.Team)
		assert.True(t, s.BalanceChange.Valid, s.Team)
	}
	assert.Len(t, report.TopByFills, 3)
	assert.Len(t, srv.Conns(), 12)
}

func TestPhaseEndLetsInFlightRepliesSettle(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{Delay: 150 * time.Millisecond}.Handler())
	phases, err := Plan([]PhaseSpec{
		{Name: "mixed-trading", Duration: 60 * time.Millisecond},
		{Name: "competitive-trading", Duration: 60 * time.Millisecond},
	}, 0)
	require.NoError(t, err)

	cfg := testConfig(srv.URL, teams("alpha", "beta", "gamma", "delta"), phases)
	cfg.Engine = strategies.Config{OrderTimeout: 2 * time.Second, ProductionGrace: 2 * time.Second}
	o, err := New(cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	totals := report.Totals
	assert.Positive(t, totals.OrdersSent+totals.ProductionsSent)
	assert.Equal(t, totals.OrdersSent, totals.OrdersSucceeded, "replies slower than a phase still count")
	assert.Equal(t, totals.ProductionsSent, totals.ProductionsSucceeded)
	assert.Zero(t, totals.OrdersInconclusive)
	assert.Zero(t, totals.LateResponses)
}

func TestRunExcludesFailedLogins(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	phases, err := Plan([]PhaseSpec{{Name: "strategy", Duration: 100 * time.Millisecond}}, 0)
	require.NoError(t, err)

	o, err := New(testConfig(srv.URL, teams("alpha", "bad-beta", "gamma"), phases))
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Connected)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bad-beta", report.Failures[0].Team)

	o, err = New(testConfig(srv.URL, teams("bad-1", "bad-2"), phases))
	require.NoError(t, err)
	report, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Connected)
	assert.Len(t, report.Failures, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	phases, err := Plan([]PhaseSpec{
		{Name: "strategy", Duration: 10 * time.Second},
		{Name: "mixed-trading", Duration: 10 * time.Second},
	}, 0)
	require.NoError(t, err)

	o, err := New(testConfig(srv.URL, teams("alpha", "beta"), phases))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	report, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, 2, report.Connected)
}

func TestNewValidates(t *testing.T) {
	phases, err := Plan(nil, time.Minute)
	require.NoError(t, err)

	_, err = New(Config{Teams: teams("a"), Phases: phases})
	assert.Error(t, err)
	_, err = New(Config{URL: "ws://x", Phases: phases})
	assert.Error(t, err)
	_, err = New(Config{URL: "ws://x", Teams: teams("a")})
	assert.Error(t, err)
}
