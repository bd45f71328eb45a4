package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestApplyFillAveragesPrice(t *testing.T) {
	p, _ := NewPendingOrder("A", OrderIntent{Side: OrderSideBuy, Mode: OrderModeMarket, Product: ProductFosfo, Qty: 3}, testNow)

	p.ApplyFill(&Fill{ClOrdID: "A", FillPrice: decimal.NewFromInt(10), FillQty: 1}, testNow.Add(time.Second))
	p.ApplyFill(&Fill{ClOrdID: "A", FillPrice: decimal.NewFromInt(13), FillQty: 2}, testNow.Add(2*time.Second))

	assert.Equal(t, OrderStatusFilled, p.Status)
	assert.Equal(t, 3, p.FilledQty)
	assert.True(t, p.AveragePrice.Equal(decimal.NewFromInt(12)), "avg %v", p.AveragePrice)
	assert.Equal(t, testNow.Add(2*time.Second), p.UpdatedAt)
}

func TestOrderAckRejected(t *testing.T) {
	assert.False(t, (&OrderAck{Status: "PENDING"}).Rejected())
	assert.True(t, (&OrderAck{Status: "REJECTED"}).Rejected())
}

func TestParseStrategyKind(t *testing.T) {
	cases := map[string]StrategyKind{
		"Producer":     StrategyProducer,
		"market_maker": StrategyMarketMaker,
		"Market-Maker": StrategyMarketMaker,
		"AGGRESSIVE":   StrategyAggressive,
	}
	for in, want := range cases {
		got, err := ParseStrategyKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategyKind("yolo")
	assert.Error(t, err)
}

func TestProfileAggressive(t *testing.T) {
	assert.True(t, StrategyProfile{Kind: StrategyAggressive, Risk: RiskLow}.Aggressive())
	assert.True(t, StrategyProfile{Kind: StrategyTrader, Risk: RiskHigh}.Aggressive())
	assert.False(t, StrategyProfile{Kind: StrategyConservative, Risk: RiskLow}.Aggressive())
}

func TestAccountSeedAndChange(t *testing.T) {
	a := NewAccount("TK-1")
	a.Seed(&LoginOK{
		Team:           "Monjes",
		CurrentBalance: decimal.NewFromInt(1000),
		Inventory:      map[string]int{ProductPita: 4},
	}, testNow)

	assert.Equal(t, "Monjes", a.Team())
	a.UpdateBalance(decimal.NewFromInt(1150), testNow.Add(time.Minute))
	assert.True(t, a.BalanceChange().Equal(decimal.NewFromInt(150)))

	inv := a.Inventory()
	inv[ProductPita] = 100
	assert.Equal(t, 4, a.Inventory()[ProductPita], "inventory must be copied out")
}
