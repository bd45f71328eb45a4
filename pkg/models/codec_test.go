package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		kind  Kind
		id    string
	}{
		{"login ok", `{"type":"LOGIN_OK","team":"Alquimistas","currentBalance":10000.5,"inventory":{"FOSFO":3}}`, KindLoginOK, ""},
		{"ack", `{"type":"ORDER_ACK","clOrdID":"A","status":"PENDING"}`, KindOrderAck, "A"},
		{"fill", `{"type":"FILL","clOrdID":"B","side":"BUY","fillPrice":10.0,"fillQty":1}`, KindFill, "B"},
		{"error with id", `{"type":"ERROR","code":"INVALID_ORDER","reason":"bad qty","clOrdID":"C"}`, KindError, "C"},
		{"error without id", `{"type":"ERROR","code":"RATE_LIMIT","reason":"slow down"}`, KindError, ""},
		{"ticker with nulls", `{"type":"TICKER","product":"PITA","bestBid":null,"bestAsk":14.5,"mid":null,"volume24h":7}`, KindTicker, ""},
		{"inventory", `{"type":"INVENTORY_UPDATE","inventory":{"PITA":9}}`, KindInventoryUpdate, ""},
		{"production ok", `{"type":"PRODUCTION_OK","product":"PITA","quantity":3}`, KindProductionOK, ""},
		{"pong", `{"type":"PONG"}`, KindPong, ""},
		{"offer", `{"type":"OFFER","offerId":"o1","product":"SEBO","quantityRequested":2,"maxPrice":"7.5"}`, KindOffer, ""},
		{"balance", `{"type":"BALANCE_UPDATE","balance":9000}`, KindBalanceUpdate, ""},
		{"broadcast", `{"type":"BROADCAST_NOTIFICATION","message":"market closes soon"}`, KindBroadcast, ""},
		{"event delta", `{"type":"EVENT_DELTA","events":[{"clOrdID":"X","fillQty":1}]}`, KindEventDelta, ""},
		{"unknown", `{"type":"GLOBAL_PERFORMANCE_REPORT","x":1}`, KindUnknown, ""},
		{"synthetic timeout on the wire", `{"type":"TIMEOUT"}`, KindUnknown, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Decode([]byte(c.frame))
			require.NoError(t, err)
			assert.Equal(t, c.kind, m.Kind())
			assert.Equal(t, c.id, m.CorrelationID())
		})
	}
}

func TestDecodeFillAmounts(t *testing.T) {
	m, err := Decode([]byte(`{"type":"FILL","clOrdID":"A","side":"SELL","fillPrice":12.25,"fillQty":4}`))
	require.NoError(t, err)

	fill, ok := m.(*Fill)
	require.True(t, ok)
	assert.Equal(t, OrderSideSell, fill.Side)
	assert.True(t, fill.Notional().Equal(decimal.NewFromInt(49)), "notional %v", fill.Notional())
}

func TestDecodeTickerNullFields(t *testing.T) {
	m, err := Decode([]byte(`{"type":"TICKER","product":"PITA","bestBid":null,"bestAsk":14.5}`))
	require.NoError(t, err)

	tick := m.(*Ticker)
	assert.False(t, tick.BestBid.Valid)
	assert.True(t, tick.BestAsk.Valid)
	assert.False(t, tick.Mid.Valid)
}

func TestDecodeUnknownKeepsRaw(t *testing.T) {
	frame := `{"type":"SOMETHING_NEW","payload":[1,2,3]}`
	m, err := Decode([]byte(frame))
	require.NoError(t, err)

	u := m.(*Unknown)
	assert.Equal(t, "SOMETHING_NEW", u.Type)
	assert.JSONEq(t, frame, string(u.Raw))
}

func TestDecodeFindsTypeAfterNestedValues(t *testing.T) {
	frame := `{"clOrdID":"B","meta":{"type":"TICKER","tags":[{"type":"X"}]},"status":"FILLED","type":"ORDER_ACK"}`
	m, err := Decode([]byte(frame))
	require.NoError(t, err)
	ack, ok := m.(*OrderAck)
	require.True(t, ok, "decoded %T", m)
	assert.Equal(t, "B", ack.ClOrdID)

	_, err = Decode([]byte(`{"type":"PONG"} trailing`))
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"FILL","fillQty":"many"}`))
	assert.Error(t, err)
}

func TestEncodeOrder(t *testing.T) {
	p, msg := NewPendingOrder("ORD-1", OrderIntent{
		Side:       OrderSideBuy,
		Mode:       OrderModeLimit,
		Product:    ProductFosfo,
		Qty:        2,
		LimitPrice: decimal.RequireFromString("10.456"),
	}, testNow)

	b, err := Encode(msg)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "ORDER", wire["type"])
	assert.Equal(t, "ORD-1", wire["clOrdID"])
	assert.Equal(t, "BUY", wire["side"])
	assert.Equal(t, "LIMIT", wire["mode"])
	assert.Equal(t, float64(2), wire["qty"])
	assert.Equal(t, 10.46, wire["limitPrice"])

	assert.Equal(t, OrderStatusSent, p.Status)
	assert.True(t, p.LimitPrice.Valid)
}

func TestEncodeMarketOrderOmitsPrice(t *testing.T) {
	_, msg := NewPendingOrder("ORD-2", OrderIntent{
		Side:    OrderSideSell,
		Mode:    OrderModeMarket,
		Product: ProductPita,
		Qty:     1,
	}, testNow)

	b, err := Encode(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "limitPrice")
}

func TestEncodeSimpleMessages(t *testing.T) {
	b, err := Encode(&Login{Token: "TK-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"LOGIN","token":"TK-1"}`, string(b))

	b, err = Encode(&ProductionUpdate{Product: ProductSebo, Quantity: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PRODUCTION_UPDATE","product":"SEBO","quantity":3}`, string(b))

	b, err = Encode(&Ping{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PING"}`, string(b))

	_, err = Encode(&Pong{})
	assert.Error(t, err)
}

func TestKindSet(t *testing.T) {
	s := Kinds(KindOrderAck, KindFill)
	assert.True(t, s.Has(KindFill))
	assert.False(t, s.Has(KindError))
	assert.Equal(t, "ORDER_ACK|FILL", s.String())
	assert.True(t, KindTicker.Background())
	assert.False(t, KindFill.Background())
}
