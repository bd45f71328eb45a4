package exchangetest

import (
	"strings"
	"time"
)

// RejectedPrefix marks tokens the exchange refuses at login.
const RejectedPrefix = "bad"

// TeamName is the team reported for token at login.
func TeamName(token string) string {
	return "team-" + token
}

// LoginOK answers a LOGIN frame, rejecting tokens with RejectedPrefix.
func LoginOK(c *Conn, f Frame) {
	if strings.HasPrefix(f.Token, RejectedPrefix) {
		_ = c.Send(Msg{"type": "ERROR", "code": "INVALID_TOKEN", "reason": "unknown token"})
		return
	}
	_ = c.Send(Msg{
		"type":               "LOGIN_OK",
		"team":               TeamName(f.Token),
		"species":            "Avocultores",
		"initialBalance":     1000,
		"currentBalance":     1000,
		"inventory":          map[string]int{"FOSFO": 10, "PITA": 5},
		"authorizedProducts": []string{"FOSFO", "PITA", "GUACA"},
		"serverTime":         time.Now().UTC().Format(time.RFC3339),
	})
}

// Behavior is a configurable cooperative exchange.
type Behavior struct {
	// Delay is slept before answering each order or production.
	Delay time.Duration
	// FillPrice is the price of every fill; zero means 10.
	FillPrice float64
	// Ack sends ORDER_ACK before the FILL.
	Ack bool
	// RejectOrders answers orders with ERROR.
	RejectOrders bool
	// IgnoreOrders and IgnoreProduction leave requests unanswered.
	IgnoreOrders     bool
	IgnoreProduction bool
	// Ticker, when set, is pushed before every answer.
	Ticker string
}

// Handler serves LOGIN, ORDER, PRODUCTION_UPDATE and PING frames.
func (b Behavior) Handler() HandlerFunc {
	price := b.FillPrice
	if price == 0 {
		price = 10
	}

	return func(c *Conn, f Frame) {
		switch f.Type {
		case "LOGIN":
			LoginOK(c, f)
		case "PING":
			_ = c.Send(Msg{"type": "PONG"})
		case "ORDER":
			if b.IgnoreOrders {
				return
			}
			time.Sleep(b.Delay)
			b.sendTicker(c, price)
			if b.RejectOrders {
				_ = c.Send(Msg{"type": "ERROR", "code": "INVALID_ORDER", "reason": "rejected", "clOrdID": f.ClOrdID})
				return
			}
			if b.Ack {
				_ = c.Send(Msg{"type": "ORDER_ACK", "clOrdID": f.ClOrdID, "status": "ACCEPTED"})
			}
			_ = c.Send(Msg{
				"type":         "FILL",
				"clOrdID":      f.ClOrdID,
				"side":         f.Side,
				"product":      f.Product,
				"fillPrice":    price,
				"fillQty":      f.Qty,
				"counterparty": "market",
			})
		case "PRODUCTION_UPDATE":
			if b.IgnoreProduction {
				return
			}
			time.Sleep(b.Delay)
			b.sendTicker(c, price)
			_ = c.Send(Msg{"type": "PRODUCTION_OK", "product": f.Product, "quantity": f.Quantity})
		}
	}
}

func (b Behavior) sendTicker(c *Conn, mid float64) {
	if b.Ticker == "" {
		return
	}
	_ = c.Send(Msg{
		"type":      "TICKER",
		"product":   b.Ticker,
		"bestBid":   mid - 0.5,
		"bestAsk":   mid + 0.5,
		"mid":       mid,
		"volume24h": 100,
	})
}
