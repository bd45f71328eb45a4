package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderMode string

const (
	OrderModeMarket OrderMode = "MARKET"
	OrderModeLimit  OrderMode = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusSent     OrderStatus = "SENT"
	OrderStatusAcked    OrderStatus = "ACKED"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusErrored  OrderStatus = "ERRORED"
	OrderStatusTimedOut OrderStatus = "TIMED_OUT"
)

// OrderIntent is what a strategy wants to trade, before it gets an id.
type OrderIntent struct {
	Side    OrderSide
	Mode    OrderMode
	Product string
	Qty     int
	// LimitPrice is ignored for market orders.
	LimitPrice decimal.Decimal
	Note       string
}

// PendingOrder tracks one order for the lifetime of its session. It is never
// removed once created.
type PendingOrder struct {
	ClOrdID     string
	Side        OrderSide
	Mode        OrderMode
	Product     string
	Qty         int
	LimitPrice  decimal.NullDecimal
	SubmittedAt time.Time
	UpdatedAt   time.Time
	Status      OrderStatus

	FilledQty    int
	AveragePrice decimal.Decimal
}

// NewPendingOrder builds the tracking record and the wire message for an
// intent.
func NewPendingOrder(clOrdID string, in OrderIntent, now time.Time) (*PendingOrder, *Order) {
	p := &PendingOrder{
		ClOrdID:     clOrdID,
		Side:        in.Side,
		Mode:        in.Mode,
		Product:     in.Product,
		Qty:         in.Qty,
		SubmittedAt: now,
		UpdatedAt:   now,
		Status:      OrderStatusSent,
	}

	msg := &Order{
		ClOrdID: clOrdID,
		Side:    in.Side,
		Mode:    in.Mode,
		Product: in.Product,
		Qty:     in.Qty,
		Message: in.Note,
	}

	if in.Mode == OrderModeLimit {
		price := in.LimitPrice.Round(2)
		p.LimitPrice = decimal.NewNullDecimal(price)
		f := price.InexactFloat64()
		msg.LimitPrice = &f
	}

	return p, msg
}

// ApplyFill folds a fill into the running average price.
func (p *PendingOrder) ApplyFill(f *Fill, now time.Time) {
	total := p.AveragePrice.Mul(decimal.NewFromInt(int64(p.FilledQty))).Add(f.Notional())
	p.FilledQty += f.FillQty
	if p.FilledQty > 0 {
		p.AveragePrice = total.Div(decimal.NewFromInt(int64(p.FilledQty)))
	}
	p.Status = OrderStatusFilled
	p.UpdatedAt = now
}

// Outcome is the three-way result of a request: neither a timeout nor an
// unexpected reply is counted as success or failure.
type Outcome uint8

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeInconclusive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "inconclusive"
	}
}
