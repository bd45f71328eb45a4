package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindLogin
	KindLoginOK
	KindOrder
	KindOrderAck
	KindFill
	KindError
	KindProductionUpdate
	KindProductionOK
	KindInventoryUpdate
	KindTicker
	KindPing
	KindPong
	KindOffer
	KindBalanceUpdate
	KindEventDelta
	KindBroadcast
	KindTimeout

	numKinds
)

// NumKinds is the number of distinct message kinds, usable as an array bound.
const NumKinds = int(numKinds)

var kindNames = [...]string{
	KindUnknown:          "UNKNOWN",
	KindLogin:            "LOGIN",
	KindLoginOK:          "LOGIN_OK",
	KindOrder:            "ORDER",
	KindOrderAck:         "ORDER_ACK",
	KindFill:             "FILL",
	KindError:            "ERROR",
	KindProductionUpdate: "PRODUCTION_UPDATE",
	KindProductionOK:     "PRODUCTION_OK",
	KindInventoryUpdate:  "INVENTORY_UPDATE",
	KindTicker:           "TICKER",
	KindPing:             "PING",
	KindPong:             "PONG",
	KindOffer:            "OFFER",
	KindBalanceUpdate:    "BALANCE_UPDATE",
	KindEventDelta:       "EVENT_DELTA",
	KindBroadcast:        "BROADCAST_NOTIFICATION",
	KindTimeout:          "TIMEOUT",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// KindFromWire maps a wire "type" value to a Kind. Unrecognized values map to
// KindUnknown. TIMEOUT is synthetic and never accepted from the wire.
func KindFromWire(s string) Kind {
	k, ok := kindsByName[s]
	if !ok || k == KindTimeout {
		return KindUnknown
	}
	return k
}

// Background reports whether messages of this kind are unsolicited traffic
// that no request waits on by default.
func (k Kind) Background() bool {
	switch k {
	case KindTicker, KindInventoryUpdate, KindBalanceUpdate, KindOffer, KindBroadcast:
		return true
	}
	return false
}

// KindSet is a small bitset of message kinds.
type KindSet uint32

func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

func (s KindSet) String() string {
	out := ""
	for k := Kind(0); k < numKinds; k++ {
		if s.Has(k) {
			if out != "" {
				out += "|"
			}
			out += k.String()
		}
	}
	return out
}

// Message is the closed set of protocol messages. Every concrete variant lives
// in this package.
type Message interface {
	Kind() Kind
	// CorrelationID returns the clOrdID carried by the message, or "".
	CorrelationID() string
	isMessage()
}

// Outbound messages.

type Login struct {
	Token string `json:"token"`
	TZ    string `json:"tz,omitempty"`
}

type Order struct {
	ClOrdID    string    `json:"clOrdID"`
	Side       OrderSide `json:"side"`
	Mode       OrderMode `json:"mode"`
	Product    string    `json:"product"`
	Qty        int       `json:"qty"`
	LimitPrice *float64  `json:"limitPrice,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type ProductionUpdate struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type Ping struct{}

// Inbound messages.

type LoginOK struct {
	Team               string          `json:"team"`
	Species            string          `json:"species"`
	InitialBalance     decimal.Decimal `json:"initialBalance"`
	CurrentBalance     decimal.Decimal `json:"currentBalance"`
	Inventory          map[string]int  `json:"inventory"`
	AuthorizedProducts []string        `json:"authorizedProducts"`
	ServerTime         string          `json:"serverTime"`
}

type OrderAck struct {
	ClOrdID    string `json:"clOrdID"`
	Status     string `json:"status"`
	ServerTime string `json:"serverTime"`
}

// Rejected reports whether the acknowledgement refuses the order.
func (m *OrderAck) Rejected() bool {
	switch m.Status {
	case "REJECTED", "CANCELLED", "CANCELED", "EXPIRED":
		return true
	}
	return false
}

type Fill struct {
	ClOrdID      string          `json:"clOrdID"`
	Side         OrderSide       `json:"side"`
	Product      string          `json:"product"`
	FillPrice    decimal.Decimal `json:"fillPrice"`
	FillQty      int             `json:"fillQty"`
	Counterparty string          `json:"counterparty"`
	RemainingQty int             `json:"remainingQty,omitempty"`
	ServerTime   string          `json:"serverTime"`
}

// Notional is price times quantity.
func (m *Fill) Notional() decimal.Decimal {
	return m.FillPrice.Mul(decimal.NewFromInt(int64(m.FillQty)))
}

type Error struct {
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	ClOrdID string `json:"clOrdID,omitempty"`
}

type ProductionOK struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type InventoryUpdate struct {
	Inventory  map[string]int `json:"inventory"`
	ServerTime string         `json:"serverTime"`
}

type Ticker struct {
	Product    string              `json:"product"`
	BestBid    decimal.NullDecimal `json:"bestBid"`
	BestAsk    decimal.NullDecimal `json:"bestAsk"`
	Mid        decimal.NullDecimal `json:"mid"`
	Volume24h  int                 `json:"volume24h"`
	ServerTime string              `json:"serverTime"`
}

type Pong struct{}

type Offer struct {
	OfferID           string          `json:"offerId"`
	Buyer             string          `json:"buyer"`
	Product           string          `json:"product"`
	QuantityRequested int             `json:"quantityRequested"`
	MaxPrice          decimal.Decimal `json:"maxPrice"`
}

type BalanceUpdate struct {
	Balance    decimal.Decimal `json:"balance"`
	ServerTime string          `json:"serverTime"`
}

// EventDelta batches fills the client missed; the dispatcher unpacks it.
type EventDelta struct {
	Events     []Fill `json:"events"`
	ServerTime string `json:"serverTime"`
}

type Broadcast struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// Unknown keeps frames whose type this client does not model.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

// Timeout is synthesized by the correlator when a wait expires. Observed holds
// every message the wait saw and set aside, in arrival order.
type Timeout struct {
	Observed []Message
}

func (*Login) Kind() Kind            { return KindLogin }
func (*LoginOK) Kind() Kind          { return KindLoginOK }
func (*Order) Kind() Kind            { return KindOrder }
func (*OrderAck) Kind() Kind         { return KindOrderAck }
func (*Fill) Kind() Kind             { return KindFill }
func (*Error) Kind() Kind            { return KindError }
func (*ProductionUpdate) Kind() Kind { return KindProductionUpdate }
func (*ProductionOK) Kind() Kind     { return KindProductionOK }
func (*InventoryUpdate) Kind() Kind  { return KindInventoryUpdate }
func (*Ticker) Kind() Kind           { return KindTicker }
func (*Ping) Kind() Kind             { return KindPing }
func (*Pong) Kind() Kind             { return KindPong }
func (*Offer) Kind() Kind            { return KindOffer }
func (*BalanceUpdate) Kind() Kind    { return KindBalanceUpdate }
func (*EventDelta) Kind() Kind       { return KindEventDelta }
func (*Broadcast) Kind() Kind        { return KindBroadcast }
func (*Unknown) Kind() Kind          { return KindUnknown }
func (*Timeout) Kind() Kind          { return KindTimeout }

func (*Login) CorrelationID() string            { return "" }
func (*LoginOK) CorrelationID() string          { return "" }
func (m *Order) CorrelationID() string          { return m.ClOrdID }
func (m *OrderAck) CorrelationID() string       { return m.ClOrdID }
func (m *Fill) CorrelationID() string           { return m.ClOrdID }
func (m *Error) CorrelationID() string          { return m.ClOrdID }
func (*ProductionUpdate) CorrelationID() string { return "" }
func (*ProductionOK) CorrelationID() string     { return "" }
func (*InventoryUpdate) CorrelationID() string  { return "" }
func (*Ticker) CorrelationID() string           { return "" }
func (*Ping) CorrelationID() string             { return "" }
func (*Pong) CorrelationID() string             { return "" }
func (*Offer) CorrelationID() string            { return "" }
func (*BalanceUpdate) CorrelationID() string    { return "" }
func (*EventDelta) CorrelationID() string       { return "" }
func (*Broadcast) CorrelationID() string        { return "" }
func (*Unknown) CorrelationID() string          { return "" }
func (*Timeout) CorrelationID() string          { return "" }

func (*Login) isMessage()            {}
func (*LoginOK) isMessage()          {}
func (*Order) isMessage()            {}
func (*OrderAck) isMessage()         {}
func (*Fill) isMessage()             {}
func (*Error) isMessage()            {}
func (*ProductionUpdate) isMessage() {}
func (*ProductionOK) isMessage()     {}
func (*InventoryUpdate) isMessage()  {}
func (*Ticker) isMessage()           {}
func (*Ping) isMessage()             {}
func (*Pong) isMessage()             {}
func (*Offer) isMessage()            {}
func (*BalanceUpdate) isMessage()    {}
func (*EventDelta) isMessage()       {}
func (*Broadcast) isMessage()        {}
func (*Unknown) isMessage()          {}
func (*Timeout) isMessage()          {}
