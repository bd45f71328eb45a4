package models

import (
	"encoding/json"
	"fmt"

	"github.com/mailru/easyjson"
)

// Encode renders an outbound message as a single JSON frame with its "type"
// tag inlined next to the payload fields.
func Encode(m Message) ([]byte, error) {
	var v any
	switch msg := m.(type) {
	case *Login:
		v = struct {
			Type string `json:"type"`
			*Login
		}{"LOGIN", msg}
	case *Order:
		v = struct {
			Type string `json:"type"`
			*Order
		}{"ORDER", msg}
	case *ProductionUpdate:
		v = struct {
			Type string `json:"type"`
			*ProductionUpdate
		}{"PRODUCTION_UPDATE", msg}
	case *Ping:
		v = struct {
			Type string `json:"type"`
		}{"PING"}
	default:
		return nil, fmt.Errorf("models.Encode: %s is not an outbound message", m.Kind())
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("models.Encode failed to marshal %s: %w", m.Kind(), err)
	}
	return b, nil
}

// Decode parses one inbound frame. The type tag is read first with a cheap
// header scan, then the payload is decoded into the matching variant. Frames
// with an unrecognized type decode to *Unknown rather than failing.
func Decode(data []byte) (Message, error) {
	var head envelopeHead
	if err := easyjson.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("models.Decode failed to read envelope: %w", err)
	}

	var m Message
	switch KindFromWire(head.Type) {
	case KindLogin:
		m = &Login{}
	case KindLoginOK:
		m = &LoginOK{}
	case KindOrder:
		m = &Order{}
	case KindOrderAck:
		m = &OrderAck{}
	case KindFill:
		m = &Fill{}
	case KindError:
		m = &Error{}
	case KindProductionUpdate:
		m = &ProductionUpdate{}
	case KindProductionOK:
		m = &ProductionOK{}
	case KindInventoryUpdate:
		m = &InventoryUpdate{}
	case KindTicker:
		m = &Ticker{}
	case KindPing:
		return &Ping{}, nil
	case KindPong:
		return &Pong{}, nil
	case KindOffer:
		m = &Offer{}
	case KindBalanceUpdate:
		m = &BalanceUpdate{}
	case KindEventDelta:
		m = &EventDelta{}
	case KindBroadcast:
		m = &Broadcast{}
	case KindUnknown, KindTimeout:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return &Unknown{Type: head.Type, Raw: raw}, nil
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("models.Decode failed to unmarshal %s: %w", head.Type, err)
	}
	return m, nil
}
