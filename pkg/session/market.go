package session

import (
	"sync"
	"time"

	"tradeprobe/pkg/models"

	"github.com/shopspring/decimal"
)

type Quote struct {
	BestBid   decimal.NullDecimal
	BestAsk   decimal.NullDecimal
	Mid       decimal.NullDecimal
	Volume24h int
	UpdatedAt time.Time
}

// Market keeps the last ticker seen per product.
type Market struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewMarket() *Market {
	return &Market{quotes: make(map[string]Quote)}
}

func (m *Market) Update(t *models.Ticker, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.quotes[t.Product] = Quote{
		BestBid:   t.BestBid,
		BestAsk:   t.BestAsk,
		Mid:       t.Mid,
		Volume24h: t.Volume24h,
		UpdatedAt: now,
	}
}

func (m *Market) Quote(product string) (Quote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[product]
	return q, ok
}

// MidPrice returns the last reported mid, or the bid/ask midpoint when the
// server left mid empty.
func (m *Market) MidPrice(product string) (decimal.Decimal, bool) {
	q, ok := m.Quote(product)
	if !ok {
		return decimal.Zero, false
	}
	if q.Mid.Valid {
		return q.Mid.Decimal, true
	}
	if q.BestBid.Valid && q.BestAsk.Valid {
		return q.BestBid.Decimal.Add(q.BestAsk.Decimal).Div(decimal.NewFromInt(2)), true
	}
	return decimal.Zero, false
}
